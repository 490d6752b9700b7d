package core

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrCertificateNotFound = errors.New("core: certificate not found")
	ErrSagaNotFound        = errors.New("core: saga not found")
)

// ReferralCreditThreshold is the number of referrals an owner needs before a
// fee-waived mint is allowed.
const ReferralCreditThreshold = 3

// Content is the mutable "current" snapshot of a certificate.
type Content struct {
	StudentName string
	Degree      string
	Institution string
	IssueDate   time.Time
	ImageURL    *string
}

func (c Content) Clone() Content {
	cloned := c
	if c.ImageURL != nil {
		value := *c.ImageURL
		cloned.ImageURL = &value
	}
	return cloned
}

// Version is an appended, immutable snapshot pointer.
type Version struct {
	VersionID string
	CID       string
	CreatedAt time.Time
}

type Certificate struct {
	Owner       string
	MetadataURI string
	CID         string
	Content     Content
	Referrals   []string
	Versions    []Version
	TokenID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c Certificate) Clone() Certificate {
	cloned := c
	cloned.Content = c.Content.Clone()
	cloned.Referrals = append([]string(nil), c.Referrals...)
	cloned.Versions = append([]Version(nil), c.Versions...)
	return cloned
}

func (c Certificate) HasReferral(address string) bool {
	address = NormalizeAddress(address)
	for _, referral := range c.Referrals {
		if referral == address {
			return true
		}
	}
	return false
}

type ReferralCredit struct {
	Owner         string
	ReferralCount int
	Eligible      bool
}

// ComputeReferralCredit derives free-mint eligibility from the stored referral
// list. It has no side effects and is the only place eligibility is decided.
func ComputeReferralCredit(cert Certificate) ReferralCredit {
	count := len(cert.Referrals)
	return ReferralCredit{
		Owner:         cert.Owner,
		ReferralCount: count,
		Eligible:      count >= ReferralCreditThreshold,
	}
}

// AccessGrant is what a gated reader sees for an owner with a certificate.
type AccessGrant struct {
	Certificate Certificate
	TokenID     string
	TokenURI    string
}

type PublishResult struct {
	CID string
	URI string
}

// MetadataDocument is the JSON blob pinned to the content-addressed network.
type MetadataDocument struct {
	StudentName string  `json:"studentName"`
	Degree      string  `json:"degree"`
	Institution string  `json:"institution"`
	IssueDate   string  `json:"issueDate"`
	Owner       string  `json:"owner"`
	ImageURL    *string `json:"imageUrl"`
}

func NewMetadataDocument(owner string, content Content) MetadataDocument {
	return MetadataDocument{
		StudentName: content.StudentName,
		Degree:      content.Degree,
		Institution: content.Institution,
		IssueDate:   content.IssueDate.UTC().Format(time.RFC3339),
		Owner:       NormalizeAddress(owner),
		ImageURL:    content.Clone().ImageURL,
	}
}

type LedgerOperation string

const (
	LedgerOpMintFor           LedgerOperation = "mint_for"
	LedgerOpMintVersion       LedgerOperation = "mint_version"
	LedgerOpRevoke            LedgerOperation = "revoke"
	LedgerOpPause             LedgerOperation = "pause"
	LedgerOpUnpause           LedgerOperation = "unpause"
	LedgerOpTransferOwnership LedgerOperation = "transfer_ownership"
	LedgerOpSetBaseURI        LedgerOperation = "set_base_uri"
)

// LedgerCall is a state-changing contract call. Only the fields used by
// Operation are read.
type LedgerCall struct {
	Operation LedgerOperation
	Owner     string
	CID       string
	Referrer  string
	TokenID   string
	NewOwner  string
	URI       string
}

func MintForCall(owner string, cid string, referrer string) LedgerCall {
	return LedgerCall{Operation: LedgerOpMintFor, Owner: owner, CID: cid, Referrer: referrer}
}

func MintVersionCall(owner string, cid string) LedgerCall {
	return LedgerCall{Operation: LedgerOpMintVersion, Owner: owner, CID: cid}
}

func RevokeCall(tokenID string) LedgerCall {
	return LedgerCall{Operation: LedgerOpRevoke, TokenID: tokenID}
}

func PauseCall() LedgerCall {
	return LedgerCall{Operation: LedgerOpPause}
}

func UnpauseCall() LedgerCall {
	return LedgerCall{Operation: LedgerOpUnpause}
}

func TransferOwnershipCall(newOwner string) LedgerCall {
	return LedgerCall{Operation: LedgerOpTransferOwnership, NewOwner: newOwner}
}

func SetBaseURICall(uri string) LedgerCall {
	return LedgerCall{Operation: LedgerOpSetBaseURI, URI: uri}
}

// PendingTx is a broadcast transaction that has not been observed as mined.
type PendingTx struct {
	TxHash   string
	Nonce    uint64
	GasLimit uint64
}

type ReceiptStatus string

const (
	ReceiptStatusSuccess  ReceiptStatus = "success"
	ReceiptStatusReverted ReceiptStatus = "reverted"
)

type Receipt struct {
	Operation   LedgerOperation
	TxHash      string
	Status      ReceiptStatus
	BlockNumber uint64
	GasUsed     uint64
	TokenID     string
}

type IssueResult struct {
	Owner   string
	CID     string
	URI     string
	Created bool
	Receipt *Receipt
	SagaID  string
}

type VersionResult struct {
	Owner     string
	VersionID string
	CID       string
	URI       string
	Receipt   *Receipt
	SagaID    string
}

type UpsertContentInput struct {
	Owner            string
	Content          Content
	CID              string
	URI              string
	InitialReferrals []string
}

type AppendVersionInput struct {
	Owner   string
	CID     string
	URI     string
	Content Content
}

// NormalizeAddress trims and lowercases an address for storage and comparison.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func SameAddress(left string, right string) bool {
	return NormalizeAddress(left) == NormalizeAddress(right)
}
