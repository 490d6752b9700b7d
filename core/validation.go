package core

import (
	"errors"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const issueDateLayout = "2006-01-02"

// ContentRequest is the raw certificate content accepted at the edge.
type ContentRequest struct {
	StudentName string `json:"studentName"`
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	IssueDate   string `json:"issueDate"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

func (r ContentRequest) empty() bool {
	return strings.TrimSpace(r.StudentName) == "" &&
		strings.TrimSpace(r.Degree) == "" &&
		strings.TrimSpace(r.Institution) == "" &&
		strings.TrimSpace(r.IssueDate) == "" &&
		strings.TrimSpace(r.ImageURL) == ""
}

func (r ContentRequest) Validate() (Content, error) {
	content := Content{
		StudentName: strings.TrimSpace(r.StudentName),
		Degree:      strings.TrimSpace(r.Degree),
		Institution: strings.TrimSpace(r.Institution),
	}
	if content.StudentName == "" {
		return Content{}, NewValidationError("studentName", "student name is required")
	}
	if content.Degree == "" {
		return Content{}, NewValidationError("degree", "degree is required")
	}
	if content.Institution == "" {
		return Content{}, NewValidationError("institution", "institution is required")
	}
	issueDate, err := parseIssueDate(r.IssueDate)
	if err != nil {
		return Content{}, NewValidationError("issueDate", err.Error())
	}
	content.IssueDate = issueDate
	if raw := strings.TrimSpace(r.ImageURL); raw != "" {
		if !isHTTPURL(raw) {
			return Content{}, NewValidationError("imageUrl", "image url must be an absolute http(s) url")
		}
		content.ImageURL = &raw
	}
	return content, nil
}

type IssueRequest struct {
	Owner    string         `json:"owner"`
	Content  ContentRequest `json:"content"`
	Referrer string         `json:"referrer,omitempty"`
	// Free requests an engine-signed mint paid for by referral credit.
	Free bool `json:"free,omitempty"`
}

type IssueInput struct {
	Owner    string
	Content  Content
	Referrer string
	Free     bool
}

func (r IssueRequest) Validate() (IssueInput, error) {
	owner, err := validateAddress("owner", r.Owner, true)
	if err != nil {
		return IssueInput{}, err
	}
	referrer, err := validateAddress("referrer", r.Referrer, false)
	if err != nil {
		return IssueInput{}, err
	}
	if referrer != "" && referrer == owner {
		return IssueInput{}, NewValidationError("referrer", "owner cannot refer themselves")
	}
	content, err := r.Content.Validate()
	if err != nil {
		return IssueInput{}, err
	}
	return IssueInput{Owner: owner, Content: content, Referrer: referrer, Free: r.Free}, nil
}

type IssueVersionRequest struct {
	Owner   string         `json:"owner"`
	Content ContentRequest `json:"content"`
}

type IssueVersionInput struct {
	Owner   string
	Content Content
}

func (r IssueVersionRequest) Validate() (IssueVersionInput, error) {
	owner, err := validateAddress("owner", r.Owner, true)
	if err != nil {
		return IssueVersionInput{}, err
	}
	content, err := r.Content.Validate()
	if err != nil {
		return IssueVersionInput{}, err
	}
	return IssueVersionInput{Owner: owner, Content: content}, nil
}

type AdminMintFreeRequest struct {
	Caller   string `json:"caller"`
	Owner    string `json:"owner"`
	Referrer string `json:"referrer,omitempty"`
	// Content is only read when the owner has no stored record.
	Content ContentRequest `json:"content,omitempty"`
}

type AdminMintFreeInput struct {
	Caller   string
	Owner    string
	Referrer string
	Content  *Content
}

func (r AdminMintFreeRequest) Validate() (AdminMintFreeInput, error) {
	caller, err := validateAddress("caller", r.Caller, true)
	if err != nil {
		return AdminMintFreeInput{}, err
	}
	owner, err := validateAddress("owner", r.Owner, true)
	if err != nil {
		return AdminMintFreeInput{}, err
	}
	referrer, err := validateAddress("referrer", r.Referrer, false)
	if err != nil {
		return AdminMintFreeInput{}, err
	}
	if referrer != "" && referrer == owner {
		return AdminMintFreeInput{}, NewValidationError("referrer", "owner cannot refer themselves")
	}
	input := AdminMintFreeInput{Caller: caller, Owner: owner, Referrer: referrer}
	if !r.Content.empty() {
		content, err := r.Content.Validate()
		if err != nil {
			return AdminMintFreeInput{}, err
		}
		input.Content = &content
	}
	return input, nil
}

type AdminRevokeRequest struct {
	Caller  string `json:"caller"`
	TokenID string `json:"tokenId"`
}

type AdminRevokeInput struct {
	Caller  string
	TokenID string
}

func (r AdminRevokeRequest) Validate() (AdminRevokeInput, error) {
	caller, err := validateAddress("caller", r.Caller, true)
	if err != nil {
		return AdminRevokeInput{}, err
	}
	tokenID, err := validateTokenID(r.TokenID)
	if err != nil {
		return AdminRevokeInput{}, err
	}
	return AdminRevokeInput{Caller: caller, TokenID: tokenID}, nil
}

// AdminRequest carries the caller of a parameterless admin contract call.
type AdminRequest struct {
	Caller string `json:"caller"`
}

type AdminCallInput struct {
	Caller string
	Call   LedgerCall
}

func (r AdminRequest) validate(call LedgerCall) (AdminCallInput, error) {
	caller, err := validateAddress("caller", r.Caller, true)
	if err != nil {
		return AdminCallInput{}, err
	}
	return AdminCallInput{Caller: caller, Call: call}, nil
}

type TransferOwnershipRequest struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner"`
}

func (r TransferOwnershipRequest) Validate() (AdminCallInput, error) {
	newOwner, err := validateAddress("newOwner", r.NewOwner, true)
	if err != nil {
		return AdminCallInput{}, err
	}
	if newOwner == NormalizeAddress(common.Address{}.Hex()) {
		return AdminCallInput{}, NewValidationError("newOwner", "new owner cannot be the zero address")
	}
	return AdminRequest{Caller: r.Caller}.validate(TransferOwnershipCall(newOwner))
}

type SetBaseURIRequest struct {
	Caller string `json:"caller"`
	URI    string `json:"uri"`
}

func (r SetBaseURIRequest) Validate() (AdminCallInput, error) {
	uri := strings.TrimSpace(r.URI)
	if uri == "" {
		return AdminCallInput{}, NewValidationError("uri", "base uri is required")
	}
	if !isHTTPURL(uri) {
		return AdminCallInput{}, NewValidationError("uri", "base uri must be an absolute http(s) url")
	}
	return AdminRequest{Caller: r.Caller}.validate(SetBaseURICall(uri))
}

func validateAddress(field string, raw string, required bool) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		if required {
			return "", NewValidationError(field, "address is required")
		}
		return "", nil
	}
	if !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		return "", NewValidationError(field, "address must be 0x-prefixed")
	}
	if !common.IsHexAddress(value) {
		return "", NewValidationError(field, "address must be 20 hex-encoded bytes")
	}
	return NormalizeAddress(value), nil
}

func validateTokenID(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", NewValidationError("tokenId", "token id is required")
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return "", NewValidationError("tokenId", "token id must be a non-negative decimal integer")
	}
	return parsed.String(), nil
}

func parseIssueDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, errors.New("issue date is required")
	}
	if parsed, err := time.Parse(issueDateLayout, value); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.New("issue date must be YYYY-MM-DD or RFC3339")
	}
	return parsed.UTC(), nil
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
