package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type certificateRecord struct {
	bun.BaseModel `bun:"table:certificates,alias:c"`

	ID          string    `bun:"id,pk"`
	Owner       string    `bun:"owner,notnull"`
	MetadataURI string    `bun:"metadata_uri,notnull"`
	CID         string    `bun:"cid,notnull"`
	StudentName string    `bun:"student_name,notnull"`
	Degree      string    `bun:"degree,notnull"`
	Institution string    `bun:"institution,notnull"`
	IssueDate   time.Time `bun:"issue_date,notnull"`
	ImageURL    *string   `bun:"image_url"`
	TokenID     *string   `bun:"token_id"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type certificateVersionRecord struct {
	bun.BaseModel `bun:"table:certificate_versions,alias:cv"`

	ID            string    `bun:"id,pk"`
	CertificateID string    `bun:"certificate_id,notnull"`
	VersionNumber int       `bun:"version_number,notnull"`
	CID           string    `bun:"cid,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type certificateReferralRecord struct {
	bun.BaseModel `bun:"table:certificate_referrals,alias:cr"`

	ID            string    `bun:"id,pk"`
	CertificateID string    `bun:"certificate_id,notnull"`
	Referee       string    `bun:"referee,notnull"`
	Position      int       `bun:"position,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type issuanceSagaRecord struct {
	bun.BaseModel `bun:"table:issuance_sagas,alias:isg"`

	ID        string         `bun:"id,pk"`
	Kind      string         `bun:"kind,notnull"`
	Status    string         `bun:"status,notnull"`
	Owner     string         `bun:"owner,notnull"`
	Input     sagaInputJSON  `bun:"input,type:jsonb,notnull"`
	Steps     []sagaStepJSON `bun:"steps,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type sagaContentJSON struct {
	StudentName string    `json:"student_name"`
	Degree      string    `json:"degree"`
	Institution string    `json:"institution"`
	IssueDate   time.Time `json:"issue_date"`
	ImageURL    *string   `json:"image_url,omitempty"`
}

type sagaCallJSON struct {
	Operation string `json:"operation,omitempty"`
	Owner     string `json:"owner,omitempty"`
	CID       string `json:"cid,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	TokenID   string `json:"token_id,omitempty"`
	NewOwner  string `json:"new_owner,omitempty"`
	URI       string `json:"uri,omitempty"`
}

type sagaInputJSON struct {
	Caller    string          `json:"caller,omitempty"`
	Owner     string          `json:"owner,omitempty"`
	Referrer  string          `json:"referrer,omitempty"`
	Credited  bool            `json:"referrer_credited,omitempty"`
	Content   sagaContentJSON `json:"content"`
	Free      bool            `json:"free,omitempty"`
	CID       string          `json:"cid,omitempty"`
	URI       string          `json:"uri,omitempty"`
	TokenID   string          `json:"token_id,omitempty"`
	VersionID string          `json:"version_id,omitempty"`
	Created   bool            `json:"created,omitempty"`
	Call      sagaCallJSON    `json:"call"`
}

type sagaStepJSON struct {
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
