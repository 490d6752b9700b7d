package sqlstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-certledger/core"
	"github.com/google/uuid"
)

func newCertificateRecord(in core.UpsertContentInput, now time.Time) *certificateRecord {
	record := &certificateRecord{
		ID:        uuid.NewString(),
		Owner:     core.NormalizeAddress(in.Owner),
		CreatedAt: now,
	}
	record.apply(in.Content, in.CID, in.URI, now)
	return record
}

// apply moves the current snapshot to content/cid/uri.
func (r *certificateRecord) apply(content core.Content, cid string, uri string, now time.Time) {
	r.StudentName = content.StudentName
	r.Degree = content.Degree
	r.Institution = content.Institution
	r.IssueDate = content.IssueDate.UTC()
	r.ImageURL = copyStringPointer(content.ImageURL)
	r.CID = strings.TrimSpace(cid)
	r.MetadataURI = strings.TrimSpace(uri)
	r.UpdatedAt = now
}

func (r *certificateRecord) toDomain(versions []*certificateVersionRecord, referrals []*certificateReferralRecord) core.Certificate {
	if r == nil {
		return core.Certificate{}
	}
	cert := core.Certificate{
		Owner:       r.Owner,
		MetadataURI: r.MetadataURI,
		CID:         r.CID,
		Content: core.Content{
			StudentName: r.StudentName,
			Degree:      r.Degree,
			Institution: r.Institution,
			IssueDate:   r.IssueDate.UTC(),
			ImageURL:    copyStringPointer(r.ImageURL),
		},
		Referrals: make([]string, 0, len(referrals)),
		Versions:  make([]core.Version, 0, len(versions)),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.TokenID != nil {
		cert.TokenID = *r.TokenID
	}
	for _, referral := range referrals {
		cert.Referrals = append(cert.Referrals, referral.Referee)
	}
	for _, version := range versions {
		cert.Versions = append(cert.Versions, version.toDomain())
	}
	return cert
}

func (r *certificateVersionRecord) toDomain() core.Version {
	return core.Version{
		VersionID: strconv.Itoa(r.VersionNumber),
		CID:       r.CID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func newIssuanceSagaRecord(saga core.Saga) *issuanceSagaRecord {
	in := saga.Input
	steps := make([]sagaStepJSON, 0, len(saga.Steps))
	for _, step := range saga.Steps {
		steps = append(steps, sagaStepJSON{
			Stage:     string(step.Stage),
			Status:    string(step.Status),
			TxHash:    step.TxHash,
			Error:     step.Error,
			ErrorCode: step.ErrorCode,
			UpdatedAt: step.UpdatedAt.UTC(),
		})
	}
	return &issuanceSagaRecord{
		ID:     strings.TrimSpace(saga.ID),
		Kind:   string(saga.Kind),
		Status: string(saga.Status),
		Owner:  core.NormalizeAddress(in.Owner),
		Input: sagaInputJSON{
			Caller:   in.Caller,
			Owner:    in.Owner,
			Referrer: in.Referrer,
			Credited: in.ReferrerCredited,
			Content: sagaContentJSON{
				StudentName: in.Content.StudentName,
				Degree:      in.Content.Degree,
				Institution: in.Content.Institution,
				IssueDate:   in.Content.IssueDate.UTC(),
				ImageURL:    copyStringPointer(in.Content.ImageURL),
			},
			Free:      in.Free,
			CID:       in.CID,
			URI:       in.URI,
			TokenID:   in.TokenID,
			VersionID: in.VersionID,
			Created:   in.Created,
			Call: sagaCallJSON{
				Operation: string(in.Call.Operation),
				Owner:     in.Call.Owner,
				CID:       in.Call.CID,
				Referrer:  in.Call.Referrer,
				TokenID:   in.Call.TokenID,
				NewOwner:  in.Call.NewOwner,
				URI:       in.Call.URI,
			},
		},
		Steps:     steps,
		CreatedAt: saga.CreatedAt.UTC(),
		UpdatedAt: saga.UpdatedAt.UTC(),
	}
}

func (r *issuanceSagaRecord) toDomain() core.Saga {
	if r == nil {
		return core.Saga{}
	}
	in := r.Input
	saga := core.Saga{
		ID:     r.ID,
		Kind:   core.SagaKind(r.Kind),
		Status: core.SagaStatus(r.Status),
		Input: core.SagaInput{
			Caller:           in.Caller,
			Owner:            in.Owner,
			Referrer:         in.Referrer,
			ReferrerCredited: in.Credited,
			Content: core.Content{
				StudentName: in.Content.StudentName,
				Degree:      in.Content.Degree,
				Institution: in.Content.Institution,
				IssueDate:   in.Content.IssueDate.UTC(),
				ImageURL:    copyStringPointer(in.Content.ImageURL),
			},
			Free:      in.Free,
			CID:       in.CID,
			URI:       in.URI,
			TokenID:   in.TokenID,
			VersionID: in.VersionID,
			Created:   in.Created,
			Call: core.LedgerCall{
				Operation: core.LedgerOperation(in.Call.Operation),
				Owner:     in.Call.Owner,
				CID:       in.Call.CID,
				Referrer:  in.Call.Referrer,
				TokenID:   in.Call.TokenID,
				NewOwner:  in.Call.NewOwner,
				URI:       in.Call.URI,
			},
		},
		Steps:     make([]core.SagaStep, 0, len(r.Steps)),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	for _, step := range r.Steps {
		saga.Steps = append(saga.Steps, core.SagaStep{
			Stage:     core.Stage(step.Stage),
			Status:    core.StepStatus(step.Status),
			TxHash:    step.TxHash,
			Error:     step.Error,
			ErrorCode: step.ErrorCode,
			UpdatedAt: step.UpdatedAt.UTC(),
		})
	}
	return saga
}

func copyStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
