package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func certificateHandlers() repository.ModelHandlers[*certificateRecord] {
	return repository.ModelHandlers[*certificateRecord]{
		NewRecord: func() *certificateRecord {
			return &certificateRecord{}
		},
		GetID: func(record *certificateRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *certificateRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "owner"
		},
		GetIdentifierValue: func(record *certificateRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Owner)
		},
	}
}

func certificateVersionHandlers() repository.ModelHandlers[*certificateVersionRecord] {
	return repository.ModelHandlers[*certificateVersionRecord]{
		NewRecord: func() *certificateVersionRecord {
			return &certificateVersionRecord{}
		},
		GetID: func(record *certificateVersionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *certificateVersionRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *certificateVersionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func certificateReferralHandlers() repository.ModelHandlers[*certificateReferralRecord] {
	return repository.ModelHandlers[*certificateReferralRecord]{
		NewRecord: func() *certificateReferralRecord {
			return &certificateReferralRecord{}
		},
		GetID: func(record *certificateReferralRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *certificateReferralRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *certificateReferralRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func issuanceSagaHandlers() repository.ModelHandlers[*issuanceSagaRecord] {
	return repository.ModelHandlers[*issuanceSagaRecord]{
		NewRecord: func() *issuanceSagaRecord {
			return &issuanceSagaRecord{}
		},
		GetID: func(record *issuanceSagaRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *issuanceSagaRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *issuanceSagaRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
