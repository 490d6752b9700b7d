package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorValidation         = "CERT_VALIDATION"
	ErrorNotFound           = "CERT_NOT_FOUND"
	ErrorUploadFailed       = "CERT_UPLOAD_FAILED"
	ErrorLedgerEstimation   = "CERT_LEDGER_ESTIMATION_FAILED"
	ErrorLedgerSubmission   = "CERT_LEDGER_SUBMISSION_FAILED"
	ErrorLedgerConfirmation = "CERT_LEDGER_CONFIRMATION_PENDING"
	ErrorForbidden          = "CERT_FORBIDDEN"
	ErrorServiceUnavailable = "CERT_SERVICE_UNAVAILABLE"
	ErrorStoreFailed        = "CERT_STORE_FAILED"
	ErrorConflict           = "CERT_CONFLICT"
	ErrorReferralIneligible = "CERT_REFERRAL_INELIGIBLE"
	ErrorInternal           = "CERT_INTERNAL_ERROR"
	ErrorDependencyMissing  = "CERT_DEPENDENCY_MISSING"
	ErrorRateLimited        = "CERT_RATE_LIMITED"
)

const (
	metadataKeyTxHash         = "tx_hash"
	metadataKeyRevertReason   = "revert_reason"
	metadataKeyStage          = "stage"
	metadataKeySagaID         = "saga_id"
	metadataKeyLedgerReverted = "reverted"
)

// StageError attributes an orchestrator failure to the saga stage that
// produced it so an operator can resume from the last committed stage.
type StageError struct {
	SagaID string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("core: stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func StageOf(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) && stageErr != nil {
		return stageErr.Stage, true
	}
	return "", false
}

func NewValidationError(field string, message string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.NewValidation("core: validation failed", goerrors.FieldError{
			Field:   field,
			Message: message,
		}).
			WithTextCode(ErrorValidation).
			WithSeverity(goerrors.SeverityError),
	)
}

func NewNotFoundError(message string, metadata map[string]any) *goerrors.Error {
	return newCertError(message, goerrors.CategoryNotFound, ErrorNotFound, metadata)
}

func NewConflictError(message string, metadata map[string]any) *goerrors.Error {
	return newCertError(message, goerrors.CategoryConflict, ErrorConflict, metadata)
}

func NewReferralIneligibleError(owner string, credit ReferralCredit) *goerrors.Error {
	return newCertError(
		fmt.Sprintf("core: owner %s has %d of %d referrals required for a free mint", owner, credit.ReferralCount, ReferralCreditThreshold),
		goerrors.CategoryAuthz,
		ErrorReferralIneligible,
		map[string]any{"owner": owner, "referral_count": credit.ReferralCount},
	)
}

func NewUploadError(source error, metadata map[string]any) *goerrors.Error {
	return wrapCertError(source, goerrors.CategoryExternal, "core: metadata upload failed", ErrorUploadFailed, metadata)
}

// NewEstimationError reports a simulated call that reverted. The revert reason
// is surfaced verbatim when the node returned one.
func NewEstimationError(source error, revertReason string) *goerrors.Error {
	message := "core: ledger call reverted during estimation"
	if reason := strings.TrimSpace(revertReason); reason != "" {
		message = message + ": " + reason
	}
	return wrapCertError(source, goerrors.CategoryOperation, message, ErrorLedgerEstimation, map[string]any{
		metadataKeyRevertReason: strings.TrimSpace(revertReason),
	})
}

func NewSubmissionError(source error, txHash string) *goerrors.Error {
	metadata := map[string]any{}
	if strings.TrimSpace(txHash) != "" {
		metadata[metadataKeyTxHash] = strings.TrimSpace(txHash)
	}
	return wrapCertError(source, goerrors.CategoryExternal, "core: ledger transaction submission failed", ErrorLedgerSubmission, metadata)
}

func NewRevertedError(txHash string) *goerrors.Error {
	return newCertError("core: ledger transaction reverted", goerrors.CategoryExternal, ErrorLedgerSubmission, map[string]any{
		metadataKeyTxHash:         strings.TrimSpace(txHash),
		metadataKeyLedgerReverted: true,
	})
}

// NewConfirmationError reports an unknown outcome: the transaction was
// broadcast but not observed as mined within the wait bound.
func NewConfirmationError(txHash string, source error) *goerrors.Error {
	return wrapCertError(source, goerrors.CategoryExternal, "core: ledger confirmation not observed", ErrorLedgerConfirmation, map[string]any{
		metadataKeyTxHash: strings.TrimSpace(txHash),
	})
}

func NewForbiddenError(caller string) *goerrors.Error {
	return newCertError("core: caller is not the ledger owner", goerrors.CategoryAuthz, ErrorForbidden, map[string]any{
		"caller": NormalizeAddress(caller),
	})
}

func NewServiceUnavailableError(source error, message string) *goerrors.Error {
	return wrapCertError(source, goerrors.CategoryExternal, message, ErrorServiceUnavailable, nil)
}

// NewRateLimitedError reports an upstream that asked us to back off. A positive
// retryAfter is exposed as retry_after_ms.
func NewRateLimitedError(message string, retryAfter time.Duration, metadata map[string]any) *goerrors.Error {
	metadata = copyAnyMap(metadata)
	if retryAfter > 0 {
		metadata["retry_after_ms"] = retryAfter.Milliseconds()
	}
	return newCertError(message, goerrors.CategoryRateLimit, ErrorRateLimited, metadata)
}

func NewStoreError(source error, operation string) *goerrors.Error {
	var rich *goerrors.Error
	if goerrors.As(source, &rich) && rich != nil && strings.TrimSpace(rich.TextCode) != "" {
		return rich
	}
	return wrapCertError(source, goerrors.CategoryInternal, "core: record store "+strings.TrimSpace(operation)+" failed", ErrorStoreFailed, map[string]any{
		"store_operation": strings.TrimSpace(operation),
	})
}

func newDependencyError(message string) *goerrors.Error {
	return newCertError(message, goerrors.CategoryInternal, ErrorDependencyMissing, nil)
}

// HasTextCode reports whether err carries the given go-errors text code.
func HasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return false
	}
	return rich.TextCode == textCode
}

func IsConfirmationPending(err error) bool {
	return HasTextCode(err, ErrorLedgerConfirmation)
}

func IsNotFound(err error) bool {
	return HasTextCode(err, ErrorNotFound) || errors.Is(err, ErrCertificateNotFound) || errors.Is(err, ErrSagaNotFound)
}

// TxHashFromError returns the transaction hash attached to a ledger error.
func TxHashFromError(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil || rich.Metadata == nil {
		return ""
	}
	value, _ := rich.Metadata[metadataKeyTxHash].(string)
	return value
}

// MapError converts any error into the certledger go-errors envelope. Stage
// information survives as metadata.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) && stageErr != nil {
		mapped := MapError(stageErr.Err)
		metadata := copyAnyMap(mapped.Metadata)
		metadata[metadataKeyStage] = string(stageErr.Stage)
		metadata[metadataKeySagaID] = stageErr.SagaID
		mapped.Metadata = metadata
		return mapped
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}

	switch {
	case errors.Is(err, ErrCertificateNotFound), errors.Is(err, ErrSagaNotFound):
		return newCertError(err.Error(), goerrors.CategoryNotFound, ErrorNotFound, nil)
	case errors.Is(err, ErrOwnerLockTimeout):
		return newCertError(err.Error(), goerrors.CategoryConflict, ErrorConflict, nil)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newCertError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return ensureErrorEnvelope(err)
}

func wrapCertError(source error, category goerrors.Category, message string, textCode string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return newCertError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).WithTextCode(textCode)
	// Wrapping an envelope inherits its category and code; ours win.
	err.Category = category
	err.Code = statusForTextCode(textCode, category)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return ensureErrorEnvelope(err)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Code == 0 {
		err.Code = statusForTextCode(err.TextCode, err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorValidation
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryConflict:
		return ErrorConflict
	case goerrors.CategoryExternal:
		return ErrorServiceUnavailable
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	default:
		return ErrorInternal
	}
}

func statusForTextCode(textCode string, category goerrors.Category) int {
	switch textCode {
	case ErrorLedgerConfirmation:
		return http.StatusAccepted
	case ErrorLedgerEstimation:
		return http.StatusUnprocessableEntity
	case ErrorUploadFailed, ErrorLedgerSubmission:
		return http.StatusBadGateway
	case ErrorServiceUnavailable:
		return http.StatusServiceUnavailable
	}
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
