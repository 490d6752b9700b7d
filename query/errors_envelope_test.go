package query

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-certledger/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestGetCertificateMessage_ValidateReturnsRichError(t *testing.T) {
	err := (GetCertificateMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorValidation {
		t.Fatalf("expected %q text code, got %q", core.ErrorValidation, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 {
		t.Fatalf("expected validation errors in envelope")
	}
	if validation[0].Field != "owner" {
		t.Fatalf("expected owner validation field, got %q", validation[0].Field)
	}
}

func TestGetCertificateQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *GetCertificateQuery
	_, err := q.Query(context.Background(), GetCertificateMessage{})
	if err == nil {
		t.Fatalf("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorDependencyMissing {
		t.Fatalf("expected %q text code, got %q", core.ErrorDependencyMissing, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}
