package command

import (
	"context"
	"testing"

	"github.com/goliatone/go-certledger/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestIssueMessage_ValidateReturnsRichError(t *testing.T) {
	err := (IssueMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorValidation {
		t.Fatalf("expected %q text code, got %q", core.ErrorValidation, rich.TextCode)
	}
}

func TestResumeSagaMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ResumeSagaMessage{}).Validate()

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
}

func TestIssueCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *IssueCommand
	err := cmd.Execute(context.Background(), IssueMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
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
}
