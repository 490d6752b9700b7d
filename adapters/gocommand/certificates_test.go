package gocommand

import (
	"context"
	"testing"
	"time"

	certcommand "github.com/goliatone/go-certledger/command"
	"github.com/goliatone/go-certledger/core"
	certquery "github.com/goliatone/go-certledger/query"
	"github.com/goliatone/go-command"
)

const registrationOwner = "0x1111111111111111111111111111111111111111"

func TestRegisterCertificateHandlers_DispatchesCommandsAndQueries(t *testing.T) {
	svc := &stubCertificateService{}
	adapter := NewRegistryAdapter(command.NewRegistry())

	subs, err := RegisterCertificateHandlers(adapter, svc)
	if err != nil {
		t.Fatalf("register certificate handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if len(subs) != 15 {
		t.Fatalf("expected 15 subscriptions, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	ctx := context.Background()
	err = Dispatch(ctx, certcommand.IssueMessage{Request: core.IssueRequest{
		Owner: registrationOwner,
		Content: core.ContentRequest{
			StudentName: "Ada Lovelace",
			Degree:      "BSc Mathematics",
			Institution: "University of London",
			IssueDate:   "2024-06-01",
		},
	}})
	if err != nil {
		t.Fatalf("dispatch issue: %v", err)
	}
	if svc.issued != registrationOwner {
		t.Fatalf("expected issue delegated for %s, got %q", registrationOwner, svc.issued)
	}

	credit, err := Query[certquery.GetReferralCreditMessage, core.ReferralCredit](ctx, certquery.GetReferralCreditMessage{Owner: registrationOwner})
	if err != nil {
		t.Fatalf("query referral credit: %v", err)
	}
	if credit.ReferralCount != 3 || !credit.Eligible {
		t.Fatalf("unexpected credit: %#v", credit)
	}
}

func TestRegisterCertificateHandlers_RequiresService(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	if _, err := RegisterCertificateHandlers(adapter, nil); err == nil {
		t.Fatalf("expected nil service error")
	}
}

type stubCertificateService struct {
	issued string
}

func (s *stubCertificateService) Issue(_ context.Context, req core.IssueRequest) (core.IssueResult, error) {
	s.issued = req.Owner
	return core.IssueResult{Owner: req.Owner}, nil
}

func (s *stubCertificateService) IssueVersion(context.Context, core.IssueVersionRequest) (core.VersionResult, error) {
	return core.VersionResult{}, nil
}

func (s *stubCertificateService) AdminMintFree(context.Context, core.AdminMintFreeRequest) (core.AdminResult, error) {
	return core.AdminResult{}, nil
}

func (s *stubCertificateService) AdminRevoke(context.Context, core.AdminRevokeRequest) (core.AdminResult, error) {
	return core.AdminResult{}, nil
}

func (s *stubCertificateService) AdminPause(context.Context, core.AdminRequest) (core.AdminResult, error) {
	return core.AdminResult{}, nil
}

func (s *stubCertificateService) AdminUnpause(context.Context, core.AdminRequest) (core.AdminResult, error) {
	return core.AdminResult{}, nil
}

func (s *stubCertificateService) AdminTransferOwnership(context.Context, core.TransferOwnershipRequest) (core.AdminResult, error) {
	return core.AdminResult{}, nil
}

func (s *stubCertificateService) AdminSetBaseURI(context.Context, core.SetBaseURIRequest) (core.AdminResult, error) {
	return core.AdminResult{}, nil
}

func (s *stubCertificateService) ResumeSaga(_ context.Context, id string) (core.Saga, error) {
	return core.Saga{ID: id}, nil
}

func (s *stubCertificateService) ScheduleResume(context.Context, string) error {
	return nil
}

func (s *stubCertificateService) GetByOwner(_ context.Context, owner string) (core.Certificate, error) {
	return core.Certificate{Owner: owner}, nil
}

func (s *stubCertificateService) GetReferralCredit(_ context.Context, owner string) (core.ReferralCredit, error) {
	return core.ReferralCredit{Owner: owner, ReferralCount: 3, Eligible: true}, nil
}

func (s *stubCertificateService) CheckAccess(context.Context, string) (core.AccessGrant, error) {
	return core.AccessGrant{}, nil
}

func (s *stubCertificateService) GetSaga(_ context.Context, id string) (core.Saga, error) {
	return core.Saga{ID: id}, nil
}

func (s *stubCertificateService) ListStalledSagas(context.Context, time.Time, int) ([]core.Saga, error) {
	return nil, nil
}
