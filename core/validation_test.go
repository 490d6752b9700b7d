package core

import (
	"strings"
	"testing"
	"time"
)

func TestIssueRequestValidate(t *testing.T) {
	input, err := IssueRequest{
		Owner:    " 0xABC1230000000000000000000000000000000001 ",
		Referrer: "0x00000000000000000000000000000000000000F2",
		Content: ContentRequest{
			StudentName: " Jane Doe ",
			Degree:      "B.Sc CS",
			Institution: "EMU",
			IssueDate:   "2025-05-01",
			ImageURL:    "https://img.example/jane.png",
		},
	}.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if input.Owner != "0xabc1230000000000000000000000000000000001" {
		t.Fatalf("expected normalized owner, got %q", input.Owner)
	}
	if input.Referrer != "0x00000000000000000000000000000000000000f2" {
		t.Fatalf("expected normalized referrer, got %q", input.Referrer)
	}
	if input.Content.StudentName != "Jane Doe" {
		t.Fatalf("expected trimmed student name, got %q", input.Content.StudentName)
	}
	if !input.Content.IssueDate.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected issue date %v", input.Content.IssueDate)
	}
	if input.Content.ImageURL == nil || *input.Content.ImageURL != "https://img.example/jane.png" {
		t.Fatalf("expected image url to be kept")
	}
}

func TestIssueRequestValidate_Rejections(t *testing.T) {
	valid := IssueRequest{Owner: testOwner, Content: testContent("Jane")}
	cases := []struct {
		name   string
		mutate func(*IssueRequest)
		field  string
	}{
		{name: "missing owner", mutate: func(r *IssueRequest) { r.Owner = "" }, field: "owner"},
		{name: "unprefixed owner", mutate: func(r *IssueRequest) { r.Owner = "abc1230000000000000000000000000000000001" }, field: "owner"},
		{name: "short owner", mutate: func(r *IssueRequest) { r.Owner = "0xabc" }, field: "owner"},
		{name: "bad referrer", mutate: func(r *IssueRequest) { r.Referrer = "0xnothex" }, field: "referrer"},
		{name: "missing student", mutate: func(r *IssueRequest) { r.Content.StudentName = " " }, field: "studentName"},
		{name: "missing degree", mutate: func(r *IssueRequest) { r.Content.Degree = "" }, field: "degree"},
		{name: "missing institution", mutate: func(r *IssueRequest) { r.Content.Institution = "" }, field: "institution"},
		{name: "bad date", mutate: func(r *IssueRequest) { r.Content.IssueDate = "May 1st" }, field: "issueDate"},
		{name: "bad image url", mutate: func(r *IssueRequest) { r.Content.ImageURL = "ftp://img" }, field: "imageUrl"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			_, err := req.Validate()
			if !HasTextCode(err, ErrorValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), "validation") {
				t.Fatalf("expected validation message for %s, got %q", tc.field, err.Error())
			}
		})
	}
}

func TestAdminRevokeRequestValidate(t *testing.T) {
	input, err := AdminRevokeRequest{Caller: testAdmin, TokenID: " 0042 "}.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if input.TokenID != "42" {
		t.Fatalf("expected canonical token id, got %q", input.TokenID)
	}
	for _, tokenID := range []string{"", "-1", "0x2a", "abc"} {
		if _, err := (AdminRevokeRequest{Caller: testAdmin, TokenID: tokenID}).Validate(); !HasTextCode(err, ErrorValidation) {
			t.Fatalf("expected token id %q to be rejected, got %v", tokenID, err)
		}
	}
}

func TestAdminMintFreeRequestValidate_ContentIsOptional(t *testing.T) {
	input, err := AdminMintFreeRequest{Caller: testAdmin, Owner: testOwner}.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if input.Content != nil {
		t.Fatalf("expected no content")
	}
	if _, err := (AdminMintFreeRequest{Caller: testAdmin, Owner: testOwner, Content: ContentRequest{StudentName: "Jane"}}).Validate(); !HasTextCode(err, ErrorValidation) {
		t.Fatalf("expected partial content to be rejected, got %v", err)
	}
}
