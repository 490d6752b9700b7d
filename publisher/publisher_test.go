package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-certledger/core"
	"github.com/goliatone/go-certledger/ratelimit"
)

func testDocument(owner string) core.MetadataDocument {
	return core.NewMetadataDocument(owner, core.Content{
		StudentName: "Ada",
		Degree:      "B.Sc CS",
		Institution: "EMU",
		IssueDate:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
}

func TestComputeCID_IsDeterministicRawV1(t *testing.T) {
	first, err := ComputeCID([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("compute cid: %v", err)
	}
	second, err := ComputeCID([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("compute cid: %v", err)
	}
	if !first.Equals(second) {
		t.Fatalf("expected identical cids, got %s and %s", first, second)
	}
	if first.Version() != 1 {
		t.Fatalf("expected cid v1, got v%d", first.Version())
	}
	other, _ := ComputeCID([]byte(`{"a":2}`))
	if first.Equals(other) {
		t.Fatalf("expected different content to yield different cids")
	}
}

func TestParseCID(t *testing.T) {
	computed, _ := ComputeCID([]byte("hello"))
	parsed, err := ParseCID(" " + computed.String() + " ")
	if err != nil {
		t.Fatalf("parse cid: %v", err)
	}
	if parsed != computed.String() {
		t.Fatalf("expected %s, got %s", computed, parsed)
	}
	if _, err := ParseCID("not-a-cid"); err == nil {
		t.Fatalf("expected invalid cid error")
	}
	if _, err := ParseCID(""); err == nil {
		t.Fatalf("expected empty cid error")
	}
}

func TestMemoryPublisher_PublishStoresBlob(t *testing.T) {
	publisher := NewMemoryPublisher("https://gw.example/")
	doc := testDocument("0xabc0000000000000000000000000000000000001")

	result, err := publisher.Publish(context.Background(), doc)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.URI != "https://gw.example/ipfs/"+result.CID {
		t.Fatalf("unexpected uri %q", result.URI)
	}
	blob, ok := publisher.Get(result.CID)
	if !ok {
		t.Fatalf("expected blob for %s", result.CID)
	}
	var decoded map[string]any
	if err := json.Unmarshal(blob, &decoded); err != nil {
		t.Fatalf("decode blob: %v", err)
	}
	if decoded["studentName"] != "Ada" || decoded["imageUrl"] != nil {
		t.Fatalf("unexpected document %v", decoded)
	}
	if decoded["issueDate"] != "2025-05-01T00:00:00Z" {
		t.Fatalf("unexpected issue date %v", decoded["issueDate"])
	}

	again, err := publisher.Publish(context.Background(), doc)
	if err != nil {
		t.Fatalf("publish again: %v", err)
	}
	if again.CID != result.CID || publisher.Len() != 1 {
		t.Fatalf("expected identical document to map to the same cid")
	}
}

func TestMemoryPublisher_FailureIsUploadError(t *testing.T) {
	publisher := NewMemoryPublisher("")
	publisher.FailWith(errors.New("network down"))

	_, err := publisher.Publish(context.Background(), testDocument("0xabc0000000000000000000000000000000000001"))
	if !core.HasTextCode(err, core.ErrorUploadFailed) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if publisher.Len() != 0 {
		t.Fatalf("expected nothing pinned")
	}
}

func TestPinataPublisher_PinsJSONWithBearerToken(t *testing.T) {
	computed, _ := ComputeCID([]byte("pinned"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pinJSONPath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected authorization %q", got)
		}
		var payload struct {
			Content  map[string]any `json:"pinataContent"`
			Metadata map[string]any `json:"pinataMetadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Content["degree"] != "B.Sc CS" {
			t.Fatalf("unexpected content %v", payload.Content)
		}
		if !strings.HasPrefix(payload.Metadata["name"].(string), "certificate-0x") {
			t.Fatalf("unexpected pin name %v", payload.Metadata["name"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"IpfsHash": computed.String(), "PinSize": 120})
	}))
	defer server.Close()

	publisher, err := NewPinataPublisher(PinataConfig{
		Endpoint:   server.URL,
		JWT:        "secret",
		GatewayURL: "https://gw.example",
	}, server.Client())
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	result, err := publisher.Publish(context.Background(), testDocument("0xABC0000000000000000000000000000000000001"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.CID != computed.String() {
		t.Fatalf("expected cid %s, got %s", computed, result.CID)
	}
	if result.URI != "https://gw.example/ipfs/"+computed.String() {
		t.Fatalf("unexpected uri %q", result.URI)
	}
}

func TestPinataPublisher_ErrorsAreUploadErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"bad jwt"}`))
		},
		"invalid cid": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"IpfsHash":"nope"}`))
		},
		"malformed": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()

			publisher, err := NewPinataPublisher(PinataConfig{Endpoint: server.URL, JWT: "secret"}, server.Client())
			if err != nil {
				t.Fatalf("new publisher: %v", err)
			}
			_, err = publisher.Publish(context.Background(), testDocument("0xabc0000000000000000000000000000000000001"))
			if !core.HasTextCode(err, core.ErrorUploadFailed) {
				t.Fatalf("expected upload error, got %v", err)
			}
		})
	}
}

func TestNewPinataPublisher_RequiresJWT(t *testing.T) {
	if _, err := NewPinataPublisher(PinataConfig{}, nil); err == nil {
		t.Fatalf("expected missing jwt error")
	}
}

func TestPinataPublisher_HonoursRateLimitWindow(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	publisher, err := NewPinataPublisher(PinataConfig{Endpoint: server.URL, JWT: "secret"}, server.Client(), WithRateLimitPolicy(policy))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	doc := testDocument("0xabc0000000000000000000000000000000000001")

	if _, err := publisher.Publish(context.Background(), doc); !core.HasTextCode(err, core.ErrorRateLimited) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if _, err := publisher.Publish(context.Background(), doc); !core.HasTextCode(err, core.ErrorRateLimited) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the open window to skip the second request, got %d calls", calls)
	}
}
