package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-certledger/core"
	"github.com/goliatone/go-certledger/ratelimit"
	"github.com/goliatone/go-certledger/transport"
)

const (
	defaultPinataEndpoint = "https://api.pinata.cloud"
	pinJSONPath           = "/pinning/pinJSONToIPFS"
	pinRateLimitBucket    = "pinata:pin-json"
)

// RateLimitPolicy gates pin requests on what earlier responses said about
// the account quota.
type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, bucket string) error
	AfterCall(ctx context.Context, bucket string, res ratelimit.ResponseMeta) error
}

type PinataOption func(*PinataPublisher)

func WithRateLimitPolicy(policy RateLimitPolicy) PinataOption {
	return func(p *PinataPublisher) {
		p.limits = policy
	}
}

type PinataConfig struct {
	Endpoint   string
	JWT        string
	GatewayURL string
}

// PinataPublisher pins documents through the Pinata pinJSONToIPFS API.
type PinataPublisher struct {
	client   *transport.JSONClient
	endpoint string
	jwt      string
	gateway  string
	limits   RateLimitPolicy
}

type pinJSONRequest struct {
	Content  core.MetadataDocument `json:"pinataContent"`
	Metadata pinMetadata           `json:"pinataMetadata"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinJSONResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

func NewPinataPublisher(cfg PinataConfig, client transport.HTTPDoer, opts ...PinataOption) (*PinataPublisher, error) {
	jwt := strings.TrimSpace(cfg.JWT)
	if jwt == "" {
		return nil, fmt.Errorf("publisher: pinata jwt is required")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultPinataEndpoint
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("publisher: invalid pinata endpoint %q: %w", endpoint, err)
	}
	gateway := strings.TrimSpace(cfg.GatewayURL)
	if gateway == "" {
		gateway = defaultGatewayURL
	}
	p := &PinataPublisher{
		client:   transport.NewJSONClient(client),
		endpoint: endpoint,
		jwt:      jwt,
		gateway:  gateway,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *PinataPublisher) Publish(ctx context.Context, doc core.MetadataDocument) (core.PublishResult, error) {
	metadata := map[string]any{"owner": doc.Owner, "provider": "pinata"}
	if p.limits != nil {
		if err := p.limits.BeforeCall(ctx, pinRateLimitBucket); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				return core.PublishResult{}, throttled.ToServiceError()
			}
			return core.PublishResult{}, core.NewUploadError(err, metadata)
		}
	}
	res, err := p.client.PostJSON(ctx, p.endpoint+pinJSONPath, map[string]string{
		"Authorization": "Bearer " + p.jwt,
	}, pinJSONRequest{
		Content:  doc,
		Metadata: pinMetadata{Name: "certificate-" + doc.Owner},
	})
	if err != nil {
		return core.PublishResult{}, core.NewUploadError(err, metadata)
	}
	if p.limits != nil {
		// The quota bookkeeping is advisory; a failed write only loses a hint.
		_ = p.limits.AfterCall(ctx, pinRateLimitBucket, ratelimit.ResponseMeta{
			StatusCode: res.StatusCode,
			Headers:    res.Headers,
		})
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return core.PublishResult{}, core.NewRateLimitedError("publisher: pinata rate limit exceeded", 0, metadata)
	}
	if err := transport.StatusError(res, "publisher: pinata rejected upload"); err != nil {
		metadata["status_code"] = res.StatusCode
		return core.PublishResult{}, core.NewUploadError(err, metadata)
	}

	var pinned pinJSONResponse
	if err := res.DecodeJSON(&pinned); err != nil {
		return core.PublishResult{}, core.NewUploadError(err, metadata)
	}
	contentID, err := ParseCID(pinned.IpfsHash)
	if err != nil {
		return core.PublishResult{}, core.NewUploadError(err, metadata)
	}
	return core.PublishResult{CID: contentID, URI: GatewayURI(p.gateway, contentID)}, nil
}

var _ core.Publisher = (*PinataPublisher)(nil)
