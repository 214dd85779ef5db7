// Package aitext is a thin client for the external AI text service used to
// summarize or classify news items. Its prompts and model choice are an
// external collaborator's concern; this package only
// owns the request/response shape and error-taxonomy mapping.
package aitext

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
	"github.com/marketpulse/aggregator/internal/httpclient"
)

// Config holds the AI text client's tunables.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client is the AI text service client.
type Client struct {
	cfg      Config
	executor *httpclient.Executor
}

func New(cfg Config, executor *httpclient.Executor) *Client {
	return &Client{cfg: cfg, executor: executor}
}

// SummarizeRequest asks the service to produce a short summary of text.
type SummarizeRequest struct {
	Text     string `json:"text"`
	MaxWords int    `json:"maxWords,omitempty"`
}

// SummarizeResponse is the service's normalized reply.
type SummarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize sends text to the AI service and returns its summary.
func (c *Client) Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SummarizeResponse{}, cerrors.Wrap(cerrors.InternalError, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/summarize", bytes.NewReader(body))
	if err != nil {
		return SummarizeResponse{}, cerrors.Wrap(cerrors.NetworkError, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	result, err := c.executor.Do(ctx, httpReq, 0)
	if err != nil {
		return SummarizeResponse{}, mapAIError(err)
	}

	var resp SummarizeResponse
	if err := json.Unmarshal(result.Body, &resp); err != nil {
		return SummarizeResponse{}, cerrors.Wrap(cerrors.AIError, err)
	}
	return resp, nil
}

func mapAIError(err error) error {
	execErr, ok := err.(*httpclient.Error)
	if !ok {
		return cerrors.Wrap(cerrors.AIError, err)
	}

	switch execErr.Kind {
	case httpclient.KindTimeout, httpclient.KindTransport, httpclient.KindCanceled:
		return cerrors.Wrap(cerrors.AIAuthError, err) // network/transport failures map alongside auth failures to 503
	case httpclient.KindHTTPStatus:
		switch execErr.Code {
		case http.StatusTooManyRequests:
			return cerrors.New(cerrors.AIRateLimit, "ai service rate limited: "+execErr.Snippet)
		case http.StatusUnauthorized, http.StatusForbidden:
			return cerrors.New(cerrors.AIAuthError, "ai service auth failed: "+execErr.Snippet)
		default:
			return cerrors.New(cerrors.AIError, execErr.Snippet)
		}
	default:
		return cerrors.Wrap(cerrors.AIError, err)
	}
}
