package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quakescope/internal/model"
)

// FCMHTTPGateway calls the FCM HTTP v1 messages:send endpoint directly,
// one request per token.
type FCMHTTPGateway struct {
	baseURL    string
	provider   TokenProvider
	httpClient *http.Client
}

// fcmRequest is the payload for projects/{project}/messages:send.
type fcmRequest struct {
	Message      fcmMessage `json:"message"`
	ValidateOnly bool       `json:"validate_only,omitempty"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewFCMHTTPGateway creates a gateway rooted at baseURL (e.g. https://fcm.googleapis.com/v1).
// The timeout bounds each outbound request.
func NewFCMHTTPGateway(baseURL string, provider TokenProvider, timeout time.Duration) *FCMHTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FCMHTTPGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		provider: provider,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Push sends one message. The bearer token is fetched for every call so an
// expired token is refreshed between tokens of a long dispatch.
func (g *FCMHTTPGateway) Push(ctx context.Context, req model.GatewayRequest) (model.TokenResponse, error) {
	projectID, err := g.provider.ProjectID(ctx)
	if err != nil {
		return model.TokenResponse{}, err
	}
	bearer, _, err := g.provider.Token(ctx)
	if err != nil {
		return model.TokenResponse{}, err
	}

	data := req.Data
	if data == nil {
		data = map[string]string{}
	}

	payload, err := json.Marshal(fcmRequest{
		Message: fcmMessage{
			Token: req.Token,
			Notification: fcmNotification{
				Title: req.Title,
				Body:  req.Body,
			},
			Data: data,
		},
		ValidateOnly: req.DryRun,
	})
	if err != nil {
		return model.TokenResponse{}, fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/projects/%s/messages:send", g.baseURL, projectID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return model.TokenResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return model.TokenResponse{}, &model.DispatchError{Message: "Failed to reach FCM", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.TokenResponse{}, &model.DispatchError{Message: "Failed to reach FCM", Err: err}
	}

	return newTokenResponse(req.Token, resp.StatusCode, decodeGatewayBody(respBody)), nil
}

// decodeGatewayBody returns the parsed JSON body, or {"raw": text} when it is not JSON.
func decodeGatewayBody(body []byte) any {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return map[string]any{"raw": string(body)}
	}
	return parsed
}
