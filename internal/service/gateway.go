package service

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"quakescope/internal/model"
)

// Gateway delivers one push to one token. A rejected token is reported in the
// returned TokenResponse; only transport or configuration failures are errors.
type Gateway interface {
	Push(ctx context.Context, req model.GatewayRequest) (model.TokenResponse, error)
}

// TokenProvider supplies bearer tokens for the FCM HTTP v1 API.
type TokenProvider interface {
	Token(ctx context.Context) (string, time.Time, error)
	ProjectID(ctx context.Context) (string, error)
}

// TokenSourceProvider is what the Firebase SDK gateway needs from the credential provider.
type TokenSourceProvider interface {
	ProjectID(ctx context.Context) (string, error)
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

func newTokenResponse(token string, statusCode int, body any) model.TokenResponse {
	resp := model.TokenResponse{
		Token:      token,
		StatusCode: statusCode,
		Response:   body,
	}
	if statusCode == 200 {
		resp.Success = 1
	} else {
		resp.Failure = 1
	}
	return resp
}
