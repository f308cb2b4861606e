package service

import (
	"context"
	"log/slog"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"quakescope/internal/model"
)

// messenger is the subset of *messaging.Client the gateway uses.
type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendDryRun(ctx context.Context, message *messaging.Message) (string, error)
}

// FirebaseGateway sends through the Firebase Admin SDK. The SDK client is
// built on first use from the credential provider's token source, so a
// missing key surfaces as a request error instead of a startup failure.
type FirebaseGateway struct {
	provider TokenSourceProvider
	logger   *slog.Logger

	mu     sync.Mutex
	client messenger
}

func NewFirebaseGateway(provider TokenSourceProvider, logger *slog.Logger) *FirebaseGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirebaseGateway{
		provider: provider,
		logger:   logger.With("component", "firebase_gateway"),
	}
}

func (g *FirebaseGateway) sdkClient(ctx context.Context) (messenger, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	projectID, err := g.provider.ProjectID(ctx)
	if err != nil {
		return nil, err
	}
	ts, err := g.provider.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithTokenSource(ts))
	if err != nil {
		return nil, &model.ConfigurationError{Message: "initialize firebase app", Err: err}
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, &model.ConfigurationError{Message: "get messaging client", Err: err}
	}

	g.logger.Info("firebase messaging initialized", "project_id", projectID)
	g.client = client
	return client, nil
}

func (g *FirebaseGateway) Push(ctx context.Context, req model.GatewayRequest) (model.TokenResponse, error) {
	client, err := g.sdkClient(ctx)
	if err != nil {
		return model.TokenResponse{}, err
	}

	msg := &messaging.Message{
		Token: req.Token,
		Notification: &messaging.Notification{
			Title: req.Title,
			Body:  req.Body,
		},
		Data: req.Data,
	}

	send := client.Send
	if req.DryRun {
		send = client.SendDryRun
	}

	name, err := send(ctx, msg)
	if err == nil {
		return newTokenResponse(req.Token, 200, map[string]any{"name": name}), nil
	}

	// Without an HTTP response the request never reached FCM.
	resp := errorutils.HTTPResponse(err)
	if resp == nil {
		return model.TokenResponse{}, &model.DispatchError{Message: "Failed to reach FCM", Err: err}
	}

	body := map[string]any{"error": err.Error()}
	if messaging.IsUnregistered(err) {
		body["unregistered"] = true
	}
	return newTokenResponse(req.Token, resp.StatusCode, body), nil
}

var (
	_ Gateway = (*FirebaseGateway)(nil)
	_ Gateway = (*FCMHTTPGateway)(nil)
)
