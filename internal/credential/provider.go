// Package credential turns a Firebase service-account key into short-lived
// bearer tokens for the FCM HTTP v1 API.
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"quakescope/internal/model"
)

// MessagingScope is the OAuth scope required to send FCM messages.
const MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// Provider lazily loads the service-account key on first use and caches the
// bearer token until it nears expiry. Refresh is single-flight: concurrent
// callers block on the same exchange.
type Provider struct {
	keyPath         string
	explicitProject string
	logger          *slog.Logger

	mu        sync.Mutex
	source    oauth2.TokenSource
	projectID string
}

// New returns a Provider for the key at keyPath. projectID, when non-empty,
// overrides the project_id field of the key. Nothing is read until first use.
func New(keyPath, projectID string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		keyPath:         keyPath,
		explicitProject: projectID,
		logger:          logger.With("component", "credential"),
	}
}

type keyFile struct {
	ProjectID string `json:"project_id"`
}

// init loads and parses the key once. Failed loads are retried on the next call
// so an operator can fix the key without restarting.
func (p *Provider) init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source != nil {
		return nil
	}

	if p.keyPath == "" {
		return &model.ConfigurationError{Message: "FCM_SERVICE_ACCOUNT_JSON is not set"}
	}

	path, err := resolveKeyPath(p.keyPath)
	if err != nil {
		return &model.ConfigurationError{Message: "service account file not found", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &model.ConfigurationError{Message: "read service account file", Err: err}
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return &model.ConfigurationError{Message: "parse service account file", Err: err}
	}

	conf, err := google.JWTConfigFromJSON(data, MessagingScope)
	if err != nil {
		return &model.ConfigurationError{Message: "parse service account key", Err: err}
	}

	projectID := p.explicitProject
	if projectID == "" {
		projectID = kf.ProjectID
	}
	if projectID == "" {
		return &model.ConfigurationError{Message: "Unable to determine Firebase project ID"}
	}

	// The token source outlives the request that triggered the load.
	p.source = oauth2.ReuseTokenSource(nil, conf.TokenSource(context.WithoutCancel(ctx)))
	p.projectID = projectID

	p.logger.Info("service account loaded", "project_id", projectID, "path", path)
	return nil
}

// Token returns a valid bearer token and its expiry, exchanging the key for a
// new one when the cached token is missing or about to expire.
func (p *Provider) Token(ctx context.Context) (string, time.Time, error) {
	src, err := p.TokenSource(ctx)
	if err != nil {
		return "", time.Time{}, err
	}

	tok, err := src.Token()
	if err != nil {
		return "", time.Time{}, &model.ConfigurationError{Message: "refresh access token", Err: err}
	}
	if tok.AccessToken == "" {
		return "", time.Time{}, &model.ConfigurationError{Message: "token exchange returned no access token"}
	}
	return tok.AccessToken, tok.Expiry, nil
}

// ProjectID returns the Firebase project the key belongs to.
func (p *Provider) ProjectID(ctx context.Context) (string, error) {
	if err := p.init(ctx); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.projectID, nil
}

// TokenSource exposes the cached token source for SDK clients.
func (p *Provider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if err := p.init(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source, nil
}

// resolveKeyPath tries an absolute path as is; relative paths are looked up
// in the working directory and then next to the executable.
func resolveKeyPath(raw string) (string, error) {
	if filepath.IsAbs(raw) {
		if _, err := os.Stat(raw); err != nil {
			return "", err
		}
		return raw, nil
	}

	var candidates []string
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, raw))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), raw))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s: no such file in working or executable directory", raw)
}
