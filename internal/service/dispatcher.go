package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"quakescope/internal/model"
)

// Dispatcher fans a message out to a list of tokens through a Gateway.
type Dispatcher struct {
	gateway     Gateway
	concurrency int
	logger      *slog.Logger
}

// NewDispatcher returns a dispatcher that keeps at most concurrency pushes in
// flight. A concurrency of 1 sends strictly one token after another.
func NewDispatcher(gateway Gateway, concurrency int, logger *slog.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		gateway:     gateway,
		concurrency: concurrency,
		logger:      logger.With("component", "dispatcher"),
	}
}

// Send pushes title/body/data to every distinct non-blank token. Responses are
// returned in token order. A per-token rejection is recorded in the result; a
// transport failure aborts the call with the gateway's error.
func (d *Dispatcher) Send(ctx context.Context, tokens []string, title, body string, data map[string]string, dryRun bool) (*model.DispatchResult, error) {
	list := dedupeTokens(tokens)
	if len(list) == 0 {
		return nil, model.NewValidationError("At least one token is required")
	}

	dispatchID := uuid.NewString()
	logger := d.logger.With("dispatch_id", dispatchID)

	responses := make([]model.TokenResponse, len(list))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, token := range list {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := d.gateway.Push(gctx, model.GatewayRequest{
				Token:  token,
				Title:  title,
				Body:   body,
				Data:   data,
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("dispatch aborted", "tokens", len(list), "error", err)
		return nil, err
	}

	result := &model.DispatchResult{
		DispatchID:      dispatchID,
		RequestedTokens: list,
		Responses:       responses,
		DryRun:          dryRun,
	}
	for _, r := range responses {
		if r.OK() {
			result.SuccessCount++
		} else {
			result.FailureCount++
			logger.Warn("token rejected", "token", truncateToken(r.Token), "status", r.StatusCode)
		}
	}

	logger.Info("dispatch complete",
		"tokens", len(list),
		"success", result.SuccessCount,
		"failure", result.FailureCount,
		"dry_run", dryRun,
	)
	return result, nil
}

// dedupeTokens drops blank tokens and keeps the first occurrence of each.
func dedupeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func truncateToken(token string) string {
	return token[:min(12, len(token))]
}
