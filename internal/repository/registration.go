package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"quakescope/internal/model"
)

type registrationStore struct {
	mu         sync.Mutex
	backend    RegistrationBackend
	historyCap int
	logger     *slog.Logger
	now        func() time.Time
}

// NewRegistrationStore wraps backend with a process-wide lock. A historyCap of
// zero or less falls back to model.DefaultDeliveryHistoryCap.
func NewRegistrationStore(backend RegistrationBackend, historyCap int, logger *slog.Logger) RegistrationStore {
	if historyCap <= 0 {
		historyCap = model.DefaultDeliveryHistoryCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &registrationStore{
		backend:    backend,
		historyCap: historyCap,
		logger:     logger.With("component", "registration_store"),
		now:        time.Now,
	}
}

// collection keeps registrations in insertion order with a token index.
type collection struct {
	items []*model.Registration
	index map[string]int
}

func newCollection(regs []*model.Registration) *collection {
	c := &collection{
		items: make([]*model.Registration, 0, len(regs)),
		index: make(map[string]int, len(regs)),
	}
	for _, r := range regs {
		c.put(r)
	}
	return c
}

func (c *collection) get(token string) *model.Registration {
	if i, ok := c.index[token]; ok {
		return c.items[i]
	}
	return nil
}

func (c *collection) put(r *model.Registration) {
	if i, ok := c.index[r.Token]; ok {
		c.items[i] = r
		return
	}
	c.index[r.Token] = len(c.items)
	c.items = append(c.items, r)
}

// getOrCreate returns the entry for token, creating one stamped with now.
func (c *collection) getOrCreate(token string, now int64) *model.Registration {
	if r := c.get(token); r != nil {
		if r.CreatedAt == 0 {
			r.CreatedAt = now
		}
		return r
	}
	r := &model.Registration{Token: token, CreatedAt: now}
	c.put(r)
	return r
}

// load must be called with s.mu held.
func (s *registrationStore) load(ctx context.Context) (*collection, error) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read registrations: %w", err)
	}

	regs, err := decodeRegistrations(data)
	if err != nil {
		s.logger.Warn("stored registrations are unreadable, starting from an empty collection", "error", err)
		regs = nil
	}
	return newCollection(regs), nil
}

// save must be called with s.mu held.
func (s *registrationStore) save(ctx context.Context, c *collection) error {
	data, err := encodeRegistrations(c.items)
	if err != nil {
		return err
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("write registrations: %w", err)
	}
	return nil
}

func (s *registrationStore) Register(ctx context.Context, token string, metadata map[string]string) (*model.Registration, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, model.NewValidationError("Token must be a non-empty string")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	entry := c.getOrCreate(token, now)
	entry.UpdatedAt = now

	for k, v := range metadata {
		if v == "" {
			continue
		}
		if entry.Metadata == nil {
			entry.Metadata = make(map[string]string, len(metadata))
		}
		entry.Metadata[k] = v
	}

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return entry.Clone(), nil
}

func (s *registrationStore) UpdatePreferences(ctx context.Context, token string, prefs model.PreferencesInput) (*model.Registration, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, model.NewValidationError("Token must be a non-empty string")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	entry := c.getOrCreate(token, now)
	entry.UpdatedAt = now
	entry.Preferences = &model.Preferences{
		Latitude:         prefs.Latitude,
		Longitude:        prefs.Longitude,
		RadiusKm:         prefs.RadiusKm,
		MinimumMagnitude: prefs.MinimumMagnitude,
		UpdatedAt:        now,
	}

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return entry.Clone(), nil
}

// RecordDelivery is a no-op for an empty token or event id and for an event
// already in the history. The history keeps the most recent historyCap ids.
func (s *registrationStore) RecordDelivery(ctx context.Context, token, eventID string) error {
	if eventID == "" {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return err
	}

	now := s.now().Unix()
	entry := c.getOrCreate(token, now)
	if entry.HasDelivered(eventID) {
		return nil
	}

	delivered := append(entry.DeliveredIDs, eventID)
	if len(delivered) > s.historyCap {
		delivered = append([]string(nil), delivered[len(delivered)-s.historyCap:]...)
	}
	entry.DeliveredIDs = delivered
	entry.UpdatedAt = now

	return s.save(ctx, c)
}

func (s *registrationStore) Snapshot(ctx context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}

	regs := make([]*model.Registration, len(c.items))
	for i, r := range c.items {
		regs[i] = r.Clone()
	}
	return model.Snapshot{Registrations: regs}, nil
}

func (s *registrationStore) ListTokens(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	tokens := make([]string, len(c.items))
	for i, r := range c.items {
		tokens[i] = r.Token
	}
	return tokens, nil
}
