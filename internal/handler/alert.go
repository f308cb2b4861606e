package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"quakescope/internal/httputil"
	"quakescope/internal/model"
	"quakescope/internal/service"
)

type AlertHandler struct {
	alertService *service.AlertService
	logger       *slog.Logger
	now          func() time.Time
}

func NewAlertHandler(alertService *service.AlertService, logger *slog.Logger) *AlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandler{
		alertService: alertService,
		logger:       logger.With("component", "alert_handler"),
		now:          time.Now,
	}
}

// detach keeps outbound pushes running if the client goes away mid-dispatch.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// RegisterDevice handles POST /api/alerts/device-token
func (h *AlertHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	p := decodePayload(r)

	token := strings.TrimSpace(p.str("fcmToken", "token"))
	if token == "" {
		httputil.WriteBadRequest(w, "Missing fcmToken")
		return
	}

	metadata := map[string]string{}
	for _, key := range []string{model.MetadataPlatform, model.MetadataLocale, model.MetadataAppVersion} {
		if v := p.str(key); v != "" {
			metadata[key] = v
		}
	}

	reg, err := h.alertService.RegisterDevice(detach(r), token, metadata)
	if err != nil {
		h.writeServiceError(w, "register device", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"token":       reg.Token,
		"created_at":  reg.CreatedAt,
		"updated_at":  reg.UpdatedAt,
		"preferences": reg.Preferences,
	})
}

// UpdatePreferences handles POST /api/alerts/preferences
func (h *AlertHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	p := decodePayload(r)

	token := strings.TrimSpace(p.str("fcmToken", "token"))
	if token == "" {
		httputil.WriteBadRequest(w, "Missing fcmToken")
		return
	}

	prefs := model.PreferencesInput{
		Latitude:         p.float("latitude"),
		Longitude:        p.float("longitude"),
		RadiusKm:         p.firstFloat("alertRadiusKm", "radiusKm"),
		MinimumMagnitude: p.float("minimumMagnitude"),
	}

	reg, err := h.alertService.UpdatePreferences(detach(r), token, prefs)
	if err != nil {
		h.writeServiceError(w, "update preferences", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"token":       reg.Token,
		"preferences": reg.Preferences,
		"updated_at":  reg.UpdatedAt,
	})
}

// NotifyDevice handles POST /api/alerts/notify/device
func (h *AlertHandler) NotifyDevice(w http.ResponseWriter, r *http.Request) {
	p := decodePayload(r)

	token := strings.TrimSpace(p.str("token", "fcmToken"))
	if token == "" {
		httputil.WriteBadRequest(w, "Missing device token")
		return
	}

	result, err := h.alertService.NotifyDevice(detach(r), token, messageFromPayload(p))
	if err != nil {
		h.writeServiceError(w, "notify device", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

// Broadcast handles POST /api/alerts/notify/broadcast
// Without a tokens field every registered device is targeted.
func (h *AlertHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	p := decodePayload(r)

	result, err := h.alertService.Broadcast(detach(r), p.tokens(), messageFromPayload(p))
	if err != nil {
		h.writeServiceError(w, "broadcast", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

// TestEarthquake handles POST /api/alerts/test-earthquake
// It runs a simulated event through matching, dispatch and delivery recording.
func (h *AlertHandler) TestEarthquake(w http.ResponseWriter, r *http.Request) {
	p := decodePayload(r)

	lat := p.float("latitude")
	lon := p.float("longitude")
	if lat == nil || lon == nil {
		httputil.WriteBadRequest(w, "latitude and longitude are required")
		return
	}

	event := model.CandidateEvent{
		ID:        p.str("earthquakeId", "id"),
		Latitude:  *lat,
		Longitude: *lon,
		Magnitude: model.DefaultSimulatedMagnitude,
		Depth:     p.float("depth"),
		Source:    p.str("source"),
	}
	// zero counts as unset, as it does for the radius aliases
	if mag := p.float("magnitude"); mag != nil && *mag != 0 {
		event.Magnitude = *mag
	}
	if event.ID == "" {
		event.ID = fmt.Sprintf("sim-%d", h.now().Unix())
	}
	if event.Source == "" {
		event.Source = model.SourceSimulated
	}

	outcome, err := h.alertService.ProcessEvent(detach(r), event, messageFromPayload(p))
	if err != nil {
		h.writeServiceError(w, "test earthquake", err)
		return
	}

	resp := map[string]any{
		"ok":         true,
		"notified":   outcome.Notified,
		"earthquake": outcome.Event,
		"matches":    outcome.Matches,
	}
	if outcome.Result == nil {
		resp["message"] = outcome.Message
	} else {
		resp["dry_run"] = outcome.DryRun
		resp["result"] = outcome.Result
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ListTokens handles GET /api/alerts/tokens
func (h *AlertHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.alertService.ListTokens(r.Context())
	if err != nil {
		h.writeServiceError(w, "list tokens", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"count":  len(tokens),
		"tokens": tokens,
	})
}

func messageFromPayload(p payload) model.AlertMessage {
	return model.AlertMessage{
		Title:  p.str("title"),
		Body:   p.str("body"),
		Data:   p.data(),
		DryRun: p.bool("dryRun"),
	}
}

// writeServiceError maps the error taxonomy onto status codes.
func (h *AlertHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var (
		validationErr *model.ValidationError
		configErr     *model.ConfigurationError
		dispatchErr   *model.DispatchError
	)

	switch {
	case errors.As(err, &validationErr):
		httputil.WriteBadRequest(w, validationErr.Message)
	case errors.Is(err, model.ErrNoTokens):
		httputil.WriteNotFound(w, err.Error())
	case errors.As(err, &configErr):
		h.logger.Error(op+" failed", "error", err)
		httputil.WriteInternalError(w, configErr.Error())
	case errors.As(err, &dispatchErr):
		h.logger.Error(op+" failed", "error", err)
		httputil.WriteInternalError(w, dispatchErr.Error())
	default:
		h.logger.Error(op+" failed", "error", err)
		httputil.WriteInternalError(w, "Internal server error")
	}
}
