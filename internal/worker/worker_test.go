package worker_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"quakescope/internal/model"
	"quakescope/internal/queue"
	"quakescope/internal/worker"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// mockProcessor records every event handed to the alert pipeline.
type mockProcessor struct {
	mu     sync.Mutex
	events []model.CandidateEvent
	msgs   []model.AlertMessage

	ProcessEventFunc func(ctx context.Context, event model.CandidateEvent, msg model.AlertMessage) (*model.EventOutcome, error)
}

func (m *mockProcessor) ProcessEvent(ctx context.Context, event model.CandidateEvent, msg model.AlertMessage) (*model.EventOutcome, error) {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()

	if m.ProcessEventFunc != nil {
		return m.ProcessEventFunc(ctx, event, msg)
	}
	return &model.EventOutcome{Event: event, Matches: []model.Match{}}, nil
}

func (m *mockProcessor) processed() []model.CandidateEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.CandidateEvent(nil), m.events...)
}

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	// Use DB 1 for testing to avoid conflicts with dev data
	opts.DB = 1

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}

	client.FlushDB(ctx)
	return client
}

func cleanupTestRedis(client *redis.Client) {
	ctx := context.Background()
	client.FlushDB(ctx)
	client.Close()
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestHandleEvent_DetectedEarthquake(t *testing.T) {
	processor := &mockProcessor{}
	handler := worker.NewHandler(processor, nil)

	event := queue.AlertEvent{
		Type:  queue.EventEarthquakeDetected,
		Event: model.CandidateEvent{ID: " eq-1 ", Latitude: 1, Longitude: 2, Magnitude: 6},
		Title: "Take cover",
	}
	if err := handler.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	got := processor.processed()
	if len(got) != 1 {
		t.Fatalf("expected 1 processed event, got %d", len(got))
	}
	if got[0].ID != "eq-1" {
		t.Errorf("expected trimmed id, got %q", got[0].ID)
	}
	if got[0].Source != model.SourceDetected {
		t.Errorf("expected source from event type, got %q", got[0].Source)
	}
	if processor.msgs[0].Title != "Take cover" {
		t.Errorf("title override lost: %+v", processor.msgs[0])
	}

	t.Log("✓ Detected earthquake routed to the alert pipeline")
}

func TestHandleEvent_KeepsExplicitSource(t *testing.T) {
	processor := &mockProcessor{}
	handler := worker.NewHandler(processor, nil)

	event := queue.AlertEvent{
		Type:  queue.EventEarthquakeSimulated,
		Event: model.CandidateEvent{ID: "eq-2", Source: "drill"},
	}
	if err := handler.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if got := processor.processed()[0].Source; got != "drill" {
		t.Errorf("expected source drill, got %q", got)
	}
}

func TestHandleEvent_RequiresID(t *testing.T) {
	processor := &mockProcessor{}
	handler := worker.NewHandler(processor, nil)

	err := handler.HandleEvent(context.Background(), queue.AlertEvent{
		Type:  queue.EventEarthquakeExpected,
		Event: model.CandidateEvent{Latitude: 1, Longitude: 1},
	})
	if !errors.Is(err, worker.ErrMissingEventID) {
		t.Fatalf("expected ErrMissingEventID, got %v", err)
	}
	if len(processor.processed()) != 0 {
		t.Error("event without id must not reach the pipeline")
	}

	t.Log("✓ Events without an id are rejected")
}

func TestStreamEventWithoutEpicenter(t *testing.T) {
	values := map[string]interface{}{
		"type": queue.EventEarthquakeDetected,
		"data": `{"type":"earthquake_detected","earthquake":{"id":"eq-9","magnitude":6}}`,
	}

	if _, err := queue.ParseAlertEvent(values); !errors.Is(err, queue.ErrMissingCoordinates) {
		t.Fatalf("expected ErrMissingCoordinates, got %v", err)
	}

	t.Log("✓ Events without coordinates are rejected before matching")
}

func TestHandleEvent_UnknownTypeIgnored(t *testing.T) {
	processor := &mockProcessor{}
	handler := worker.NewHandler(processor, nil)

	if err := handler.HandleEvent(context.Background(), queue.AlertEvent{Type: "tsunami"}); err != nil {
		t.Fatalf("unknown types should be ignored, got %v", err)
	}
	if len(processor.processed()) != 0 {
		t.Error("unknown type must not reach the pipeline")
	}
}

func TestHandleEvent_ProcessorError(t *testing.T) {
	processor := &mockProcessor{
		ProcessEventFunc: func(ctx context.Context, event model.CandidateEvent, msg model.AlertMessage) (*model.EventOutcome, error) {
			return nil, &model.DispatchError{Message: "Failed to reach FCM"}
		},
	}
	handler := worker.NewHandler(processor, nil)

	err := handler.HandleEvent(context.Background(), queue.AlertEvent{
		Type:  queue.EventEarthquakeDetected,
		Event: model.CandidateEvent{ID: "eq-3"},
	})
	var dispatchErr *model.DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("expected wrapped DispatchError, got %v", err)
	}
}

// =============================================================================
// Stream + Worker Integration Test
// =============================================================================

// TestStreamToWorkerIntegration tests the complete flow:
// Publisher -> Stream -> Consumer -> Handler -> pipeline
func TestStreamToWorkerIntegration(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	ctx := context.Background()

	publisher := queue.NewPublisher(client, nil)
	consumer := queue.NewConsumer(client, nil)
	processor := &mockProcessor{}
	handler := worker.NewHandler(processor, nil)

	if err := consumer.EnsureGroup(ctx, queue.StreamAlerts, queue.ConsumerGroupAlerts); err != nil {
		t.Fatalf("EnsureGroup failed: %v", err)
	}
	// second call hits BUSYGROUP
	if err := consumer.EnsureGroup(ctx, queue.StreamAlerts, queue.ConsumerGroupAlerts); err != nil {
		t.Fatalf("EnsureGroup should be idempotent: %v", err)
	}

	event := queue.NewEarthquakeEvent(model.CandidateEvent{
		ID: "eq-100", Latitude: 35.6, Longitude: 139.7, Magnitude: 6.4, Source: model.SourceDetected,
	})
	if _, err := publisher.PublishEarthquake(ctx, event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	messages, err := consumer.Read(ctx, queue.StreamAlerts, queue.ConsumerGroupAlerts, "test-worker", 10, time.Second)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}

	msg := messages[0]
	if err := handler.HandleEvent(ctx, msg.Event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if err := consumer.Ack(ctx, queue.StreamAlerts, queue.ConsumerGroupAlerts, msg.ID); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	if got := processor.processed(); len(got) != 1 || got[0].ID != "eq-100" {
		t.Errorf("unexpected processed events: %+v", got)
	}

	pending, _ := consumer.Pending(ctx, queue.StreamAlerts, queue.ConsumerGroupAlerts)
	if pending != 0 {
		t.Errorf("Expected 0 pending messages, got %d", pending)
	}

	t.Log("✓ Stream to worker integration test passed")
}

func TestManager_ProcessesPublishedEvents(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	ctx := context.Background()
	publisher := queue.NewPublisher(client, nil)
	processor := &mockProcessor{}

	manager := worker.NewManager(
		queue.NewConsumer(client, nil),
		worker.NewHandler(processor, nil),
		worker.ManagerConfig{WorkerCount: 2, BlockTimeout: 200 * time.Millisecond},
		nil,
	)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, id := range []string{"eq-a", "eq-b", "eq-c"} {
		ev := queue.NewEarthquakeEvent(model.CandidateEvent{ID: id, Magnitude: 5})
		if _, err := publisher.PublishEarthquake(ctx, ev); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	// malformed entries are acked and skipped
	client.XAdd(ctx, &redis.XAddArgs{Stream: queue.StreamAlerts, Values: map[string]interface{}{"type": "junk"}})
	client.XAdd(ctx, &redis.XAddArgs{Stream: queue.StreamAlerts, Values: map[string]interface{}{
		"type": queue.EventEarthquakeDetected,
		"data": `{"type":"earthquake_detected","earthquake":{"id":"eq-9","magnitude":6}}`,
	}})

	check := queue.NewConsumer(client, nil)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		pending, _ := check.Pending(ctx, queue.StreamAlerts, queue.ConsumerGroupAlerts)
		if len(processor.processed()) >= 3 && pending == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	manager.Stop()

	if got := len(processor.processed()); got != 3 {
		t.Fatalf("expected 3 processed events, got %d", got)
	}

	pending, err := check.Pending(ctx, queue.StreamAlerts, queue.ConsumerGroupAlerts)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("Expected 0 pending messages, got %d", pending)
	}

	t.Log("✓ Manager drains the alert stream")
}
