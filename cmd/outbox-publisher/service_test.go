package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backoffice/pkg/config"
	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backoffice/pkg/outbox/registry"
)

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	first := orderCreatedRow(t, "event-one")
	second := orderCreatedRow(t, "event-two")
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{errs: []error{errors.New("transient"), nil}}
	svc, reg := newTestService(t, repo, pub, nil)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to be processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first event marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("expected second event marked published, got %v", repo.published)
	}
	if got := counterValue(t, reg, "outbox_events_failed_total"); got != 1 {
		t.Fatalf("expected one failed publish recorded got %v", got)
	}
}

func TestProcessBatchPublishesToResolvedTopic(t *testing.T) {
	row := orderCreatedRow(t, "event-one")
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	pub := &fakePublisher{}
	svc, _ := newTestService(t, repo, pub, nil)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.calls) != 1 {
		t.Fatalf("expected one publish got %d", len(pub.calls))
	}
	call := pub.calls[0]
	if call.topic != "orders-topic" {
		t.Fatalf("expected orders-topic got %s", call.topic)
	}
	if call.attributes["event_id"] != "event-one" {
		t.Fatalf("expected event id attribute got %q", call.attributes["event_id"])
	}
	if call.attributes["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event type attribute %q", call.attributes["event_type"])
	}
}

func TestProcessBatchTerminatesUndecodableRows(t *testing.T) {
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateStockUnit,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	pub := &fakePublisher{}
	svc, _ := newTestService(t, repo, pub, nil)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.calls) != 0 {
		t.Fatalf("expected no publish for aggregate mismatch")
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != row.ID {
		t.Fatalf("expected row marked terminal, got %v", repo.terminal)
	}
	if repo.terminalAttempts != svc.maxAttempts {
		t.Fatalf("expected attempts exhausted to %d got %d", svc.maxAttempts, repo.terminalAttempts)
	}
}

func TestProcessBatchTerminatesOnPermanentGRPCError(t *testing.T) {
	row := orderCreatedRow(t, "event-one")
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	pub := &fakePublisher{errs: []error{status.Error(codes.NotFound, "topic deleted")}}
	svc, _ := newTestService(t, repo, pub, nil)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected terminal mark for NotFound, got %v", repo.terminal)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no retry mark, got %v", repo.failed)
	}
}

func TestProcessBatchTerminatesOnMaxAttempts(t *testing.T) {
	row := orderCreatedRow(t, "event-one")
	row.AttemptCount = 2
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	pub := &fakePublisher{errs: []error{status.Error(codes.Unavailable, "try later")}}
	svc, _ := newTestService(t, repo, pub, &config.OutboxConfig{MaxAttempts: 3})

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected terminal mark after max attempts, got %v", repo.terminal)
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	svc, _ := newTestService(t, &fakeRepo{}, &fakePublisher{}, nil)
	processed, err := svc.processBatch(context.Background())
	if err != nil || processed {
		t.Fatalf("expected idle batch, got processed=%v err=%v", processed, err)
	}
}

func TestProcessBatchFetchError(t *testing.T) {
	svc, _ := newTestService(t, &fakeRepo{fetchErr: errors.New("db down")}, &fakePublisher{}, nil)
	if _, err := svc.processBatch(context.Background()); err == nil {
		t.Fatalf("expected fetch error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, &fakeRepo{}, &fakePublisher{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}

func TestNextBackoff(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(base, base, maxBackoff); got != time.Second {
		t.Fatalf("expected doubling got %s", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("expected cap at %s got %s", maxBackoff, got)
	}
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("expected base doubling got %s", got)
	}
}

func TestIsNonRetryable(t *testing.T) {
	if !isNonRetryable(registry.NewNonRetryableError(errors.New("bad payload"))) {
		t.Fatalf("registry errors should not be retried")
	}
	if !isNonRetryable(status.Error(codes.InvalidArgument, "bad")) {
		t.Fatalf("InvalidArgument should not be retried")
	}
	if isNonRetryable(status.Error(codes.Unavailable, "later")) {
		t.Fatalf("Unavailable should be retried")
	}
	if isNonRetryable(errors.New("plain")) {
		t.Fatalf("plain errors should be retried")
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub eventPublisher, outboxCfg *config.OutboxConfig) (*Service, *prometheus.Registry) {
	t.Helper()
	cfg := &config.Config{Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: 5}}
	if outboxCfg != nil {
		cfg.Outbox = *outboxCfg
	}
	eventRegistry, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic", StockTopic: "stock-topic"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		DB:         fakePinger{},
		Publisher:  pub,
		Repository: repo,
		Registry:   eventRegistry,
		Metrics:    metrics.NewPublisherMetrics(reg),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, reg
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func orderCreatedRow(tb testing.TB, eventID string) models.OutboxEvent {
	tb.Helper()
	data, err := json.Marshal(payloads.OrderCreatedEvent{OrderID: "01JORDER", ItemCount: 1, TotalAmount: "44.98"})
	if err != nil {
		tb.Fatalf("marshal data: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelope,
		CreatedAt:     time.Now().UTC(),
	}
}

type fakeRepo struct {
	events           []models.OutboxEvent
	fetchErr         error
	published        []uuid.UUID
	failed           []uuid.UUID
	terminal         []uuid.UUID
	terminalAttempts int
}

func (f *fakeRepo) FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, f.fetchErr
}

func (f *fakeRepo) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminal(ctx context.Context, id uuid.UUID, cause error, attempts int) error {
	f.terminal = append(f.terminal, id)
	f.terminalAttempts = attempts
	return nil
}

type fakePinger struct{}

func (fakePinger) Ping(context.Context) error { return nil }

type publishCall struct {
	topic      string
	attributes map[string]string
}

type fakePublisher struct {
	mu    sync.Mutex
	errs  []error
	calls []publishCall
}

func (f *fakePublisher) Ping(context.Context) error { return nil }

func (f *fakePublisher) Publish(ctx context.Context, topic string, data []byte, attributes map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishCall{topic: topic, attributes: attributes})
	if len(f.errs) == 0 {
		return "msg-id", nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	if err != nil {
		return "", err
	}
	return "msg-id", nil
}
