package unit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brightcast/ppv-access-service/internal/adapters/memory"
	"github.com/brightcast/ppv-access-service/internal/application"
	"github.com/brightcast/ppv-access-service/internal/contracts"
	"github.com/brightcast/ppv-access-service/internal/domain"
	"github.com/brightcast/ppv-access-service/internal/ports"
)

const (
	testEventID = "evt-title-fight"
	testEmail   = "viewer@example.com"
)

func newTestService(t *testing.T, events map[string]domain.Event) (*application.Service, *memory.Repositories, *stubStream) {
	t.Helper()
	repos := memory.NewRepositories()
	stream := &stubStream{granted: make(map[string]int)}
	svc := application.NewService(application.Dependencies{
		Purchases: repos.Purchases,
		Grants:    repos.GrantQueue,
		Dedup:     repos.Dedup,
		Outbox:    repos.Outbox,
		Catalog:   stubCatalog{events: events},
		Processor: &stubProcessor{},
		Stream:    stream,
		Verifier:  stubVerifier{},
	})
	return svc, repos, stream
}

func liveEvent() domain.Event {
	return domain.Event{
		EventID:      testEventID,
		Title:        "Title Fight",
		Price:        19.99,
		Currency:     "usd",
		IsPPV:        true,
		StreamStatus: domain.StreamStatusLive,
		StartsAt:     time.Now().UTC().Add(-time.Hour),
	}
}

func completedNotification(t *testing.T, notificationID, sessionID string) []byte {
	t.Helper()
	data, err := json.Marshal(contracts.CheckoutCompletedData{
		SessionID:     sessionID,
		PaymentID:     "pay-" + notificationID,
		AmountTotal:   1999,
		Currency:      "usd",
		CustomerEmail: testEmail,
		Metadata: contracts.NotificationMetadata{
			EventID:   testEventID,
			UserEmail: testEmail,
			Kind:      "ppv",
		},
	})
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	raw, err := json.Marshal(contracts.ProcessorNotification{
		NotificationID: notificationID,
		Type:           contracts.NotificationCheckoutCompleted,
		CreatedAt:      time.Now().Unix(),
		Data:           data,
	})
	if err != nil {
		t.Fatalf("marshal notification: %v", err)
	}
	return raw
}

func TestInitiateCheckoutRejectsNonPPVEvent(t *testing.T) {
	t.Parallel()

	event := liveEvent()
	event.IsPPV = false
	svc, _, _ := newTestService(t, map[string]domain.Event{testEventID: event})

	_, err := svc.InitiateCheckout(context.Background(), ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if !errors.Is(err, domain.ErrNotPurchasable) {
		t.Fatalf("expected ErrNotPurchasable, got %v", err)
	}
}

func TestInitiateCheckoutRejectsEndedEvent(t *testing.T) {
	t.Parallel()

	event := liveEvent()
	event.StreamStatus = domain.StreamStatusEnded
	svc, repos, _ := newTestService(t, map[string]domain.Event{testEventID: event})

	_, err := svc.InitiateCheckout(context.Background(), ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if !errors.Is(err, domain.ErrEventEnded) {
		t.Fatalf("expected ErrEventEnded, got %v", err)
	}
	if _, total, _ := repos.Purchases.ListByUser(context.Background(), testEmail, 10, 0); total != 0 {
		t.Fatalf("refused checkout must not write the ledger, got %d records", total)
	}
}

func TestInitiateCheckoutRejectsUnknownEvent(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, map[string]domain.Event{})
	_, err := svc.InitiateCheckout(context.Background(), ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: "evt-missing"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInitiateCheckoutRequiresIdentity(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	_, err := svc.InitiateCheckout(context.Background(), ports.Identity{}, application.CheckoutInput{EventID: testEventID})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestInitiateCheckoutCreatesPendingRecord(t *testing.T) {
	t.Parallel()

	svc, repos, _ := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	out, err := svc.InitiateCheckout(context.Background(), ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if err != nil {
		t.Fatalf("initiate checkout: %v", err)
	}
	if out.SessionID == "" || out.RedirectURL == "" {
		t.Fatalf("expected session id and redirect url, got %+v", out)
	}

	record, err := repos.Purchases.GetBySessionID(context.Background(), out.SessionID)
	if err != nil {
		t.Fatalf("load pending record: %v", err)
	}
	if record.Status != domain.PurchaseStatusPending {
		t.Fatalf("expected pending status, got %s", record.Status)
	}
	if record.EventID != testEventID || record.UserEmail != testEmail {
		t.Fatalf("unexpected record correlation: %+v", record)
	}
}

func TestInitiateCheckoutRejectsAlreadyOwned(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	ctx := context.Background()

	out, err := svc.InitiateCheckout(ctx, ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if err != nil {
		t.Fatalf("initiate checkout: %v", err)
	}
	if err := svc.HandleNotification(ctx, completedNotification(t, "ntf-1", out.SessionID), "sig"); err != nil {
		t.Fatalf("handle completion: %v", err)
	}

	_, err = svc.InitiateCheckout(ctx, ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if !errors.Is(err, domain.ErrAlreadyOwned) {
		t.Fatalf("expected ErrAlreadyOwned, got %v", err)
	}
}

func TestFulfillmentGrantsAccess(t *testing.T) {
	t.Parallel()

	svc, _, stream := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	ctx := context.Background()

	out, err := svc.InitiateCheckout(ctx, ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if err != nil {
		t.Fatalf("initiate checkout: %v", err)
	}

	if decision := svc.EvaluateAccess(ctx, ports.Identity{Email: testEmail}, testEventID); decision.HasAccess {
		t.Fatalf("expected no access before completion")
	}

	if err := svc.HandleNotification(ctx, completedNotification(t, "ntf-1", out.SessionID), "sig"); err != nil {
		t.Fatalf("handle completion: %v", err)
	}

	decision := svc.EvaluateAccess(ctx, ports.Identity{Email: testEmail}, testEventID)
	if !decision.HasAccess {
		t.Fatalf("expected access after completion")
	}
	if stream.grantCount(testEmail, testEventID) != 1 {
		t.Fatalf("expected exactly one grant call, got %d", stream.grantCount(testEmail, testEventID))
	}
}

func TestFulfillmentIsIdempotentAcrossRedeliveries(t *testing.T) {
	t.Parallel()

	svc, repos, stream := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	ctx := context.Background()

	out, err := svc.InitiateCheckout(ctx, ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if err != nil {
		t.Fatalf("initiate checkout: %v", err)
	}

	// Same notification id redelivered, then the same completion under a
	// fresh id. Neither may reapply side effects.
	if err := svc.HandleNotification(ctx, completedNotification(t, "ntf-1", out.SessionID), "sig"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.HandleNotification(ctx, completedNotification(t, "ntf-1", out.SessionID), "sig"); err != nil {
		t.Fatalf("redelivery same id: %v", err)
	}
	if err := svc.HandleNotification(ctx, completedNotification(t, "ntf-2", out.SessionID), "sig"); err != nil {
		t.Fatalf("redelivery fresh id: %v", err)
	}

	if got := stream.grantCount(testEmail, testEventID); got != 1 {
		t.Fatalf("expected one grant call, got %d", got)
	}
	records, total, err := repos.Purchases.ListByUser(ctx, testEmail, 10, 0)
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	if total != 1 || records[0].Status != domain.PurchaseStatusCompleted {
		t.Fatalf("expected single completed record, got total=%d records=%+v", total, records)
	}
}

func TestFulfillmentSynthesizesMissingPendingRecord(t *testing.T) {
	t.Parallel()

	svc, repos, _ := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	ctx := context.Background()

	// Completion arrives for a session this service never recorded.
	if err := svc.HandleNotification(ctx, completedNotification(t, "ntf-1", "sess-unseen"), "sig"); err != nil {
		t.Fatalf("handle orphan completion: %v", err)
	}

	record, err := repos.Purchases.GetBySessionID(ctx, "sess-unseen")
	if err != nil {
		t.Fatalf("load synthesized record: %v", err)
	}
	if record.Status != domain.PurchaseStatusCompleted {
		t.Fatalf("expected completed status, got %s", record.Status)
	}
	if !svc.EvaluateAccess(ctx, ports.Identity{Email: testEmail}, testEventID).HasAccess {
		t.Fatalf("expected access after orphan completion")
	}
}

func TestDuplicateCompletionSettlesAsFailed(t *testing.T) {
	t.Parallel()

	svc, repos, stream := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	ctx := context.Background()

	first, err := svc.InitiateCheckout(ctx, ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	second, err := svc.InitiateCheckout(ctx, ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}

	if err := svc.HandleNotification(ctx, completedNotification(t, "ntf-1", first.SessionID), "sig"); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if err := svc.HandleNotification(ctx, completedNotification(t, "ntf-2", second.SessionID), "sig"); err != nil {
		t.Fatalf("second completion: %v", err)
	}

	loser, err := repos.Purchases.GetBySessionID(ctx, second.SessionID)
	if err != nil {
		t.Fatalf("load loser record: %v", err)
	}
	if loser.Status != domain.PurchaseStatusFailed {
		t.Fatalf("expected loser settled as failed, got %s", loser.Status)
	}
	if got := stream.grantCount(testEmail, testEventID); got != 1 {
		t.Fatalf("expected one grant call, got %d", got)
	}
}

func TestConcurrentCompletionsKeepSingleCompletedRecord(t *testing.T) {
	t.Parallel()

	svc, repos, stream := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	ctx := context.Background()

	// Several open sessions for the same (event, user) pair, completed from
	// concurrent webhook deliveries. Exactly one may win the completion; the
	// rest settle as failed.
	const sessions = 8
	payloads := make([][]byte, 0, sessions)
	for i := 0; i < sessions; i++ {
		out, err := svc.InitiateCheckout(ctx, ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
		if err != nil {
			t.Fatalf("checkout %d: %v", i, err)
		}
		payloads = append(payloads, completedNotification(t, fmt.Sprintf("ntf-%d", i), out.SessionID))
	}

	var wg sync.WaitGroup
	for _, payload := range payloads {
		wg.Add(1)
		go func(payload []byte) {
			defer wg.Done()
			if err := svc.HandleNotification(ctx, payload, "sig"); err != nil {
				t.Errorf("handle completion: %v", err)
			}
		}(payload)
	}
	wg.Wait()

	records, total, err := repos.Purchases.ListByUser(ctx, testEmail, sessions, 0)
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	if total != sessions {
		t.Fatalf("expected %d records, got %d", sessions, total)
	}
	completed := 0
	for _, record := range records {
		if !record.Terminal() {
			t.Fatalf("record %s left non-terminal: %s", record.ProcessorSessionID, record.Status)
		}
		if record.Status == domain.PurchaseStatusCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("expected exactly one completed record, got %d", completed)
	}
	if got := stream.grantCount(testEmail, testEventID); got != 1 {
		t.Fatalf("expected one grant call, got %d", got)
	}
}

func TestInvalidSignatureRejectsWithoutMutation(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Purchases: repos.Purchases,
		Grants:    repos.GrantQueue,
		Dedup:     repos.Dedup,
		Outbox:    repos.Outbox,
		Catalog:   stubCatalog{events: map[string]domain.Event{testEventID: liveEvent()}},
		Processor: &stubProcessor{},
		Stream:    &stubStream{granted: make(map[string]int)},
		Verifier:  stubVerifier{reject: true},
	})
	ctx := context.Background()

	err := svc.HandleNotification(ctx, completedNotification(t, "ntf-1", "sess-1"), "bad")
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if _, total, _ := repos.Purchases.ListByUser(ctx, testEmail, 10, 0); total != 0 {
		t.Fatalf("expected no ledger mutation, got %d records", total)
	}
}

func TestPaymentFailureSettlesPendingRecord(t *testing.T) {
	t.Parallel()

	svc, repos, _ := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	ctx := context.Background()

	out, err := svc.InitiateCheckout(ctx, ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if err != nil {
		t.Fatalf("initiate checkout: %v", err)
	}

	data, _ := json.Marshal(contracts.PaymentFailedData{
		PaymentID: "pay-declined",
		SessionID: out.SessionID,
		Reason:    "card_declined",
	})
	raw, _ := json.Marshal(contracts.ProcessorNotification{
		NotificationID: "ntf-fail-1",
		Type:           contracts.NotificationPaymentFailed,
		CreatedAt:      time.Now().Unix(),
		Data:           data,
	})
	if err := svc.HandleNotification(ctx, raw, "sig"); err != nil {
		t.Fatalf("handle payment failure: %v", err)
	}

	record, err := repos.Purchases.GetBySessionID(ctx, out.SessionID)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.Status != domain.PurchaseStatusFailed {
		t.Fatalf("expected failed status, got %s", record.Status)
	}
	if record.FailureReason != "card_declined" {
		t.Fatalf("expected failure reason recorded, got %q", record.FailureReason)
	}
	if svc.EvaluateAccess(ctx, ports.Identity{Email: testEmail}, testEventID).HasAccess {
		t.Fatalf("failed purchase must not grant access")
	}
}

func TestUnrecognizedNotificationIsAcknowledged(t *testing.T) {
	t.Parallel()

	svc, repos, _ := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	raw, _ := json.Marshal(contracts.ProcessorNotification{
		NotificationID: "ntf-odd",
		Type:           "charge.refund.updated",
		CreatedAt:      time.Now().Unix(),
		Data:           []byte(`{}`),
	})
	if err := svc.HandleNotification(context.Background(), raw, "sig"); err != nil {
		t.Fatalf("expected ack for unrecognized type, got %v", err)
	}
	if _, total, _ := repos.Purchases.ListByUser(context.Background(), testEmail, 10, 0); total != 0 {
		t.Fatalf("expected no ledger mutation, got %d records", total)
	}
}

func TestEvaluateAccessFailsClosedOnLedgerError(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Purchases: erroringPurchases{},
		Grants:    repos.GrantQueue,
		Dedup:     repos.Dedup,
		Outbox:    repos.Outbox,
		Catalog:   stubCatalog{events: map[string]domain.Event{testEventID: liveEvent()}},
		Processor: &stubProcessor{},
		Stream:    &stubStream{granted: make(map[string]int)},
		Verifier:  stubVerifier{},
	})

	decision := svc.EvaluateAccess(context.Background(), ports.Identity{Email: testEmail}, testEventID)
	if decision.HasAccess {
		t.Fatalf("expected fail-closed decision on ledger error")
	}
}

func TestAuthorizeStreamDeniesWithoutPurchase(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	_, err := svc.AuthorizeStream(context.Background(), ports.Identity{Email: testEmail}, testEventID)
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestAuthorizeStreamRejectsNonLiveEvent(t *testing.T) {
	t.Parallel()

	event := liveEvent()
	event.StreamStatus = domain.StreamStatusScheduled
	svc, _, _ := newTestService(t, map[string]domain.Event{testEventID: event})
	ctx := context.Background()

	out, err := svc.InitiateCheckout(ctx, ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if err != nil {
		t.Fatalf("initiate checkout: %v", err)
	}
	if err := svc.HandleNotification(ctx, completedNotification(t, "ntf-1", out.SessionID), "sig"); err != nil {
		t.Fatalf("handle completion: %v", err)
	}

	_, err = svc.AuthorizeStream(ctx, ports.Identity{Email: testEmail}, testEventID)
	if !errors.Is(err, domain.ErrStreamNotLive) {
		t.Fatalf("expected ErrStreamNotLive, got %v", err)
	}
}

func TestAuthorizeStreamReturnsPlaybackURL(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, map[string]domain.Event{testEventID: liveEvent()})
	ctx := context.Background()

	out, err := svc.InitiateCheckout(ctx, ports.Identity{Email: testEmail}, application.CheckoutInput{EventID: testEventID})
	if err != nil {
		t.Fatalf("initiate checkout: %v", err)
	}
	if err := svc.HandleNotification(ctx, completedNotification(t, "ntf-1", out.SessionID), "sig"); err != nil {
		t.Fatalf("handle completion: %v", err)
	}

	auth, err := svc.AuthorizeStream(ctx, ports.Identity{Email: testEmail}, testEventID)
	if err != nil {
		t.Fatalf("authorize stream: %v", err)
	}
	if auth.StreamURL == "" {
		t.Fatalf("expected playback url")
	}
}

type stubCatalog struct {
	events map[string]domain.Event
}

func (s stubCatalog) GetEvent(_ context.Context, eventID string) (domain.Event, error) {
	event, ok := s.events[eventID]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return event, nil
}

func (s stubCatalog) ListEvents(_ context.Context) ([]domain.Event, error) {
	out := make([]domain.Event, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event)
	}
	return out, nil
}

type stubProcessor struct {
	mu      sync.Mutex
	counter int
}

func (s *stubProcessor) CreateCheckoutSession(_ context.Context, params ports.CheckoutSessionParams) (ports.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	sessionID := fmt.Sprintf("sess-%d", s.counter)
	return ports.CheckoutSession{
		SessionID:   sessionID,
		RedirectURL: "https://pay.example.com/" + sessionID,
	}, nil
}

type stubStream struct {
	mu      sync.Mutex
	granted map[string]int
}

func (s *stubStream) GrantAccess(_ context.Context, userEmail, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted[userEmail+"|"+eventID]++
	return nil
}

func (s *stubStream) PlaybackURL(_ context.Context, eventID string) (string, error) {
	return "https://cdn.example.com/hls/" + eventID + "/stream.m3u8", nil
}

func (s *stubStream) grantCount(userEmail, eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted[userEmail+"|"+eventID]
}

type stubVerifier struct {
	reject bool
}

func (s stubVerifier) Verify(_ []byte, _ string) error {
	if s.reject {
		return errors.New("signature mismatch")
	}
	return nil
}

type erroringPurchases struct{}

func (erroringPurchases) Create(_ context.Context, _ domain.PurchaseRecord) error {
	return errors.New("ledger down")
}

func (erroringPurchases) GetBySessionID(_ context.Context, _ string) (domain.PurchaseRecord, error) {
	return domain.PurchaseRecord{}, errors.New("ledger down")
}

func (erroringPurchases) HasCompleted(_ context.Context, _, _ string) (bool, error) {
	return false, errors.New("ledger down")
}

func (erroringPurchases) Complete(_ context.Context, _, _ string, _ float64, _ time.Time) (domain.PurchaseRecord, bool, error) {
	return domain.PurchaseRecord{}, false, errors.New("ledger down")
}

func (erroringPurchases) FailByPaymentID(_ context.Context, _, _ string, _ time.Time) (domain.PurchaseRecord, error) {
	return domain.PurchaseRecord{}, errors.New("ledger down")
}

func (erroringPurchases) FailBySessionID(_ context.Context, _, _ string, _ time.Time) (domain.PurchaseRecord, error) {
	return domain.PurchaseRecord{}, errors.New("ledger down")
}

func (erroringPurchases) ListByUser(_ context.Context, _ string, _, _ int) ([]domain.PurchaseRecord, int, error) {
	return nil, 0, errors.New("ledger down")
}
