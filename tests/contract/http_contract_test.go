package contract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	httpadapter "github.com/brightcast/ppv-access-service/internal/adapters/http"
	"github.com/brightcast/ppv-access-service/internal/adapters/memory"
	"github.com/brightcast/ppv-access-service/internal/adapters/payments"
	"github.com/brightcast/ppv-access-service/internal/application"
	"github.com/brightcast/ppv-access-service/internal/contracts"
	"github.com/brightcast/ppv-access-service/internal/domain"
	"github.com/brightcast/ppv-access-service/internal/metrics"
	"github.com/brightcast/ppv-access-service/internal/ports"
)

const (
	contractEventID = "evt-main-card"
	contractEmail   = "subscriber@example.com"
	contractToken   = "good-token"
	signingSecret   = "whsec_contract_test"
)

func newRouter() http.Handler {
	repos := memory.NewRepositories()
	svc := application.NewService(application.Dependencies{
		Purchases: repos.Purchases,
		Grants:    repos.GrantQueue,
		Dedup:     repos.Dedup,
		Outbox:    repos.Outbox,
		Catalog: fixedCatalog{event: domain.Event{
			EventID:      contractEventID,
			Title:        "Main Card",
			Price:        24.99,
			Currency:     "usd",
			IsPPV:        true,
			StreamStatus: domain.StreamStatusLive,
			StartsAt:     time.Now().UTC().Add(-time.Hour),
		}},
		Processor: fixedProcessor{},
		Stream:    fixedStream{},
		Verifier:  payments.NewSignatureVerifier(signingSecret, 5*time.Minute),
	})
	return httpadapter.NewRouter(httpadapter.NewHandler(svc, tokenVerifier{}))
}

func TestCheckoutRequiresBearerToken(t *testing.T) {
	router := newRouter()
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader(`{"event_id":"`+contractEventID+`"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got=%d want=%d", rr.Code, http.StatusUnauthorized)
	}
	var out contracts.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if out.Status != "error" || out.Error.Code != "unauthenticated" {
		t.Fatalf("unexpected error envelope: %+v", out)
	}
}

func TestCheckoutReturnsRedirect(t *testing.T) {
	router := newRouter()
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader(`{"event_id":"`+contractEventID+`"}`))
	req.Header.Set("Authorization", "Bearer "+contractToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("checkout failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out contracts.SuccessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	dataBytes, _ := json.Marshal(out.Data)
	var checkout contracts.CheckoutResponse
	if err := json.Unmarshal(dataBytes, &checkout); err != nil {
		t.Fatalf("decode checkout payload: %v", err)
	}
	if checkout.SessionID == "" || checkout.RedirectURL == "" {
		t.Fatalf("incomplete checkout payload: %+v", checkout)
	}
}

func TestCheckoutUnknownEventReturns404(t *testing.T) {
	router := newRouter()
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader(`{"event_id":"evt-missing"}`))
	req.Header.Set("Authorization", "Bearer "+contractToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got=%d want=%d body=%s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
	var out contracts.ErrorResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out.Error.Code != "not_found" {
		t.Fatalf("unexpected error code: %+v", out)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	router := newRouter()
	payload := []byte(`{"id":"ntf-1","type":"checkout.session.completed","created":1,"data":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader(string(payload)))
	req.Header.Set("Processor-Signature", "t=1,v1=deadbeef")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d body=%s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	var out contracts.ErrorResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out.Error.Code != "invalid_signature" {
		t.Fatalf("unexpected error code: %+v", out)
	}
}

func TestWebhookAcceptsSignedCompletion(t *testing.T) {
	router := newRouter()

	// Open a session first so the completion correlates to a pending record.
	checkoutReq := httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader(`{"event_id":"`+contractEventID+`"}`))
	checkoutReq.Header.Set("Authorization", "Bearer "+contractToken)
	checkoutRR := httptest.NewRecorder()
	router.ServeHTTP(checkoutRR, checkoutReq)
	if checkoutRR.Code != http.StatusCreated {
		t.Fatalf("checkout failed: status=%d body=%s", checkoutRR.Code, checkoutRR.Body.String())
	}
	var checkoutOut contracts.SuccessResponse
	_ = json.Unmarshal(checkoutRR.Body.Bytes(), &checkoutOut)
	dataBytes, _ := json.Marshal(checkoutOut.Data)
	var checkout contracts.CheckoutResponse
	_ = json.Unmarshal(dataBytes, &checkout)

	data, _ := json.Marshal(contracts.CheckoutCompletedData{
		SessionID:     checkout.SessionID,
		PaymentID:     "pay-contract-1",
		AmountTotal:   2499,
		Currency:      "usd",
		CustomerEmail: contractEmail,
		Metadata: contracts.NotificationMetadata{
			EventID:   contractEventID,
			UserEmail: contractEmail,
			Kind:      "ppv",
		},
	})
	payload, _ := json.Marshal(contracts.ProcessorNotification{
		NotificationID: "ntf-contract-1",
		Type:           contracts.NotificationCheckoutCompleted,
		CreatedAt:      time.Now().Unix(),
		Data:           data,
	})

	webhookReq := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader(string(payload)))
	webhookReq.Header.Set("Processor-Signature", payments.Sign(signingSecret, payload, time.Now()))
	webhookRR := httptest.NewRecorder()
	router.ServeHTTP(webhookRR, webhookReq)
	if webhookRR.Code != http.StatusOK {
		t.Fatalf("webhook failed: status=%d body=%s", webhookRR.Code, webhookRR.Body.String())
	}

	accessReq := httptest.NewRequest(http.MethodGet, "/v1/events/"+contractEventID+"/access", nil)
	accessReq.Header.Set("Authorization", "Bearer "+contractToken)
	accessRR := httptest.NewRecorder()
	router.ServeHTTP(accessRR, accessReq)
	if accessRR.Code != http.StatusOK {
		t.Fatalf("access check failed: status=%d body=%s", accessRR.Code, accessRR.Body.String())
	}
	var accessOut contracts.SuccessResponse
	_ = json.Unmarshal(accessRR.Body.Bytes(), &accessOut)
	accessBytes, _ := json.Marshal(accessOut.Data)
	var access contracts.AccessResponse
	_ = json.Unmarshal(accessBytes, &access)
	if !access.HasAccess {
		t.Fatalf("expected access after fulfilled completion: %+v", access)
	}

	streamReq := httptest.NewRequest(http.MethodGet, "/v1/events/"+contractEventID+"/stream", nil)
	streamReq.Header.Set("Authorization", "Bearer "+contractToken)
	streamRR := httptest.NewRecorder()
	router.ServeHTTP(streamRR, streamReq)
	if streamRR.Code != http.StatusOK {
		t.Fatalf("stream url failed: status=%d body=%s", streamRR.Code, streamRR.Body.String())
	}
}

func TestStreamURLDeniedWithoutPurchase(t *testing.T) {
	router := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/v1/events/"+contractEventID+"/stream", nil)
	req.Header.Set("Authorization", "Bearer "+contractToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got=%d want=%d body=%s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
	var out contracts.ErrorResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out.Error.Code != "access_denied" {
		t.Fatalf("unexpected error code: %+v", out)
	}
}

func TestEventsListingIsPublic(t *testing.T) {
	router := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("listing failed: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestUserPurchasesRequiresAuth(t *testing.T) {
	router := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/v1/user/purchases", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got=%d want=%d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRequestDurationLabeledByRoutePattern(t *testing.T) {
	router := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/v1/events/"+contractEventID+"/access", nil)
	req.Header.Set("Authorization", "Bearer "+contractToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("access check failed: status=%d body=%s", rr.Code, rr.Body.String())
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.HTTPRequestDuration); err != nil {
		t.Fatalf("register histogram: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	var sawPattern bool
	for _, family := range families {
		if family.GetName() != "http_request_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() != "path" {
					continue
				}
				if label.GetValue() == "/v1/events/{event_id}/access" {
					sawPattern = true
				}
				if strings.Contains(label.GetValue(), contractEventID) {
					t.Fatalf("raw event id leaked into metric label: %q", label.GetValue())
				}
			}
		}
	}
	if !sawPattern {
		t.Fatalf("expected a sample labeled with the route pattern")
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newRouter()
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s failed: status=%d", path, rr.Code)
		}
	}
}

type fixedCatalog struct {
	event domain.Event
}

func (c fixedCatalog) GetEvent(_ context.Context, eventID string) (domain.Event, error) {
	if eventID != c.event.EventID {
		return domain.Event{}, domain.ErrNotFound
	}
	return c.event, nil
}

func (c fixedCatalog) ListEvents(_ context.Context) ([]domain.Event, error) {
	return []domain.Event{c.event}, nil
}

type fixedProcessor struct{}

func (fixedProcessor) CreateCheckoutSession(_ context.Context, params ports.CheckoutSessionParams) (ports.CheckoutSession, error) {
	return ports.CheckoutSession{
		SessionID:   "sess-" + params.EventID + "-" + params.UserEmail,
		RedirectURL: "https://pay.example.com/c/" + params.EventID,
	}, nil
}

type fixedStream struct{}

func (fixedStream) GrantAccess(_ context.Context, _, _ string) error { return nil }

func (fixedStream) PlaybackURL(_ context.Context, eventID string) (string, error) {
	return "https://cdn.example.com/hls/" + eventID + "/index.m3u8", nil
}

type tokenVerifier struct{}

func (tokenVerifier) Verify(rawToken string) (ports.Identity, error) {
	if rawToken != contractToken {
		return ports.Identity{}, errors.New("unknown token")
	}
	return ports.Identity{Subject: "user-1", Email: contractEmail}, nil
}
