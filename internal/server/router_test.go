package server

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/csickelco/newbie-sub000/internal/store"
	"github.com/csickelco/newbie-sub000/internal/summary"
)

func janeBaby() store.BabyRecord {
	return store.BabyRecord{ID: "baby-1", Name: "Jane", Sex: "female"}
}

func TestHealthOK(t *testing.T) {
	router := newFakeRouter(t, &fakeSummaries{}, &fakeEventStore{})
	rec := performRequest(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	body := decodeJSONMap(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("expected status=ok, got %v", body["status"])
	}
	if body["service"] != "newbie-api" {
		t.Fatalf("expected service=newbie-api, got %v", body["service"])
	}
}

func TestProtectedEndpointRejectsMissingBearerToken(t *testing.T) {
	router := newFakeRouter(t, &fakeSummaries{}, &fakeEventStore{})
	rec := performRequest(t, router, http.MethodGet, "/api/v1/summaries/daily", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "Bearer token required" {
		t.Fatalf("expected Bearer token required, got %q", detail)
	}
}

func TestProtectedEndpointRejectsMalformedToken(t *testing.T) {
	router := newFakeRouter(t, &fakeSummaries{}, &fakeEventStore{})
	rec := performRequest(t, router, http.MethodGet, "/api/v1/summaries/daily", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "Invalid bearer token" {
		t.Fatalf("expected invalid bearer token detail, got %q", detail)
	}
}

func TestProtectedEndpointRejectsTokenWithoutSub(t *testing.T) {
	router := newFakeRouter(t, &fakeSummaries{}, &fakeEventStore{})
	rec := performRequest(t, router, http.MethodGet, "/api/v1/summaries/daily", signToken(t, "", nil), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "Token subject missing" {
		t.Fatalf("expected token subject missing detail, got %q", detail)
	}
}

func TestProtectedEndpointRejectsWrongAudience(t *testing.T) {
	cfg := baseTestConfig
	cfg.JWTAudience = "newbie-app"
	router := New(cfg, &fakeSummaries{}, &fakeEventStore{}, nil).Router()

	token := signTokenWithConfig(t, cfg, "user-1", map[string]any{"aud": "someone-else"})
	rec := performRequest(t, router, http.MethodGet, "/api/v1/summaries/daily", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "Invalid token audience" {
		t.Fatalf("expected invalid audience detail, got %q", detail)
	}
}

func TestDailyAndWeeklySummariesReturnRenderedResponse(t *testing.T) {
	summaries := &fakeSummaries{
		daily:  summary.RenderedResponse{Message: "Jane is 1 week old.", CardTitle: "Daily Summary for Jane", CardBody: "Age: 1 week\n"},
		weekly: summary.RenderedResponse{Message: "Jane is 1 week old.", CardTitle: "Weekly Summary for Jane", CardBody: "Age: 1 week\n"},
	}
	router := newFakeRouter(t, summaries, &fakeEventStore{})
	token := signToken(t, "user-1", nil)

	for path, title := range map[string]string{
		"/api/v1/summaries/daily":  "Daily Summary for Jane",
		"/api/v1/summaries/weekly": "Weekly Summary for Jane",
	} {
		rec := performRequest(t, router, http.MethodGet, path, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d body=%s", path, rec.Code, rec.Body.String())
		}
		body := decodeJSONMap(t, rec)
		if body["card_title"] != title || body["message"] != "Jane is 1 week old." || body["card_body"] != "Age: 1 week\n" {
			t.Fatalf("%s: unexpected body %v", path, body)
		}
	}
	if len(summaries.users) != 2 || summaries.users[0] != "user-1" {
		t.Fatalf("expected token subject to be passed as user id, got %v", summaries.users)
	}

	metricsRec := performRequest(t, router, http.MethodGet, "/metrics", "", nil)
	if metricsRec.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint to be public, got %d", metricsRec.Code)
	}
}

func TestSummaryWithoutBabyReturns404(t *testing.T) {
	router := newFakeRouter(t, &fakeSummaries{err: store.ErrBabyNotFound}, &fakeEventStore{})
	rec := performRequest(t, router, http.MethodGet, "/api/v1/summaries/weekly", signToken(t, "user-1", nil), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "Please register a baby before asking for a summary" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestSummaryStoreFailureReturns500(t *testing.T) {
	router := newFakeRouter(t, &fakeSummaries{err: errors.New("connection refused")}, &fakeEventStore{})
	rec := performRequest(t, router, http.MethodGet, "/api/v1/summaries/daily", signToken(t, "user-1", nil), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "Failed to build daily summary" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestQuickLastFeed(t *testing.T) {
	router := newFakeRouter(t, &fakeSummaries{lastFeed: "Jane last ate 2 hours ago."}, &fakeEventStore{})
	rec := performRequest(t, router, http.MethodGet, "/api/v1/quick/last-feed", signToken(t, "user-1", nil), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeJSONMap(t, rec)["message"]; got != "Jane last ate 2 hours ago." {
		t.Fatalf("unexpected last feed message %v", got)
	}
}

func TestRecordEventStoresAndConfirms(t *testing.T) {
	events := &fakeEventStore{baby: janeBaby()}
	router := newFakeRouter(t, &fakeSummaries{}, events)

	start := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	rec := performRequest(t, router, http.MethodPost, "/api/v1/events", signToken(t, "user-1", nil), map[string]any{
		"type":       "formula",
		"start_time": start,
		"value":      map[string]any{"ounces": 4},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeJSONMap(t, rec)
	if body["confirmation"] != "Recorded a feeding of 4 ounces for Jane." {
		t.Fatalf("unexpected confirmation %v", body["confirmation"])
	}
	if body["type"] != "FORMULA" || body["event_id"] != "event-1" {
		t.Fatalf("unexpected body %v", body)
	}

	if len(events.inserted) != 1 {
		t.Fatalf("expected one inserted event, got %d", len(events.inserted))
	}
	inserted := events.inserted[0]
	if inserted.BabyID != "baby-1" || inserted.CreatedBy != "user-1" || !inserted.Start.Equal(start) {
		t.Fatalf("unexpected inserted event %+v", inserted)
	}

	metricsBody := performRequest(t, router, http.MethodGet, "/metrics", "", nil).Body.String()
	if !strings.Contains(metricsBody, `newbie_events_recorded_total{type="FORMULA"} 1`) {
		t.Fatalf("expected recorded event metric, got:\n%s", metricsBody)
	}
}

func TestRecordEventRejectsUnknownType(t *testing.T) {
	events := &fakeEventStore{baby: janeBaby()}
	router := newFakeRouter(t, &fakeSummaries{}, events)
	rec := performRequest(t, router, http.MethodPost, "/api/v1/events", signToken(t, "user-1", nil), map[string]any{"type": "memo"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(events.inserted) != 0 {
		t.Fatalf("expected nothing inserted")
	}
}

func TestRecordEventMapsStoreErrors(t *testing.T) {
	token := signToken(t, "user-1", nil)

	router := newFakeRouter(t, &fakeSummaries{}, &fakeEventStore{babyErr: store.ErrBabyNotFound})
	rec := performRequest(t, router, http.MethodPost, "/api/v1/events", token, map[string]any{"type": "PEE"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a baby, got %d", rec.Code)
	}

	invalid := &fakeEventStore{baby: janeBaby(), insertErr: errors.Join(store.ErrInvalidEvent, errors.New("word is required"))}
	router = newFakeRouter(t, &fakeSummaries{}, invalid)
	rec = performRequest(t, router, http.MethodPost, "/api/v1/events", token, map[string]any{"type": "WORD"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid event, got %d", rec.Code)
	}
}

func TestVoiceIntentDispatch(t *testing.T) {
	summaries := &fakeSummaries{
		daily:    summary.RenderedResponse{Message: "daily speech", CardTitle: "Daily Summary for Jane", CardBody: "Age: 1 week\n"},
		weekly:   summary.RenderedResponse{Message: "weekly speech", CardTitle: "Weekly Summary for Jane"},
		lastFeed: "Jane last ate 5 minutes ago.",
	}
	router := newFakeRouter(t, summaries, &fakeEventStore{})
	token := signToken(t, "user-1", nil)

	cases := []struct {
		intent     string
		wantIntent string
		wantSpeech string
	}{
		{intent: "DailySummaryIntent", wantIntent: "DailySummaryIntent", wantSpeech: "daily speech"},
		{intent: "WeeklySummaryIntent", wantIntent: "WeeklySummaryIntent", wantSpeech: "weekly speech"},
		{intent: "LastFeedIntent", wantIntent: "LastFeedIntent", wantSpeech: "Jane last ate 5 minutes ago."},
		{intent: "OrderPizzaIntent", wantIntent: "HelpIntent", wantSpeech: helpSpeech},
	}
	for _, tc := range cases {
		rec := performRequest(t, router, http.MethodPost, "/api/v1/assistants/voice", token, map[string]any{"intent": tc.intent})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d body=%s", tc.intent, rec.Code, rec.Body.String())
		}
		body := decodeJSONMap(t, rec)
		if body["intent"] != tc.wantIntent || body["speech"] != tc.wantSpeech {
			t.Fatalf("%s: unexpected body %v", tc.intent, body)
		}
	}

	metricsBody := performRequest(t, router, http.MethodGet, "/metrics", "", nil).Body.String()
	if !strings.Contains(metricsBody, `newbie_assistant_intents_total{intent="HelpIntent"} 1`) {
		t.Fatalf("expected help intent metric, got:\n%s", metricsBody)
	}
}

func TestVoiceIntentSpeaksMissingBaby(t *testing.T) {
	router := newFakeRouter(t, &fakeSummaries{err: store.ErrBabyNotFound}, &fakeEventStore{})
	rec := performRequest(t, router, http.MethodPost, "/api/v1/assistants/voice", signToken(t, "user-1", nil), map[string]any{"intent": "DailySummaryIntent"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeJSONMap(t, rec)["speech"]; got != "Please register a baby before asking for a summary" {
		t.Fatalf("unexpected speech %v", got)
	}
}
