package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/csickelco/newbie-sub000/internal/config"
	"github.com/csickelco/newbie-sub000/internal/db"
	"github.com/csickelco/newbie-sub000/internal/metrics"
	"github.com/csickelco/newbie-sub000/internal/report"
	"github.com/csickelco/newbie-sub000/internal/store"
	"github.com/csickelco/newbie-sub000/internal/summary"
)

var (
	testPool              *pgxpool.Pool
	baseTestConfig        config.Config
	integrationDBReady    bool
	integrationSkipReason string
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	baseTestConfig = newTestConfig()

	testDatabaseURL := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if testDatabaseURL == "" {
		integrationSkipReason = "integration tests skipped: TEST_DATABASE_URL is not set"
		fmt.Fprintln(os.Stderr, integrationSkipReason)
		os.Exit(m.Run())
	}
	testDatabaseURL = withSimpleProtocol(testDatabaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Connect(ctx, testDatabaseURL)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration test setup failed: cannot connect TEST_DATABASE_URL: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	err = ValidateRuntimeSchema(ctx, pool)
	cancel()
	if err != nil {
		pool.Close()
		fmt.Fprintf(os.Stderr, "integration test setup failed: %v\n", err)
		os.Exit(1)
	}

	testPool = pool
	integrationDBReady = true

	exitCode := m.Run()
	testPool.Close()
	os.Exit(exitCode)
}

func withSimpleProtocol(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	queries := parsed.Query()
	queries.Set("default_query_exec_mode", "simple_protocol")
	parsed.RawQuery = queries.Encode()
	return parsed.String()
}

func newTestConfig() config.Config {
	cfg := config.Defaults()
	cfg.AppEnv = "test"
	cfg.AppName = "Newbie API Test"
	cfg.AppPort = "0"
	cfg.DatabaseURL = "test"
	cfg.JWTSecret = "test-secret-1234567890"

	if v := strings.TrimSpace(os.Getenv("TEST_JWT_SECRET")); v != "" {
		cfg.JWTSecret = v
	}
	return cfg
}

func requireIntegration(t *testing.T) {
	t.Helper()
	if !integrationDBReady {
		if integrationSkipReason == "" {
			integrationSkipReason = "integration tests skipped: TEST_DATABASE_URL is not configured"
		}
		t.Skip(integrationSkipReason)
	}
}

// newIntegrationRouter wires the real store and report service onto the test
// database.
func newIntegrationRouter(t *testing.T) *gin.Engine {
	t.Helper()
	requireIntegration(t)
	s := store.New(testPool)
	svc := report.NewService(s, s)
	return New(baseTestConfig, svc, s, metrics.NewManager()).Router()
}

type fakeSummaries struct {
	mu       sync.Mutex
	daily    summary.RenderedResponse
	weekly   summary.RenderedResponse
	lastFeed string
	err      error
	users    []string
}

func (f *fakeSummaries) track(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
}

func (f *fakeSummaries) GetDailySummary(_ context.Context, userID string) (summary.RenderedResponse, error) {
	f.track(userID)
	return f.daily, f.err
}

func (f *fakeSummaries) GetWeeklySummary(_ context.Context, userID string) (summary.RenderedResponse, error) {
	f.track(userID)
	return f.weekly, f.err
}

func (f *fakeSummaries) GetLastFeed(_ context.Context, userID string) (string, error) {
	f.track(userID)
	return f.lastFeed, f.err
}

type fakeEventStore struct {
	baby      store.BabyRecord
	babyErr   error
	insertErr error
	inserted  []store.NewEvent
}

func (f *fakeEventStore) BabyForUser(context.Context, string) (store.BabyRecord, error) {
	return f.baby, f.babyErr
}

func (f *fakeEventStore) InsertEvent(_ context.Context, event store.NewEvent) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.inserted = append(f.inserted, event)
	return "event-" + fmt.Sprint(len(f.inserted)), nil
}

func newFakeRouter(t *testing.T, summaries *fakeSummaries, events *fakeEventStore) *gin.Engine {
	t.Helper()
	return New(baseTestConfig, summaries, events, metrics.NewManager()).Router()
}

func signToken(t *testing.T, sub string, overrides map[string]any) string {
	t.Helper()
	return signTokenWithConfig(t, baseTestConfig, sub, overrides)
}

func signTokenWithConfig(t *testing.T, cfg config.Config, sub string, overrides map[string]any) string {
	t.Helper()

	claims := jwt.MapClaims{
		"exp": time.Now().UTC().Add(1 * time.Hour).Unix(),
		"iat": time.Now().UTC().Add(-1 * time.Minute).Unix(),
	}
	if strings.TrimSpace(sub) != "" {
		claims["sub"] = sub
	}
	if strings.TrimSpace(cfg.JWTAudience) != "" {
		claims["aud"] = cfg.JWTAudience
	}
	if strings.TrimSpace(cfg.JWTIssuer) != "" {
		claims["iss"] = cfg.JWTIssuer
	}
	for key, value := range overrides {
		if value == nil {
			delete(claims, key)
			continue
		}
		claims[key] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func performRequest(
	t *testing.T,
	router http.Handler,
	method, targetPath, token string,
	body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, targetPath, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSONMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response JSON: %v; body=%s", err, rec.Body.String())
	}
	return payload
}

func responseDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeJSONMap(t, rec)
	detail, _ := body["detail"].(string)
	return detail
}

type accessFixture struct {
	UserID      string
	HouseholdID string
	BabyID      string
}

func seedOwnerFixture(t *testing.T, babyName, sex string, birthDate time.Time) accessFixture {
	t.Helper()
	requireIntegration(t)

	fixture := accessFixture{UserID: testID(), HouseholdID: testID(), BabyID: testID()}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	statements := []struct {
		sql  string
		args []any
	}{
		{
			sql:  `INSERT INTO "User" (id, provider, "providerUid", phone, name, "createdAt") VALUES ($1, 'phone', NULL, NULL, $2, NOW())`,
			args: []any{fixture.UserID, "user-" + fixture.UserID[:8]},
		},
		{
			sql:  `INSERT INTO "Household" (id, "ownerUserId", "createdAt") VALUES ($1, $2, NOW())`,
			args: []any{fixture.HouseholdID, fixture.UserID},
		},
		{
			sql:  `INSERT INTO "Baby" (id, "householdId", name, "birthDate", sex, "createdAt") VALUES ($1, $2, $3, $4, $5, NOW())`,
			args: []any{fixture.BabyID, fixture.HouseholdID, babyName, birthDate.UTC(), sex},
		},
	}
	for _, stmt := range statements {
		if _, err := testPool.Exec(ctx, stmt.sql, stmt.args...); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		for _, sql := range []string{
			`DELETE FROM "Event" WHERE "babyId" = $1`,
			`DELETE FROM "Baby" WHERE id = $1`,
		} {
			_, _ = testPool.Exec(cleanupCtx, sql, fixture.BabyID)
		}
		_, _ = testPool.Exec(cleanupCtx, `DELETE FROM "Household" WHERE id = $1`, fixture.HouseholdID)
		_, _ = testPool.Exec(cleanupCtx, `DELETE FROM "User" WHERE id = $1`, fixture.UserID)
	})
	return fixture
}

func testID() string {
	return uuid.NewString()
}
