package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"capitol-watch/internal/auth"
	"capitol-watch/internal/domain"
	apphttp "capitol-watch/internal/http"
	"capitol-watch/internal/news"
	"capitol-watch/internal/repository/sqlite"
	"capitol-watch/internal/service"
	"capitol-watch/internal/storage"
	"capitol-watch/internal/trades"
)

type fakeNews struct {
	items map[string][]domain.NewsItem
	err   error
}

func (f fakeNews) Latest(ctx context.Context, category string) ([]domain.NewsItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	items := f.items[category]
	if len(items) > 5 {
		items = items[:5]
	}
	return items, nil
}

type fakeTrades struct {
	calls []string
	err   error
}

func (f *fakeTrades) RecentTrades(ctx context.Context, congressman string) (*domain.TradeReport, error) {
	if congressman == "" {
		return nil, trades.ErrMissingCongressman
	}
	f.calls = append(f.calls, congressman)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TradeReport{
		Congressman: congressman,
		Trades:      []domain.Trade{{Representative: congressman, Ticker: "NVDA"}},
	}, nil
}

type fakeStorage struct {
	prefixes []string
}

func (f *fakeStorage) PutJSON(ctx context.Context, bucket, key string, value any) (string, error) {
	return "", nil
}

func (f *fakeStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	f.prefixes = append(f.prefixes, prefix)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return []storage.ObjectInfo{{Key: prefix + "a.json", Size: 10, LastModified: &now}}, nil
}

type testEnv struct {
	router  *gin.Engine
	trades  *fakeTrades
	storage *fakeStorage
}

func newTestEnv(t *testing.T, newsSvc news.Service) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	userRepo := sqlite.NewUserRepository(db)
	require.NoError(t, userRepo.Init(ctx))
	followRepo := sqlite.NewFollowRepository(db)
	require.NoError(t, followRepo.Init(ctx))

	logger, _ := test.NewNullLogger()
	env := &testEnv{
		router:  gin.New(),
		trades:  &fakeTrades{},
		storage: &fakeStorage{},
	}
	handler := apphttp.NewHandler(
		service.NewUserServiceWithCost(userRepo, bcrypt.MinCost),
		service.NewFollowService(followRepo),
		newsSvc,
		env.trades,
		env.storage,
		"archive",
		"trade-reports",
		auth.NewTokenIssuer("test-secret", time.Hour),
		logger,
	)
	handler.RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec.Code, decoded
}

func creds(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

func TestRegisterSameUsernameTwice(t *testing.T) {
	env := newTestEnv(t, fakeNews{})

	code, body := env.do(t, http.MethodPost, "/register", creds("alice", "pw"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Registration successful!", body["message"])

	code, body = env.do(t, http.MethodPost, "/register", creds("alice", "pw2"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Username already exists.", body["message"])
}

func TestRegisterMissingFields(t *testing.T) {
	env := newTestEnv(t, fakeNews{})

	code, body := env.do(t, http.MethodPost, "/register", creds("", ""))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Username and password are required.", body["message"])
}

func TestRegisterMalformedJSON(t *testing.T) {
	env := newTestEnv(t, fakeNews{})

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t, fakeNews{})
	code, _ := env.do(t, http.MethodPost, "/register", creds("alice", "pw"))
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(t, http.MethodPost, "/login", creds("alice", "pw"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Login successful! Welcome, alice", body["message"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	code, body = env.do(t, http.MethodGet, "/me", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", body["username"])

	code, body = env.do(t, http.MethodPost, "/login", creds("alice", "nope"))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid username or password.", body["message"])

	code, body = env.do(t, http.MethodPost, "/login", creds("nobody", "pw"))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid username or password.", body["message"])
}

func TestMeRequiresToken(t *testing.T) {
	env := newTestEnv(t, fakeNews{})

	code, _ := env.do(t, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(t, http.MethodGet, "/me", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestFollowAndList(t *testing.T) {
	env := newTestEnv(t, fakeNews{})
	env.do(t, http.MethodPost, "/register", creds("alice", "pw"))

	code, body := env.do(t, http.MethodGet, "/followed?username=alice", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["followed"])

	code, body = env.do(t, http.MethodPost, "/follow", map[string]string{"username": "alice", "congressman": "Nancy Pelosi"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "You are now following Nancy Pelosi.", body["message"])

	code, body = env.do(t, http.MethodGet, "/followed?username=alice", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"Nancy Pelosi"}, body["followed"])

	code, body = env.do(t, http.MethodDelete, "/follow", map[string]string{"username": "alice", "congressman": "Nancy Pelosi"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "You are no longer following Nancy Pelosi.", body["message"])

	code, body = env.do(t, http.MethodDelete, "/follow", map[string]string{"username": "alice", "congressman": "Nancy Pelosi"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Error unfollowing congressman.", body["message"])
}

func TestFollowErrors(t *testing.T) {
	env := newTestEnv(t, fakeNews{})

	code, body := env.do(t, http.MethodPost, "/follow", map[string]string{"username": "ghost", "congressman": "Nancy Pelosi"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Error following congressman.", body["message"])

	code, body = env.do(t, http.MethodPost, "/follow", map[string]string{"username": "ghost"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Error following congressman.", body["message"])
}

func TestNews(t *testing.T) {
	items := make([]domain.NewsItem, 8)
	for i := range items {
		items[i] = domain.NewsItem{ID: int64(i), Headline: fmt.Sprintf("h%d", i)}
	}
	env := newTestEnv(t, fakeNews{items: map[string][]domain.NewsItem{"general": items}})

	code, body := env.do(t, http.MethodGet, "/news?category=general", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["news"], 5)

	code, body = env.do(t, http.MethodGet, "/news?category=crypto", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No news available for this category.", body["message"])
}

func TestNewsUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, fakeNews{err: errors.New("finnhub down")})

	code, body := env.do(t, http.MethodGet, "/news?category=general", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", body["error"])
}

func TestNewsTransportFailureHidesAPIKey(t *testing.T) {
	logger, hook := test.NewNullLogger()
	// nothing listens on port 1, so the request fails with a *url.Error
	client := news.NewClient("http://127.0.0.1:1", "SUPERSECRETKEY", 0, logger)
	env := newTestEnv(t, news.NewService(client, nil, 0, 0, logger))

	req := httptest.NewRequest(http.MethodGet, "/news?category=general", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SUPERSECRETKEY")
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	for _, e := range hook.AllEntries() {
		assert.NotContains(t, e.Message, "SUPERSECRETKEY")
	}
}

func TestRecentTrades(t *testing.T) {
	env := newTestEnv(t, fakeNews{})

	code, body := env.do(t, http.MethodGet, "/recent-trades?congressman=Nancy%20Pelosi", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"message": "Trades fetched. Check logs for details."}, body)
	assert.Equal(t, []string{"Nancy Pelosi"}, env.trades.calls)

	code, _ = env.do(t, http.MethodGet, "/recent-trades", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRecentTradesUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, fakeNews{})
	env.trades.err = errors.New("feed down")

	code, _ := env.do(t, http.MethodGet, "/recent-trades?congressman=Pelosi", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestTradeReportsListing(t *testing.T) {
	env := newTestEnv(t, fakeNews{})

	req := httptest.NewRequest(http.MethodGet, "/api/trade-reports?congressman=Nancy%20Pelosi", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var objects []apphttp.StorageObjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &objects))
	require.Len(t, objects, 1)
	assert.Equal(t, "trade-reports/nancy-pelosi/a.json", objects[0].Key)
	require.NotNil(t, objects[0].LastModified)
	assert.Equal(t, "2024-01-02T03:04:05Z", *objects[0].LastModified)
	assert.Equal(t, []string{"trade-reports/nancy-pelosi/"}, env.storage.prefixes)
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t, fakeNews{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Capitol Watch</title>")

	code, body := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["ok"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, fakeNews{})

	req := httptest.NewRequest(http.MethodOptions, "/follow", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, fakeNews{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
