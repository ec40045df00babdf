package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryRedis is a map-backed RedisClient
type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: make(map[string]string)}
}

func (m *memoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (m *memoryRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type stubValidator struct {
	identity *Identity
	err      error
}

func (s *stubValidator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token != "good-token" {
		return nil, errors.New("invalid token")
	}
	return s.identity, s.err
}

func TestRequestID_GeneratesNew(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	headerID := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, headerID)
	assert.Equal(t, headerID, w.Body.String())
}

func TestRequestID_UsesExisting(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "existing-request-id-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "existing-request-id-123", w.Body.String())
}

func TestRequireAuth(t *testing.T) {
	validator := &stubValidator{identity: &Identity{UserID: "u-1", Username: "alice"}}

	r := gin.New()
	r.Use(RequireAuth(validator))
	r.GET("/me", func(c *gin.Context) {
		id, _ := GetUserID(c)
		name, _ := GetUsername(c)
		c.String(http.StatusOK, id+":"+name)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid token", header: "Bearer good-token", wantStatus: http.StatusOK, wantBody: "u-1:alice"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad-token", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func setupIdempotencyRouter(store RedisClient, calls *int) *gin.Engine {
	r := gin.New()
	r.Use(Idempotency(DefaultIdempotencyConfig(store)))
	r.POST("/tickets/:id/buy", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"call": *calls})
	})
	return r
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	calls := 0
	r := setupIdempotencyRouter(newMemoryRedis(), &calls)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/tickets/t-1/buy", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyKeyHeader, "key-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send()
	second := send()

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotency_RejectsReusedKeyWithDifferentBody(t *testing.T) {
	calls := 0
	r := setupIdempotencyRouter(newMemoryRedis(), &calls)

	req := httptest.NewRequest(http.MethodPost, "/tickets/t-1/buy", strings.NewReader(`{"a":1}`))
	req.Header.Set(IdempotencyKeyHeader, "key-2")
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/tickets/t-1/buy", strings.NewReader(`{"a":2}`))
	req.Header.Set(IdempotencyKeyHeader, "key-2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_WithoutKeyPassesThrough(t *testing.T) {
	calls := 0
	r := setupIdempotencyRouter(newMemoryRedis(), &calls)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tickets/t-1/buy", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotency_FailsOpenOnRedisError(t *testing.T) {
	store := newMemoryRedis()
	store.err = errors.New("connection refused")
	calls := 0
	r := setupIdempotencyRouter(store, &calls)

	req := httptest.NewRequest(http.MethodPost, "/tickets/t-1/buy", nil)
	req.Header.Set(IdempotencyKeyHeader, "key-3")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_RetryableStatusReleasesKey(t *testing.T) {
	tests := []struct {
		name  string
		first int
	}{
		{name: "conflict", first: http.StatusConflict},
		{name: "server error", first: http.StatusInternalServerError},
		{name: "unavailable", first: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryRedis()
			calls := 0
			r := gin.New()
			r.Use(Idempotency(DefaultIdempotencyConfig(store)))
			r.POST("/tickets/:id/buy", func(c *gin.Context) {
				calls++
				if calls == 1 {
					c.JSON(tt.first, gin.H{"error": "try again"})
					return
				}
				c.JSON(http.StatusOK, gin.H{"call": calls})
			})

			send := func() *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodPost, "/tickets/t-1/buy", strings.NewReader(`{}`))
				req.Header.Set(IdempotencyKeyHeader, "k1")
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				return w
			}

			first := send()
			assert.Equal(t, tt.first, first.Code)
			_, stored := store.data[IdempotencyKeyPrefix+"k1"]
			assert.False(t, stored)

			second := send()
			assert.Equal(t, http.StatusOK, second.Code)
			assert.Equal(t, 2, calls)

			third := send()
			assert.Equal(t, http.StatusOK, third.Code)
			assert.Equal(t, second.Body.String(), third.Body.String())
			assert.Equal(t, 2, calls)
		})
	}
}
