package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() { gin.SetMode(gin.TestMode) }

func TestTokenBucketLimitsAndRefills(t *testing.T) {
	limited := 0
	l := NewTokenBucket(2, 60, func() { limited++ })
	now := time.Unix(0, 0)
	l.now = func() time.Time { return now }

	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit())
	assert.Equal(t, http.StatusOK, hit())
	assert.Equal(t, http.StatusTooManyRequests, hit())
	assert.Equal(t, 1, limited)

	now = now.Add(2 * time.Second)
	assert.Equal(t, http.StatusOK, hit())
}

func TestTokenBucketEvictsIdleClients(t *testing.T) {
	l := NewTokenBucket(2, 60, nil)
	now := time.Unix(0, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("ip:1"))
	assert.True(t, l.allow("ip:2"))
	assert.Len(t, l.state, 2)

	now = now.Add(30 * time.Second)
	assert.True(t, l.allow("ip:2"))
	assert.Len(t, l.state, 2)

	now = now.Add(90 * time.Second)
	assert.True(t, l.allow("ip:3"))
	assert.Len(t, l.state, 1)
	assert.Contains(t, l.state, "ip:3")
}

func TestRequestLoggerSkipsPaths(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core), "/healthz"), SecurityHeaders(false))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, "/missing", entries[0].ContextMap()["path"])
	}
}
