package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newAuthRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.POST("/guarded", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/guarded", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSchedulerAuth_TrustedHeader(t *testing.T) {
	r := newAuthRouter(SchedulerAuth("s3cret"))

	// Truthy marker admits regardless of secret
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(HeaderScheduler, "true")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("trusted header: expected 200, got %d", w.Code)
	}

	// Case-insensitive
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(HeaderScheduler, "True")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("trusted header (mixed case): expected 200, got %d", w.Code)
	}

	// Non-truthy value does not admit
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(HeaderScheduler, "1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("non-truthy marker: expected 401, got %d", w.Code)
	}
}

func TestSchedulerAuth_SharedSecret(t *testing.T) {
	r := newAuthRouter(SchedulerAuth("s3cret"))

	// Header secret
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(HeaderSweepSecret, "s3cret")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("header secret: expected 200, got %d", w.Code)
	}

	// Query secret, for schedulers that cannot set headers
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/guarded?key=s3cret", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("query secret: expected 200, got %d", w.Code)
	}

	// Wrong secret
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(HeaderSweepSecret, "nope")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", w.Code)
	}

	// No credential at all
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/guarded", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no credential: expected 401, got %d", w.Code)
	}
}

func TestSchedulerAuth_EmptySecretDisablesSecretPath(t *testing.T) {
	r := newAuthRouter(SchedulerAuth(""))

	// Without a configured secret, presenting any value must not admit.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(HeaderSweepSecret, "")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("empty secret config: expected 401, got %d", w.Code)
	}

	// Trusted header still works
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(HeaderScheduler, "true")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("trusted header with empty secret: expected 200, got %d", w.Code)
	}
}

func TestOperatorAuth(t *testing.T) {
	r := newAuthRouter(OperatorAuth("op-token"))

	// Dedicated header
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set(HeaderAdminToken, "op-token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("admin header: expected 200, got %d", w.Code)
	}

	// Bearer form
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer op-token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("bearer: expected 200, got %d", w.Code)
	}

	// Wrong token
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set(HeaderAdminToken, "wrong")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", w.Code)
	}

	// Missing token
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}
}

func TestOperatorAuth_UnconfiguredLocksSurface(t *testing.T) {
	r := newAuthRouter(OperatorAuth(""))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set(HeaderAdminToken, "")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unconfigured operator token must lock the surface, got %d", w.Code)
	}
}
