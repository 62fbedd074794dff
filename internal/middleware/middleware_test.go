package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRequireClientID_SetsContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/", RequireClientID(nil), func(c *gin.Context) {
		cid, ok := ClientIDFromContext(c)
		if !ok || cid != "cust_alpha" {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Client-Id", "cust_alpha")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireClientID_MissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/", RequireClientID(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireClientID_Allowlist(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/", RequireClientID([]string{"cust_alpha"}), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Client-Id", "cust_unknown")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown client, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Client-Id", "cust_alpha")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admitted client, got %d", w.Code)
	}
}

func TestRateLimiter_AllowAndDeny(t *testing.T) {
	clock := int64(1_700_000_000_000)
	rl := NewRateLimiterAt(2, time.Minute, func() int64 { return clock })

	if !rl.Allow("ip:10.0.0.1") {
		t.Fatalf("expected allow")
	}
	if !rl.Allow("ip:10.0.0.1") {
		t.Fatalf("expected allow")
	}
	if rl.Allow("ip:10.0.0.1") {
		t.Fatalf("expected deny")
	}

	clock += time.Minute.Milliseconds()
	if !rl.Allow("ip:10.0.0.1") {
		t.Fatalf("expected allow after window")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := int64(1_700_000_000_000)
	rl := NewRateLimiterAt(1, time.Minute, func() int64 { return clock })

	if !rl.Allow("client:cust_alpha") {
		t.Fatalf("expected allow")
	}
	if rl.Allow("client:cust_alpha") {
		t.Fatalf("expected deny for exhausted key")
	}
	if !rl.Allow("client:cust_beta") {
		t.Fatalf("other keys keep their own budget")
	}
}

func TestRateLimiter_PrunesClosedWindows(t *testing.T) {
	clock := int64(1_700_000_000_000)
	rl := NewRateLimiterAt(1, time.Minute, func() int64 { return clock })

	rl.Allow("client:cust_alpha")
	rl.Allow("client:cust_beta")

	clock += time.Minute.Milliseconds()
	rl.prune(clock)

	rl.mu.Lock()
	remaining := len(rl.buckets)
	rl.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected all closed windows pruned, %d left", remaining)
	}
}

func TestRateLimitMiddleware_KeyedByClientID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	clock := int64(1_700_000_000_000)
	rl := NewRateLimiterAt(1, time.Minute, func() int64 { return clock })

	r := gin.New()
	r.POST("/", RequireClientID(nil), RateLimitMiddleware(rl), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(clientID string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Client-Id", clientID)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do("cust_alpha"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := do("cust_alpha"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for exhausted client, got %d", code)
	}
	// a different client from the same source address is unaffected
	if code := do("cust_beta"); code != http.StatusOK {
		t.Fatalf("expected 200 for other client, got %d", code)
	}
}
