package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"leadcrm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestRateLimitRejectsAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := NewIPRateLimiter(rate.Limit(0), 3, logger.New("development"))

	engine := gin.New()
	engine.Use(limiter.RateLimit())
	engine.POST("/ingest", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	send := func() int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
		req.RemoteAddr = "203.0.113.7:4411"
		engine.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := send(); code != http.StatusAccepted {
			t.Fatalf("request %d: status = %d, want %d", i+1, code, http.StatusAccepted)
		}
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("over-burst status = %d, want %d", code, http.StatusTooManyRequests)
	}
}

func TestRateLimitTracksClientsSeparately(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := NewIPRateLimiter(rate.Limit(0), 1, logger.New("development"))

	engine := gin.New()
	engine.Use(limiter.RateLimit())
	engine.POST("/ingest", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	send := func(addr string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
		req.RemoteAddr = addr
		engine.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("198.51.100.1:9000"); code != http.StatusAccepted {
		t.Fatalf("first client: status = %d, want %d", code, http.StatusAccepted)
	}
	if code := send("198.51.100.1:9000"); code != http.StatusTooManyRequests {
		t.Fatalf("first client repeat: status = %d, want %d", code, http.StatusTooManyRequests)
	}
	if code := send("198.51.100.2:9000"); code != http.StatusAccepted {
		t.Fatalf("second client: status = %d, want %d", code, http.StatusAccepted)
	}
}
