package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"caffmed-api/internal/pkg/jwtutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthJWT(t *testing.T) {
	r := gin.New()
	r.GET("/open", AuthJWT(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/closed", AuthJWT("secret"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextOperatorKey))
	})

	token, err := jwtutil.GenerateToken("secret", time.Minute, "ops")
	if err != nil {
		t.Fatal(err)
	}
	forged, err := jwtutil.GenerateToken("other", time.Minute, "ops")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"empty secret passes", "/open", "", http.StatusNoContent},
		{"missing header", "/closed", "", http.StatusUnauthorized},
		{"wrong scheme", "/closed", "Basic abc", http.StatusUnauthorized},
		{"forged token", "/closed", "Bearer " + forged, http.StatusUnauthorized},
		{"valid token", "/closed", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && rec.Body.String() != "ops" {
				t.Errorf("operator = %q", rec.Body.String())
			}
		})
	}
}

func TestConcurrencyLimitRejectsCancelledWaiter(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	r := gin.New()
	r.GET("/work", ConcurrencyLimit(1), func(c *gin.Context) {
		if c.Query("block") != "" {
			close(entered)
			<-release
		}
		c.Status(http.StatusOK)
	})

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/work?block=1", nil))
		done <- rec.Code
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/work", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("waiting request status = %d, want 503", rec.Code)
	}

	close(release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first request status = %d", code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/work", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("slot not released, status = %d", rec.Code)
	}
}

func TestRequestLoggerID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	const incoming = "7f0c2c4e-2b43-4c1e-9a57-1d1f4e1b2c3d"
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(HeaderRequestID, incoming)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Body.String() != incoming || rec.Header().Get(HeaderRequestID) != incoming {
		t.Errorf("well-formed id not reused: body %q header %q", rec.Body.String(), rec.Header().Get(HeaderRequestID))
	}

	req = httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(HeaderRequestID, "not-a-uuid")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Body.String(); got == "not-a-uuid" || len(got) != 36 {
		t.Errorf("generated id = %q", got)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()), Recovery(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("tensor index out of range") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Internal server error"`) || strings.Contains(rec.Body.String(), "tensor") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.POST("/predict", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/predict", nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}
}
