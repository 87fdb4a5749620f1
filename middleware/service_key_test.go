package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func serviceRouter(hash string) *gin.Engine {
	r := gin.New()
	r.POST("/internal", ServiceKeyMiddleware(hash), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func callInternal(r *gin.Engine, key string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/internal", nil)
	if key != "" {
		req.Header.Set(ServiceKeyHeader, key)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestServiceKeyMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	r := serviceRouter(string(hash))

	if code := callInternal(r, "s3cret-key"); code != http.StatusNoContent {
		t.Errorf("expected 204 for valid key, got %d", code)
	}
	if code := callInternal(r, "wrong"); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong key, got %d", code)
	}
	if code := callInternal(r, ""); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing key, got %d", code)
	}
}

func TestServiceKeyMiddlewareWithoutHash(t *testing.T) {
	if code := callInternal(serviceRouter(""), "anything"); code != http.StatusUnauthorized {
		t.Errorf("expected 401 when no hash configured, got %d", code)
	}
}
