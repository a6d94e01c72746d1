package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func protectedRouter() *gin.Engine {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"user_id":   GetUserID(c),
			"tenant_id": GetTenantID(c),
		})
	})
	return router
}

func TestAuthRequired_NoHeader(t *testing.T) {
	router := protectedRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	router := protectedRouter()

	testCases := []string{
		"InvalidToken",
		"Basic token123",
		"Bearer",
	}

	for _, authHeader := range testCases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", authHeader)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAuthRequired_InvalidToken(t *testing.T) {
	router := protectedRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_RefreshTokenRejected(t *testing.T) {
	token, _ := utils.GenerateToken("usr_1", "ten_1", utils.TokenRefresh, time.Hour)

	router := protectedRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("refresh token on protected route: expected %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_ValidToken(t *testing.T) {
	token, _ := utils.GenerateToken("usr_42", "ten_7", utils.TokenAccess, time.Hour)

	router := protectedRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != "" {
		t.Errorf("expected empty string for missing user_id, got %q", id)
	}

	c.Set(ContextUserID, "usr_42")
	if id := GetUserID(c); id != "usr_42" {
		t.Errorf("expected %q, got %q", "usr_42", id)
	}
}

func TestGetTenantID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetTenantID(c); id != "" {
		t.Errorf("expected empty string for missing tenant_id, got %q", id)
	}

	c.Set(ContextTenantID, "ten_7")
	if id := GetTenantID(c); id != "ten_7" {
		t.Errorf("expected %q, got %q", "ten_7", id)
	}
}
