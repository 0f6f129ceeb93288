package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/viewfinderhq/viewfinder/cmd/viewfinderd/handlers"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("viewfinder", cookie.NewStore([]byte("test-secret"))))

	auth := &handlers.AuthHandler{User: "operator", Password: "hunter2"}
	router.POST("/login", auth.Login)
	router.GET("/api/ping", AuthRequired, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})
	return router
}

func TestAuthRequiredRejectsAnonymous(t *testing.T) {
	router := newAuthRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/ping", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous request = %d, want 401", w.Code)
	}
}

func TestLoginGrantsSession(t *testing.T) {
	router := newAuthRouter()

	// Wrong credentials never set a session.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"username":"operator","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/login", strings.NewReader(`{"username":"operator","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", w.Code, w.Body)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login did not set a session cookie")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/ping", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated request = %d, want 200", w.Code)
	}
}
