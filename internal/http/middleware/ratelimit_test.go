package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pong_arena/internal/service"

	"github.com/gin-gonic/gin"
)

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	resetRateLimiter()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/ping", RateLimit(), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	// без redis лимитер пропускает все подряд
	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("запрос %d отклонен: %d", i, w.Code)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	resetRateLimiter()
	gin.SetMode(gin.TestMode)

	auth := service.NewAuthService("test-secret")
	token, err := auth.IssueToken(42, "alice")
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.GET("/me", Auth(auth), func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.String(http.StatusInternalServerError, "no id")
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "name": Username(c)})
	})

	// без токена
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("без токена ожидали 401, получили %d", w.Code)
	}

	// заголовок Bearer
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("с токеном ожидали 200, получили %d: %s", w.Code, w.Body.String())
	}

	// токен в query - путь для ws
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("с query-токеном ожидали 200, получили %d", w.Code)
	}

	// мусорный токен
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token=garbage", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("мусорный токен ожидали 401, получили %d", w.Code)
	}
}
