package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moonyetis/internal/domain"
	"moonyetis/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]int64

// tokens mapped to a negative id belong to deactivated accounts
func (f fakeVerifier) Authenticate(_ context.Context, token string) (*service.Claims, error) {
	id, ok := f[token]
	switch {
	case !ok:
		return nil, domain.ErrInvalidToken
	case id < 0:
		return nil, domain.ErrAccountDeactivated
	}
	return &service.Claims{UserID: id}, nil
}

type fakeAdmins map[int64]bool

func (f fakeAdmins) IsAdmin(id int64) bool { return f[id] }

func serve(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", JWT(fakeVerifier{"good": 7, "gone": -1}), func(c *gin.Context) {
		id, ok := UserID(c)
		require.True(t, ok)
		c.String(http.StatusOK, "%d", id)
	})

	require.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
	require.Equal(t, http.StatusUnauthorized, serve(r, map[string]string{"Authorization": "Token good"}).Code)
	require.Equal(t, http.StatusUnauthorized, serve(r, map[string]string{"Authorization": "Bearer bad"}).Code)
	require.Equal(t, http.StatusForbidden, serve(r, map[string]string{"Authorization": "Bearer gone"}).Code)

	w := serve(r, map[string]string{"Authorization": "Bearer good"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "7", w.Body.String())
}

func TestAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", Admin(fakeVerifier{"root": 1, "user": 2}, fakeAdmins{1: true}, "tok"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin_id": AdminID(c)})
	})

	require.Equal(t, http.StatusOK, serve(r, map[string]string{"X-Admin-Token": "tok"}).Code)
	require.Equal(t, http.StatusUnauthorized, serve(r, map[string]string{"X-Admin-Token": "nope"}).Code)
	require.Equal(t, http.StatusForbidden, serve(r, map[string]string{"Authorization": "Bearer user"}).Code)

	w := serve(r, map[string]string{"Authorization": "Bearer root"})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"admin_id":1}`, w.Body.String())
}

func TestAdmin_EmptyTokenNeverMatches(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", Admin(fakeVerifier{}, fakeAdmins{}, ""), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusUnauthorized, serve(r, map[string]string{"X-Admin-Token": ""}).Code)
}

func TestWebhookSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	r := gin.New()
	r.GET("/x", WebhookSecret("s3"), ok)
	require.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
	require.Equal(t, http.StatusOK, serve(r, map[string]string{"X-Webhook-Secret": "s3"}).Code)

	disabled := gin.New()
	disabled.GET("/x", WebhookSecret(""), ok)
	require.Equal(t, http.StatusServiceUnavailable, serve(disabled, map[string]string{"X-Webhook-Secret": ""}).Code)
}

func TestRequestLoggerKeepsValidIncomingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	id := "7b0e1f0c-6a52-4a4f-9a38-0d1f6b1c2d3e"
	w := serve(r, map[string]string{requestIDHeader: id})
	require.Equal(t, id, w.Header().Get(requestIDHeader))

	w = serve(r, map[string]string{requestIDHeader: "not-a-uuid"})
	require.NotEqual(t, "not-a-uuid", w.Header().Get(requestIDHeader))
	require.Len(t, w.Header().Get(requestIDHeader), 36)
}

func TestLimitKeysByUserAfterJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewRateLimiter(nil)
	r := gin.New()
	r.GET("/x", JWT(fakeVerifier{"alice": 7, "bob": 8}), l.Limit("user", 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	alice := map[string]string{"Authorization": "Bearer alice"}
	bob := map[string]string{"Authorization": "Bearer bob"}

	// same client IP, separate windows per user
	require.Equal(t, http.StatusOK, serve(r, alice).Code)
	require.Equal(t, http.StatusOK, serve(r, bob).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, alice).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, bob).Code)
}
