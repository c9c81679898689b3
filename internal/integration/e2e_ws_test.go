package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"moonyetis/internal/config"
	"moonyetis/internal/domain"
	httpserver "moonyetis/internal/http"
	"moonyetis/internal/http/handlers"
	"moonyetis/internal/http/middleware"
	"moonyetis/internal/repository/memory"
	"moonyetis/internal/service"
	"moonyetis/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func startServer(t *testing.T) (*httptest.Server, *ws.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	tokens, err := service.NewTokenIssuer("e2e-secret", service.TokenTTL)
	require.NoError(t, err)

	hub := ws.NewHub()
	t.Cleanup(hub.Close)

	identity := service.NewIdentityService(store, service.NewPasswordHasher(bcrypt.MinCost, 4), tokens)
	identity.UseNotifier(hub)
	streaks := service.NewStreakService(store, identity, service.StreakConfig{CycleRestart: true})
	identity.UseDailyLogin(streaks)
	referrals := service.NewReferralService(store, identity)
	purchases := service.NewPurchaseService(store, referrals)
	purchases.UseNotifier(hub)

	cfg := &config.Config{WebhookSecret: "hook", RateLimit: 1000, RateWindow: 60, AuthRateLimit: 1000}
	r := httpserver.NewRouter(httpserver.Deps{
		Config:  cfg,
		Handler: handlers.NewHandler(identity, streaks, referrals, purchases, service.NewAdminService(identity, referrals, nil)),
		Health:  handlers.NewHealthHandler(store, nil, "e2e"),
		Hub:     hub,
		Limiter: middleware.NewRateLimiter(nil),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) map[string]any {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Equal(t, true, out["success"], "%v", out)
	return out
}

func readEvent(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// A referrer connected over websocket is told about the referral payout as
// soon as the referred user's purchase is confirmed.
func TestE2E_ReferralRewardIsPushedOverWebsocket(t *testing.T) {
	srv, hub := startServer(t)
	api := srv.URL + "/api/v1"

	alice := postJSON(t, api+"/auth/register", map[string]string{
		"username": "alice", "email": "alice@moonyetis.test", "password": "secret123",
	}, nil)
	bob := postJSON(t, api+"/auth/register", map[string]string{
		"username": "bob", "email": "bob@moonyetis.test", "password": "secret123",
		"referral_code": alice["referral_code"].(string),
	}, nil)

	login := postJSON(t, api+"/auth/login", map[string]string{"username": "alice", "password": "secret123"}, nil)
	token := login["token"].(string)
	aliceID := int64(alice["user_id"].(float64))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, ws.MsgReady, readEvent(t, conn).Type)
	require.Eventually(t, func() bool { return hub.Connections(aliceID) == 1 }, 2*time.Second, 10*time.Millisecond)

	postJSON(t, api+"/purchases/confirm", map[string]any{
		"user_id":      bob["user_id"],
		"mooncoins":    250,
		"usd_amount":   2.5,
		"external_ref": "pay_e2e",
	}, map[string]string{"X-Webhook-Secret": "hook"})

	msg := readEvent(t, conn)
	require.Equal(t, ws.MsgReward, msg.Type)
	var ev domain.RewardEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	require.Equal(t, domain.RewardTypeReferral, ev.Type)
	require.Equal(t, domain.ReferralReward, ev.Amount)
	// 5 from today's login plus the referral reward
	require.Equal(t, int64(35), ev.NewBalance)
}
