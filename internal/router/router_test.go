package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stcoins/config"
	"stcoins/internal/database"
	"stcoins/internal/domain"
	"stcoins/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRouterWithDB(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
			MaxIdleConns: 1,
			MaxOpenConns: 1,
		},
		JWT: config.JWTConfig{
			AccessSecret:  "access-secret",
			RefreshSecret: "refresh-secret",
			AccessExpiry:  time.Hour,
			RefreshExpiry: time.Hour,
			Issuer:        "test",
		},
		Ledger: config.LedgerConfig{ReferralBonus: 100, VerifyTimeout: time.Second},
		Worker: config.WorkerConfig{Interval: time.Minute},
		Admin:  config.AdminConfig{Email: "admin@example.com", Password: "admin-password"},
	}
	db, err := database.NewDB(&cfg.Database)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	database.SeedAdmin(db, &cfg.Admin)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	r, _ := Setup(cfg, db, nil)
	return r, db
}

type call struct {
	method, path, token string
	body                interface{}
	headers             map[string]string
}

func httpDo(r *gin.Engine, c call) (*httptest.ResponseRecorder, map[string]interface{}) {
	var req *http.Request
	if c.body != nil {
		b, _ := json.Marshal(c.body)
		req = httptest.NewRequest(c.method, c.path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func register(t *testing.T, r *gin.Engine, name, referralCode string) string {
	t.Helper()
	w, out := httpDo(r, call{method: "POST", path: "/api/v1/auth/register", body: map[string]string{
		"email": name + "@example.com", "username": name, "password": "password123", "referral_code": referralCode,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return out["access_token"].(string)
}

func login(t *testing.T, r *gin.Engine, email, password string) string {
	t.Helper()
	w, out := httpDo(r, call{method: "POST", path: "/api/v1/auth/login", body: map[string]string{
		"email": email, "password": password,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return out["access_token"].(string)
}

func balanceOf(t *testing.T, r *gin.Engine, token string) float64 {
	t.Helper()
	w, out := httpDo(r, call{method: "GET", path: "/api/v1/me/balance", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	return out["balance"].(float64)
}

func idOf(t *testing.T, out map[string]interface{}, key string) uint {
	t.Helper()
	obj, ok := out[key].(map[string]interface{})
	require.True(t, ok, "missing %s", key)
	return uint(obj["id"].(float64))
}

func TestTaskToRedemptionFlow(t *testing.T) {
	r, _ := setupRouterWithDB(t)
	adminToken := login(t, r, "admin@example.com", "admin-password")
	userToken := register(t, r, "player", "")

	w, out := httpDo(r, call{method: "POST", path: "/api/v1/admin/tasks", token: adminToken, body: map[string]interface{}{
		"title": "Follow us", "points": 50, "expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	taskID := idOf(t, out, "task")

	w, out = httpDo(r, call{method: "GET", path: "/api/v1/tasks"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, out["tasks"], 1)

	w, out = httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/me/tasks/%d/start", taskID), token: userToken})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assignmentID := idOf(t, out, "assignment")

	w, _ = httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/me/tasks/%d/start", taskID), token: userToken})
	require.Equal(t, http.StatusConflict, w.Code)

	w, out = httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/me/assignments/%d/submit", assignmentID), token: userToken,
		body: map[string]string{"notes": "followed"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	submissionID := idOf(t, out, "submission")

	w, _ = httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/admin/submissions/%d/review", submissionID), token: userToken,
		body: map[string]string{"decision": "approve"}})
	require.Equal(t, http.StatusForbidden, w.Code)

	w, out = httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/admin/submissions/%d/review", submissionID), token: adminToken,
		body: map[string]string{"decision": "approve"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "completed", out["assignment"].(map[string]interface{})["status"])
	require.Equal(t, float64(50), balanceOf(t, r, userToken))

	w, out = httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/admin/submissions/%d/review", submissionID), token: adminToken,
		body: map[string]string{"decision": "approve"}})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "invalid_state", out["code"])
	require.Equal(t, float64(50), balanceOf(t, r, userToken))

	w, out = httpDo(r, call{method: "POST", path: "/api/v1/admin/rewards", token: adminToken, body: map[string]interface{}{
		"name": "Sticker", "points_cost": 30, "quantity": 1,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rewardID := idOf(t, out, "reward")

	w, _ = httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/me/rewards/%d/redeem", rewardID), token: userToken})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, float64(20), balanceOf(t, r, userToken))

	w, out = httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/me/rewards/%d/redeem", rewardID), token: userToken})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "out_of_stock", out["code"])

	w, out = httpDo(r, call{method: "GET", path: "/api/v1/me/ledger", token: userToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(2), out["total"])
}

func TestAdminAdjustPointsIsIdempotent(t *testing.T) {
	r, _ := setupRouterWithDB(t)
	adminToken := login(t, r, "admin@example.com", "admin-password")
	userToken := register(t, r, "adjusted", "")

	w, out := httpDo(r, call{method: "GET", path: "/api/v1/me/profile", token: userToken})
	require.Equal(t, http.StatusOK, w.Code)
	userID := idOf(t, out, "user")
	path := fmt.Sprintf("/api/v1/admin/users/%d/points", userID)

	w, _ = httpDo(r, call{method: "POST", path: path, token: adminToken, body: map[string]int{"delta": 40}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	key := map[string]string{"Idempotency-Key": "grant-1"}
	w, out = httpDo(r, call{method: "POST", path: path, token: adminToken, body: map[string]int{"delta": 40}, headers: key})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, false, out["replayed"])

	w, out = httpDo(r, call{method: "POST", path: path, token: adminToken, body: map[string]int{"delta": 40}, headers: key})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, out["replayed"])
	require.Equal(t, float64(40), balanceOf(t, r, userToken))

	w, out = httpDo(r, call{method: "POST", path: path, token: adminToken, body: map[string]int{"delta": -41},
		headers: map[string]string{"Idempotency-Key": "take-too-much"}})
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	require.Equal(t, "insufficient_funds", out["code"])
	require.Equal(t, float64(40), balanceOf(t, r, userToken))

	w, out = httpDo(r, call{method: "GET", path: "/api/v1/me/notifications", token: userToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, out["notifications"], 1)

	w, out = httpDo(r, call{method: "GET", path: "/api/v1/admin/audit-logs", token: adminToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, out["data"], 1)

	w, out = httpDo(r, call{method: "GET", path: "/api/v1/admin/stats", token: adminToken})
	require.Equal(t, http.StatusOK, w.Code)
	stats := out["stats"].(map[string]interface{})
	require.Equal(t, float64(40), stats["points_outstanding"])
	require.Equal(t, float64(1), stats["ledger_entries"])
}

func TestReferralCodeAtRegistration(t *testing.T) {
	r, _ := setupRouterWithDB(t)
	hostToken := register(t, r, "host", "")

	w, out := httpDo(r, call{method: "GET", path: "/api/v1/me/referral-code", token: hostToken})
	require.Equal(t, http.StatusOK, w.Code)
	code := out["code"].(string)

	w, out = httpDo(r, call{method: "POST", path: "/api/v1/me/referral/apply", token: hostToken, body: map[string]string{"code": code}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "self_referral", out["code"])

	guestToken := register(t, r, "guest", strings.ToLower(code))
	require.Equal(t, float64(100), balanceOf(t, r, hostToken))

	w, out = httpDo(r, call{method: "POST", path: "/api/v1/me/referral/apply", token: guestToken, body: map[string]string{"code": code}})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "already_linked", out["code"])

	w, out = httpDo(r, call{method: "GET", path: "/api/v1/me/referrals", token: hostToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), out["total"])

	w, _ = httpDo(r, call{method: "POST", path: "/api/v1/me/session/sync", token: guestToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(100), balanceOf(t, r, hostToken))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _ := setupRouterWithDB(t)
	w, out := httpDo(r, call{method: "GET", path: "/api/v1/me/balance"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "unauthorized", out["code"])

	w, _ = httpDo(r, call{method: "GET", path: "/api/v1/admin/users", token: "not-a-jwt"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	userToken := register(t, r, "plain", "")
	w, _ = httpDo(r, call{method: "GET", path: "/api/v1/admin/users", token: userToken})
	require.Equal(t, http.StatusForbidden, w.Code)

	w, _ = httpDo(r, call{method: "POST", path: "/api/v1/me/evidence", token: userToken})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReviewAuditedWhenCreditFails(t *testing.T) {
	r, db := setupRouterWithDB(t)
	adminToken := login(t, r, "admin@example.com", "admin-password")
	userToken := register(t, r, "fined", "")

	// A negative value cannot land on an empty balance.
	task := &models.Task{Title: "Penalty", Points: -5, ExpiresAt: time.Now().Add(time.Hour),
		VerificationType: domain.VerificationManualReview, Active: true}
	require.NoError(t, db.Create(task).Error)

	w, out := httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/me/tasks/%d/start", task.ID), token: userToken})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assignmentID := idOf(t, out, "assignment")
	w, out = httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/me/assignments/%d/submit", assignmentID), token: userToken,
		body: map[string]string{}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	submissionID := idOf(t, out, "submission")

	w, out = httpDo(r, call{method: "POST", path: fmt.Sprintf("/api/v1/admin/submissions/%d/review", submissionID), token: adminToken,
		body: map[string]string{"decision": "approve"}})
	require.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())
	require.Equal(t, "insufficient_funds", out["code"])

	var ut models.UserTask
	require.NoError(t, db.First(&ut, assignmentID).Error)
	require.Equal(t, domain.TaskStateApproved, ut.Status)

	w, out = httpDo(r, call{method: "GET", path: "/api/v1/admin/audit-logs", token: adminToken})
	require.Equal(t, http.StatusOK, w.Code)
	logs := out["data"].([]interface{})
	require.Len(t, logs, 1)
	entry := logs[0].(map[string]interface{})
	require.Equal(t, "submission.review", entry["action"])
	require.Contains(t, entry["metadata"], "credit_error")
}

func TestAdminListsSpotifyAccounts(t *testing.T) {
	r, db := setupRouterWithDB(t)
	adminToken := login(t, r, "admin@example.com", "admin-password")
	freeToken := register(t, r, "casual", "")
	premiumToken := register(t, r, "audiophile", "")

	for _, acct := range []struct {
		token, product string
	}{{freeToken, "free"}, {premiumToken, "premium"}} {
		w, out := httpDo(r, call{method: "GET", path: "/api/v1/me/profile", token: acct.token})
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, db.Create(&models.ConnectedService{
			UserID:        idOf(t, out, "user"),
			ServiceName:   domain.ServiceSpotify,
			ServiceUserID: "sp-" + acct.product,
			DisplayName:   "DJ " + acct.product,
			Email:         acct.product + "@spotify.example.com",
			Product:       acct.product,
			IsPremium:     acct.product == "premium",
		}).Error)
	}

	w, _ := httpDo(r, call{method: "GET", path: "/api/v1/admin/spotify/users", token: freeToken})
	require.Equal(t, http.StatusForbidden, w.Code)

	w, out := httpDo(r, call{method: "GET", path: "/api/v1/admin/spotify/users", token: adminToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, float64(2), out["total"])
	rows := out["data"].([]interface{})
	require.Len(t, rows, 2)
	newest := rows[0].(map[string]interface{})
	require.Equal(t, "audiophile", newest["username"])
	require.Equal(t, "DJ premium", newest["display_name"])
	require.Equal(t, true, newest["is_premium"])

	w, out = httpDo(r, call{method: "GET", path: "/api/v1/admin/stats", token: adminToken})
	require.Equal(t, http.StatusOK, w.Code)
	stats := out["stats"].(map[string]interface{})
	require.Equal(t, float64(2), stats["spotify_connected"])
	require.Equal(t, float64(1), stats["spotify_premium"])
}
