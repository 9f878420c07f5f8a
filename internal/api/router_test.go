package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/mstanton/labtrack/internal/auth"
	"github.com/mstanton/labtrack/internal/database"
	"github.com/mstanton/labtrack/internal/database/testutil"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	require.NoError(t, database.EnsureAdmin(db, database.BootstrapAdmin{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "admin-pass-123",
	}))

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-secret",
		Issuer:         "labtrack",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	router, err := NewRouter(Options{DB: db, JWT: jwt})
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, w.Body.String())
	return envelope.Data
}

func login(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeData(t, w)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestFullBorrowLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	// A new user registers and waits for approval.
	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"username":   "alice",
		"email":      "alice@example.com",
		"password":   "alice-pass-123",
		"first_name": "Alice",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	registration := decodeData(t, w)
	user := registration["user"].(map[string]any)
	userID := user["id"].(string)

	// Pending accounts cannot log in.
	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice", "password": "alice-pass-123",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	adminToken := login(t, r, "admin", "admin-pass-123")

	// Admin approves the registration.
	w = doJSON(t, r, http.MethodPost, "/api/users/"+userID+"/activate", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	aliceToken := login(t, r, "alice", "alice-pass-123")

	// Admin adds equipment.
	w = doJSON(t, r, http.MethodPost, "/api/products", adminToken, gin.H{
		"name":     "Oscilloscope",
		"category": "Instruments",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	productID := decodeData(t, w)["id"].(string)

	// Regular users cannot manage the catalog.
	w = doJSON(t, r, http.MethodPost, "/api/products", aliceToken, gin.H{
		"name": "Rogue", "category": "Instruments",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	// Alice requests the oscilloscope.
	due := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	w = doJSON(t, r, http.MethodPost, "/api/loans", aliceToken, gin.H{
		"product_id":           productID,
		"expected_return_date": due,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	loanID := decodeData(t, w)["id"].(string)

	// Only admins decide requests.
	w = doJSON(t, r, http.MethodPost, "/api/loans/"+loanID+"/approve", aliceToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/loans/"+loanID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "active", decodeData(t, w)["status"])

	// The product is now out.
	w = doJSON(t, r, http.MethodGet, "/api/products/"+productID, aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	product := decodeData(t, w)
	require.Equal(t, "borrowed", product["status"])
	require.EqualValues(t, 0, product["quantity_available"])

	// Alice has an approval notification waiting.
	w = doJSON(t, r, http.MethodGet, "/api/notifications/unread-count", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Positive(t, decodeData(t, w)["unread"].(float64))

	// Alice returns the item.
	w = doJSON(t, r, http.MethodPost, "/api/loans/"+loanID+"/return", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "returned", decodeData(t, w)["status"])

	w = doJSON(t, r, http.MethodGet, "/api/products/"+productID, aliceToken, nil)
	product = decodeData(t, w)
	require.Equal(t, "available", product["status"])
	require.EqualValues(t, 1, product["quantity_available"])

	// Reports remain admin territory.
	w = doJSON(t, r, http.MethodGet, "/api/reports/summary", aliceToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/reports/summary", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeData(t, w)
	require.EqualValues(t, 1, summary["returned_loans"])
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/bogus", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
}
