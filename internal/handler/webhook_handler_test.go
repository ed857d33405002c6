package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hngpay/splitpay/internal/reconciler"
)

// mockReconciler implements NotificationHandler for testing
type mockReconciler struct {
	notifications []*reconciler.Notification
	err           error
}

func (m *mockReconciler) HandleNotification(ctx context.Context, n *reconciler.Notification) error {
	m.notifications = append(m.notifications, n)
	return m.err
}

func setupWebhookRouter(rec NotificationHandler, token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhooks/provider", NewWebhookHandler(rec, token).HandleProviderWebhook)
	return router
}

func postWebhook(router *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/webhooks/provider", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookExtractsChargeID(t *testing.T) {
	rec := &mockReconciler{}
	router := setupWebhookRouter(rec, "")

	w := postWebhook(router, `{"charges":[{"id":"CHAR_1","status":"PAID"}]}`, nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if len(rec.notifications) != 1 {
		t.Fatalf("Expected one notification, got %d", len(rec.notifications))
	}
	if rec.notifications[0].ChargeID != "CHAR_1" || rec.notifications[0].ReportedStatus != "PAID" {
		t.Errorf("Unexpected notification %+v", rec.notifications[0])
	}
}

func TestWebhookFlatPayloadShape(t *testing.T) {
	rec := &mockReconciler{}
	router := setupWebhookRouter(rec, "")

	postWebhook(router, `{"id":"CHAR_2","status":"DECLINED"}`, nil)

	if len(rec.notifications) != 1 || rec.notifications[0].ChargeID != "CHAR_2" {
		t.Fatalf("Expected CHAR_2 notification, got %+v", rec.notifications)
	}
}

func TestWebhookUnparseableBodyIsAcked(t *testing.T) {
	rec := &mockReconciler{}
	router := setupWebhookRouter(rec, "")

	w := postWebhook(router, `not json at all`, nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if len(rec.notifications) != 0 {
		t.Errorf("Expected no notifications for garbage body, got %d", len(rec.notifications))
	}
}

func TestWebhookProcessingFailureStillAcked(t *testing.T) {
	rec := &mockReconciler{err: errors.New("provider unreachable")}
	router := setupWebhookRouter(rec, "")

	w := postWebhook(router, `{"id":"CHAR_3","status":"PAID"}`, nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestWebhookTokenEnforced(t *testing.T) {
	rec := &mockReconciler{}
	router := setupWebhookRouter(rec, "secret-token")

	w := postWebhook(router, `{"id":"CHAR_4"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d without token, got %d", http.StatusUnauthorized, w.Code)
	}

	w = postWebhook(router, `{"id":"CHAR_4"}`, map[string]string{"x-webhook-token": "secret-token"})
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d with token, got %d", http.StatusOK, w.Code)
	}
	if len(rec.notifications) != 1 {
		t.Errorf("Expected one notification, got %d", len(rec.notifications))
	}
}
