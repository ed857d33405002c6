package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hngpay/splitpay/internal/domain"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*PagBankGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw := NewPagBankGateway(&PagBankConfig{
		Token:         "test-token",
		BaseURL:       server.URL,
		ChargeTimeout: 5 * time.Second,
		StatusTimeout: 2 * time.Second,
	})
	return gw, server
}

func TestRequestRequiresToken(t *testing.T) {
	gw := NewPagBankGateway(&PagBankConfig{})

	_, err := gw.Request(context.Background(), http.MethodGet, "/charges/x", nil)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestRequestSendsBearerToken(t *testing.T) {
	var gotAuth string
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	})

	_, err := gw.Request(context.Background(), http.MethodGet, "/charges/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestRequestMapsHTTPErrorToProviderError(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error_messages":[{"code":"40002"}]}`))
	})

	_, err := gw.Request(context.Background(), http.MethodPost, "/charges", map[string]string{"a": "b"})
	require.Error(t, err)

	var provErr *domain.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusUnprocessableEntity, provErr.StatusCode)
	assert.Contains(t, provErr.Body, "40002")
	assert.ErrorIs(t, err, domain.ErrProviderRejected)
}

func TestRequestMapsTransportFailureToNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	gw := NewPagBankGateway(&PagBankConfig{
		Token:   "test-token",
		BaseURL: server.URL,
	})

	_, err := gw.Request(context.Background(), http.MethodGet, "/charges/x", nil)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestRequestTimeoutIsNetworkError(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gw.Request(ctx, http.MethodGet, "/charges/x", nil)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestCreateChargePix(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ORDER_ord-1", payload["reference_id"])

		w.Write([]byte(`{
			"id": "CHAR_123",
			"reference_id": "ORDER_ord-1",
			"status": "WAITING",
			"payment_method": {
				"type": "PIX",
				"expiration_date": "2026-08-28T15:04:05Z",
				"qr_code": {
					"text": "00020126pixcopypaste",
					"links": [{"rel": "qr_code.png", "href": "https://pix.example/qr.png", "media": "image/png"}]
				}
			}
		}`))
	})

	resp, err := gw.CreateCharge(context.Background(), &ChargeRequest{
		ReferenceID: "ORDER_ord-1",
		Amount:      10_000,
		Currency:    "BRL",
		Method:      domain.PaymentMethodPix,
		Pix:         &PixDetail{Expiration: 30 * time.Minute},
	})
	require.NoError(t, err)

	assert.Equal(t, "CHAR_123", resp.ChargeID)
	assert.Equal(t, StatusWaiting, resp.Status)
	assert.Equal(t, "00020126pixcopypaste", resp.QRCode)
	assert.Equal(t, "https://pix.example/qr.png", resp.QRCodeImage)
}

func TestCreateChargeBoleto(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "CHAR_456",
			"reference_id": "ORDER_ord-2",
			"status": "WAITING",
			"payment_method": {
				"type": "BOLETO",
				"boleto": {
					"due_date": "2026-08-31",
					"barcode": "03399876",
					"formatted_barcode": "03399.876"
				}
			},
			"links": [{"rel": "charge.pdf", "href": "https://boleto.example/slip.pdf", "media": "application/pdf"}]
		}`))
	})

	resp, err := gw.CreateCharge(context.Background(), &ChargeRequest{
		ReferenceID: "ORDER_ord-2",
		Amount:      25_000,
		Currency:    "BRL",
		Method:      domain.PaymentMethodBoleto,
		Boleto: &BoletoDetail{
			DueDate:     time.Now().AddDate(0, 0, 3),
			HolderName:  "Maria Souza",
			HolderTaxID: "12345678909",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "03399876", resp.Barcode)
	assert.Equal(t, "https://boleto.example/slip.pdf", resp.PDFURL)
	assert.Equal(t, "2026-08-31", resp.DueDate)
}

func TestCreateChargeOmitsEmptySplit(t *testing.T) {
	var payload map[string]any
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{"id": "CHAR_900", "reference_id": "ORDER_ord-9", "status": "WAITING"}`))
	})

	_, err := gw.CreateCharge(context.Background(), &ChargeRequest{
		ReferenceID: "ORDER_ord-9",
		Amount:      10_000,
		Currency:    "BRL",
		Method:      domain.PaymentMethodPix,
		Pix:         &PixDetail{Expiration: 30 * time.Minute},
	})
	require.NoError(t, err)
	assert.NotContains(t, payload, "splits")
}

func TestCreateChargeCarriesSplitInstruction(t *testing.T) {
	var payload map[string]any
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{"id": "CHAR_901", "reference_id": "ORDER_ord-9", "status": "WAITING"}`))
	})

	_, err := gw.CreateCharge(context.Background(), &ChargeRequest{
		ReferenceID: "ORDER_ord-9",
		Amount:      10_000,
		Currency:    "BRL",
		Method:      domain.PaymentMethodPix,
		Pix:         &PixDetail{Expiration: 30 * time.Minute},
		Split: domain.SplitRule{
			{AccountID: "acct_merchant", Amount: 9_500},
			{AccountID: "acct_platform", Amount: 500},
		},
	})
	require.NoError(t, err)

	splits, ok := payload["splits"].([]any)
	require.True(t, ok, "splits missing from payload")
	require.Len(t, splits, 2)

	first := splits[0].(map[string]any)
	assert.Equal(t, "acct_merchant", first["account_id"])
	assert.Equal(t, float64(9_500), first["amount"].(map[string]any)["value"])
}

func TestCreateChargeRequiresMethodDetail(t *testing.T) {
	gw := NewPagBankGateway(&PagBankConfig{Token: "test-token"})

	_, err := gw.CreateCharge(context.Background(), &ChargeRequest{
		ReferenceID: "ORDER_ord-3",
		Method:      domain.PaymentMethodCreditCard,
	})
	assert.Error(t, err)
}

func TestGetCharge(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges/CHAR_789", r.URL.Path)
		w.Write([]byte(`{
			"id": "CHAR_789",
			"reference_id": "ORDER_ord-4",
			"status": "PAID",
			"amount": {"value": 10000, "currency": "BRL"}
		}`))
	})

	info, err := gw.GetCharge(context.Background(), "CHAR_789")
	require.NoError(t, err)

	assert.Equal(t, StatusPaid, info.Status)
	assert.Equal(t, int64(10_000), info.Amount)
	assert.Equal(t, "ORDER_ord-4", info.ReferenceID)
}

func TestRedactSensitive(t *testing.T) {
	body := []byte(`{
		"payment_method": {
			"card": {"number": "4111111111111111", "security_code": "123", "holder": {"name": "Ana"}}
		},
		"amount": {"value": 10000}
	}`)

	redacted := string(redactSensitive(body))

	assert.NotContains(t, redacted, "4111111111111111")
	assert.NotContains(t, redacted, `"123"`)
	assert.Contains(t, redacted, "[REDACTED]")
	assert.Contains(t, redacted, "Ana")
}

func TestProviderStatusSettlement(t *testing.T) {
	cases := []struct {
		status ProviderStatus
		want   domain.TransactionStatus
	}{
		{StatusPaid, domain.TransactionStatusConfirmed},
		{StatusWaiting, domain.TransactionStatusPending},
		{StatusInAnalysis, domain.TransactionStatusPending},
		{StatusAuthorized, domain.TransactionStatusPending},
		{StatusDeclined, domain.TransactionStatusFailed},
		{StatusCanceled, domain.TransactionStatusFailed},
		{StatusRefunded, domain.TransactionStatusRefunded},
		{ProviderStatus("SOMETHING_NEW"), domain.TransactionStatusPending},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.status.Settlement(), "status %s", tc.status)
	}
}
