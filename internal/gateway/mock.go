package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider implements Provider for tests and local development
type MockProvider struct {
	config  *MockProviderConfig
	charges sync.Map
	mu      sync.RWMutex
}

// MockProviderConfig holds configuration for the mock provider
type MockProviderConfig struct {
	// SuccessRate is the probability a charge is accepted (0.0 to 1.0)
	SuccessRate float64

	// DelayMs is the simulated processing delay in milliseconds
	DelayMs int

	// InitialStatus is the status assigned to accepted charges. Defaults to
	// WAITING for pix and boleto, PAID for cards.
	InitialStatus ProviderStatus

	// CreateErr, when set, makes every CreateCharge fail with it
	CreateErr error

	// GetErr, when set, makes every GetCharge fail with it
	GetErr error
}

// DefaultMockProviderConfig returns default configuration
func DefaultMockProviderConfig() *MockProviderConfig {
	return &MockProviderConfig{
		SuccessRate: 1.0,
		DelayMs:     0,
	}
}

// NewMockProvider creates a new mock provider
func NewMockProvider(config *MockProviderConfig) *MockProvider {
	if config == nil {
		config = DefaultMockProviderConfig()
	}
	if config.SuccessRate < 0 {
		config.SuccessRate = 0
	}
	if config.SuccessRate > 1 {
		config.SuccessRate = 1
	}

	return &MockProvider{
		config: config,
	}
}

// Name returns the provider name
func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) delay(ctx context.Context) error {
	if m.config.DelayMs <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(m.config.DelayMs) * time.Millisecond):
		return nil
	}
}

// CreateCharge simulates a charge submission
func (m *MockProvider) CreateCharge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}
	if err := m.delay(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	createErr := m.config.CreateErr
	successRate := m.config.SuccessRate
	initialStatus := m.config.InitialStatus
	m.mu.RUnlock()

	if createErr != nil {
		return nil, createErr
	}

	chargeID := fmt.Sprintf("mock_chr_%s", uuid.New().String()[:8])

	status := initialStatus
	if status == "" {
		if rand.Float64() >= successRate {
			status = StatusDeclined
		} else if req.Card != nil {
			status = StatusPaid
		} else {
			status = StatusWaiting
		}
	}

	resp := &ChargeResponse{
		ChargeID:    chargeID,
		ReferenceID: req.ReferenceID,
		Status:      status,
	}
	if req.Pix != nil {
		resp.QRCode = fmt.Sprintf("00020126mockpix%s", chargeID)
		resp.QRCodeImage = fmt.Sprintf("https://mock.local/qr/%s.png", chargeID)
		resp.ExpiresAt = time.Now().Add(req.Pix.Expiration).Format(time.RFC3339)
	}
	if req.Boleto != nil {
		resp.Barcode = fmt.Sprintf("03399%s", uuid.New().String()[:20])
		resp.FormattedBarcode = resp.Barcode
		resp.PDFURL = fmt.Sprintf("https://mock.local/boleto/%s.pdf", chargeID)
		resp.DueDate = req.Boleto.DueDate.Format("2006-01-02")
	}

	m.charges.Store(chargeID, &ChargeInfo{
		ChargeID:    chargeID,
		ReferenceID: req.ReferenceID,
		Status:      status,
		Amount:      req.Amount,
	})

	return resp, nil
}

// GetCharge returns the stored charge state
func (m *MockProvider) GetCharge(ctx context.Context, chargeID string) (*ChargeInfo, error) {
	if chargeID == "" {
		return nil, fmt.Errorf("charge id is required")
	}
	if err := m.delay(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	getErr := m.config.GetErr
	m.mu.RUnlock()
	if getErr != nil {
		return nil, getErr
	}

	stored, ok := m.charges.Load(chargeID)
	if !ok {
		return nil, fmt.Errorf("charge not found: %s", chargeID)
	}
	info := stored.(*ChargeInfo)
	copied := *info
	return &copied, nil
}

// SetChargeStatus moves a stored charge to a new status, simulating a
// provider-side settlement event (test helper)
func (m *MockProvider) SetChargeStatus(chargeID string, status ProviderStatus) error {
	stored, ok := m.charges.Load(chargeID)
	if !ok {
		return fmt.Errorf("charge not found: %s", chargeID)
	}
	info := stored.(*ChargeInfo)
	info.Status = status
	m.charges.Store(chargeID, info)
	return nil
}

// SetCreateErr injects a submission failure (test helper)
func (m *MockProvider) SetCreateErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.CreateErr = err
}

// SetGetErr injects a status fetch failure (test helper)
func (m *MockProvider) SetGetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.GetErr = err
}
