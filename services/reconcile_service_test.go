package services

import (
	"context"
	"errors"
	"gigg-ticketing/models"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ListCompletedSessions(ctx context.Context) ([]models.ProcessorSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProcessorSession), args.Error(1)
}

func (m *mockGateway) GetAccount(ctx context.Context) (*models.ModeInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ModeInfo), args.Error(1)
}

func (m *mockGateway) Mode() string { return models.ModeTest }

func oldSession(id, email string, amount int64) models.ProcessorSession {
	return models.ProcessorSession{
		SessionID:     id,
		CustomerEmail: email,
		Amount:        decimal.NewFromInt(amount),
		Currency:      "eur",
		Status:        "complete",
		CreatedAt:     time.Now().Add(-time.Hour),
	}
}

func TestReconcile_MissingTickets(t *testing.T) {
	gateway := &mockGateway{}
	gateway.On("ListCompletedSessions", mock.Anything).Return([]models.ProcessorSession{
		oldSession("cs_1", "a@example.com", 25000),
		oldSession("cs_2", "b@example.com", 12000),
		oldSession("cs_3", "c@example.com", 12000),
		oldSession("cs_4", "d@example.com", 25000),
	}, nil)

	store := newFakeStore()
	for _, code := range []string{"GIGG-0000-0001", "GIGG-0000-0002", "GIGG-0000-0003"} {
		store.tickets[code] = validTicket(code, "std")
	}
	store.tickets["GIGG-0000-0001"].ProcessorSessionID = "cs_1"
	store.tickets["GIGG-0000-0002"].ProcessorSessionID = "cs_2"
	store.tickets["GIGG-0000-0003"].ProcessorSessionID = "cs_3"

	svc := NewReconcileService(gateway, store, nil)
	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalProcessorSessions)
	assert.Equal(t, 3, report.TotalLocalTickets)
	require.Len(t, report.MissingTickets, 1)
	assert.Equal(t, "cs_4", report.MissingTickets[0].SessionID)
	assert.Equal(t, "d@example.com", report.MissingTickets[0].CustomerEmail)
	assert.Equal(t, int64(25000), report.MissingTickets[0].Amount.IntPart())
	// round(3/4*100) = 75
	assert.Equal(t, 75, report.SyncPercentage)
}

func TestReconcile_FullySynced(t *testing.T) {
	gateway := &mockGateway{}
	gateway.On("ListCompletedSessions", mock.Anything).Return([]models.ProcessorSession{
		oldSession("cs_1", "a@example.com", 100),
	}, nil)

	store := newFakeStore()
	store.tickets["GIGG-0000-0001"] = validTicket("GIGG-0000-0001", "std")
	store.tickets["GIGG-0000-0001"].ProcessorSessionID = "cs_1"

	report, err := NewReconcileService(gateway, store, nil).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.MissingTickets)
	assert.Equal(t, 100, report.SyncPercentage)
}

func TestReconcile_DuplicateSessionCountsEveryTicket(t *testing.T) {
	gateway := &mockGateway{}
	gateway.On("ListCompletedSessions", mock.Anything).Return([]models.ProcessorSession{
		oldSession("cs_dup", "a@example.com", 25000),
	}, nil)

	// two tickets minted off one session: the local total must report both
	// rows, not one per distinct session id
	store := newFakeStore()
	store.tickets["GIGG-0000-0001"] = validTicket("GIGG-0000-0001", "std")
	store.tickets["GIGG-0000-0002"] = validTicket("GIGG-0000-0002", "std")
	store.tickets["GIGG-0000-0001"].ProcessorSessionID = "cs_dup"
	store.tickets["GIGG-0000-0002"].ProcessorSessionID = "cs_dup"

	report, err := NewReconcileService(gateway, store, nil).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalLocalTickets)
	assert.Empty(t, report.MissingTickets)
}

func TestReconcile_GraceWindowForFreshSessions(t *testing.T) {
	fresh := oldSession("cs_new", "new@example.com", 100)
	fresh.CreatedAt = time.Now().Add(-30 * time.Second)

	gateway := &mockGateway{}
	gateway.On("ListCompletedSessions", mock.Anything).Return([]models.ProcessorSession{fresh}, nil)

	// a session completed seconds ago has no ticket yet, and that is not a
	// discrepancy: the creating webhook may still be in flight
	report, err := NewReconcileService(gateway, newFakeStore(), nil).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.MissingTickets)
}

func TestReconcile_ProcessorDown(t *testing.T) {
	gateway := &mockGateway{}
	gateway.On("ListCompletedSessions", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := NewReconcileService(gateway, newFakeStore(), nil).Reconcile(context.Background())
	assert.Error(t, err)
}

func TestModeInfo(t *testing.T) {
	gateway := &mockGateway{}
	gateway.On("GetAccount", mock.Anything).Return(&models.ModeInfo{
		Mode: models.ModeTest, IsTestMode: true, AccountID: "acct_42",
	}, nil)

	info, err := NewReconcileService(gateway, newFakeStore(), nil).ModeInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, info.IsTestMode)
	assert.Equal(t, "acct_42", info.AccountID)
}

func TestSyncPercentage(t *testing.T) {
	assert.Equal(t, 100, syncPercentage(0, 0))
	assert.Equal(t, 100, syncPercentage(10, 0))
	assert.Equal(t, 67, syncPercentage(3, 1))
	assert.Equal(t, 0, syncPercentage(5, 5))
}
