package services

import (
	"context"
	"gigg-ticketing/models"
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "gigg-ticketing/migrations"
)

// storeFixture runs the real migrations in a throwaway PocketBase app so the
// store's SQL and the schema are exercised together.
type storeFixture struct {
	app   *tests.TestApp
	store *TicketStore
	event *core.Record
	vip   *core.Record
	std   *core.Record
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()

	app, err := tests.NewTestAppWithConfig(core.BaseAppConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	events, err := app.FindCollectionByNameOrId("events")
	require.NoError(t, err)
	event := core.NewRecord(events)
	event.Set("name", "Gigg Festival")
	event.Set("status", "active")
	require.NoError(t, app.Save(event))

	typesCol, err := app.FindCollectionByNameOrId("ticket_types")
	require.NoError(t, err)

	vip := core.NewRecord(typesCol)
	vip.Set("name", "VIP Weekend")
	vip.Set("code", "VIP")
	vip.Set("price", 25000)
	vip.Set("capacity", 100)
	vip.Set("zone_access", true)
	vip.Set("event", event.Id)
	require.NoError(t, app.Save(vip))

	std := core.NewRecord(typesCol)
	std.Set("name", "Standard")
	std.Set("code", "STD")
	std.Set("price", 12000)
	std.Set("capacity", 500)
	std.Set("event", event.Id)
	require.NoError(t, app.Save(std))

	return &storeFixture{app: app, store: NewTicketStore(app), event: event, vip: vip, std: std}
}

func (f *storeFixture) seedTicket(t *testing.T, code string, ticketType *core.Record, sessionID string) *core.Record {
	t.Helper()
	col, err := f.app.FindCollectionByNameOrId("tickets")
	require.NoError(t, err)
	rec := core.NewRecord(col)
	rec.Set("ticket_code", code)
	rec.Set("ticket_type", ticketType.Id)
	rec.Set("event", f.event.Id)
	rec.Set("buyer_name", "Ada Lovelace")
	rec.Set("buyer_email", "ada@example.com")
	rec.Set("status", models.TicketStatusValid)
	rec.Set("processor_session_id", sessionID)
	require.NoError(t, f.app.Save(rec))
	return rec
}

func TestTicketStore_MarkUsedSingleWinner(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	seeded := f.seedTicket(t, "GIGG-AB12-CD34", f.vip, "cs_1")

	ticket, err := f.store.FindByCode(ctx, "GIGG-AB12-CD34")
	require.NoError(t, err)
	assert.Equal(t, seeded.Id, ticket.ID)
	assert.Equal(t, models.TicketStatusValid, ticket.Status)
	assert.Nil(t, ticket.CheckedInAt)

	ok, err := f.store.MarkUsed(ctx, ticket.ID, "op-1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	// the conditional update matches no row the second time
	ok, err = f.store.MarkUsed(ctx, ticket.ID, "op-2", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	used, err := f.store.FindByCode(ctx, "GIGG-AB12-CD34")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusUsed, used.Status)
	require.NotNil(t, used.CheckedInAt)
	assert.Equal(t, "op-1", used.CheckedInBy)
}

func TestTicketStore_AuditLogRoundTrip(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	vipTicket := f.seedTicket(t, "GIGG-AAAA-0001", f.vip, "cs_1")
	stdTicket := f.seedTicket(t, "GIGG-BBBB-0002", f.std, "cs_2")

	require.NoError(t, f.store.InsertCheckInEvent(ctx, &models.CheckInEvent{
		TicketID:   vipTicket.Id,
		OperatorID: "op-1",
		Method:     models.CheckInMethodQR,
	}))
	require.NoError(t, f.store.InsertCheckInEvent(ctx, &models.CheckInEvent{
		TicketID:   stdTicket.Id,
		OperatorID: "op-1",
		Method:     models.CheckInMethodManual,
	}))

	total, zone, err := f.store.AttendanceFromLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, zone)

	// a reset appends, never deletes, and the recount reflects it
	require.NoError(t, f.store.InsertCheckInEvent(ctx, &models.CheckInEvent{
		TicketID:   vipTicket.Id,
		OperatorID: "admin-1",
		Method:     models.CheckInMethodReset,
		Note:       "scanned the wrong guest",
	}))

	total, zone, err = f.store.AttendanceFromLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, zone)
}

func TestTicketStore_ResetCheckIn(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	seeded := f.seedTicket(t, "GIGG-CCCC-0003", f.std, "cs_3")

	ok, err := f.store.MarkUsed(ctx, seeded.Id, "op-1", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.store.ResetCheckIn(ctx, seeded.Id)
	require.NoError(t, err)
	assert.True(t, ok)

	// a valid ticket has nothing to reset
	ok, err = f.store.ResetCheckIn(ctx, seeded.Id)
	require.NoError(t, err)
	assert.False(t, ok)

	// and is redeemable again
	ok, err = f.store.MarkUsed(ctx, seeded.Id, "op-2", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTicketStore_SessionIDsAndRefundFlags(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.seedTicket(t, "GIGG-AAAA-0001", f.std, "cs_dup")
	f.seedTicket(t, "GIGG-BBBB-0002", f.std, "cs_dup")
	f.seedTicket(t, "GIGG-CCCC-0003", f.std, "cs_solo")

	counts, err := f.store.SessionIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cs_dup": 2, "cs_solo": 1}, counts)

	n, err := f.store.MarkRefunded(ctx, "cs_dup", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// the flag only sets once
	n, err = f.store.MarkRefunded(ctx, "cs_dup", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ticket, err := f.store.FindByCode(ctx, "GIGG-AAAA-0001")
	require.NoError(t, err)
	assert.NotNil(t, ticket.RefundedAt)
	assert.False(t, ticket.Redeemable())
}
