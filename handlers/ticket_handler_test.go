package handlers

import (
	"context"
	"errors"
	"gigg-ticketing/models"
	"gigg-ticketing/services"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exportStore is the minimal ticket source for the export surface. listErr
// simulates a store failure while the response is already streaming.
type exportStore struct {
	tickets []models.Ticket
	listErr error
}

func (s *exportStore) ListTickets(_ context.Context) ([]models.Ticket, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tickets, nil
}

func (s *exportStore) TicketTypes(_ context.Context) (map[string]models.TicketType, error) {
	return map[string]models.TicketType{}, nil
}

func (s *exportStore) Search(_ context.Context, _ string, _ int) ([]models.Ticket, error) {
	return s.tickets, nil
}

func (s *exportStore) EventName(_ context.Context, _ string) string { return "Gigg Festival" }

func operatorEvent(method, target string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	e := &core.RequestEvent{}
	e.Request = httptest.NewRequest(method, target, nil)
	e.Response = rec

	auth := core.NewRecord(core.NewAuthCollection("users"))
	auth.Id = "op-1"
	e.Auth = auth
	return e, rec
}

func TestExport_WritesCSVAttachment(t *testing.T) {
	store := &exportStore{tickets: []models.Ticket{
		{TicketCode: "GIGG-AB12-CD34", Status: models.TicketStatusValid, BuyerName: "Ada Lovelace"},
	}}
	h := NewTicketHandler(nil, services.NewExportService(store))

	e, rec := operatorEvent(http.MethodGet, "/api/v1/tickets/export")
	require.NoError(t, h.Export(e))

	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "gigg-tickets-")
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "ticket_code,"))
	assert.Contains(t, body, "GIGG-AB12-CD34")
}

func TestExport_StoreFailureDoesNotDoubleRespond(t *testing.T) {
	store := &exportStore{listErr: errors.New("database is locked")}
	h := NewTicketHandler(nil, services.NewExportService(store))

	// headers are already on the wire when the stream breaks; returning an
	// error would make the framework write a second response into the body
	e, rec := operatorEvent(http.MethodGet, "/api/v1/tickets/export")
	require.NoError(t, h.Export(e))
	assert.Empty(t, rec.Body.String())
}

func TestExport_RequiresAuth(t *testing.T) {
	h := NewTicketHandler(nil, services.NewExportService(&exportStore{}))

	e, _ := operatorEvent(http.MethodGet, "/api/v1/tickets/export")
	e.Auth = nil
	assert.Error(t, h.Export(e))
}
