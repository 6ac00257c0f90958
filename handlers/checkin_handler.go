package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"gigg-ticketing/models"
	"gigg-ticketing/security"
	"gigg-ticketing/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type CheckInHandler struct {
	app            *pocketbase.PocketBase
	checkInService *services.CheckInService
	guard          *security.OverrideGuard
}

func NewCheckInHandler(app *pocketbase.PocketBase, checkInService *services.CheckInService, guard *security.OverrideGuard) *CheckInHandler {
	return &CheckInHandler{
		app:            app,
		checkInService: checkInService,
		guard:          guard,
	}
}

// CheckIn - Redeem a ticket at the door
func (h *CheckInHandler) CheckIn(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		TicketCode string `json:"ticket_code"`
		Method     string `json:"method"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TicketCode == "" {
		return apis.NewBadRequestError("Ticket code required", nil)
	}
	method := req.Method
	if method == "" {
		method = models.CheckInMethodManual
	}
	if method != models.CheckInMethodManual && method != models.CheckInMethodQR {
		return apis.NewBadRequestError("Unknown check-in method", nil)
	}

	result := h.checkInService.CheckIn(e.Request.Context(), req.TicketCode, method, e.Auth.Id)
	if result.Outcome == models.CheckInError {
		slog.Error("check-in failed", "code", result.TicketCode, "error", result.Err)
		return e.JSON(http.StatusInternalServerError, result)
	}

	// denials are ordinary results for the operator screen, not HTTP errors
	return e.JSON(http.StatusOK, result)
}

// Override - Admit a flagged ticket anyway; requires the override PIN and a note
func (h *CheckInHandler) Override(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if !h.guard.Enabled() {
		return apis.NewForbiddenError("Overrides are disabled", nil)
	}

	var req struct {
		TicketCode string `json:"ticket_code"`
		PIN        string `json:"pin"`
		Note       string `json:"note"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := h.guard.Verify(req.PIN); err != nil {
		return apis.NewForbiddenError("Invalid override PIN", nil)
	}

	result, err := h.checkInService.Override(e.Request.Context(), req.TicketCode, e.Auth.Id, req.Note)
	if err != nil {
		if errors.Is(err, services.ErrNoteRequired) {
			return apis.NewBadRequestError("A note is required for overrides", nil)
		}
		slog.Error("override failed", "code", req.TicketCode, "error", err)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "override failed"})
	}

	return e.JSON(http.StatusOK, result)
}

// Reset - Undo a check-in so the ticket can be redeemed again
func (h *CheckInHandler) Reset(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if !h.guard.Enabled() {
		return apis.NewForbiddenError("Resets are disabled", nil)
	}

	var req struct {
		TicketCode string `json:"ticket_code"`
		PIN        string `json:"pin"`
		Note       string `json:"note"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if err := h.guard.Verify(req.PIN); err != nil {
		return apis.NewForbiddenError("Invalid override PIN", nil)
	}

	counts, err := h.checkInService.Reset(e.Request.Context(), req.TicketCode, e.Auth.Id, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoteRequired):
			return apis.NewBadRequestError("A note is required for resets", nil)
		case errors.Is(err, services.ErrInvalidFormat):
			return apis.NewBadRequestError("Invalid ticket code", nil)
		case errors.Is(err, services.ErrTicketNotFound):
			return apis.NewNotFoundError("Ticket not found", nil)
		case errors.Is(err, services.ErrNotCheckedIn):
			return apis.NewBadRequestError("Ticket is not checked in", nil)
		}
		slog.Error("reset failed", "code", req.TicketCode, "error", err)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "reset failed"})
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Check-in reset", "attendance": counts})
}
