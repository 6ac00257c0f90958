package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"gigg-ticketing/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	app           *pocketbase.PocketBase
	exportService *services.ExportService
}

func NewTicketHandler(app *pocketbase.PocketBase, exportService *services.ExportService) *TicketHandler {
	return &TicketHandler{
		app:           app,
		exportService: exportService,
	}
}

// Search - Find tickets by code, buyer name or email
func (h *TicketHandler) Search(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	query := e.Request.URL.Query().Get("q")
	results, err := h.exportService.Search(e.Request.Context(), query)
	if err != nil {
		slog.Error("ticket search failed", "query", query, "error", err)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "search failed"})
	}

	return e.JSON(http.StatusOK, map[string]any{"query": query, "results": results})
}

// Export - Download every ticket as CSV
func (h *TicketHandler) Export(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	filename := services.ExportFilename(time.Now().UTC())
	e.Response.Header().Set("Content-Type", "text/csv")
	e.Response.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	// once streaming starts the status line is gone; a second response
	// would only corrupt the download, so failures are logged and the
	// truncated body is the client's signal
	if err := h.exportService.WriteCSV(e.Request.Context(), e.Response); err != nil {
		slog.Error("ticket export failed", "error", err)
	}
	return nil
}
