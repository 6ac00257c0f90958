package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"gigg-ticketing/services"
	"gigg-ticketing/services/processor"
	"gigg-ticketing/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type DashboardHandler struct {
	app               *pocketbase.PocketBase
	attendanceService *services.AttendanceService
	issueService      *services.IssueService
	reconcileService  *services.ReconcileService
	reportService     *services.ReportService
}

func NewDashboardHandler(
	app *pocketbase.PocketBase,
	attendanceService *services.AttendanceService,
	issueService *services.IssueService,
	reconcileService *services.ReconcileService,
	reportService *services.ReportService,
) *DashboardHandler {
	return &DashboardHandler{
		app:               app,
		attendanceService: attendanceService,
		issueService:      issueService,
		reconcileService:  reconcileService,
		reportService:     reportService,
	}
}

// Attendance - Current attendance counters
func (h *DashboardHandler) Attendance(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	counts, err := h.attendanceService.Counts(e.Request.Context())
	if err != nil {
		slog.Error("attendance lookup failed", "error", err)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "attendance unavailable"})
	}

	return e.JSON(http.StatusOK, counts)
}

// Issues - Scan all tickets for anomalies
func (h *DashboardHandler) Issues(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	report, err := h.issueService.Scan(e.Request.Context())
	if err != nil {
		slog.Error("issue scan failed", "error", err)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "issue scan failed"})
	}

	return e.JSON(http.StatusOK, report)
}

// Reconciliation - Compare local tickets against the processor ledger.
// Serves the recent cached report unless refresh=1 forces a live fetch.
func (h *DashboardHandler) Reconciliation(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	ctx := e.Request.Context()

	if e.Request.URL.Query().Get("refresh") != "1" {
		if cached := h.reconcileService.CachedReport(ctx); cached != nil {
			return e.JSON(http.StatusOK, cached)
		}
	}

	report, err := h.reconcileService.Reconcile(ctx)
	if err != nil {
		if errors.Is(err, processor.ErrUnavailable) || errors.Is(err, utils.ErrBreakerOpen) {
			// report the outage, never guess at the diff
			if cached := h.reconcileService.CachedReport(ctx); cached != nil {
				return e.JSON(http.StatusOK, map[string]any{"stale": true, "report": cached})
			}
			return e.JSON(http.StatusServiceUnavailable, map[string]string{"error": "payment processor unavailable"})
		}
		slog.Error("reconciliation failed", "error", err)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "reconciliation failed"})
	}

	return e.JSON(http.StatusOK, report)
}

// Mode - Which processor mode this deployment runs against
func (h *DashboardHandler) Mode(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	info, err := h.reconcileService.ModeInfo(e.Request.Context())
	if err != nil {
		if errors.Is(err, processor.ErrUnavailable) || errors.Is(err, utils.ErrBreakerOpen) {
			return e.JSON(http.StatusServiceUnavailable, map[string]string{"error": "payment processor unavailable"})
		}
		slog.Error("mode lookup failed", "error", err)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "mode lookup failed"})
	}

	return e.JSON(http.StatusOK, info)
}

// Revenue - Gross/fee/net breakdown per ticket type
func (h *DashboardHandler) Revenue(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	report, err := h.reportService.Build(e.Request.Context())
	if err != nil {
		slog.Error("revenue report failed", "error", err)
		return e.JSON(http.StatusInternalServerError, map[string]string{"error": "revenue report failed"})
	}

	return e.JSON(http.StatusOK, report)
}

// Summary - One call for the dashboard landing page
func (h *DashboardHandler) Summary(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	ctx := e.Request.Context()

	response := map[string]any{}

	if counts, err := h.attendanceService.Counts(ctx); err == nil {
		response["attendance"] = counts
	} else {
		slog.Warn("summary: attendance unavailable", "error", err)
	}

	if issues, err := h.issueService.Scan(ctx); err == nil {
		response["issue_count"] = len(issues.Issues)
		response["critical_issue_count"] = issues.CriticalCount()
	} else {
		slog.Warn("summary: issue scan unavailable", "error", err)
	}

	if revenue, err := h.reportService.Build(ctx); err == nil {
		response["total_gross"] = revenue.TotalGross
		response["total_net"] = revenue.TotalNet
	} else {
		slog.Warn("summary: revenue unavailable", "error", err)
	}

	if cached := h.reconcileService.CachedReport(ctx); cached != nil {
		response["sync_percentage"] = cached.SyncPercentage
	}

	return e.JSON(http.StatusOK, response)
}
