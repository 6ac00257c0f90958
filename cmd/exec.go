package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gigg-ticketing/config"
	"gigg-ticketing/handlers"
	"gigg-ticketing/security"
	"gigg-ticketing/services"
	"gigg-ticketing/services/processor"
	"gigg-ticketing/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"

	_ "gigg-ticketing/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub for crew broadcasts
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	// Payment processor client; one mode for the whole process
	processorCfg := &processor.Config{
		BaseURL:   cfg.ProcessorBaseURL,
		SecretKey: cfg.ProcessorSecretKey,
		Mode:      cfg.ProcessorMode,
		PNSubKey:  cfg.ProcessorPNSubKey,
		PNUUID:    cfg.ProcessorPNUUID,
		PNChannel: cfg.ProcessorPNChannel,
	}
	processorClient := processor.NewClient(processorCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	store := services.NewTicketStore(app)
	attendanceService := services.NewAttendanceService(store, redisClient, cfg.AttendanceCacheTTL)
	checkInService := services.NewCheckInService(store, attendanceService, pn, cfg.ActiveEventID)
	issueService := services.NewIssueService(store)
	reconcileService := services.NewReconcileService(processorClient, store, redisClient)
	reportService := services.NewReportService(store, cfg.FeeRate, cfg.FeeFixed)
	exportService := services.NewExportService(store)

	guard := security.NewOverrideGuard(cfg.OverridePINHash)
	limiter := security.NewRateLimiter(redisClient)

	// Payment-event listener: sets refund/chargeback flags as the processor
	// reports them, so the door learns about refunds without a rescan
	if cfg.ProcessorPNSubKey != "" {
		listener := processor.NewEventListener(processorCfg)
		go listener.Listen(ctx)
		go consumePaymentEvents(ctx, listener, store)
	}

	// Initialize handlers
	checkInHandler := handlers.NewCheckInHandler(app, checkInService, guard)
	ticketHandler := handlers.NewTicketHandler(app, exportService)
	dashboardHandler := handlers.NewDashboardHandler(app, attendanceService, issueService, reconcileService, reportService)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		go warmAttendance(attendanceService)

		// Check-in endpoints
		e.Router.POST("/api/v1/checkin", checkInHandler.CheckIn).
			BindFunc(limiter.PerMinute("checkin", int64(cfg.CheckInRateLimit)))
		e.Router.POST("/api/v1/checkin/override", checkInHandler.Override)
		e.Router.POST("/api/v1/checkin/reset", checkInHandler.Reset)

		// Ticket endpoints
		e.Router.GET("/api/v1/tickets/search", ticketHandler.Search)
		e.Router.GET("/api/v1/tickets/export", ticketHandler.Export)

		// Dashboard endpoints
		e.Router.GET("/api/v1/dashboard/summary", dashboardHandler.Summary)
		e.Router.GET("/api/v1/dashboard/attendance", dashboardHandler.Attendance)
		e.Router.GET("/api/v1/dashboard/issues", dashboardHandler.Issues)
		e.Router.GET("/api/v1/dashboard/reconciliation", dashboardHandler.Reconciliation)
		e.Router.GET("/api/v1/dashboard/revenue", dashboardHandler.Revenue)
		e.Router.GET("/api/v1/dashboard/mode", dashboardHandler.Mode)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy", "mode": cfg.ProcessorMode})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// warmAttendance primes the counters so the first dashboard request after a
// restart does not pay for the full log recount.
func warmAttendance(attendanceService *services.AttendanceService) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := attendanceService.Refresh(ctx); err != nil {
		slog.Warn("attendance warmup failed", "error", err)
	}
}

func consumePaymentEvents(ctx context.Context, listener *processor.EventListener, store *services.TicketStore) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-listener.Events():
			if ev == nil {
				continue
			}

			var (
				n   int
				err error
			)
			switch ev.Type {
			case "refund":
				n, err = store.MarkRefunded(ctx, ev.SessionID, ev.OccurredAt)
			case "chargeback":
				n, err = store.MarkChargeback(ctx, ev.SessionID, ev.OccurredAt)
			default:
				continue
			}
			if err != nil {
				slog.Error("payment event not applied", "type", ev.Type, "session", ev.SessionID, "error", err)
				continue
			}
			slog.Info("payment event applied", "type", ev.Type, "session", ev.SessionID, "tickets", n)
		}
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
