package services

import (
	"context"
	"encoding/json"
	"fmt"
	"gigg-ticketing/models"
	"gigg-ticketing/monitoring"
	"gigg-ticketing/utils"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const reconcileCacheKey = "reconcile:last"

type processorGateway interface {
	ListCompletedSessions(ctx context.Context) ([]models.ProcessorSession, error)
	GetAccount(ctx context.Context) (*models.ModeInfo, error)
	Mode() string
}

type reconcileStore interface {
	SessionIDs(ctx context.Context) (map[string]int, error)
}

// ReconcileService diffs the processor's authoritative paid-session set
// against the local ticket store. Both sides are fetched for the one
// configured mode; the gateway guarantees sessions from the other mode
// never enter the comparison set.
type ReconcileService struct {
	gateway processorGateway
	store   reconcileStore
	breaker *utils.CircuitBreaker
	redis   *redis.Client

	// sessions younger than grace are excluded from the missing set: the
	// ticket-creating webhook may legitimately still be in flight, and the
	// processor's clock may sit slightly ahead of ours.
	grace time.Duration
}

func NewReconcileService(gateway processorGateway, store reconcileStore, redisClient *redis.Client) *ReconcileService {
	return &ReconcileService{
		gateway: gateway,
		store:   store,
		breaker: utils.NewCircuitBreaker("processor"),
		redis:   redisClient,
		grace:   5 * time.Minute,
	}
}

// Reconcile fetches both sides and computes the set difference keyed by
// session id. Read-only; safe to poll.
func (s *ReconcileService) Reconcile(ctx context.Context) (*models.ReconcileReport, error) {
	fetched, err := s.breaker.Execute(ctx, func() (any, error) {
		return s.gateway.ListCompletedSessions(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch processor sessions: %w", err)
	}
	sessions := fetched.([]models.ProcessorSession)

	local, err := s.store.SessionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch local sessions: %w", err)
	}

	localTickets := 0
	for _, n := range local {
		localTickets += n
	}

	cutoff := time.Now().Add(-s.grace)
	missing := []models.MissingTicket{}
	for _, sess := range sessions {
		if _, ok := local[sess.SessionID]; ok {
			continue
		}
		if sess.CreatedAt.After(cutoff) {
			continue
		}
		missing = append(missing, models.MissingTicket{
			SessionID:     sess.SessionID,
			CustomerEmail: sess.CustomerEmail,
			Amount:        sess.Amount,
			Currency:      sess.Currency,
			CreatedAt:     sess.CreatedAt,
		})
	}

	report := &models.ReconcileReport{
		TotalProcessorSessions: len(sessions),
		TotalLocalTickets:      localTickets,
		MissingTickets:         missing,
		SyncPercentage:         syncPercentage(len(sessions), len(missing)),
	}

	monitoring.SetSyncPercentage(report.SyncPercentage)
	s.cacheReport(ctx, report)

	return report, nil
}

// ModeInfo resolves the processor account and configured mode, degrading to
// an error the handler renders as "unavailable" rather than stalling.
func (s *ReconcileService) ModeInfo(ctx context.Context) (*models.ModeInfo, error) {
	info, err := s.breaker.Execute(ctx, func() (any, error) {
		return s.gateway.GetAccount(ctx)
	})
	if err != nil {
		return nil, err
	}
	return info.(*models.ModeInfo), nil
}

// CachedReport returns the most recent reconciliation snapshot, if one is
// still within its staleness bound.
func (s *ReconcileService) CachedReport(ctx context.Context) *models.ReconcileReport {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, reconcileCacheKey).Result()
	if err != nil {
		return nil
	}
	var report models.ReconcileReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil
	}
	return &report
}

func (s *ReconcileService) cacheReport(ctx context.Context, report *models.ReconcileReport) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, reconcileCacheKey, raw, 30*time.Second).Err(); err != nil {
		slog.Warn("reconcile cache write failed", "error", err)
	}
}

func syncPercentage(totalProcessor, missing int) int {
	if totalProcessor == 0 {
		return 100
	}
	matched := totalProcessor - missing
	return int(math.Round(float64(matched) / float64(totalProcessor) * 100))
}
