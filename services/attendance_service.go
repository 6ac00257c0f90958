package services

import (
	"context"
	"fmt"
	"gigg-ticketing/models"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attendanceTotalKey = "attendance:total"
	attendanceZoneKey  = "attendance:zone"
)

type attendanceStore interface {
	AttendanceFromLog(ctx context.Context) (total int, zone int, err error)
}

// AttendanceService serves the live headcount. The audit log is the source
// of truth; Redis only caches the derived numbers for dashboard reads with
// bounded staleness, and every cached value is recomputable from the log.
type AttendanceService struct {
	store attendanceStore
	redis *redis.Client
	ttl   time.Duration
}

func NewAttendanceService(store attendanceStore, redisClient *redis.Client, ttl time.Duration) *AttendanceService {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &AttendanceService{store: store, redis: redisClient, ttl: ttl}
}

// Counts returns the cached headcount when fresh, recomputing from the log
// on a miss.
func (s *AttendanceService) Counts(ctx context.Context) (*models.Attendance, error) {
	if s.redis != nil {
		total, errT := s.redis.Get(ctx, attendanceTotalKey).Result()
		zone, errZ := s.redis.Get(ctx, attendanceZoneKey).Result()
		if errT == nil && errZ == nil {
			t, err1 := strconv.Atoi(total)
			z, err2 := strconv.Atoi(zone)
			if err1 == nil && err2 == nil {
				return &models.Attendance{Total: t, Zone: z, UpdatedAt: time.Now()}, nil
			}
		}
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the counters from the audit log and rewrites the cache.
// Called after every committed transition so devices see their own count.
func (s *AttendanceService) Refresh(ctx context.Context) (*models.Attendance, error) {
	total, zone, err := s.store.AttendanceFromLog(ctx)
	if err != nil {
		return nil, fmt.Errorf("recompute attendance: %w", err)
	}

	if s.redis != nil {
		s.redis.Set(ctx, attendanceTotalKey, total, s.ttl)
		s.redis.Set(ctx, attendanceZoneKey, zone, s.ttl)
	}

	return &models.Attendance{Total: total, Zone: zone, UpdatedAt: time.Now()}, nil
}
