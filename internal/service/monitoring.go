package service

import (
	"context"
	"time"

	"tempest_bridge/internal/models"
)

// StatusSource is what MonitoringService reads; StreamService implements it.
type StatusSource interface {
	Snapshot() models.SessionStatus
	Latest() (models.ObservationRecord, bool)
}

type MonitoringService struct {
	source StatusSource
}

func NewMonitoringService(source StatusSource) *MonitoringService {
	return &MonitoringService{source: source}
}

// GetStatus returns the current session snapshot. Without a source it reports a
// DISCONNECTED baseline.
func (s *MonitoringService) GetStatus(ctx context.Context) (models.SessionStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.SessionStatus{}, err
	}
	if s.source == nil {
		return models.SessionStatus{State: "DISCONNECTED"}, nil
	}
	st := s.source.Snapshot()
	st.LastRecordAt = toUTC(st.LastRecordAt)
	st.UpdatedAt = toUTC(st.UpdatedAt)
	return st, nil
}

// Latest returns the last record emitted, if any.
func (s *MonitoringService) Latest(ctx context.Context) (models.ObservationRecord, bool) {
	if s.source == nil || ctx.Err() != nil {
		return models.ObservationRecord{}, false
	}
	return s.source.Latest()
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
