package service

import (
	"context"
	"time"

	"tempest_bridge/internal/models"
	"tempest_bridge/internal/repository"
)

// Stream is the pull-based record sequence handed to the host.
type Stream interface {
	Start(ctx context.Context) error
	Next(ctx context.Context) (models.ObservationRecord, error)
	Stop(ctx context.Context) error
}

// Monitoring exposes read-only session state and the latest record.
type Monitoring interface {
	GetStatus(ctx context.Context) (models.SessionStatus, error)
	Latest(ctx context.Context) (models.ObservationRecord, bool)
}

// EventLog exposes the session journal with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.SessionEvent, error)
}

// Authorization issues and checks operator bearer tokens.
type Authorization interface {
	GenerateToken(subject string, ttl time.Duration) (string, error)
	ParseToken(accessToken string) (string, error)
}

// Service aggregates the sub-services used by the HTTP layer and the host.
type Service struct {
	Stream
	Monitoring
	EventLog
	Authorization
}

// NewService wires the stream and journal into the sub-services. An empty jwtSecret
// leaves Authorization nil.
func NewService(stream *StreamService, repos *repository.Repository, jwtSecret string) *Service {
	s := &Service{
		Stream:     stream,
		Monitoring: NewMonitoringService(stream),
	}
	if repos != nil {
		s.EventLog = NewEventLogService(repos.EventRepo)
	}
	if jwtSecret != "" {
		s.Authorization = NewAuthService(jwtSecret)
	}
	return s
}
