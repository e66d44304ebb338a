package repository

import (
	"context"
	"database/sql"
	"time"

	"tempest_bridge/internal/models"
)

// EventRepo is the append-only session journal.
type EventRepo interface {
	Append(ctx context.Context, e models.SessionEvent) error
	List(ctx context.Context, from, to time.Time, typ string, limit int) ([]models.SessionEvent, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
