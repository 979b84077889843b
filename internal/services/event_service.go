package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/user-api/internal/database"
	"github.com/isdelr/user-api/internal/models"
	"github.com/rs/zerolog/log"
)

// MaxEventsLimit caps the number of events returned by one query.
const MaxEventsLimit = 100

// EventPublisher fans recorded events out to live subscribers.
type EventPublisher interface {
	Publish(event models.Event)
}

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, userID *string) (models.Event, error)
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
}

// EventService provides business logic for event management.
type EventService struct {
	db        *sql.DB
	dialect   database.Dialect
	publisher EventPublisher
}

// NewEventService creates a new EventService. publisher may be nil.
func NewEventService(db *database.DB, publisher EventPublisher) *EventService {
	return &EventService{db: db.DB, dialect: db.Dialect, publisher: publisher}
}

// CreateEvent logs a new event to the database and publishes it.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, userID *string) (models.Event, error) {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		UserID:    userID,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	query := s.dialect.Rebind("INSERT INTO events (id, type, level, message, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, event.ID, event.Type, event.Level, event.Message, event.UserID, event.CreatedAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("db error: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(event)
	}
	return event, nil
}

// GetRecentEvents retrieves the most recent events from the database.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > MaxEventsLimit {
		limit = MaxEventsLimit
	}

	query := s.dialect.Rebind("SELECT id, type, level, message, user_id, created_at FROM events ORDER BY created_at DESC, id DESC LIMIT ?")
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			event  models.Event
			userID sql.NullString
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &userID, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if userID.Valid {
			event.UserID = &userID.String
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return events, nil
}

// recordEvent writes an event without failing the caller.
func recordEvent(ctx context.Context, events EventServiceProvider, eventType, level, message string, userID *string) {
	if events == nil {
		return
	}
	if _, err := events.CreateEvent(ctx, eventType, level, message, userID); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record event")
	}
}
