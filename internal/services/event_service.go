package services

import (
	"context"
	"log"

	"github.com/cashly/journey-api/internal/database"
	"github.com/cashly/journey-api/internal/models"
)

// EventService appends to the analytics log. Events are never mutated and a
// write failure never fails the surrounding request.
type EventService struct{}

func NewEventService() *EventService {
	return &EventService{}
}

// Log appends a journey event. Errors are logged and swallowed.
func (s *EventService) Log(ctx context.Context, journeyID int64, eventType string, step models.Step, metadata models.EventMetadata) {
	event := &models.JourneyEvent{
		JourneyID: journeyID,
		EventType: eventType,
		StepName:  string(step),
		Metadata:  metadata,
	}

	if _, err := database.DB.NewInsert().Model(event).Exec(ctx); err != nil {
		log.Printf("[EventService] Failed to log event %s for journey %d: %v", eventType, journeyID, err)
	}
}

// List returns the event log for one journey, oldest first.
func (s *EventService) List(ctx context.Context, journeyID int64) ([]models.JourneyEvent, error) {
	var events []models.JourneyEvent
	err := database.DB.NewSelect().
		Model(&events).
		Where("journey_id = ?", journeyID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}
