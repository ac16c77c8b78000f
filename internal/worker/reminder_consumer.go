package worker

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/cashly/journey-api/internal/models"
	"github.com/cashly/journey-api/internal/rabbitmq"
	"github.com/cashly/journey-api/internal/services"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ReminderWorker consumes delayed re-engagement messages and nudges leads who
// abandoned mid-funnel. The message carries only the journey ID; everything
// else is re-read at delivery time so a resumed or completed journey is
// skipped.
type ReminderWorker struct {
	journeyService  *services.JourneyService
	leadService     *services.LeadService
	whatsappService *services.WhatsAppService
	eventService    *services.EventService
}

func NewReminderWorker(js *services.JourneyService, ls *services.LeadService, ws *services.WhatsAppService, es *services.EventService) *ReminderWorker {
	return &ReminderWorker{
		journeyService:  js,
		leadService:     ls,
		whatsappService: ws,
		eventService:    es,
	}
}

// StartWorker starts the consumer process
// ctx is used for graceful shutdown signal
func (w *ReminderWorker) StartWorker(ctx context.Context) error {
	if rabbitmq.Client == nil {
		return fmt.Errorf("RabbitMQ client not initialized")
	}

	ch := rabbitmq.Client.Channel
	qName := rabbitmq.ProcessingQueueName

	msgs, err := ch.Consume(
		qName,               // queue
		"reminder-worker-1", // consumer tag
		false,               // auto-ack (manual ack after successful process)
		false,               // exclusive
		false,               // no-local
		false,               // no-wait
		nil,                 // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf("Reminder worker started. Waiting for messages in %s", qName)

	go func() {
		for d := range msgs {
			w.processMessage(ctx, d)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received. Canceling reminder consumer...")

	if err := ch.Cancel("reminder-worker-1", false); err != nil {
		log.Printf("Error canceling consumer: %v", err)
	}
	return nil
}

// resumeGrace is how recently a heartbeat must have landed for the lead to
// count as back in the funnel.
const resumeGrace = 10 * time.Minute

func (w *ReminderWorker) processMessage(ctx context.Context, d amqp.Delivery) {
	journeyID, err := strconv.ParseInt(string(d.Body), 10, 64)
	if err != nil {
		log.Printf("Invalid journey ID in reminder message: %q. Discarding.", string(d.Body))
		d.Reject(false)
		return
	}

	// Late binding: read current state, not the state at publish time.
	journey, err := w.journeyService.GetByID(ctx, journeyID)
	if err != nil {
		log.Printf("Journey %d not found for reminder. Acknowledging to drop.", journeyID)
		d.Ack(false)
		return
	}

	if !w.shouldNudge(journey) {
		d.Ack(false)
		return
	}

	lead, err := w.leadService.GetByID(ctx, journey.LeadID)
	if err != nil || lead.Phone == "" {
		log.Printf("No phone on file for journey %d. Skipping reminder.", journeyID)
		d.Ack(false)
		return
	}

	firstName := lead.FirstName()
	message := fmt.Sprintf("Olá%s! Notamos que você não finalizou sua solicitação de crédito na *Cashly*. É rapidinho, volte quando puder para continuar. 😊", nameSuffix(firstName))

	if err := w.whatsappService.SendText(lead.Phone, message); err != nil {
		log.Printf("Failed to send reminder for journey %d: %v", journeyID, err)
		// Ack anyway: a failed nudge is not worth redelivery loops.
		d.Ack(false)
		return
	}

	w.eventService.Log(ctx, journey.ID, models.EventReminderSent, journey.CurrentStep, models.EventMetadata{
		Channel: "whatsapp",
	})

	d.Ack(false)
}

// shouldNudge decides whether the journey still deserves a reminder at
// delivery time.
func (w *ReminderWorker) shouldNudge(journey *models.Journey) bool {
	switch journey.Status {
	case models.JourneyAbandoned:
		// the case the reminder was scheduled for
	case models.JourneyInProgress:
		// Abandon beacons are best effort; an in_progress journey with a
		// stale heartbeat is treated the same as an abandoned one.
	default:
		return false
	}

	if journey.IsExpired(time.Now()) {
		return false
	}

	// A fresh heartbeat means the lead came back on their own.
	if journey.LastHeartbeatAt != nil && time.Since(*journey.LastHeartbeatAt) < resumeGrace {
		return false
	}

	return true
}

func nameSuffix(name string) string {
	if name == "" {
		return ""
	}
	return " " + name
}
