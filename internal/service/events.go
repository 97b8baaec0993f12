package service

import (
	"github.com/sirupsen/logrus"

	apperrors "github.com/YanwenWang1125/RealtorOS-sub000/internal/errors"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/metrics"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/repository"
)

// EventProcessor applies provider callback batches to message records.
// Processing is best-effort per event: a malformed or unresolvable event
// is dropped and the rest of the batch continues.
type EventProcessor struct {
	Messages repository.EmailMessageRepositoryInterface

	log *logrus.Entry
}

func NewEventProcessor(messages repository.EmailMessageRepositoryInterface) *EventProcessor {
	return &EventProcessor{
		Messages: messages,
		log:      logrus.WithField("component", "event-processor"),
	}
}

// BatchResult is the per-event outcome summary of one callback batch.
type BatchResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// ProcessBatch resolves each event to a message by provider message id
// and applies it. Events that match no message are dropped, logged, and
// counted as failed; they never abort the batch.
func (p *EventProcessor) ProcessBatch(events []*model.ProviderEvent) BatchResult {
	result := BatchResult{Total: len(events)}
	for _, ev := range events {
		if err := p.processEvent(ev); err != nil {
			result.Failed++
			metrics.WebhookEventsDropped.Inc()
			continue
		}
		result.Processed++
		metrics.WebhookEventsProcessed.WithLabelValues(ev.Type).Inc()
	}
	return result
}

func (p *EventProcessor) processEvent(ev *model.ProviderEvent) error {
	log := p.log.WithFields(logrus.Fields{
		"event_type":          ev.Type,
		"provider_message_id": ev.ProviderMessageID,
	})
	if ev.ProviderMessageID == "" {
		log.Warn("dropping event without provider message id")
		return apperrors.NewMessageNotFound("")
	}
	msg, err := p.Messages.GetByProviderMessageID(ev.ProviderMessageID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			log.Warn("dropping event: no matching message")
		} else {
			log.Errorf("failed to resolve message: %v", err)
		}
		return err
	}
	if err := p.Messages.ApplyEvent(msg.ID, ev); err != nil {
		log.Errorf("failed to apply event: %v", err)
		return err
	}
	log.WithField("message_id", msg.ID).Debug("event applied")
	return nil
}
