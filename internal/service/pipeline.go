package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/YanwenWang1125/RealtorOS-sub000/internal/errors"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/metrics"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/queue"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/repository"
)

// EventPublisher is the optional lifecycle event feed.
type EventPublisher interface {
	Publish(event string, data interface{}) error
}

// Pipeline runs the generate -> dispatch -> complete flow for every due
// follow-up. One cycle claims all due work up front, then processes the
// claimed follow-ups sequentially; a failure in one follow-up's pipeline
// never affects the others.
type Pipeline struct {
	FollowUps repository.FollowUpRepositoryInterface
	Messages  repository.EmailMessageRepositoryInterface
	Leads     repository.LeadRepositoryInterface
	Agents    repository.AgentRepositoryInterface
	Generator ContentGenerator
	Sender    EmailSender
	Events    EventPublisher
	Now       func() time.Time

	log *logrus.Entry
}

func NewPipeline(
	followUps repository.FollowUpRepositoryInterface,
	messages repository.EmailMessageRepositoryInterface,
	leads repository.LeadRepositoryInterface,
	agents repository.AgentRepositoryInterface,
	generator ContentGenerator,
	sender EmailSender,
	events EventPublisher,
) *Pipeline {
	return &Pipeline{
		FollowUps: followUps,
		Messages:  messages,
		Leads:     leads,
		Agents:    agents,
		Generator: generator,
		Sender:    sender,
		Events:    events,
		Now:       time.Now,
		log:       logrus.WithField("component", "pipeline"),
	}
}

// RunCycle processes all currently due follow-ups and returns how many
// were completed.
func (p *Pipeline) RunCycle(ctx context.Context) (int, error) {
	claimed, err := p.FollowUps.ClaimDue(p.Now())
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, nil
	}
	p.log.Infof("claimed %d due follow-ups", len(claimed))

	completed := 0
	for _, followUp := range claimed {
		if err := ctx.Err(); err != nil {
			// Shutting down: release what we have not touched yet.
			p.release(followUp)
			continue
		}
		if p.processOne(ctx, followUp) {
			completed++
		}
	}
	p.log.Infof("cycle finished: %d of %d follow-ups completed", completed, len(claimed))
	return completed, nil
}

// processOne runs the four-step pipeline for a single claimed follow-up.
// It returns true only when the follow-up was marked completed.
func (p *Pipeline) processOne(ctx context.Context, followUp *model.FollowUp) bool {
	log := p.log.WithFields(logrus.Fields{"follow_up": followUp.ID, "lead": followUp.LeadID})

	// Step 1: resolve the lead and agent. A missing lead is not an
	// error; the follow-up is released untouched and cleaned up later by
	// the deletion cascade.
	lead, err := p.Leads.GetByID(followUp.LeadID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			log.Info("lead no longer exists, skipping follow-up")
		} else {
			log.Errorf("failed to resolve lead: %v", err)
		}
		p.release(followUp)
		return false
	}
	agent, err := p.Agents.GetByID(followUp.AgentID)
	if err != nil {
		log.Warnf("failed to resolve agent, sending unsigned: %v", err)
		agent = &model.Agent{ID: followUp.AgentID}
	}

	// Step 2: generate content. The generator contract is that it never
	// fails outward; the guard below covers a misbehaving implementation.
	content, err := p.Generator.Generate(ctx, agent, lead, followUp)
	if err != nil {
		content = FallbackContent(agent, lead, followUp)
	}

	// Step 3: record the attempt, then dispatch.
	msg := &model.EmailMessage{
		AgentID:    followUp.AgentID,
		LeadID:     lead.ID,
		FollowUpID: followUp.ID,
		Recipient:  lead.Email,
		Subject:    content.Subject,
		Body:       content.Body,
		Status:     model.MessageStatusQueued,
	}
	if err := p.Messages.Create(msg); err != nil {
		log.Errorf("failed to create message record: %v", err)
		p.release(followUp)
		return false
	}

	providerID, err := p.Sender.Send(ctx, msg.Recipient, msg.Subject, msg.Body)
	if err != nil {
		log.Warnf("dispatch failed: %v", err)
		if uerr := p.Messages.MarkFailed(msg.ID, err.Error()); uerr != nil {
			log.Errorf("failed to record dispatch failure: %v", uerr)
		}
		metrics.EmailsFailed.Inc()
		p.publish(queue.EventEmailFailed, map[string]string{
			"message_id":   msg.ID,
			"follow_up_id": followUp.ID,
			"lead_id":      lead.ID,
			"error":        err.Error(),
		})
		// Left pending so the next cycle retries.
		p.release(followUp)
		return false
	}

	now := p.Now()
	if err := p.Messages.MarkSent(msg.ID, providerID, now); err != nil {
		log.Errorf("failed to mark message sent: %v", err)
		p.release(followUp)
		return false
	}
	metrics.EmailsSent.Inc()

	// Step 4: complete the follow-up.
	if err := p.FollowUps.MarkCompleted(followUp.ID, msg.ID, now); err != nil {
		log.Errorf("failed to complete follow-up: %v", err)
		return false
	}
	metrics.FollowUpsCompleted.Inc()
	p.publish(queue.EventFollowUpCompleted, map[string]string{
		"follow_up_id": followUp.ID,
		"lead_id":      lead.ID,
		"message_id":   msg.ID,
	})
	log.WithField("provider_message_id", providerID).Info("follow-up completed")
	return true
}

func (p *Pipeline) release(followUp *model.FollowUp) {
	if err := p.FollowUps.Release(followUp.ID); err != nil {
		p.log.WithField("follow_up", followUp.ID).Errorf("failed to release claim: %v", err)
	}
}

func (p *Pipeline) publish(event string, data interface{}) {
	if p.Events == nil {
		return
	}
	// Feed errors are already logged by the publisher; they never fail
	// the pipeline.
	_ = p.Events.Publish(event, data)
}
