package service_test

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/YanwenWang1125/RealtorOS-sub000/internal/errors"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/service"
)

// Test doubles shared by the service tests. The message store double
// mirrors the documented ApplyEvent contract of the real repository:
// status overwritten with the event name (unknown types excepted), first-
// opened/first-clicked set only once, raw payload always appended.

type stubFollowUpStore struct {
	due       []*model.FollowUp
	claimErr  error
	created   []*model.FollowUp
	released  []string
	completed map[string]string
	statuses  map[string]string
}

func newStubFollowUpStore(due ...*model.FollowUp) *stubFollowUpStore {
	return &stubFollowUpStore{
		due:       due,
		completed: map[string]string{},
		statuses:  map[string]string{},
	}
}

func (s *stubFollowUpStore) Create(f *model.FollowUp) error {
	f.ID = fmt.Sprintf("fup_%d", len(s.created)+1)
	s.created = append(s.created, f)
	return nil
}

func (s *stubFollowUpStore) BulkCreate(fs []*model.FollowUp) error {
	for _, f := range fs {
		if err := s.Create(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubFollowUpStore) GetByID(id string) (*model.FollowUp, error) {
	for _, f := range append(s.due, s.created...) {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, apperrors.NewFollowUpNotFound(id)
}

func (s *stubFollowUpStore) ListByLead(leadID string) ([]*model.FollowUp, error) {
	return s.created, nil
}

func (s *stubFollowUpStore) ListDue(now time.Time) ([]*model.FollowUp, error) {
	due := []*model.FollowUp{}
	for _, f := range s.due {
		if f.Status == model.FollowUpStatusPending && !f.DueAt.After(now) {
			due = append(due, f)
		}
	}
	return due, nil
}

func (s *stubFollowUpStore) ClaimDue(now time.Time) ([]*model.FollowUp, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	claimed := []*model.FollowUp{}
	for _, f := range s.due {
		if f.Status == model.FollowUpStatusPending && !f.DueAt.After(now) {
			f.Status = model.FollowUpStatusProcessing
			claimed = append(claimed, f)
		}
	}
	return claimed, nil
}

func (s *stubFollowUpStore) Release(id string) error {
	s.released = append(s.released, id)
	for _, f := range s.due {
		if f.ID == id && f.Status == model.FollowUpStatusProcessing {
			f.Status = model.FollowUpStatusPending
		}
	}
	return nil
}

func (s *stubFollowUpStore) MarkCompleted(id, messageID string, at time.Time) error {
	s.completed[id] = messageID
	for _, f := range s.due {
		if f.ID == id {
			f.Status = model.FollowUpStatusCompleted
			f.EmailMessageID = &messageID
			completedAt := at
			f.CompletedAt = &completedAt
		}
	}
	return nil
}

func (s *stubFollowUpStore) UpdateStatus(id, status string) error {
	s.statuses[id] = status
	return nil
}

func (s *stubFollowUpStore) Reschedule(id string, dueAt time.Time) error {
	for _, f := range s.due {
		if f.ID == id {
			f.DueAt = dueAt
		}
	}
	return nil
}

type stubLeadStore struct {
	leads map[string]*model.Lead
}

func (s *stubLeadStore) Create(l *model.Lead) error { return nil }

func (s *stubLeadStore) GetByID(id string) (*model.Lead, error) {
	if l, ok := s.leads[id]; ok {
		return l, nil
	}
	return nil, apperrors.NewLeadNotFound(id)
}

func (s *stubLeadStore) DeleteCascade(id string) error { return nil }

type stubAgentStore struct {
	agents map[string]*model.Agent
}

func (s *stubAgentStore) GetByID(id string) (*model.Agent, error) {
	if a, ok := s.agents[id]; ok {
		return a, nil
	}
	return nil, apperrors.NewAgentNotFound(id)
}

type memMessageStore struct {
	messages []*model.EmailMessage
	failed   map[string]string
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{failed: map[string]string{}}
}

func (s *memMessageStore) Create(m *model.EmailMessage) error {
	m.ID = fmt.Sprintf("msg_%d", len(s.messages)+1)
	m.CreatedAt = time.Now()
	s.messages = append(s.messages, m)
	return nil
}

func (s *memMessageStore) GetByID(id string) (*model.EmailMessage, error) {
	for _, m := range s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, apperrors.NewMessageNotFound(id)
}

func (s *memMessageStore) GetByProviderMessageID(providerID string) (*model.EmailMessage, error) {
	for _, m := range s.messages {
		if m.ProviderMessageID == providerID {
			return m, nil
		}
	}
	return nil, apperrors.NewMessageNotFound(providerID)
}

func (s *memMessageStore) MarkSent(id, providerMessageID string, at time.Time) error {
	m, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if m.Status == model.MessageStatusQueued {
		m.Status = model.MessageStatusSent
	}
	m.ProviderMessageID = providerMessageID
	sentAt := at
	m.SentAt = &sentAt
	return nil
}

func (s *memMessageStore) MarkFailed(id, errText string) error {
	m, err := s.GetByID(id)
	if err != nil {
		return err
	}
	m.Status = model.MessageStatusFailed
	m.LastError = errText
	s.failed[id] = errText
	return nil
}

func (s *memMessageStore) ApplyEvent(id string, ev *model.ProviderEvent) error {
	m, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if ev.Type != model.EventUnknown {
		m.Status = ev.Type
	}
	if ev.Type == model.EventOpen && m.FirstOpenedAt == nil {
		ts := ev.Timestamp
		m.FirstOpenedAt = &ts
	}
	if ev.Type == model.EventClick && m.FirstClickedAt == nil {
		ts := ev.Timestamp
		m.FirstClickedAt = &ts
	}
	m.RawEvents = append(m.RawEvents, ev.Raw)
	return nil
}

type stubSender struct {
	sendFunc func(recipient, subject, body string) (string, error)
	sent     int
}

func (s *stubSender) Send(_ context.Context, recipient, subject, body string) (string, error) {
	s.sent++
	return s.sendFunc(recipient, subject, body)
}

type stubGenerator struct {
	content service.Content
	err     error
}

func (g *stubGenerator) Generate(_ context.Context, _ *model.Agent, _ *model.Lead, _ *model.FollowUp) (service.Content, error) {
	return g.content, g.err
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(event string, _ interface{}) error {
	p.events = append(p.events, event)
	return nil
}
