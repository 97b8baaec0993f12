package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/repository"
)

// DefaultSchedule is the fixed offset table applied to every new lead.
var DefaultSchedule = []model.FollowUpOffset{
	{Label: "+1d", Days: 1, Priority: model.PriorityHigh, Description: "Initial follow-up"},
	{Label: "+3d", Days: 3, Priority: model.PriorityHigh, Description: "Share matching listings"},
	{Label: "+7d", Days: 7, Priority: model.PriorityMedium, Description: "One week check-in"},
	{Label: "+14d", Days: 14, Priority: model.PriorityMedium, Description: "Two week check-in"},
	{Label: "+30d", Days: 30, Priority: model.PriorityLow, Description: "Monthly market update"},
}

// FollowUpService owns follow-up scheduling and the explicit external
// transitions (skip, cancel, reschedule). Completion happens only through
// the pipeline.
type FollowUpService struct {
	FollowUps repository.FollowUpRepositoryInterface
	Schedule  []model.FollowUpOffset
	Now       func() time.Time
}

func NewFollowUpService(followUps repository.FollowUpRepositoryInterface) *FollowUpService {
	return &FollowUpService{
		FollowUps: followUps,
		Schedule:  DefaultSchedule,
		Now:       time.Now,
	}
}

// ScheduleForLead bulk-creates the fixed follow-up set for a new lead.
func (s *FollowUpService) ScheduleForLead(lead *model.Lead) ([]*model.FollowUp, error) {
	now := s.Now()
	followUps := make([]*model.FollowUp, 0, len(s.Schedule))
	for _, offset := range s.Schedule {
		followUps = append(followUps, &model.FollowUp{
			AgentID:  lead.AgentID,
			LeadID:   lead.ID,
			Label:    offset.Label,
			DueAt:    now.AddDate(0, 0, offset.Days),
			Status:   model.FollowUpStatusPending,
			Priority: offset.Priority,
		})
	}
	if err := s.FollowUps.BulkCreate(followUps); err != nil {
		return nil, err
	}
	logrus.WithField("lead", lead.ID).Infof("scheduled %d follow-ups", len(followUps))
	return followUps, nil
}

// ScheduleCustom creates a single manually scheduled follow-up.
func (s *FollowUpService) ScheduleCustom(agentID, leadID string, dueAt time.Time, priority string) (*model.FollowUp, error) {
	if priority == "" {
		priority = model.PriorityMedium
	}
	followUp := &model.FollowUp{
		AgentID:  agentID,
		LeadID:   leadID,
		Label:    model.FollowUpLabelCustom,
		DueAt:    dueAt,
		Status:   model.FollowUpStatusPending,
		Priority: priority,
	}
	if err := s.FollowUps.Create(followUp); err != nil {
		return nil, err
	}
	return followUp, nil
}

func (s *FollowUpService) Skip(id string) error {
	return s.FollowUps.UpdateStatus(id, model.FollowUpStatusSkipped)
}

func (s *FollowUpService) Cancel(id string) error {
	return s.FollowUps.UpdateStatus(id, model.FollowUpStatusCancelled)
}

func (s *FollowUpService) Reschedule(id string, dueAt time.Time) error {
	return s.FollowUps.Reschedule(id, dueAt)
}

// ListDue is the diagnostic "due now" read.
func (s *FollowUpService) ListDue() ([]*model.FollowUp, error) {
	return s.FollowUps.ListDue(s.Now())
}
