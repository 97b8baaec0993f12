package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	apperrors "github.com/YanwenWang1125/RealtorOS-sub000/internal/errors"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/queue"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/repository"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/service"
)

// LeadHandler carries the two entry points the engine needs from the
// CRUD surface: lead intake (which triggers bulk follow-up scheduling)
// and lead removal (which triggers the deletion cascade).
type LeadHandler struct {
	Leads     repository.LeadRepositoryInterface
	FollowUps *service.FollowUpService
	Events    service.EventPublisher
}

func NewLeadHandler(leads repository.LeadRepositoryInterface, followUps *service.FollowUpService, events service.EventPublisher) *LeadHandler {
	return &LeadHandler{Leads: leads, FollowUps: followUps, Events: events}
}

// CreateLead handles POST /leads: persists the lead and schedules the
// fixed follow-up set.
func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AgentID   string `json:"agent_id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Source    string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.AgentID == "" || payload.Email == "" {
		http.Error(w, "agent_id and email are required", http.StatusBadRequest)
		return
	}

	lead := &model.Lead{
		AgentID:   payload.AgentID,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Source:    payload.Source,
	}
	if err := h.Leads.Create(lead); err != nil {
		http.Error(w, "failed to create lead: "+err.Error(), http.StatusInternalServerError)
		return
	}

	followUps, err := h.FollowUps.ScheduleForLead(lead)
	if err != nil {
		http.Error(w, "failed to schedule follow-ups: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"lead":       lead,
		"follow_ups": followUps,
	})
}

// DeleteLead handles DELETE /leads/{id}: runs the transactional cascade.
// On any failure the lead stays un-deleted and the caller gets the error.
func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Leads.GetByID(id); err != nil {
		if apperrors.IsNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch lead: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.Leads.DeleteCascade(id); err != nil {
		logrus.Errorf("lead deletion cascade failed: %v", err)
		http.Error(w, "failed to delete lead: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if h.Events != nil {
		_ = h.Events.Publish(queue.EventLeadDeleted, map[string]string{"lead_id": id})
	}
	w.WriteHeader(http.StatusNoContent)
}

// ScheduleFollowUp handles POST /leads/{id}/followups: manual scheduling
// of a single custom follow-up.
func (h *LeadHandler) ScheduleFollowUp(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	var payload struct {
		DueAt    time.Time `json:"due_at"`
		Priority string    `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.DueAt.IsZero() {
		http.Error(w, "due_at is required", http.StatusBadRequest)
		return
	}

	lead, err := h.Leads.GetByID(leadID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch lead: "+err.Error(), http.StatusInternalServerError)
		return
	}

	followUp, err := h.FollowUps.ScheduleCustom(lead.AgentID, lead.ID, payload.DueAt, payload.Priority)
	if err != nil {
		http.Error(w, "failed to schedule follow-up: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(followUp)
}
