package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YanwenWang1125/RealtorOS-sub000/internal/scheduler"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/service"
)

// OpsHandler exposes the operational surface: scheduler health, the
// manual force-run trigger, and the "due now" diagnostic read.
type OpsHandler struct {
	Scheduler *scheduler.Scheduler
	FollowUps *service.FollowUpService
}

func NewOpsHandler(sched *scheduler.Scheduler, followUps *service.FollowUpService) *OpsHandler {
	return &OpsHandler{Scheduler: sched, FollowUps: followUps}
}

// SchedulerStatus handles GET /internal/scheduler/status.
func (h *OpsHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Scheduler.Status())
}

// RunCycle handles POST /internal/scheduler/run. A 409 means a cycle is
// already in flight.
func (h *OpsHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	completed, err := h.Scheduler.RunNow(r.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrCycleInFlight) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "cycle failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"completed": completed})
}

// DueFollowUps handles GET /internal/followups/due.
func (h *OpsHandler) DueFollowUps(w http.ResponseWriter, r *http.Request) {
	due, err := h.FollowUps.ListDue()
	if err != nil {
		http.Error(w, "failed to list due follow-ups: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"count":      len(due),
		"follow_ups": due,
	})
}

// Health handles GET /healthz.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
