package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/service"
)

const (
	HeaderSignature = "Signature"
	HeaderTimestamp = "Timestamp"
)

// Handler is the inbound surface for provider delivery/engagement
// callbacks.
type Handler struct {
	Verifier  *Verifier
	Processor *service.EventProcessor

	log *logrus.Entry
}

func NewHandler(verifier *Verifier, processor *service.EventProcessor) *Handler {
	return &Handler{
		Verifier:  verifier,
		Processor: processor,
		log:       logrus.WithField("component", "webhook"),
	}
}

type batchResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
}

// HandleEvents accepts a batch of provider events. The response is 200 in
// virtually all cases so the provider does not build up a retry storm;
// per-event outcomes surface through logs and metrics instead. The two
// exceptions are 401 (bad or missing signature while verification is
// mandatory) and 400 (unparsable payload).
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if err := h.Verifier.Verify(r.Header.Get(HeaderSignature), r.Header.Get(HeaderTimestamp), body); err != nil {
		h.log.Warnf("rejected callback: %v", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	rawEvents, err := normalizeBatch(body)
	if err != nil {
		h.log.Warnf("unparsable callback payload: %v", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	events := make([]*model.ProviderEvent, 0, len(rawEvents))
	malformed := 0
	for _, raw := range rawEvents {
		ev, err := model.ParseProviderEvent(raw)
		if err != nil {
			h.log.Warnf("dropping malformed event in batch: %v", err)
			malformed++
			continue
		}
		events = append(events, ev)
	}

	result := h.Processor.ProcessBatch(events)
	result.Failed += malformed
	result.Total += malformed

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(batchResponse{
		Status:    "ok",
		Processed: result.Processed,
		Failed:    result.Failed,
		Total:     result.Total,
	})
}

// normalizeBatch accepts either a JSON array of events or a single event
// object and returns the events as a slice.
func normalizeBatch(body []byte) ([]json.RawMessage, error) {
	var batch []json.RawMessage
	if err := json.Unmarshal(body, &batch); err == nil {
		return batch, nil
	}
	var single map[string]json.RawMessage
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []json.RawMessage{json.RawMessage(body)}, nil
}
