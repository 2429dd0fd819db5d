package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/engine"
	"github.com/ignite/playbook-engine/internal/lab"
	"github.com/ignite/playbook-engine/internal/pkg/httputil"
	"github.com/ignite/playbook-engine/internal/signal"
)

type dryRunRequest struct {
	CustomerID uuid.UUID `json:"customerId"`
	SignalType string    `json:"signalType"`
}

type dryRunEvaluation struct {
	PlaybookID        uuid.UUID               `json:"playbookId"`
	PlaybookName      string                  `json:"playbookName"`
	WouldTrigger      bool                    `json:"wouldTrigger"`
	SuppressionReason *string                 `json:"suppressionReason,omitempty"`
	MissingConditions []string                `json:"missingConditions"`
	DecisionSummary   *engine.DecisionSummary `json:"decisionSummary,omitempty"`
}

type dryRunConflict struct {
	SuppressedPlaybookID   uuid.UUID  `json:"suppressedPlaybookId"`
	SuppressedPlaybookName string     `json:"suppressedPlaybookName"`
	WinningPlaybookName    *string    `json:"winningPlaybookName,omitempty"`
	Reason                 string     `json:"reason"`
	CooldownEndsAt         *time.Time `json:"cooldownEndsAt,omitempty"`
}

type dryRunResponse struct {
	CustomerEmail string             `json:"customerEmail"`
	Evaluations   []dryRunEvaluation `json:"evaluations"`
	Conflicts     []dryRunConflict   `json:"conflicts"`
}

// HandleEvaluateDryRun reports what would happen if a signal of the given
// type arrived for the customer right now. Read-only.
func (h *Handlers) HandleEvaluateDryRun(w http.ResponseWriter, r *http.Request) {
	var req dryRunRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CustomerID == uuid.Nil {
		httputil.BadRequest(w, "customerId is required")
		return
	}
	st := signal.Type(req.SignalType)
	if !st.Known() {
		httputil.BadRequest(w, "unknown signalType: "+req.SignalType)
		return
	}

	result, err := h.lab.EvaluateDryRun(r.Context(), h.orgID(r), req.CustomerID, st)
	if err != nil {
		if engine.IsNotFound(err) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, toDryRunResponse(result))
}

func toDryRunResponse(result *lab.DryRunResult) dryRunResponse {
	report := result.Report

	nameByID := make(map[uuid.UUID]string, len(report.Evaluations))
	for _, ev := range report.Evaluations {
		nameByID[ev.PlaybookID] = ev.PlaybookName
	}

	resp := dryRunResponse{
		CustomerEmail: result.CustomerEmail,
		Evaluations:   make([]dryRunEvaluation, 0, len(report.Evaluations)),
		Conflicts:     make([]dryRunConflict, 0, len(report.Conflicts)),
	}
	for _, ev := range report.Evaluations {
		missing := ev.MissingConditions
		if missing == nil {
			missing = []string{}
		}
		resp.Evaluations = append(resp.Evaluations, dryRunEvaluation{
			PlaybookID:        ev.PlaybookID,
			PlaybookName:      ev.PlaybookName,
			WouldTrigger:      ev.WouldTrigger,
			SuppressionReason: ev.SuppressionReason,
			MissingConditions: missing,
			DecisionSummary:   ev.DecisionSummary,
		})
	}
	for _, c := range report.Conflicts {
		out := dryRunConflict{
			SuppressedPlaybookID:   c.SuppressedPlaybookID,
			SuppressedPlaybookName: nameByID[c.SuppressedPlaybookID],
			Reason:                 string(c.Reason),
			CooldownEndsAt:         c.CooldownEndsAt,
		}
		if c.WinningPlaybookID != nil {
			name := nameByID[*c.WinningPlaybookID]
			out.WinningPlaybookName = &name
		}
		resp.Conflicts = append(resp.Conflicts, out)
	}
	return resp
}

type injectEventRequest struct {
	CustomerID uuid.UUID         `json:"customerId"`
	EventType  string            `json:"eventType"`
	Amount     *float64          `json:"amount,omitempty"`
	Currency   string            `json:"currency,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type injectEventResponse struct {
	EventID           uuid.UUID `json:"eventId"`
	SignalDetected    bool      `json:"signalDetected"`
	SignalType        string    `json:"signalType,omitempty"`
	MatchingPlaybooks []string  `json:"matchingPlaybooks"`
}

// HandleInjectEvent feeds a synthetic provider event into the sandbox.
func (h *Handlers) HandleInjectEvent(w http.ResponseWriter, r *http.Request) {
	var req injectEventRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CustomerID == uuid.Nil {
		httputil.BadRequest(w, "customerId is required")
		return
	}
	if req.EventType == "" {
		httputil.BadRequest(w, "eventType is required")
		return
	}

	result, err := h.lab.InjectEvent(r.Context(), h.orgID(r), signal.RawEvent{
		CustomerID: req.CustomerID,
		EventType:  req.EventType,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Metadata:   req.Metadata,
	})
	if err != nil {
		if engine.IsNotFound(err) {
			httputil.NotFound(w, err.Error())
			return
		}
		if errors.Is(err, engine.ErrConcurrencyConflict) {
			httputil.Conflict(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}

	matching := result.MatchingPlaybooks
	if matching == nil {
		matching = []string{}
	}
	httputil.OK(w, injectEventResponse{
		EventID:           result.EventID,
		SignalDetected:    result.SignalDetected,
		SignalType:        string(result.SignalType),
		MatchingPlaybooks: matching,
	})
}

type simulateTimeRequest struct {
	Hours float64 `json:"hours"`
}

type simulateTimeResponse struct {
	RunsAffected     int       `json:"runsAffected"`
	CooldownsExpired int       `json:"cooldownsExpired"`
	SimulatedTime    time.Time `json:"simulatedTime"`
}

// HandleSimulateTime advances the sandbox clock by N hours.
func (h *Handlers) HandleSimulateTime(w http.ResponseWriter, r *http.Request) {
	var req simulateTimeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	report, err := h.lab.SimulateTime(r.Context(), h.orgID(r), req.Hours)
	if err != nil {
		if errors.Is(err, engine.ErrClockSkew) {
			httputil.BadRequest(w, "hours must be non-negative")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, simulateTimeResponse{
		RunsAffected:     report.RunsAffected,
		CooldownsExpired: report.CooldownsExpired,
		SimulatedTime:    report.SimulatedTime,
	})
}

// HandleLabReset clears the tenant's sandbox state. Playbook definitions
// are not affected.
func (h *Handlers) HandleLabReset(w http.ResponseWriter, r *http.Request) {
	h.lab.Reset(r.Context(), h.orgID(r))
	httputil.NoContent(w)
}
