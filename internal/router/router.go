// Package router classifies inbound messages and directs them to the
// analysis, chat, or dispatch flow while preserving per-session context.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"crowd-safety-service/internal/analysis"
	"crowd-safety-service/internal/dispatch"
	"crowd-safety-service/internal/directory"
	"crowd-safety-service/internal/models"
	"crowd-safety-service/internal/observability/metrics"
	"crowd-safety-service/internal/predictor"
	"crowd-safety-service/internal/session"
	"crowd-safety-service/internal/store"
)

// ErrUnroutable means the message matches none of the known payload shapes.
// Surfaced to the caller as a clarification request, not a system fault.
var ErrUnroutable = errors.New("message does not match any routable payload shape")

// ErrInvalidPriority means a dispatch payload carried an unknown priority.
var ErrInvalidPriority = errors.New("priority must be low, medium or high")

// FlowKind names the request-handling path a message resolves to.
type FlowKind string

const (
	FlowEvent    FlowKind = "event"
	FlowChat     FlowKind = "chat"
	FlowDispatch FlowKind = "dispatch"
)

// State is one step of the per-message state machine. Every message starts
// and ends in StateIdle; the machine is re-entrant per message.
type State int

const (
	StateIdle State = iota
	StateClassifying
	StateEventFlow
	StateChatFlow
	StateDispatchFlow
	StateResponding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateClassifying:
		return "CLASSIFYING"
	case StateEventFlow:
		return "EVENT_FLOW"
	case StateChatFlow:
		return "CHAT_FLOW"
	case StateDispatchFlow:
		return "DISPATCH_FLOW"
	case StateResponding:
		return "RESPONDING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Response is the router's single structured reply for one message.
type Response struct {
	Type         string                    `json:"response_type"` // analysis, info, dispatch
	Content      string                    `json:"content"`
	Prediction   *predictor.PredictedState `json:"prediction,omitempty"`
	DispatchData *models.DispatchDecision  `json:"dispatch_data,omitempty"`
}

// chatPayload is the chat-shaped message: report, query or help.
type chatPayload struct {
	ActionType string `json:"action_type"`
	Message    string `json:"message"`
	Location   string `json:"location"`
}

// dispatchPayload is the explicit dispatch-shaped message.
type dispatchPayload struct {
	DispatchType string       `json:"dispatch_type"`
	Data         dispatchData `json:"data"`
	Priority     string       `json:"priority"`
}

type dispatchData struct {
	UnitType     string `json:"unit_type"`
	Location     string `json:"location"`
	IncidentType string `json:"incident_type"`
}

// eventPayload is an event document with an optional zone location for
// dispatch decisions triggered by the analysis.
type eventPayload struct {
	models.EventDocument
	Location string `json:"location"`
}

// Config tunes router behavior.
type Config struct {
	// HistoryLimit is how many recent events the event flow fetches.
	HistoryLimit int
	// DefaultLocation is used for event-triggered dispatches when the event
	// carries no zone location.
	DefaultLocation string
}

// Router resolves messages to flows. Safe for concurrent use: all mutable
// state lives behind the session store and the dispatch engine's ledger.
type Router struct {
	events   store.EventStore
	engine   *dispatch.Engine
	sessions session.Store
	lookup   directory.Lookup
	cfg      Config
	metrics  *metrics.Metrics
}

// New creates a router over the given collaborators.
func New(events store.EventStore, engine *dispatch.Engine, sessions session.Store, lookup directory.Lookup, cfg Config) *Router {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = "monitored zone"
	}
	return &Router{
		events:   events,
		engine:   engine,
		sessions: sessions,
		lookup:   lookup,
		cfg:      cfg,
		metrics:  metrics.DefaultMetrics,
	}
}

// Classify maps a raw message to its flow kind by payload structure alone.
// Total on well-formed payloads: each matches exactly one flow; everything
// else fails with ErrUnroutable.
func Classify(raw []byte) (FlowKind, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", ErrUnroutable
	}

	if _, ok := probe["end_utc_time"]; ok {
		if _, ok := probe["crowd_density"]; ok {
			return FlowEvent, nil
		}
	}

	if rawAction, ok := probe["action_type"]; ok {
		var action string
		if err := json.Unmarshal(rawAction, &action); err == nil {
			switch strings.ToLower(action) {
			case "report", "query", "help":
				return FlowChat, nil
			}
		}
		return "", ErrUnroutable
	}

	_, hasType := probe["dispatch_type"]
	_, hasData := probe["data"]
	_, hasPriority := probe["priority"]
	if hasType && hasData && hasPriority {
		return FlowDispatch, nil
	}

	return "", ErrUnroutable
}

// Handle runs one message through the state machine and returns the composed
// response. The caller's session (one per user and flow kind) records both
// the message and the response.
func (r *Router) Handle(ctx context.Context, userID, message string) (Response, error) {
	start := time.Now()
	r.transition(userID, StateIdle, StateClassifying)

	flow, err := Classify([]byte(message))
	if err != nil {
		r.metrics.RecordMessageUnroutable()
		r.transition(userID, StateClassifying, StateIdle)
		log.Warn().Str("userId", userID).Msg("Message could not be classified")
		return Response{}, err
	}
	r.metrics.RecordMessageRouted(string(flow))

	sessionID := fmt.Sprintf("%s:%s", userID, flow)
	if err := r.sessions.Append(ctx, sessionID, session.Entry{
		Role: "user", Content: message, At: time.Now().UTC(),
	}); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("Failed to record message in session")
	}

	var resp Response
	flowState := flowStateFor(flow)
	r.transition(userID, StateClassifying, flowState)
	switch flow {
	case FlowEvent:
		resp, err = r.handleEvent(ctx, []byte(message))
	case FlowChat:
		resp, err = r.handleChat(ctx, userID, []byte(message))
	case FlowDispatch:
		resp, err = r.handleDispatch(ctx, []byte(message))
	}
	if err != nil {
		r.transition(userID, flowState, StateIdle)
		return Response{}, err
	}

	r.transition(userID, flowState, StateResponding)
	if err := r.sessions.Append(ctx, sessionID, session.Entry{
		Role: "system", Content: resp.Content, At: time.Now().UTC(),
	}); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("Failed to record response in session")
	}

	r.transition(userID, StateResponding, StateIdle)
	r.metrics.RecordFlowDuration(string(flow), time.Since(start).Seconds())
	return resp, nil
}

func flowStateFor(flow FlowKind) State {
	switch flow {
	case FlowEvent:
		return StateEventFlow
	case FlowChat:
		return StateChatFlow
	default:
		return StateDispatchFlow
	}
}

func (r *Router) transition(userID string, from, to State) {
	log.Debug().
		Str("userId", userID).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Router state transition")
}

// handleEvent validates the incoming event, merges it with recent history,
// runs the trend predictor and, when a unit is recommended, the dispatch
// engine.
func (r *Router) handleEvent(ctx context.Context, raw []byte) (Response, error) {
	var payload eventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Response{}, ErrUnroutable
	}

	current, err := analysis.RecordFromDocument(payload.EventDocument)
	haveCurrent := err == nil
	if err != nil {
		// A malformed current event degrades to a history-only analysis.
		log.Warn().Err(err).Msg("Dropping invalid incoming event")
		r.metrics.RecordRecordDropped("invalid_event")
	}

	docs, err := r.events.GetRecent(ctx, r.cfg.HistoryLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch recent events, predicting from the current event only")
		docs = nil
	}

	records := make([]analysis.AssessmentRecord, 0, len(docs)+1)
	for _, doc := range docs {
		rec, err := analysis.RecordFromDocument(doc)
		if err != nil {
			log.Warn().Err(err).Str("eventId", doc.ID).Msg("Dropping invalid stored event")
			r.metrics.RecordRecordDropped("invalid_document")
			continue
		}
		records = append(records, rec)
	}
	if haveCurrent {
		records = append(records, current)
	}

	state := predictor.Predict(records)
	r.metrics.RecordPrediction(string(state.RecommendedUnit))

	resp := Response{
		Type:       "analysis",
		Prediction: &state,
		Content:    fmt.Sprintf("%s %s", state.Summary, state.Rationale),
	}

	if state.RecommendedUnit != models.UnitNone {
		location := payload.Location
		if location == "" {
			location = r.cfg.DefaultLocation
		}
		decision := r.engine.DecideForPrediction(ctx, state, location, time.Now().UTC())
		resp.DispatchData = &decision
		resp.Type = "dispatch"
		resp.Content = fmt.Sprintf("%s %s", resp.Content, renderDecision(decision))
	}
	return resp, nil
}

// handleChat routes report, query and help actions.
func (r *Router) handleChat(ctx context.Context, userID string, raw []byte) (Response, error) {
	var payload chatPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Response{}, ErrUnroutable
	}

	switch strings.ToLower(payload.ActionType) {
	case "report":
		return r.handleReport(ctx, userID, payload)
	case "query":
		return r.handleQuery(ctx, payload)
	case "help":
		return r.handleHelp(ctx, payload)
	default:
		return Response{}, ErrUnroutable
	}
}

// handleReport synthesizes an incident record and dispatches a unit when the
// description implies urgency.
func (r *Router) handleReport(ctx context.Context, userID string, payload chatPayload) (Response, error) {
	report := models.IncidentReport{
		Reportee:    userID,
		Description: payload.Message,
		Location:    payload.Location,
		ReportedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	reportJSON, _ := json.Marshal(report)

	sessionID := fmt.Sprintf("%s:%s", userID, FlowChat)
	if err := r.sessions.Append(ctx, sessionID, session.Entry{
		Role: "system", Content: "incident:" + string(reportJSON), At: time.Now().UTC(),
	}); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("Failed to record incident in session")
	}

	resp := Response{
		Type:    "info",
		Content: fmt.Sprintf("Incident recorded from %s: %s", report.Reportee, report.Description),
	}

	unit := unitFromDescription(payload.Message)
	if unit == models.UnitNone {
		return resp, nil
	}

	location := payload.Location
	if location == "" {
		location = r.cfg.DefaultLocation
	}
	priority := models.PriorityMedium
	if unit == models.UnitFire || unit == models.UnitMedical {
		priority = models.PriorityHigh
	}
	decision := r.engine.Decide(ctx, unit, priority, location, time.Now().UTC())
	resp.Type = "dispatch"
	resp.DispatchData = &decision
	resp.Content = fmt.Sprintf("%s %s", resp.Content, renderDecision(decision))
	return resp, nil
}

// handleQuery returns the most relevant cached status without mutating
// anything.
func (r *Router) handleQuery(ctx context.Context, payload chatPayload) (Response, error) {
	docs, err := r.events.GetRecent(ctx, r.cfg.HistoryLimit)
	if err != nil {
		return Response{}, fmt.Errorf("fetch recent events: %w", err)
	}

	for _, doc := range docs {
		rec, err := analysis.RecordFromDocument(doc)
		if err != nil {
			continue
		}
		return Response{
			Type: "info",
			Content: fmt.Sprintf("Latest assessment (window ending %s): density %s, flow %s, safety level %s.",
				rec.Window.EndUTC.Format(time.RFC3339), rec.CrowdDensity, rec.CrowdFlow, rec.SafetyLevel),
		}, nil
	}
	return Response{Type: "info", Content: "No recent assessment data available."}, nil
}

// handleHelp delegates to the external directory lookup. It never invokes
// the dispatch engine directly.
func (r *Router) handleHelp(ctx context.Context, payload chatPayload) (Response, error) {
	location := payload.Location
	if location == "" {
		location = r.cfg.DefaultLocation
	}

	facilities, err := r.lookup.FindNearbyHospitals(ctx, location)
	if err != nil {
		return Response{}, fmt.Errorf("directory lookup: %w", err)
	}

	names := make([]string, 0, len(facilities))
	for _, f := range facilities {
		names = append(names, f.Name)
	}
	return Response{
		Type:    "info",
		Content: fmt.Sprintf("Nearby facilities for %s: %s.", location, strings.Join(names, ", ")),
	}, nil
}

// handleDispatch validates the explicit dispatch payload and runs the
// engine.
func (r *Router) handleDispatch(ctx context.Context, raw []byte) (Response, error) {
	var payload dispatchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Response{}, ErrUnroutable
	}

	priority := models.Priority(strings.ToLower(payload.Priority))
	if !priority.Valid() {
		return Response{}, fmt.Errorf("%w: got %q", ErrInvalidPriority, payload.Priority)
	}
	unit := models.UnitType(strings.ToLower(payload.Data.UnitType))
	if !unit.Valid() || unit == models.UnitNone {
		return Response{}, fmt.Errorf("%w: unknown unit type %q", ErrUnroutable, payload.Data.UnitType)
	}

	decision := r.engine.Decide(ctx, unit, priority, payload.Data.Location, time.Now().UTC())
	return Response{
		Type:         "dispatch",
		Content:      renderDecision(decision),
		DispatchData: &decision,
	}, nil
}

// unitFromDescription maps urgency keywords in an incident description to a
// unit type.
func unitFromDescription(description string) models.UnitType {
	text := strings.ToLower(description)
	switch {
	case containsAny(text, "fire", "smoke", "burning", "rescue"):
		return models.UnitFire
	case containsAny(text, "medical", "injury", "injured", "ambulance", "health", "stampede", "unresponsive"):
		return models.UnitMedical
	case containsAny(text, "crime", "violence", "theft", "suspicious", "crowd control"):
		return models.UnitPolice
	default:
		return models.UnitNone
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func renderDecision(d models.DispatchDecision) string {
	switch d.Reason {
	case dispatch.ReasonDispatched:
		return fmt.Sprintf("Dispatched %s unit to %s (priority %s).", d.UnitType, d.Location, d.Priority)
	case dispatch.ReasonDuplicate:
		return fmt.Sprintf("A %s unit was already dispatched to %s recently; suppressed as duplicate.", d.UnitType, d.Location)
	case dispatch.ReasonNoUnitRequired:
		return "No unit dispatch required."
	case dispatch.ReasonPublishFailed:
		return fmt.Sprintf("Dispatch of %s unit to %s could not be confirmed; manual retry required.", d.UnitType, d.Location)
	default:
		return fmt.Sprintf("Dispatch decision: %s.", d.Reason)
	}
}
