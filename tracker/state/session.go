package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FlowKind names a guided input sequence.
type FlowKind string

const (
	FlowAddOrder  FlowKind = "add_order"
	FlowAddAgent  FlowKind = "add_agent"
	FlowSetPrice  FlowKind = "set_price"
	FlowFindOrder FlowKind = "find_order"
)

// Step is the field a session currently waits for. The zero value means no
// flow is running.
type Step string

const (
	StepNone   Step = ""
	StepName   Step = "name"
	StepPrice  Step = "price"
	StepAgent  Step = "agent"
	StepVerify Step = "verify"
	StepUID    Step = "uid"
)

var flowSteps = map[FlowKind][]Step{
	FlowAddOrder:  {StepName, StepPrice, StepAgent, StepVerify},
	FlowAddAgent:  {StepName},
	FlowSetPrice:  {StepPrice},
	FlowFindOrder: {StepUID},
}

// Steps returns the ordered steps of a flow, or nil for an unknown kind.
func (k FlowKind) Steps() []Step {
	return flowSteps[k]
}

func (k FlowKind) Valid() bool {
	_, ok := flowSteps[k]
	return ok
}

// FirstStep returns the step a freshly begun flow waits for.
func (k FlowKind) FirstStep() Step {
	steps := flowSteps[k]
	if len(steps) == 0 {
		return StepNone
	}
	return steps[0]
}

func (k FlowKind) has(step Step) bool {
	for _, s := range flowSteps[k] {
		if s == step {
			return true
		}
	}
	return false
}

// Fields holds the partially collected attributes of a flow.
type Fields struct {
	Name string `json:"name,omitempty"`

	// Price is nil both before the price step and when the user deferred it;
	// PriceCollected tells the two apart.
	Price          *int64 `json:"price,omitempty"`
	PriceCollected bool   `json:"price_collected,omitempty"`

	AgentUID  int64  `json:"agent_uid,omitempty"`
	AgentName string `json:"agent_name,omitempty"`

	// OrderUID is the target of a set_price flow.
	OrderUID int64 `json:"order_uid,omitempty"`
}

// Merge copies every non-zero attribute of patch into f.
func (f *Fields) Merge(patch Fields) {
	if patch.Name != "" {
		f.Name = patch.Name
	}
	if patch.PriceCollected {
		f.PriceCollected = true
		f.Price = clonePrice(patch.Price)
	}
	if patch.AgentUID != 0 {
		f.AgentUID = patch.AgentUID
	}
	if patch.AgentName != "" {
		f.AgentName = patch.AgentName
	}
	if patch.OrderUID != 0 {
		f.OrderUID = patch.OrderUID
	}
}

func (f Fields) Clone() Fields {
	out := f
	out.Price = clonePrice(f.Price)
	return out
}

func clonePrice(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Session is the per-user conversation context. Exactly one exists per
// SessionID; beginning a new flow replaces it.
type Session struct {
	SessionID string    `json:"session_id"`
	FlowID    string    `json:"flow_id"`
	Flow      FlowKind  `json:"flow"`
	Step      Step      `json:"step"`
	Fields    Fields    `json:"fields"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrUnknownFlow  = errors.New("unknown flow kind")
	ErrStepMismatch = errors.New("step does not belong to flow")
)

func NewSession(sessionID, flowID string, flow FlowKind, now time.Time) *Session {
	return &Session{
		SessionID: sessionID,
		FlowID:    flowID,
		Flow:      flow,
		Step:      flow.FirstStep(),
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Advance moves the session to step and merges patch into its fields.
func (s *Session) Advance(step Step, patch Fields, now time.Time) error {
	if !s.Flow.has(step) {
		return fmt.Errorf("%w: flow=%s step=%s", ErrStepMismatch, s.Flow, step)
	}
	s.Step = step
	s.Fields.Merge(patch)
	s.Touch(now)
	return nil
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Fields = s.Fields.Clone()
	return &out
}

func (s *Session) Validate() error {
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if !s.Flow.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFlow, s.Flow)
	}
	if !s.Flow.has(s.Step) {
		return fmt.Errorf("%w: flow=%s step=%s", ErrStepMismatch, s.Flow, s.Step)
	}
	if s.Flow == FlowSetPrice && s.Fields.OrderUID == 0 {
		return fmt.Errorf("%w: set_price requires order_uid", ErrStepMismatch)
	}
	return nil
}
