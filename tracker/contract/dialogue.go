package contract

import statex "github.com/tanpawarit/money-tracker/tracker/state"

// Input is one user turn. The agent step expects a Selection; every other
// step expects Text.
type Input struct {
	Text      string `json:"text,omitempty"`
	Selection *int64 `json:"selection,omitempty"`
}

func TextInput(text string) Input {
	return Input{Text: text}
}

func SelectionInput(uid int64) Input {
	return Input{Selection: &uid}
}

func (in Input) IsSelection() bool {
	return in.Selection != nil
}

type Outcome string

const (
	OutcomePrompt          Outcome = "prompt"
	OutcomeCompleted       Outcome = "completed"
	OutcomeAborted         Outcome = "aborted"
	OutcomeValidationError Outcome = "validation_error"
)

// Reason explains an aborted flow or a rejected input.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonCancelled     Reason = "cancelled"
	ReasonDeclined      Reason = "declined"
	ReasonNoAgents      Reason = "no_agents"
	ReasonAgentMissing  Reason = "agent_missing"
	ReasonOrderMissing  Reason = "order_missing"
	ReasonAlreadyPriced Reason = "already_priced"
	ReasonStoreFailure  Reason = "store_failure"

	ReasonInvalidName     Reason = "invalid_name"
	ReasonInvalidPrice    Reason = "invalid_price"
	ReasonInvalidUID      Reason = "invalid_uid"
	ReasonInvalidShortcut Reason = "invalid_shortcut"
	ReasonUnknownAgent    Reason = "unknown_agent"
)

// Option is a selectable choice offered with a prompt.
type Option struct {
	UID   int64  `json:"uid"`
	Label string `json:"label"`
}

// Reply is the engine's answer to a begin or an input. Step is the step the
// session now waits for and is empty once the flow is over.
type Reply struct {
	Outcome Outcome         `json:"outcome"`
	Flow    statex.FlowKind `json:"flow,omitempty"`
	Step    statex.Step     `json:"step,omitempty"`
	Prompt  string          `json:"prompt,omitempty"`
	Message string          `json:"message,omitempty"`
	Reason  Reason          `json:"reason,omitempty"`
	Options []Option        `json:"options,omitempty"`
	Order   *Order          `json:"order,omitempty"`
	Agent   *Agent          `json:"agent,omitempty"`
}

// Done reports whether the flow ended with this reply.
func (r Reply) Done() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeAborted
}
