package conversationnode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
)

var ErrIncompleteState = errors.New("graph state is incomplete")

// GraphInput is one user turn for an active session.
type GraphInput struct {
	SessionID string
	Input     contractx.Input
}

// BeginInput starts a flow. Shortcut, when set, is a create_order shortcut
// line and Flow is ignored.
type BeginInput struct {
	SessionID string
	Flow      statex.FlowKind
	OrderUID  int64
	Shortcut  string
}

type GraphOutput struct {
	Reply contractx.Reply

	// Err carries the entity store failure that aborted the flow, if any.
	Err error
}

// Persist tells PersistSession what to do with the session record.
type Persist int

const (
	PersistNone Persist = iota
	PersistSave
	PersistClear
)

type GraphState struct {
	SessionID string
	Input     contractx.Input
	Text      string
	Now       time.Time

	Begin *BeginInput
	Flow  statex.FlowKind

	Session *statex.Session
	Persist Persist

	Reply contractx.Reply
	Err   error
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, contractx.ErrInvalidSession
	}

	return &GraphState{
		SessionID: sessionID,
		Input:     in.Input,
		Text:      strings.TrimSpace(in.Input.Text),
		Now:       nowFn().UTC(),
	}, nil
}

func ValidateBegin(in BeginInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, contractx.ErrInvalidSession
	}

	flow := in.Flow
	if strings.TrimSpace(in.Shortcut) != "" {
		flow = statex.FlowAddOrder
	}
	if !flow.Valid() {
		return nil, fmt.Errorf("%w: %q", statex.ErrUnknownFlow, flow)
	}
	if flow == statex.FlowSetPrice && in.OrderUID <= 0 {
		return nil, fmt.Errorf("%w: set_price needs an order uid", contractx.ErrInvalidInput)
	}

	begin := in
	begin.SessionID = sessionID
	begin.Flow = flow
	return &GraphState{
		SessionID: sessionID,
		Now:       nowFn().UTC(),
		Begin:     &begin,
		Flow:      flow,
	}, nil
}
