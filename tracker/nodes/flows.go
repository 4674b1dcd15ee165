package conversationnode

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
	promptx "github.com/tanpawarit/money-tracker/tracker/prompt"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
)

const dateLayout = "2006-01-02"

// Flows runs the transitions of every flow kind against the entity store.
type Flows struct {
	entities  contractx.EntityStore
	sessions  statex.Store
	prompts   promptx.PromptSet
	tokens    Tokens
	newFlowID func() string
}

type FlowsOption func(*Flows)

// WithFlowIDs overrides the generator of flow ids.
func WithFlowIDs(gen func() string) FlowsOption {
	return func(f *Flows) {
		if gen != nil {
			f.newFlowID = gen
		}
	}
}

// WithSessionStore lets commits drop the parked session before they write.
func WithSessionStore(store statex.Store) FlowsOption {
	return func(f *Flows) {
		f.sessions = store
	}
}

func NewFlows(entities contractx.EntityStore, prompts promptx.PromptSet, tokens Tokens, opts ...FlowsOption) (*Flows, error) {
	if entities == nil {
		return nil, errors.New("entity store is required")
	}
	f := &Flows{
		entities:  entities,
		prompts:   prompts,
		tokens:    tokens,
		newFlowID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

func (f *Flows) Tokens() Tokens {
	return f.tokens
}

// prompt keeps the flow going and asks for the session's current step.
func (f *Flows) prompt(ctx context.Context, in *GraphState, key promptx.Key, vars promptx.Vars) error {
	text, err := f.prompts.Render(ctx, key, vars)
	if err != nil {
		return err
	}
	in.Persist = PersistSave
	in.Reply = contractx.Reply{
		Outcome: contractx.OutcomePrompt,
		Step:    in.Session.Step,
		Prompt:  text,
	}
	return nil
}

func (f *Flows) complete(ctx context.Context, in *GraphState, key promptx.Key, vars promptx.Vars) error {
	text, err := f.prompts.Render(ctx, key, vars)
	if err != nil {
		return err
	}
	in.Persist = PersistClear
	in.Reply = contractx.Reply{
		Outcome: contractx.OutcomeCompleted,
		Message: text,
	}
	return nil
}

func (f *Flows) abort(ctx context.Context, in *GraphState, reason contractx.Reason, key promptx.Key, vars promptx.Vars) error {
	text, err := f.prompts.Render(ctx, key, vars)
	if err != nil {
		return err
	}
	log.Info().
		Str("session_id", in.SessionID).
		Str("flow", string(in.Flow)).
		Str("reason", string(reason)).
		Msg("flow aborted")
	in.Persist = PersistClear
	in.Reply = contractx.Reply{
		Outcome: contractx.OutcomeAborted,
		Reason:  reason,
		Message: text,
	}
	return nil
}

// reject refuses the input and leaves the session as it was.
func (f *Flows) reject(ctx context.Context, in *GraphState, reason contractx.Reason, key promptx.Key, vars promptx.Vars) error {
	text, err := f.prompts.Render(ctx, key, vars)
	if err != nil {
		return err
	}
	in.Persist = PersistNone
	in.Reply = contractx.Reply{
		Outcome: contractx.OutcomeValidationError,
		Reason:  reason,
		Message: text,
	}
	if in.Session != nil {
		in.Reply.Step = in.Session.Step
	}
	return nil
}

// fail aborts the flow on a store failure and hands the error to the caller
// through GraphOutput.
func (f *Flows) fail(ctx context.Context, in *GraphState, err error) error {
	log.Error().Err(err).Str("session_id", in.SessionID).Str("flow", string(in.Flow)).Msg("store failed mid-flow")
	in.Err = err
	return f.abort(ctx, in, contractx.ReasonStoreFailure, promptx.StoreFailure, nil)
}

// release removes the parked session ahead of a commit. Once it succeeds a
// repeated confirmation finds no flow, whatever happens to the later clear.
func (f *Flows) release(ctx context.Context, in *GraphState) error {
	if f.sessions == nil {
		return nil
	}
	if err := f.sessions.Delete(ctx, in.SessionID); err != nil {
		return fmt.Errorf("release session before commit: %w", err)
	}
	return nil
}

// agentOptions lists agents as selectable choices, or reports that there are
// none.
func (f *Flows) agentOptions(ctx context.Context) ([]contractx.Option, error) {
	agents, err := f.entities.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	opts := make([]contractx.Option, 0, len(agents))
	for _, a := range agents {
		opts = append(opts, contractx.Option{UID: a.UID, Label: a.Name})
	}
	return opts, nil
}

func (f *Flows) newSession(in *GraphState, flow statex.FlowKind) *statex.Session {
	return statex.NewSession(in.SessionID, f.newFlowID(), flow, in.Now)
}

func formatPrice(p *int64) string {
	if p == nil {
		return "no price"
	}
	return humanize.Comma(*p)
}

func orderVars(o contractx.Order) promptx.Vars {
	status := "in progress"
	if o.EndDate != nil {
		status = "paid " + o.EndDate.Format(dateLayout)
	}
	return promptx.Vars{
		"uid":    strconv.FormatInt(o.UID, 10),
		"name":   o.Name,
		"price":  formatPrice(o.Price),
		"agent":  o.Agent.Name,
		"start":  o.StartDate.Format(dateLayout),
		"status": status,
	}
}

func uidVars(uid int64) promptx.Vars {
	return promptx.Vars{"uid": strconv.FormatInt(uid, 10)}
}

func verifyVars(fields statex.Fields, tokens Tokens) promptx.Vars {
	return promptx.Vars{
		"name":    fields.Name,
		"price":   formatPrice(fields.Price),
		"agent":   fields.AgentName,
		"confirm": first(tokens.Confirm),
	}
}

func errUnhandledFlow(flow statex.FlowKind) error {
	return fmt.Errorf("%w: %q", statex.ErrUnknownFlow, flow)
}
