package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
	nodex "github.com/tanpawarit/money-tracker/tracker/nodes"
	promptx "github.com/tanpawarit/money-tracker/tracker/prompt"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
)

// Config holds the reserved words of the dialogue, as comma separated lists
// in the environment.
type Config struct {
	NoPriceTokens []string `split_words:"true" default:"no price,-"`
	CancelTokens  []string `split_words:"true" default:"back,cancel"`
	ConfirmTokens []string `split_words:"true" default:"yes,y,confirm"`
}

func (c Config) tokens() nodex.Tokens {
	defaults := nodex.DefaultTokens()
	tokens := nodex.NewTokens(c.NoPriceTokens, c.CancelTokens, c.ConfirmTokens)
	if len(tokens.NoPrice) == 0 {
		tokens.NoPrice = defaults.NoPrice
	}
	if len(tokens.Cancel) == 0 {
		tokens.Cancel = defaults.Cancel
	}
	if len(tokens.Confirm) == 0 {
		tokens.Confirm = defaults.Confirm
	}
	return tokens
}

type Option func(*options)

type options struct {
	now     func() time.Time
	flowIDs func() string
}

// WithClock overrides the clock stamped on sessions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFlowIDs overrides the generator of flow ids.
func WithFlowIDs(gen func() string) Option {
	return func(o *options) {
		o.flowIDs = gen
	}
}

// Engine drives the multi-step flows. Operations on one session id run one
// at a time; different sessions run concurrently.
type Engine struct {
	entities contractx.EntityStore
	sessions statex.Store
	flows    *nodex.Flows
	locks    *sessionLocks

	submitRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
	beginRunner  compose.Runnable[nodex.BeginInput, nodex.GraphOutput]

	now func() time.Time
}

// New builds an Engine. entities is normally the cache layer so that reads
// made by flows and by direct queries share one coherent view.
func New(
	entities contractx.EntityStore,
	sessions statex.Store,
	prompts promptx.PromptSet,
	cfg Config,
	opts ...Option,
) (*Engine, error) {
	if entities == nil {
		return nil, errors.New("entity store is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	flows, err := nodex.NewFlows(entities, prompts, cfg.tokens(),
		nodex.WithFlowIDs(o.flowIDs),
		nodex.WithSessionStore(sessions),
	)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		entities: entities,
		sessions: sessions,
		flows:    flows,
		locks:    newSessionLocks(),
		now:      o.now,
	}

	ctx := context.Background()
	if e.submitRunner, err = e.compileSubmitGraph(ctx); err != nil {
		return nil, err
	}
	if e.beginRunner, err = e.compileBeginGraph(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

type BeginOption func(*nodex.BeginInput)

// WithOrderUID names the order a set_price flow works on.
func WithOrderUID(uid int64) BeginOption {
	return func(in *nodex.BeginInput) {
		in.OrderUID = uid
	}
}

// BeginFlow starts kind for the session, replacing any flow in progress.
// The returned error is non-nil when a store failure aborted the flow; the
// Reply still describes the abort.
func (e *Engine) BeginFlow(ctx context.Context, sessionID string, kind statex.FlowKind, opts ...BeginOption) (contractx.Reply, error) {
	in := nodex.BeginInput{SessionID: sessionID, Flow: kind}
	for _, opt := range opts {
		if opt != nil {
			opt(&in)
		}
	}
	return e.begin(ctx, in)
}

// CreateOrderShortcut parses "create_order;<name>;<price>;<agent name>" and
// parks the session at the verify step of add_order.
func (e *Engine) CreateOrderShortcut(ctx context.Context, sessionID string, text string) (contractx.Reply, error) {
	if strings.TrimSpace(text) == "" {
		text = nodex.ShortcutCommand
	}
	return e.begin(ctx, nodex.BeginInput{SessionID: sessionID, Shortcut: text})
}

func (e *Engine) begin(ctx context.Context, in nodex.BeginInput) (contractx.Reply, error) {
	log.Debug().Str("session_id", in.SessionID).Str("flow", string(in.Flow)).Msg("conversation: begin flow")

	unlock := e.locks.lock(strings.TrimSpace(in.SessionID))
	defer unlock()

	out, err := e.beginRunner.Invoke(ctx, in)
	if err != nil {
		return contractx.Reply{}, err
	}
	return out.Reply, out.Err
}

// SubmitInput feeds one user turn to the session's active flow. It returns
// ErrNoActiveFlow when nothing is running and ErrUnexpectedInput when the
// input kind does not fit the current step; neither touches the session.
func (e *Engine) SubmitInput(ctx context.Context, sessionID string, input contractx.Input) (contractx.Reply, error) {
	log.Debug().Str("session_id", sessionID).Bool("selection", input.IsSelection()).Msg("conversation: submit input")

	unlock := e.locks.lock(strings.TrimSpace(sessionID))
	defer unlock()

	out, err := e.submitRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Input:     input,
	})
	if err != nil {
		return contractx.Reply{}, err
	}
	return out.Reply, out.Err
}

// CancelFlow clears the session. Cancelling with no active flow is a no-op.
func (e *Engine) CancelFlow(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return contractx.ErrInvalidSession
	}

	unlock := e.locks.lock(sessionID)
	defer unlock()

	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("cancel flow: %w", err)
	}
	return nil
}

// ActiveFlow returns the session's current flow, or ErrNoActiveFlow.
func (e *Engine) ActiveFlow(ctx context.Context, sessionID string) (*statex.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, contractx.ErrInvalidSession
	}

	unlock := e.locks.lock(sessionID)
	defer unlock()

	st, err := e.sessions.Load(ctx, sessionID)
	if errors.Is(err, statex.ErrStateNotFound) {
		return nil, contractx.ErrNoActiveFlow
	}
	return st, err
}

func (e *Engine) ListAgents(ctx context.Context) ([]contractx.Agent, error) {
	return e.entities.ListAgents(ctx)
}

func (e *Engine) GetAgent(ctx context.Context, uid int64) (contractx.Agent, error) {
	return e.entities.GetAgent(ctx, uid)
}

func (e *Engine) ListOrders(ctx context.Context) ([]contractx.Order, error) {
	return e.entities.ListOrders(ctx)
}

func (e *Engine) ListInProgressOrders(ctx context.Context) ([]contractx.Order, error) {
	return e.entities.ListInProgressOrders(ctx)
}

func (e *Engine) ListPaidOrders(ctx context.Context) ([]contractx.Order, error) {
	return e.entities.ListPaidOrders(ctx)
}

func (e *Engine) GetOrder(ctx context.Context, uid int64) (contractx.Order, error) {
	return e.entities.GetOrder(ctx, uid)
}

func (e *Engine) DeleteAgent(ctx context.Context, uid int64) error {
	log.Info().Int64("agent_uid", uid).Msg("conversation: delete agent")
	return e.entities.DeleteAgent(ctx, uid)
}

func (e *Engine) DeleteOrder(ctx context.Context, uid int64) error {
	log.Info().Int64("order_uid", uid).Msg("conversation: delete order")
	return e.entities.DeleteOrder(ctx, uid)
}

func (e *Engine) EndOrder(ctx context.Context, uid int64) error {
	log.Info().Int64("order_uid", uid).Msg("conversation: end order")
	return e.entities.EndOrder(ctx, uid)
}

func (e *Engine) SetOrderPrice(ctx context.Context, uid int64, price int64) error {
	log.Info().Int64("order_uid", uid).Int64("price", price).Msg("conversation: set order price")
	return e.entities.SetOrderPrice(ctx, uid, price)
}
