package conversationnode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
	promptx "github.com/tanpawarit/money-tracker/tracker/prompt"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
)

// ShortcutCommand is the first field of a create_order shortcut line:
// create_order;<name>;<price>;<agent name>.
const ShortcutCommand = "create_order"

// IsShortcut reports whether text is meant as an order creation shortcut.
func IsShortcut(text string) bool {
	head, _, _ := strings.Cut(strings.TrimSpace(text), ";")
	return strings.EqualFold(strings.TrimSpace(head), ShortcutCommand)
}

// StartFlow begins a new flow. Whatever session existed before is replaced,
// or cleared when the flow cannot start.
func StartFlow(ctx context.Context, in *GraphState, flows *Flows) (*GraphState, error) {
	if in == nil || in.Begin == nil {
		return nil, fmt.Errorf("%w: begin request is nil", ErrIncompleteState)
	}

	var err error
	switch {
	case strings.TrimSpace(in.Begin.Shortcut) != "":
		err = flows.startShortcut(ctx, in)
	case in.Flow == statex.FlowAddOrder:
		err = flows.startAddOrder(ctx, in)
	case in.Flow == statex.FlowAddAgent:
		in.Session = flows.newSession(in, statex.FlowAddAgent)
		err = flows.prompt(ctx, in, promptx.AgentName, nil)
	case in.Flow == statex.FlowSetPrice:
		err = flows.startSetPrice(ctx, in)
	case in.Flow == statex.FlowFindOrder:
		in.Session = flows.newSession(in, statex.FlowFindOrder)
		err = flows.prompt(ctx, in, promptx.FindOrder, nil)
	default:
		err = errUnhandledFlow(in.Flow)
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (f *Flows) startAddOrder(ctx context.Context, in *GraphState) error {
	options, err := f.agentOptions(ctx)
	if err != nil {
		return f.fail(ctx, in, err)
	}
	if len(options) == 0 {
		return f.abort(ctx, in, contractx.ReasonNoAgents, promptx.NoAgents, nil)
	}
	in.Session = f.newSession(in, statex.FlowAddOrder)
	return f.prompt(ctx, in, promptx.OrderName, nil)
}

func (f *Flows) startSetPrice(ctx context.Context, in *GraphState) error {
	uid := in.Begin.OrderUID
	order, err := f.entities.GetOrder(ctx, uid)
	switch {
	case errors.Is(err, contractx.ErrNotFound):
		return f.abort(ctx, in, contractx.ReasonOrderMissing, promptx.OrderMissing, uidVars(uid))
	case err != nil:
		return f.fail(ctx, in, err)
	case order.HasPrice():
		return f.abort(ctx, in, contractx.ReasonAlreadyPriced, promptx.AlreadyPriced, uidVars(uid))
	}

	in.Session = f.newSession(in, statex.FlowSetPrice)
	in.Session.Fields.OrderUID = order.UID
	return f.prompt(ctx, in, promptx.SetPrice, orderVars(order))
}

// startShortcut fills every add_order field from one line and parks the
// session at the verify step. A malformed line leaves no session behind.
func (f *Flows) startShortcut(ctx context.Context, in *GraphState) error {
	parts := strings.Split(strings.TrimSpace(in.Begin.Shortcut), ";")
	if len(parts) != 4 || !strings.EqualFold(strings.TrimSpace(parts[0]), ShortcutCommand) {
		return f.rejectShortcut(ctx, in, contractx.ReasonInvalidShortcut, promptx.InvalidShortcut, nil)
	}

	name := strings.TrimSpace(parts[1])
	if name == "" {
		return f.rejectShortcut(ctx, in, contractx.ReasonInvalidName, promptx.InvalidName, nil)
	}
	price, ok := parsePrice(parts[2], f.tokens)
	if !ok {
		return f.rejectShortcut(ctx, in, contractx.ReasonInvalidPrice, promptx.InvalidPrice, nil)
	}

	agents, err := f.entities.ListAgents(ctx)
	if err != nil {
		return f.fail(ctx, in, err)
	}
	if len(agents) == 0 {
		return f.abort(ctx, in, contractx.ReasonNoAgents, promptx.NoAgents, nil)
	}
	agentName := strings.TrimSpace(parts[3])
	var agent *contractx.Agent
	for i := range agents {
		if strings.EqualFold(agents[i].Name, agentName) {
			agent = &agents[i]
			break
		}
	}
	if agent == nil {
		return f.rejectShortcut(ctx, in, contractx.ReasonUnknownAgent, promptx.UnknownAgent, promptx.Vars{"agent": agentName})
	}

	in.Session = f.newSession(in, statex.FlowAddOrder)
	err = in.Session.Advance(statex.StepVerify, statex.Fields{
		Name:           name,
		Price:          price,
		PriceCollected: true,
		AgentUID:       agent.UID,
		AgentName:      agent.Name,
	}, in.Now)
	if err != nil {
		return err
	}
	return f.prompt(ctx, in, promptx.OrderVerify, verifyVars(in.Session.Fields, f.tokens))
}

func (f *Flows) rejectShortcut(ctx context.Context, in *GraphState, reason contractx.Reason, key promptx.Key, vars promptx.Vars) error {
	if err := f.reject(ctx, in, reason, key, vars); err != nil {
		return err
	}
	in.Persist = PersistClear
	return nil
}
