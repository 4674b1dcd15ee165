package conversationnode

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
	promptx "github.com/tanpawarit/money-tracker/tracker/prompt"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
)

// ApplyStep consumes the input for the session's current step. It either
// advances the session, ends the flow (committing at most once), or rejects
// the input and leaves the session untouched.
func ApplyStep(ctx context.Context, in *GraphState, flows *Flows) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", ErrIncompleteState)
	}

	if !in.Input.IsSelection() && flows.tokens.IsCancel(in.Text) {
		if err := flows.abort(ctx, in, contractx.ReasonCancelled, promptx.Cancelled, nil); err != nil {
			return nil, err
		}
		return in, nil
	}

	var err error
	switch in.Session.Flow {
	case statex.FlowAddOrder:
		err = flows.applyAddOrder(ctx, in)
	case statex.FlowAddAgent:
		err = flows.applyAddAgent(ctx, in)
	case statex.FlowSetPrice:
		err = flows.applySetPrice(ctx, in)
	case statex.FlowFindOrder:
		err = flows.applyFindOrder(ctx, in)
	default:
		err = errUnhandledFlow(in.Session.Flow)
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (f *Flows) applyAddOrder(ctx context.Context, in *GraphState) error {
	st := in.Session
	switch st.Step {
	case statex.StepName:
		if in.Text == "" {
			return f.reject(ctx, in, contractx.ReasonInvalidName, promptx.InvalidName, nil)
		}
		if err := st.Advance(statex.StepPrice, statex.Fields{Name: in.Text}, in.Now); err != nil {
			return err
		}
		return f.prompt(ctx, in, promptx.OrderPrice, promptx.Vars{
			"name":     st.Fields.Name,
			"no_price": first(f.tokens.NoPrice),
		})

	case statex.StepPrice:
		price, ok := parsePrice(in.Text, f.tokens)
		if !ok {
			return f.reject(ctx, in, contractx.ReasonInvalidPrice, promptx.InvalidPrice, nil)
		}
		options, err := f.agentOptions(ctx)
		if err != nil {
			return f.fail(ctx, in, err)
		}
		if len(options) == 0 {
			return f.abort(ctx, in, contractx.ReasonNoAgents, promptx.NoAgents, nil)
		}
		if err := st.Advance(statex.StepAgent, statex.Fields{Price: price, PriceCollected: true}, in.Now); err != nil {
			return err
		}
		if err := f.prompt(ctx, in, promptx.OrderAgent, promptx.Vars{"price": formatPrice(price)}); err != nil {
			return err
		}
		in.Reply.Options = options
		return nil

	case statex.StepAgent:
		// The agent may have been deleted since the options were listed.
		agent, err := f.entities.GetAgent(ctx, *in.Input.Selection)
		switch {
		case errors.Is(err, contractx.ErrNotFound):
			return f.abort(ctx, in, contractx.ReasonAgentMissing, promptx.AgentMissing, nil)
		case err != nil:
			return f.fail(ctx, in, err)
		}
		if err := st.Advance(statex.StepVerify, statex.Fields{AgentUID: agent.UID, AgentName: agent.Name}, in.Now); err != nil {
			return err
		}
		return f.prompt(ctx, in, promptx.OrderVerify, verifyVars(st.Fields, f.tokens))

	case statex.StepVerify:
		if !f.tokens.IsConfirm(in.Text) {
			return f.abort(ctx, in, contractx.ReasonDeclined, promptx.Declined, nil)
		}
		if err := f.release(ctx, in); err != nil {
			return f.fail(ctx, in, err)
		}
		order, err := f.entities.AddOrder(ctx, st.Fields.Name, st.Fields.AgentUID, st.Fields.Price)
		switch {
		case errors.Is(err, contractx.ErrInvalidReference), errors.Is(err, contractx.ErrNotFound):
			return f.abort(ctx, in, contractx.ReasonAgentMissing, promptx.AgentMissing, nil)
		case err != nil:
			return f.fail(ctx, in, err)
		}
		if err := f.complete(ctx, in, promptx.OrderCreated, orderVars(order)); err != nil {
			return err
		}
		in.Reply.Order = &order
		return nil
	}
	return fmt.Errorf("%w: flow=%s step=%s", statex.ErrStepMismatch, st.Flow, st.Step)
}

func (f *Flows) applyAddAgent(ctx context.Context, in *GraphState) error {
	if in.Session.Step != statex.StepName {
		return fmt.Errorf("%w: flow=%s step=%s", statex.ErrStepMismatch, in.Session.Flow, in.Session.Step)
	}
	if in.Text == "" {
		return f.reject(ctx, in, contractx.ReasonInvalidName, promptx.InvalidName, nil)
	}
	if err := f.release(ctx, in); err != nil {
		return f.fail(ctx, in, err)
	}
	agent, err := f.entities.AddAgent(ctx, in.Text)
	if err != nil {
		return f.fail(ctx, in, err)
	}
	if err := f.complete(ctx, in, promptx.AgentCreated, promptx.Vars{
		"uid":  strconv.FormatInt(agent.UID, 10),
		"name": agent.Name,
	}); err != nil {
		return err
	}
	in.Reply.Agent = &agent
	return nil
}

func (f *Flows) applySetPrice(ctx context.Context, in *GraphState) error {
	st := in.Session
	if st.Step != statex.StepPrice {
		return fmt.Errorf("%w: flow=%s step=%s", statex.ErrStepMismatch, st.Flow, st.Step)
	}
	price, ok := parseDigits(in.Text)
	if !ok {
		return f.reject(ctx, in, contractx.ReasonInvalidPrice, promptx.InvalidPrice, nil)
	}

	if err := f.release(ctx, in); err != nil {
		return f.fail(ctx, in, err)
	}
	uid := st.Fields.OrderUID
	err := f.entities.SetOrderPrice(ctx, uid, price)
	switch {
	case errors.Is(err, contractx.ErrAlreadySet):
		return f.abort(ctx, in, contractx.ReasonAlreadyPriced, promptx.AlreadyPriced, uidVars(uid))
	case errors.Is(err, contractx.ErrNotFound):
		return f.abort(ctx, in, contractx.ReasonOrderMissing, promptx.OrderMissing, uidVars(uid))
	case err != nil:
		return f.fail(ctx, in, err)
	}
	return f.complete(ctx, in, promptx.PriceSet, promptx.Vars{
		"uid":   strconv.FormatInt(uid, 10),
		"price": formatPrice(&price),
	})
}

func (f *Flows) applyFindOrder(ctx context.Context, in *GraphState) error {
	st := in.Session
	if st.Step != statex.StepUID {
		return fmt.Errorf("%w: flow=%s step=%s", statex.ErrStepMismatch, st.Flow, st.Step)
	}
	uid, ok := parseDigits(in.Text)
	if !ok {
		return f.reject(ctx, in, contractx.ReasonInvalidUID, promptx.InvalidUID, nil)
	}

	order, err := f.entities.GetOrder(ctx, uid)
	switch {
	case errors.Is(err, contractx.ErrNotFound):
		return f.abort(ctx, in, contractx.ReasonOrderMissing, promptx.OrderMissing, uidVars(uid))
	case err != nil:
		return f.fail(ctx, in, err)
	}
	if err := f.complete(ctx, in, promptx.OrderFound, orderVars(order)); err != nil {
		return err
	}
	in.Reply.Order = &order
	return nil
}
