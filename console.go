package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
	"github.com/tanpawarit/money-tracker/tracker/conversation"
	nodex "github.com/tanpawarit/money-tracker/tracker/nodes"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
)

const consoleHelp = `commands:
  /add_order  /add_agent  /find_order  /set_price <order>  /cancel
  /agents  /orders  /history  /order <uid>
  /end <order>  /del_order <order>  /del_agent <agent>
  create_order;<name>;<price>;<agent>
  #<uid> picks an agent when asked; anything else answers the current step`

// runConsole drives the engine from a line oriented stream until in is
// exhausted or ctx is done.
func runConsole(ctx context.Context, engine *conversation.Engine, in io.Reader, out io.Writer, sessionID string) error {
	fmt.Fprintln(out, consoleHelp)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := handleLine(ctx, engine, out, sessionID, line); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func handleLine(ctx context.Context, engine *conversation.Engine, out io.Writer, sessionID, line string) error {
	if nodex.IsShortcut(line) {
		reply, err := engine.CreateOrderShortcut(ctx, sessionID, line)
		printReply(out, reply)
		return err
	}

	if uid, ok := strings.CutPrefix(line, "#"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(uid), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", contractx.ErrInvalidInput, uid)
		}
		reply, err := engine.SubmitInput(ctx, sessionID, contractx.SelectionInput(n))
		if err == nil {
			printReply(out, reply)
		}
		return err
	}

	if !strings.HasPrefix(line, "/") {
		reply, err := engine.SubmitInput(ctx, sessionID, contractx.TextInput(line))
		if errors.Is(err, contractx.ErrNoActiveFlow) {
			fmt.Fprintln(out, consoleHelp)
			return nil
		}
		if err == nil || errors.Is(err, contractx.ErrStore) {
			printReply(out, reply)
		}
		return err
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "add_order":
		return begin(ctx, engine, out, sessionID, statex.FlowAddOrder)
	case "add_agent":
		return begin(ctx, engine, out, sessionID, statex.FlowAddAgent)
	case "find_order":
		return begin(ctx, engine, out, sessionID, statex.FlowFindOrder)
	case "set_price":
		uid, err := parseUID(arg)
		if err != nil {
			return err
		}
		return begin(ctx, engine, out, sessionID, statex.FlowSetPrice, conversation.WithOrderUID(uid))
	case "cancel":
		if err := engine.CancelFlow(ctx, sessionID); err != nil {
			return err
		}
		fmt.Fprintln(out, "Cancelled.")
		return nil
	case "agents":
		agents, err := engine.ListAgents(ctx)
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			fmt.Fprintln(out, "No agents yet.")
		}
		for _, a := range agents {
			fmt.Fprintf(out, "#%d %s\n", a.UID, a.Name)
		}
		return nil
	case "orders":
		orders, err := engine.ListInProgressOrders(ctx)
		if err != nil {
			return err
		}
		printOrders(out, orders, "No orders in progress.")
		return nil
	case "history":
		orders, err := engine.ListPaidOrders(ctx)
		if err != nil {
			return err
		}
		printOrders(out, orders, "No paid orders.")
		return nil
	case "order":
		return withUID(arg, func(uid int64) error {
			order, err := engine.GetOrder(ctx, uid)
			if err != nil {
				return err
			}
			printOrders(out, []contractx.Order{order}, "")
			return nil
		})
	case "end":
		return withUID(arg, func(uid int64) error {
			return done(out, engine.EndOrder(ctx, uid), "Order #%d paid.", uid)
		})
	case "del_order":
		return withUID(arg, func(uid int64) error {
			return done(out, engine.DeleteOrder(ctx, uid), "Order #%d deleted.", uid)
		})
	case "del_agent":
		return withUID(arg, func(uid int64) error {
			return done(out, engine.DeleteAgent(ctx, uid), "Agent #%d deleted.", uid)
		})
	default:
		fmt.Fprintln(out, consoleHelp)
		return nil
	}
}

func begin(ctx context.Context, engine *conversation.Engine, out io.Writer, sessionID string, kind statex.FlowKind, opts ...conversation.BeginOption) error {
	reply, err := engine.BeginFlow(ctx, sessionID, kind, opts...)
	if reply.Outcome != "" {
		printReply(out, reply)
	}
	return err
}

func printReply(out io.Writer, reply contractx.Reply) {
	if reply.Message != "" {
		fmt.Fprintln(out, reply.Message)
	}
	if reply.Prompt != "" {
		fmt.Fprintln(out, reply.Prompt)
	}
	for _, opt := range reply.Options {
		fmt.Fprintf(out, "  #%d %s\n", opt.UID, opt.Label)
	}
}

func printOrders(out io.Writer, orders []contractx.Order, empty string) {
	if len(orders) == 0 {
		fmt.Fprintln(out, empty)
		return
	}
	for _, o := range orders {
		price := "no price"
		if o.Price != nil {
			price = humanize.Comma(*o.Price)
		}
		line := fmt.Sprintf("#%d %s | %s | %s | since %s", o.UID, o.Name, price, o.Agent.Name, o.StartDate.Format("2006-01-02"))
		if o.EndDate != nil {
			line += " | paid " + o.EndDate.Format("2006-01-02")
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Total: %s\n", humanize.Comma(contractx.SumPrices(orders)))
}

func parseUID(arg string) (int64, error) {
	uid, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || uid <= 0 {
		return 0, fmt.Errorf("%w: expected a number, got %q", contractx.ErrInvalidInput, arg)
	}
	return uid, nil
}

func withUID(arg string, fn func(uid int64) error) error {
	uid, err := parseUID(arg)
	if err != nil {
		return err
	}
	return fn(uid)
}

func done(out io.Writer, err error, format string, uid int64) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(out, format+"\n", uid)
	return nil
}
