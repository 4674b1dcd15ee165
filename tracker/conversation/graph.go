package conversation

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/tanpawarit/money-tracker/tracker/nodes"
)

func (e *Engine) compileSubmitGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, e.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSession(ctx, in, e.sessions)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_session: %w", err)
	}

	if err := graph.AddLambdaNode("check_input",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CheckInput(in, e.flows.Tokens())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node check_input: %w", err)
	}

	if err := graph.AddLambdaNode("apply_step",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ApplyStep(ctx, in, e.flows)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node apply_step: %w", err)
	}

	if err := e.addTailNodes(graph); err != nil {
		return nil, err
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_session"},
		{"load_session", "check_input"},
		{"check_input", "apply_step"},
		{"apply_step", "persist_session"},
		{"persist_session", "finalize_reply"},
		{"finalize_reply", compose.END},
	}
	if err := addEdges(graph, edges); err != nil {
		return nil, err
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("conversation.submit_input"))
	if err != nil {
		return nil, fmt.Errorf("compile submit graph: %w", err)
	}
	return runner, nil
}

func (e *Engine) compileBeginGraph(
	ctx context.Context,
) (compose.Runnable[nodex.BeginInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.BeginInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_begin",
		compose.InvokableLambda(func(ctx context.Context, in nodex.BeginInput) (*nodex.GraphState, error) {
			return nodex.ValidateBegin(in, e.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_begin: %w", err)
	}

	if err := graph.AddLambdaNode("start_flow",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.StartFlow(ctx, in, e.flows)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node start_flow: %w", err)
	}

	if err := e.addTailNodes(graph); err != nil {
		return nil, err
	}

	edges := [][2]string{
		{compose.START, "validate_begin"},
		{"validate_begin", "start_flow"},
		{"start_flow", "persist_session"},
		{"persist_session", "finalize_reply"},
		{"finalize_reply", compose.END},
	}
	if err := addEdges(graph, edges); err != nil {
		return nil, err
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("conversation.begin_flow"))
	if err != nil {
		return nil, fmt.Errorf("compile begin graph: %w", err)
	}
	return runner, nil
}

type graphBuilder interface {
	AddLambdaNode(key string, node *compose.Lambda, opts ...compose.GraphAddNodeOpt) error
	AddEdge(startNode, endNode string) error
}

// addTailNodes adds the persist and reply nodes both graphs end with.
func (e *Engine) addTailNodes(graph graphBuilder) error {
	if err := graph.AddLambdaNode("persist_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PersistSession(ctx, in, e.sessions)
		}),
	); err != nil {
		return fmt.Errorf("add node persist_session: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return fmt.Errorf("add node finalize_reply: %w", err)
	}
	return nil
}

func addEdges(graph graphBuilder, edges [][2]string) error {
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}
