package conversationnode

import "fmt"

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", ErrIncompleteState)
	}
	if in.Reply.Outcome == "" {
		return GraphOutput{}, fmt.Errorf("%w: step produced no reply", ErrIncompleteState)
	}

	reply := in.Reply
	reply.Flow = in.Flow
	if reply.Done() {
		reply.Step = ""
	}
	return GraphOutput{Reply: reply, Err: in.Err}, nil
}
