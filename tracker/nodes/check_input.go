package conversationnode

import (
	"fmt"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
)

// CheckInput rejects input of the wrong kind for the current step before
// anything is touched. The agent step takes a selection, every other step
// takes text, and a cancel token is accepted everywhere.
func CheckInput(in *GraphState, tokens Tokens) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", ErrIncompleteState)
	}

	step := in.Session.Step
	if in.Input.IsSelection() {
		if step != statex.StepAgent {
			return nil, fmt.Errorf("%w: step %s expects text", contractx.ErrUnexpectedInput, step)
		}
		return in, nil
	}

	if step == statex.StepAgent && !tokens.IsCancel(in.Text) {
		return nil, fmt.Errorf("%w: step %s expects a selection", contractx.ErrUnexpectedInput, step)
	}
	return in, nil
}
