package conversationnode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
)

func LoadSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", ErrIncompleteState)
	}

	st, err := store.Load(ctx, in.SessionID)
	if errors.Is(err, statex.ErrStateNotFound) {
		return nil, fmt.Errorf("%w: session=%s", contractx.ErrNoActiveFlow, in.SessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	in.Session = st
	in.Flow = st.Flow
	return in, nil
}
