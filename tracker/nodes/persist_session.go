package conversationnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
)

// PersistSession writes the outcome of the step back to the session store.
func PersistSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", ErrIncompleteState)
	}

	switch in.Persist {
	case PersistSave:
		if in.Session == nil {
			return nil, fmt.Errorf("%w: nothing to save", ErrIncompleteState)
		}
		in.Session.Touch(in.Now)
		if err := in.Session.Validate(); err != nil {
			return nil, fmt.Errorf("state validation failed: %w", err)
		}
		if err := store.Save(ctx, in.Session); err != nil {
			return nil, err
		}
	case PersistClear:
		if err := store.Delete(ctx, in.SessionID); err != nil {
			if !in.Reply.Done() {
				return nil, err
			}
			// The flow is over and its reply must reach the caller.
			log.Error().Err(err).Str("session_id", in.SessionID).Msg("clear finished session")
			if in.Reply.Outcome == contractx.OutcomeAborted && in.Err == nil {
				in.Err = fmt.Errorf("clear session: %w", err)
			}
		}
	}
	return in, nil
}
