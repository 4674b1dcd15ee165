package state

import (
	"errors"
	"testing"
	"time"
)

func TestFlowKindSteps(t *testing.T) {
	t.Parallel()

	if got := FlowAddOrder.FirstStep(); got != StepName {
		t.Fatalf("FirstStep(add_order) = %q", got)
	}
	if got := FlowSetPrice.FirstStep(); got != StepPrice {
		t.Fatalf("FirstStep(set_price) = %q", got)
	}
	if got := FlowKind("bogus").FirstStep(); got != StepNone {
		t.Fatalf("FirstStep(bogus) = %q", got)
	}
	if len(FlowAddOrder.Steps()) != 4 {
		t.Fatalf("add_order steps = %v", FlowAddOrder.Steps())
	}
}

func TestSessionAdvanceRejectsForeignStep(t *testing.T) {
	t.Parallel()

	st := NewSession("s1", "f1", FlowAddAgent, time.Now())
	err := st.Advance(StepVerify, Fields{}, time.Now())
	if !errors.Is(err, ErrStepMismatch) {
		t.Fatalf("Advance() error = %v, want ErrStepMismatch", err)
	}
	if st.Step != StepName {
		t.Fatalf("step changed on rejected advance: %q", st.Step)
	}
}

func TestFieldsMergeKeepsDeferredPrice(t *testing.T) {
	t.Parallel()

	f := Fields{Name: "Laptop"}
	f.Merge(Fields{PriceCollected: true})
	if !f.PriceCollected || f.Price != nil {
		t.Fatalf("deferred price not recorded: %+v", f)
	}

	price := int64(42)
	f.Merge(Fields{AgentUID: 3, AgentName: "Bob"})
	if f.Name != "Laptop" || f.AgentUID != 3 || !f.PriceCollected {
		t.Fatalf("merge dropped attributes: %+v", f)
	}

	f.Merge(Fields{Price: &price, PriceCollected: true})
	price = 0
	if f.Price == nil || *f.Price != 42 {
		t.Fatalf("merge shares price pointer: %+v", f)
	}
}

func TestSessionValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		st   *Session
		want error
	}{
		{"ok", NewSession("s", "f", FlowAddOrder, time.Now()), nil},
		{"empty id", NewSession(" ", "f", FlowAddOrder, time.Now()), ErrInvalidSession},
		{"unknown flow", &Session{SessionID: "s", Flow: "x", Step: StepName}, ErrUnknownFlow},
		{"missing order uid", NewSession("s", "f", FlowSetPrice, time.Now()), ErrStepMismatch},
	}
	for _, tc := range cases {
		err := tc.st.Validate()
		if tc.want == nil && err != nil {
			t.Fatalf("%s: Validate() error = %v", tc.name, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s: Validate() error = %v, want %v", tc.name, err, tc.want)
		}
	}
}
