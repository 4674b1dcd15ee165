package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
	storex "github.com/tanpawarit/money-tracker/tracker/store"
	"github.com/tanpawarit/money-tracker/tracker/store/storetest"
)

var fixedNow = time.Date(2026, time.October, 16, 15, 4, 5, 0, time.UTC)

func newStore(t *testing.T) *storex.Store {
	return storetest.New(t, storex.WithClock(storetest.FixedClock(fixedNow)))
}

func TestListAgentsReflectsAddsAndDeletesInInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	alice, err := s.AddAgent(ctx, "Alice")
	require.NoError(t, err)
	bob, err := s.AddAgent(ctx, "Bob")
	require.NoError(t, err)
	carol, err := s.AddAgent(ctx, "Carol")
	require.NoError(t, err)
	assert.Less(t, alice.UID, bob.UID)
	assert.Less(t, bob.UID, carol.UID)

	require.NoError(t, s.DeleteAgent(ctx, bob.UID))
	dave, err := s.AddAgent(ctx, "Dave")
	require.NoError(t, err)

	agents, err := s.ListAgents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []contractx.Agent{alice, carol, dave}, agents)
}

func TestGetAgent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	added, err := s.AddAgent(ctx, "Alice")
	require.NoError(t, err)

	got, err := s.GetAgent(ctx, added.UID)
	require.NoError(t, err)
	assert.Equal(t, added, got)

	_, err = s.GetAgent(ctx, added.UID+100)
	assert.ErrorIs(t, err, contractx.ErrNotFound)
}

func TestDeleteMissingRowsReportNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	assert.ErrorIs(t, s.DeleteAgent(ctx, 42), contractx.ErrNotFound)
	assert.ErrorIs(t, s.DeleteOrder(ctx, 42), contractx.ErrNotFound)
}

func TestAddOrderRejectsMissingAgent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	_, err := s.AddOrder(ctx, "Laptop", 7, nil)
	require.ErrorIs(t, err, contractx.ErrInvalidReference)

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders, "a rejected order must not be inserted")
}

func TestAddOrderPersistsFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	agent, err := s.AddAgent(ctx, "Alice")
	require.NoError(t, err)

	created, err := s.AddOrder(ctx, "Laptop", agent.UID, contractx.Int64Ptr(1500))
	require.NoError(t, err)
	assert.NotZero(t, created.UID)
	assert.Equal(t, agent, created.Agent)
	assert.Equal(t, time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC), created.StartDate)
	assert.True(t, created.InProgress())

	got, err := s.GetOrder(ctx, created.UID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	deferred, err := s.AddOrder(ctx, "Desk", agent.UID, nil)
	require.NoError(t, err)
	got, err = s.GetOrder(ctx, deferred.UID)
	require.NoError(t, err)
	assert.Nil(t, got.Price)
}

func TestAddOrderRejectsNegativePrice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	agent, err := s.AddAgent(ctx, "Alice")
	require.NoError(t, err)
	_, err = s.AddOrder(ctx, "Laptop", agent.UID, contractx.Int64Ptr(-1))
	assert.ErrorIs(t, err, contractx.ErrInvalidInput)
}

func TestSetOrderPriceOnlyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	agent, err := s.AddAgent(ctx, "Alice")
	require.NoError(t, err)
	order, err := s.AddOrder(ctx, "Laptop", agent.UID, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetOrderPrice(ctx, order.UID, 900))
	err = s.SetOrderPrice(ctx, order.UID, 1000)
	require.ErrorIs(t, err, contractx.ErrAlreadySet)

	got, err := s.GetOrder(ctx, order.UID)
	require.NoError(t, err)
	require.NotNil(t, got.Price)
	assert.Equal(t, int64(900), *got.Price)

	priced, err := s.AddOrder(ctx, "Desk", agent.UID, contractx.Int64Ptr(10))
	require.NoError(t, err)
	assert.ErrorIs(t, s.SetOrderPrice(ctx, priced.UID, 20), contractx.ErrAlreadySet)

	assert.ErrorIs(t, s.SetOrderPrice(ctx, 999, 20), contractx.ErrNotFound)
	assert.ErrorIs(t, s.SetOrderPrice(ctx, order.UID, -5), contractx.ErrInvalidInput)
}

func TestEndOrderIsNotIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	agent, err := s.AddAgent(ctx, "Alice")
	require.NoError(t, err)
	order, err := s.AddOrder(ctx, "Laptop", agent.UID, nil)
	require.NoError(t, err)

	require.NoError(t, s.EndOrder(ctx, order.UID))

	got, err := s.GetOrder(ctx, order.UID)
	require.NoError(t, err)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC), *got.EndDate)

	assert.ErrorIs(t, s.EndOrder(ctx, order.UID), contractx.ErrAlreadyEnded)
	assert.ErrorIs(t, s.EndOrder(ctx, order.UID+1), contractx.ErrNotFound)
}

func TestOrderListsSplitByPaymentState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	agent, err := s.AddAgent(ctx, "Alice")
	require.NoError(t, err)
	first, err := s.AddOrder(ctx, "Laptop", agent.UID, contractx.Int64Ptr(100))
	require.NoError(t, err)
	second, err := s.AddOrder(ctx, "Desk", agent.UID, contractx.Int64Ptr(50))
	require.NoError(t, err)
	third, err := s.AddOrder(ctx, "Chair", agent.UID, nil)
	require.NoError(t, err)

	require.NoError(t, s.EndOrder(ctx, second.UID))

	all, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{first.UID, second.UID, third.UID}, uids(all))

	inProgress, err := s.ListInProgressOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{first.UID, third.UID}, uids(inProgress))
	assert.Equal(t, int64(100), contractx.SumPrices(inProgress))

	paid, err := s.ListPaidOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{second.UID}, uids(paid))
}

func TestDeletedAgentHidesItsOrders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	keep, err := s.AddAgent(ctx, "Alice")
	require.NoError(t, err)
	gone, err := s.AddAgent(ctx, "Bob")
	require.NoError(t, err)

	kept, err := s.AddOrder(ctx, "Laptop", keep.UID, nil)
	require.NoError(t, err)
	orphan, err := s.AddOrder(ctx, "Desk", gone.UID, nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteAgent(ctx, gone.UID))

	_, err = s.GetOrder(ctx, orphan.UID)
	assert.ErrorIs(t, err, contractx.ErrNotFound)
	assert.ErrorIs(t, err, contractx.ErrDanglingReference)

	all, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{kept.UID}, uids(all))

	inProgress, err := s.ListInProgressOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{kept.UID}, uids(inProgress))
}

func TestDeleteOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	agent, err := s.AddAgent(ctx, "Alice")
	require.NoError(t, err)
	order, err := s.AddOrder(ctx, "Laptop", agent.UID, nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteOrder(ctx, order.UID))
	_, err = s.GetOrder(ctx, order.UID)
	assert.ErrorIs(t, err, contractx.ErrNotFound)
	assert.NotErrorIs(t, err, contractx.ErrDanglingReference)
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	s := newStore(t)
	cancel()

	_, err := s.ListAgents(ctx)
	assert.ErrorIs(t, err, contractx.ErrStore)
}

func uids(orders []contractx.Order) []int64 {
	out := make([]int64, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.UID)
	}
	return out
}
