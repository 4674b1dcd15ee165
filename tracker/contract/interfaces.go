package contract

import "context"

// EntityStore is the source of truth for agents and orders.
type EntityStore interface {
	AddAgent(ctx context.Context, name string) (Agent, error)
	GetAgent(ctx context.Context, uid int64) (Agent, error)
	ListAgents(ctx context.Context) ([]Agent, error)
	DeleteAgent(ctx context.Context, uid int64) error

	AddOrder(ctx context.Context, name string, agentUID int64, price *int64) (Order, error)
	GetOrder(ctx context.Context, uid int64) (Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	ListInProgressOrders(ctx context.Context) ([]Order, error)
	ListPaidOrders(ctx context.Context) ([]Order, error)
	SetOrderPrice(ctx context.Context, uid int64, price int64) error
	EndOrder(ctx context.Context, uid int64) error
	DeleteOrder(ctx context.Context, uid int64) error
}
