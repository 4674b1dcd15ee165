package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
)

var _ contractx.EntityStore = (*Store)(nil)

// Store is the bun-backed EntityStore. It works against both the PostgreSQL
// and SQLite dialects.
type Store struct {
	db  bun.IDB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for start and end dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(db bun.IDB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Migrate creates the agents and orders tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{(*agentRow)(nil), (*orderRow)(nil)}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return storeError("create table", err)
		}
	}
	return nil
}

func (s *Store) AddAgent(ctx context.Context, name string) (contractx.Agent, error) {
	log.Debug().Str("name", name).Msg("store: add agent")

	if strings.TrimSpace(name) == "" {
		return contractx.Agent{}, fmt.Errorf("%w: agent name is empty", contractx.ErrInvalidInput)
	}

	row := &agentRow{Name: name}
	if _, err := s.db.NewInsert().Model(row).Returning("uid").Exec(ctx); err != nil {
		return contractx.Agent{}, storeError("insert agent", err)
	}
	return row.toAgent(), nil
}

func (s *Store) GetAgent(ctx context.Context, uid int64) (contractx.Agent, error) {
	log.Debug().Int64("agent_uid", uid).Msg("store: get agent")

	row := new(agentRow)
	err := s.db.NewSelect().Model(row).Where("a.uid = ?", uid).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.Agent{}, fmt.Errorf("%w: agent #%d", contractx.ErrNotFound, uid)
	}
	if err != nil {
		return contractx.Agent{}, storeError("select agent", err)
	}
	return row.toAgent(), nil
}

func (s *Store) ListAgents(ctx context.Context) ([]contractx.Agent, error) {
	log.Debug().Msg("store: list agents")

	var rows []agentRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("a.uid ASC").Scan(ctx); err != nil {
		return nil, storeError("select agents", err)
	}
	agents := make([]contractx.Agent, 0, len(rows))
	for i := range rows {
		agents = append(agents, rows[i].toAgent())
	}
	return agents, nil
}

// DeleteAgent leaves orders that reference the agent in place; they become
// unresolvable and are hidden from reads.
func (s *Store) DeleteAgent(ctx context.Context, uid int64) error {
	log.Debug().Int64("agent_uid", uid).Msg("store: delete agent")

	res, err := s.db.NewDelete().Model((*agentRow)(nil)).Where("uid = ?", uid).Exec(ctx)
	if err != nil {
		return storeError("delete agent", err)
	}
	return requireAffected(res, fmt.Errorf("%w: agent #%d", contractx.ErrNotFound, uid))
}

func (s *Store) AddOrder(ctx context.Context, name string, agentUID int64, price *int64) (contractx.Order, error) {
	log.Debug().Str("name", name).Int64("agent_uid", agentUID).Interface("price", price).Msg("store: add order")

	if price != nil && *price < 0 {
		return contractx.Order{}, fmt.Errorf("%w: price must not be negative", contractx.ErrInvalidInput)
	}

	row := &orderRow{
		Name:      name,
		Price:     price,
		AgentUID:  agentUID,
		StartDate: contractx.Today(s.now()),
	}
	var agent agentRow

	err := s.inTx(ctx, func(ctx context.Context, db bun.IDB) error {
		err := db.NewSelect().Model(&agent).Where("a.uid = ?", agentUID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: agent #%d does not exist", contractx.ErrInvalidReference, agentUID)
		}
		if err != nil {
			return storeError("select agent", err)
		}
		if _, err := db.NewInsert().Model(row).Returning("uid").Exec(ctx); err != nil {
			return storeError("insert order", err)
		}
		return nil
	})
	if err != nil {
		return contractx.Order{}, err
	}

	row.Agent = &agent
	return row.toOrder(), nil
}

func (s *Store) GetOrder(ctx context.Context, uid int64) (contractx.Order, error) {
	log.Debug().Int64("order_uid", uid).Msg("store: get order")

	row := new(orderRow)
	err := s.db.NewSelect().
		Model(row).
		Relation("Agent").
		Where("o.uid = ?", uid).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.Order{}, fmt.Errorf("%w: order #%d", contractx.ErrNotFound, uid)
	}
	if err != nil {
		return contractx.Order{}, storeError("select order", err)
	}
	if !row.resolved() {
		logDangling(row)
		return contractx.Order{}, fmt.Errorf("%w: order #%d references agent #%d: %w",
			contractx.ErrNotFound, row.UID, row.AgentUID, contractx.ErrDanglingReference)
	}
	return row.toOrder(), nil
}

func (s *Store) ListOrders(ctx context.Context) ([]contractx.Order, error) {
	log.Debug().Msg("store: list orders")
	return s.listOrders(ctx, nil)
}

func (s *Store) ListInProgressOrders(ctx context.Context) ([]contractx.Order, error) {
	log.Debug().Msg("store: list in-progress orders")
	return s.listOrders(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("o.end_date IS NULL")
	})
}

func (s *Store) ListPaidOrders(ctx context.Context) ([]contractx.Order, error) {
	log.Debug().Msg("store: list paid orders")
	return s.listOrders(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("o.end_date IS NOT NULL")
	})
}

func (s *Store) listOrders(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]contractx.Order, error) {
	var rows []orderRow
	q := s.db.NewSelect().Model(&rows).Relation("Agent").OrderExpr("o.uid ASC")
	if filter != nil {
		q = filter(q)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storeError("select orders", err)
	}

	orders := make([]contractx.Order, 0, len(rows))
	for i := range rows {
		if !rows[i].resolved() {
			logDangling(&rows[i])
			continue
		}
		orders = append(orders, rows[i].toOrder())
	}
	return orders, nil
}

// SetOrderPrice only succeeds while the order has no price.
func (s *Store) SetOrderPrice(ctx context.Context, uid int64, price int64) error {
	log.Debug().Int64("order_uid", uid).Int64("price", price).Msg("store: set order price")

	if price < 0 {
		return fmt.Errorf("%w: price must not be negative", contractx.ErrInvalidInput)
	}

	return s.inTx(ctx, func(ctx context.Context, db bun.IDB) error {
		res, err := db.NewUpdate().
			Model((*orderRow)(nil)).
			Set("price = ?", price).
			Where("uid = ?", uid).
			Where("price IS NULL").
			Exec(ctx)
		if err != nil {
			return storeError("update order price", err)
		}
		return s.explainNoop(ctx, db, res, uid, contractx.ErrAlreadySet)
	})
}

// EndOrder marks the order paid today. A second call fails with
// ErrAlreadyEnded; the first end date is kept.
func (s *Store) EndOrder(ctx context.Context, uid int64) error {
	log.Debug().Int64("order_uid", uid).Msg("store: end order")

	endDate := contractx.Today(s.now())
	return s.inTx(ctx, func(ctx context.Context, db bun.IDB) error {
		res, err := db.NewUpdate().
			Model((*orderRow)(nil)).
			Set("end_date = ?", endDate).
			Where("uid = ?", uid).
			Where("end_date IS NULL").
			Exec(ctx)
		if err != nil {
			return storeError("update order end date", err)
		}
		return s.explainNoop(ctx, db, res, uid, contractx.ErrAlreadyEnded)
	})
}

func (s *Store) DeleteOrder(ctx context.Context, uid int64) error {
	log.Debug().Int64("order_uid", uid).Msg("store: delete order")

	res, err := s.db.NewDelete().Model((*orderRow)(nil)).Where("uid = ?", uid).Exec(ctx)
	if err != nil {
		return storeError("delete order", err)
	}
	return requireAffected(res, fmt.Errorf("%w: order #%d", contractx.ErrNotFound, uid))
}

// explainNoop turns a conditional update that touched no row into either
// ErrNotFound or the given transition error.
func (s *Store) explainNoop(ctx context.Context, db bun.IDB, res sql.Result, uid int64, transitionErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("rows affected", err)
	}
	if n > 0 {
		return nil
	}
	exists, err := db.NewSelect().Model((*orderRow)(nil)).Where("o.uid = ?", uid).Exists(ctx)
	if err != nil {
		return storeError("select order", err)
	}
	if !exists {
		return fmt.Errorf("%w: order #%d", contractx.ErrNotFound, uid)
	}
	return fmt.Errorf("%w: order #%d", transitionErr, uid)
}

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

func requireAffected(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("rows affected", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func storeError(op string, err error) error {
	if errors.Is(err, contractx.ErrStore) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", contractx.ErrStore, op, err)
}

func logDangling(row *orderRow) {
	log.Error().
		Int64("order_uid", row.UID).
		Int64("agent_uid", row.AgentUID).
		Msg("order references nonexistent agent")
}
