package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	contractx "github.com/tanpawarit/money-tracker/tracker/contract"
)

const (
	agentKeyPrefix = "agent:"
	orderKeyPrefix = "order:"
)

var _ contractx.EntityStore = (*Store)(nil)

type Config struct {
	TTL             time.Duration `envconfig:"TTL" default:"10m"`
	CleanupInterval time.Duration `split_words:"true" default:"20m"`
}

// Store is a read-through cache in front of an EntityStore. Point lookups are
// memoized, including not-found results; lists always go to the store.
//
// Writes hold mu exclusively for the store call and the invalidation that
// follows it, and lookups hold it shared while they read or populate an
// entry. A lookup therefore never observes a write whose invalidation has not
// happened yet, and never repopulates an entry with a value read before it.
type Store struct {
	next    contractx.EntityStore
	entries *gocache.Cache
	group   singleflight.Group
	mu      sync.RWMutex
}

// entry is either a snapshot or a cached not-found error.
type entry struct {
	agent contractx.Agent
	order contractx.Order
	err   error
}

func New(next contractx.EntityStore, cfg Config) (*Store, error) {
	if next == nil {
		return nil, errors.New("entity store is required")
	}
	ttl := cfg.TTL
	if ttl < 0 {
		return nil, errors.New("cache ttl must be >= 0")
	}
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = 20 * time.Minute
	}
	return &Store{
		next:    next,
		entries: gocache.New(ttl, cleanup),
	}, nil
}

func agentKey(uid int64) string {
	return fmt.Sprintf("%s%d", agentKeyPrefix, uid)
}

func orderKey(uid int64) string {
	return fmt.Sprintf("%s%d", orderKeyPrefix, uid)
}

func (s *Store) GetAgent(ctx context.Context, uid int64) (contractx.Agent, error) {
	e, err := s.lookup(ctx, agentKey(uid), func(ctx context.Context) (entry, error) {
		agent, err := s.next.GetAgent(ctx, uid)
		return entry{agent: agent}, err
	})
	if err != nil {
		return contractx.Agent{}, err
	}
	return e.agent, nil
}

func (s *Store) GetOrder(ctx context.Context, uid int64) (contractx.Order, error) {
	e, err := s.lookup(ctx, orderKey(uid), func(ctx context.Context) (entry, error) {
		order, err := s.next.GetOrder(ctx, uid)
		return entry{order: order}, err
	})
	if err != nil {
		return contractx.Order{}, err
	}
	return e.order.Clone(), nil
}

// lookup serves key from the cache or loads it through fetch. Concurrent
// misses for the same key share one load, which runs detached from any
// single caller's cancellation; a caller that gives up only stops waiting.
func (s *Store) lookup(ctx context.Context, key string, fetch func(context.Context) (entry, error)) (entry, error) {
	if e, ok := s.cached(key); ok {
		return e, e.err
	}
	if err := ctx.Err(); err != nil {
		return entry{}, fmt.Errorf("%w: %w", contractx.ErrStore, err)
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		// Loading and populating under the read lock keeps a write from
		// landing between the two.
		s.mu.RLock()
		defer s.mu.RUnlock()

		if x, ok := s.entries.Get(key); ok {
			e := x.(entry)
			return e, e.err
		}
		e, err := fetch(loadCtx)
		switch {
		case err == nil:
			e.order = e.order.Clone()
			s.entries.Set(key, e, gocache.DefaultExpiration)
		case errors.Is(err, contractx.ErrNotFound):
			s.entries.Set(key, entry{err: err}, gocache.DefaultExpiration)
		}
		log.Debug().Str("key", key).Err(err).Msg("cache: miss")
		return e, err
	})

	select {
	case <-ctx.Done():
		return entry{}, fmt.Errorf("%w: %w", contractx.ErrStore, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return entry{}, res.Err
		}
		return res.Val.(entry), nil
	}
}

func (s *Store) cached(key string) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	x, ok := s.entries.Get(key)
	if !ok {
		return entry{}, false
	}
	e := x.(entry)
	log.Debug().Str("key", key).Bool("negative", e.err != nil).Msg("cache: hit")
	return e, true
}

func (s *Store) AddAgent(ctx context.Context, name string) (contractx.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, err := s.next.AddAgent(ctx, name)
	if err == nil {
		s.entries.Delete(agentKey(agent.UID))
	}
	s.dropNegativeOrders()
	return agent, err
}

func (s *Store) DeleteAgent(ctx context.Context, uid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.next.DeleteAgent(ctx, uid)
	s.entries.Delete(agentKey(uid))
	s.dropOrdersOf(uid)
	return err
}

func (s *Store) AddOrder(ctx context.Context, name string, agentUID int64, price *int64) (contractx.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.next.AddOrder(ctx, name, agentUID, price)
	if err == nil {
		s.entries.Delete(orderKey(order.UID))
	}
	return order, err
}

func (s *Store) SetOrderPrice(ctx context.Context, uid int64, price int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.next.SetOrderPrice(ctx, uid, price)
	s.entries.Delete(orderKey(uid))
	return err
}

func (s *Store) EndOrder(ctx context.Context, uid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.next.EndOrder(ctx, uid)
	s.entries.Delete(orderKey(uid))
	return err
}

func (s *Store) DeleteOrder(ctx context.Context, uid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.next.DeleteOrder(ctx, uid)
	s.entries.Delete(orderKey(uid))
	return err
}

func (s *Store) ListAgents(ctx context.Context) ([]contractx.Agent, error) {
	return s.next.ListAgents(ctx)
}

func (s *Store) ListOrders(ctx context.Context) ([]contractx.Order, error) {
	return s.next.ListOrders(ctx)
}

func (s *Store) ListInProgressOrders(ctx context.Context) ([]contractx.Order, error) {
	return s.next.ListInProgressOrders(ctx)
}

func (s *Store) ListPaidOrders(ctx context.Context) ([]contractx.Order, error) {
	return s.next.ListPaidOrders(ctx)
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	return s.entries.ItemCount()
}

// Flush drops every entry.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Flush()
}

// dropOrdersOf removes cached orders that resolve to agentUID. Caller holds mu.
func (s *Store) dropOrdersOf(agentUID int64) {
	for key, item := range s.entries.Items() {
		if !strings.HasPrefix(key, orderKeyPrefix) {
			continue
		}
		if e := item.Object.(entry); e.err == nil && e.order.AgentUID == agentUID {
			s.entries.Delete(key)
		}
	}
}

// dropNegativeOrders removes cached order misses. Caller holds mu.
func (s *Store) dropNegativeOrders() {
	for key, item := range s.entries.Items() {
		if strings.HasPrefix(key, orderKeyPrefix) && item.Object.(entry).err != nil {
			s.entries.Delete(key)
		}
	}
}
