package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrStateNotFound   = errors.New("session state not found")
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session id is empty")
	ErrUpdateConflict  = errors.New("session changed during update")
)

const (
	defaultStoreKeyPrefix = "moneytracker:session:"
	defaultStoreTTL       = 24 * time.Hour

	// maxUpdateAttempts bounds optimistic UpdateFields retries.
	maxUpdateAttempts = 3
)

// Store keeps at most one Session per session id.
type Store interface {
	// Load returns ErrStateNotFound when no flow is active.
	Load(ctx context.Context, sessionID string) (*Session, error)

	// Save creates the session or replaces the existing one.
	Save(ctx context.Context, st *Session) error

	// UpdateFields merges patch into the active session and returns the
	// result. It fails with ErrStateNotFound when no flow is active.
	UpdateFields(ctx context.Context, sessionID string, patch Fields) (*Session, error)

	// Delete is idempotent.
	Delete(ctx context.Context, sessionID string) error
}

type Backend string

const (
	BackendMemory  Backend = "memory"
	BackendRedis   Backend = "redis"
	BackendUpstash Backend = "upstash"
)

type Config struct {
	Backend         Backend       `split_words:"true" default:"memory"`
	TTL             time.Duration `envconfig:"TTL" default:"24h"`
	KeyPrefix       string        `split_words:"true" default:"moneytracker:session:"`
	RedisURL        string        `envconfig:"REDIS_URL"`
	CleanupInterval time.Duration `split_words:"true" default:"1h"`
}

type storeOptions struct {
	keyPrefix  string
	ttl        time.Duration
	httpClient *http.Client
}

// StoreOption customizes a session store backend.
type StoreOption func(*storeOptions)

func WithKeyPrefix(prefix string) StoreOption {
	return func(o *storeOptions) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			o.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		o.ttl = ttl
	}
}

// WithHTTPClient only applies to the Upstash backend.
func WithHTTPClient(client *http.Client) StoreOption {
	return func(o *storeOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func applyOptions(opts []StoreOption) (storeOptions, error) {
	o := storeOptions{
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.ttl < 0 {
		return o, errors.New("ttl must be >= 0")
	}
	return o, nil
}

func sessionKey(prefix, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrInvalidSession
	}
	return strings.TrimSpace(prefix) + sessionID, nil
}

func prepareForSave(st *Session) error {
	if st == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(st.SessionID) == "" {
		return ErrInvalidSession
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	} else {
		st.UpdatedAt = st.UpdatedAt.UTC()
	}
	if err := st.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid session: %w", err)
	}
	return nil
}

func decodeSession(payload []byte) (*Session, error) {
	var st Session
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session state loaded from store: %w", err)
	}
	return &st, nil
}

// ttlSeconds rounds up so a sub-second ttl never becomes "no expiry".
func ttlSeconds(ttl time.Duration) int64 {
	seconds := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		seconds++
	}
	return max(seconds, 1)
}
