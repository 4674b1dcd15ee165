package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var _ Store = (*UpstashRedisStore)(nil)

// compareAndSetScript replaces KEYS[1] with ARGV[2] only while it still holds
// ARGV[1], keeping the remaining ttl.
const compareAndSetScript = `if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
return 1`

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// UpstashRedisStore persists sessions in Upstash Redis through its REST API.
type UpstashRedisStore struct {
	rest      *upstashClient
	keyPrefix string
	ttl       time.Duration
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	rest, err := newUpstashClient(cfg, o.httpClient)
	if err != nil {
		return nil, err
	}
	return &UpstashRedisStore{rest: rest, keyPrefix: o.keyPrefix, ttl: o.ttl}, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	key, err := sessionKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}
	payload, err := s.rest.get(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeSession([]byte(payload))
}

func (s *UpstashRedisStore) Save(ctx context.Context, st *Session) error {
	if err := prepareForSave(st); err != nil {
		return err
	}
	key, err := sessionKey(s.keyPrefix, st.SessionID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	args := []any{"SET", key, string(payload)}
	if s.ttl > 0 {
		args = append(args, "EX", ttlSeconds(s.ttl))
	}
	_, err = s.rest.call(ctx, args...)
	return err
}

// UpdateFields reads the session, merges patch and writes it back with a
// compare-and-set script. A concurrent writer makes the script refuse and
// the merge is retried on the fresh value.
func (s *UpstashRedisStore) UpdateFields(ctx context.Context, sessionID string, patch Fields) (*Session, error) {
	key, err := sessionKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.rest.get(ctx, key)
		if err != nil {
			return nil, err
		}
		st, err := decodeSession([]byte(current))
		if err != nil {
			return nil, err
		}
		st.Fields.Merge(patch)
		st.Touch(time.Now())
		if err := prepareForSave(st); err != nil {
			return nil, err
		}
		next, err := json.Marshal(st)
		if err != nil {
			return nil, fmt.Errorf("marshal session state: %w", err)
		}

		swapped, err := s.rest.integer(ctx, "EVAL", compareAndSetScript, 1, key, current, string(next))
		if err != nil {
			return nil, err
		}
		if swapped == 1 {
			return st, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUpdateConflict, key)
}

func (s *UpstashRedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := sessionKey(s.keyPrefix, sessionID)
	if err != nil {
		return err
	}
	_, err = s.rest.call(ctx, "DEL", key)
	return err
}

const maxUpstashResponseBytes = 2 << 20

// upstashClient sends one Redis command per POST as a JSON array and reads
// back {"result": ...} or {"error": ...}.
type upstashClient struct {
	endpoint string
	token    string
	http     *http.Client
}

func newUpstashClient(cfg UpstashRedisConfig, client *http.Client) (*upstashClient, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if endpoint == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid upstash redis url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &upstashClient{endpoint: endpoint, token: token, http: client}, nil
}

// get returns the string stored at key, or ErrStateNotFound.
func (c *upstashClient) get(ctx context.Context, key string) (string, error) {
	result, err := c.call(ctx, "GET", key)
	if err != nil {
		return "", err
	}
	if isNull(result) {
		return "", ErrStateNotFound
	}
	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		return "", fmt.Errorf("upstash GET %s: decode value: %w", key, err)
	}
	return value, nil
}

func (c *upstashClient) integer(ctx context.Context, args ...any) (int64, error) {
	result, err := c.call(ctx, args...)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := json.Unmarshal(result, &n); err != nil {
		return 0, fmt.Errorf("upstash %v: decode integer: %w", args[0], err)
	}
	return n, nil
}

func (c *upstashClient) call(ctx context.Context, args ...any) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, errors.New("empty redis command")
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("upstash %v: encode command: %w", args[0], err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstash %v: build request: %w", args[0], err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstash %v: %w", args[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstashResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("upstash %v: read response: %w", args[0], err)
	}

	var reply struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	// Upstash reports command errors with a 4xx status and an error body.
	jsonErr := json.Unmarshal(raw, &reply)
	switch {
	case jsonErr == nil && reply.Error != "":
		return nil, fmt.Errorf("upstash %v: %s", args[0], reply.Error)
	case resp.StatusCode/100 != 2:
		return nil, fmt.Errorf("upstash %v: http status %d", args[0], resp.StatusCode)
	case jsonErr != nil:
		return nil, fmt.Errorf("upstash %v: decode response: %w", args[0], jsonErr)
	}
	return reply.Result, nil
}

func isNull(result json.RawMessage) bool {
	trimmed := bytes.TrimSpace(result)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
