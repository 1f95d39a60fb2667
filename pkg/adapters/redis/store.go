package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/history"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "dialogtree:"

// Store implements ports.SessionStore on Redis.
//
// Each session uses two string keys, one for the state and one for the
// serialized history, plus a sorted set indexing session ids by expiry.
// Expired ids are pruned from the index lazily on List.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL expires sessions that were not written for ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects to the Redis server at addr.
func New(addr, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) stateKey(id string) string   { return s.prefix + "state:" + id }
func (s *Store) historyKey(id string) string { return s.prefix + "history:" + id }
func (s *Store) indexKey() string            { return s.prefix + "sessions" }

func (s *Store) expiryScore() float64 {
	if s.ttl <= 0 {
		return math.MaxInt64
	}
	return float64(time.Now().Add(s.ttl).UnixMilli())
}

// Save persists the state and refreshes the session's expiry.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Set(ctx, s.stateKey(sessionID), data, s.ttl)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.historyKey(sessionID), s.ttl)
		}
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.expiryScore(), Member: sessionID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", sessionID, err)
	}
	return nil
}

// Load retrieves the state, translating a missing key to domain.ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	data, err := s.client.Get(ctx, s.stateKey(sessionID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", sessionID, err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state %s: %w", sessionID, err)
	}
	if state.Context == nil {
		state.Context = make(map[string]string)
	}
	return &state, nil
}

// Delete removes the state, the history and the index entry.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Del(ctx, s.stateKey(sessionID), s.historyKey(sessionID))
		pipe.ZRem(ctx, s.indexKey(), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", sessionID, err)
	}
	return nil
}

// List returns the ids of sessions that have not expired, in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if s.ttl > 0 {
		now := strconv.FormatInt(time.Now().UnixMilli(), 10)
		if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", now).Err(); err != nil {
			return nil, fmt.Errorf("redis prune index: %w", err)
		}
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// SaveHistory stores the serialized tree.
func (s *Store) SaveHistory(ctx context.Context, sessionID string, tree *history.Tree) error {
	data, err := tree.Serialize()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.historyKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save history %s: %w", sessionID, err)
	}
	return nil
}

// LoadHistory parses the stored tree strictly.
func (s *Store) LoadHistory(ctx context.Context, sessionID string) (*history.Tree, error) {
	data, err := s.client.Get(ctx, s.historyKey(sessionID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis load history %s: %w", sessionID, err)
	}
	return history.Deserialize(data)
}
