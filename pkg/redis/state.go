package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// State persists small strategy values (position ages, last run dates)
// across restarts. Without Redis values are kept in process memory.
type State struct {
	client *Client
	prefix string

	mu    sync.Mutex
	local map[string][]byte
}

// NewState creates a state store
func NewState(client *Client, prefix string) *State {
	return &State{
		client: client,
		prefix: prefix,
		local:  make(map[string][]byte),
	}
}

func (s *State) key(key string) string {
	return fmt.Sprintf("%s:state:%s", s.prefix, key)
}

// Load decodes the value stored under key into dest.
// Returns false if nothing is stored.
func (s *State) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found, err := s.read(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("state unmarshal failed for %s: %w", key, err)
	}
	return true, nil
}

// Save stores value under key without expiry
func (s *State) Save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state marshal failed for %s: %w", key, err)
	}

	if !s.client.Enabled() {
		s.mu.Lock()
		s.local[key] = data
		s.mu.Unlock()
		return nil
	}

	if err := s.client.Redis().Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("state save failed for %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (s *State) Delete(ctx context.Context, key string) error {
	if !s.client.Enabled() {
		s.mu.Lock()
		delete(s.local, key)
		s.mu.Unlock()
		return nil
	}
	return s.client.Redis().Del(ctx, s.key(key)).Err()
}

func (s *State) read(ctx context.Context, key string) ([]byte, bool, error) {
	if !s.client.Enabled() {
		s.mu.Lock()
		defer s.mu.Unlock()
		data, ok := s.local[key]
		return data, ok, nil
	}

	data, err := s.client.Redis().Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state load failed for %s: %w", key, err)
	}
	return data, true, nil
}
