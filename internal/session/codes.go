package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore holds bcrypt hashes of outstanding sign-in codes, one per
// address, with a bounded lifetime and a verification attempt counter.
// Plaintext codes are never stored.
type CodeStore interface {
	Put(ctx context.Context, email, hash string, ttl time.Duration) error
	Get(ctx context.Context, email string) (hash string, ok bool, err error)
	Delete(ctx context.Context, email string) error
	// Bump increments and returns the attempt counter for the address.
	// The counter shares the code's lifetime.
	Bump(ctx context.Context, email string, ttl time.Duration) (int, error)
}

// RedisCodeStore keeps codes in redis so every instance behind the load
// balancer sees the same outstanding code.
type RedisCodeStore struct {
	rdb redis.UniversalClient
}

func NewRedisCodeStore(rdb redis.UniversalClient) *RedisCodeStore {
	return &RedisCodeStore{rdb: rdb}
}

func codeKey(email string) string  { return "otp:code:" + email }
func triesKey(email string) string { return "otp:tries:" + email }

func (s *RedisCodeStore) Put(ctx context.Context, email, hash string, ttl time.Duration) error {
	// A fresh code resets the attempt counter.
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, codeKey(email), hash, ttl)
	pipe.Del(ctx, triesKey(email))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store sign-in code: %w", err)
	}
	return nil
}

func (s *RedisCodeStore) Get(ctx context.Context, email string) (string, bool, error) {
	hash, err := s.rdb.Get(ctx, codeKey(email)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load sign-in code: %w", err)
	}
	return hash, true, nil
}

func (s *RedisCodeStore) Delete(ctx context.Context, email string) error {
	if err := s.rdb.Del(ctx, codeKey(email), triesKey(email)).Err(); err != nil {
		return fmt.Errorf("delete sign-in code: %w", err)
	}
	return nil
}

func (s *RedisCodeStore) Bump(ctx context.Context, email string, ttl time.Duration) (int, error) {
	n, err := s.rdb.Incr(ctx, triesKey(email)).Result()
	if err != nil {
		return 0, fmt.Errorf("count attempt: %w", err)
	}
	if n == 1 {
		s.rdb.Expire(ctx, triesKey(email), ttl)
	}
	return int(n), nil
}

// MemoryCodeStore is the in-process CodeStore for tests and single
// instance development runs.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
}

type memoryCode struct {
	hash     string
	expires  time.Time
	attempts int
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{codes: make(map[string]memoryCode)}
}

func (s *MemoryCodeStore) Put(_ context.Context, email, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = memoryCode{hash: hash, expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Get(_ context.Context, email string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[email]
	if !ok || time.Now().After(c.expires) {
		delete(s.codes, email)
		return "", false, nil
	}
	return c.hash, true, nil
}

func (s *MemoryCodeStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, email)
	return nil
}

func (s *MemoryCodeStore) Bump(_ context.Context, email string, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.codes[email]
	c.attempts++
	s.codes[email] = c
	return c.attempts, nil
}
