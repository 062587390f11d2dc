package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/concierge-tc/portal-backend/shared/redis"
	"github.com/concierge-tc/portal-backend/v1/models"
)

// DefaultDraftTTL keeps an untouched wizard session for a week
const DefaultDraftTTL = 7 * 24 * time.Hour

const draftKeyPrefix = "wizard:draft:"

const lockKeyPrefix = "wizard:lock:"

// draftLockTTL bounds how long a crashed submit can hold a session
const draftLockTTL = 30 * time.Second

// keyValueStore is the subset of the Redis client the draft store needs
type keyValueStore interface {
	SetJSON(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	GetJSON(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	SetNX(ctx context.Context, key string, payload []byte, ttl time.Duration) (bool, error)
}

// RedisDraftStore keeps wizard sessions as JSON documents with a sliding TTL
type RedisDraftStore struct {
	kv  keyValueStore
	ttl time.Duration
}

// NewRedisDraftStore creates a Redis-backed draft store
func NewRedisDraftStore(kv keyValueStore, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &RedisDraftStore{kv: kv, ttl: ttl}
}

func draftKey(sessionID string) string {
	return draftKeyPrefix + sessionID
}

// Save writes the session and refreshes its TTL
func (s *RedisDraftStore) Save(ctx context.Context, session *models.WizardSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal wizard session: %w", err)
	}
	return s.kv.SetJSON(ctx, draftKey(session.SessionID), payload, s.ttl)
}

// Load reads a session, returning ErrDraftNotFound when it expired or never existed
func (s *RedisDraftStore) Load(ctx context.Context, sessionID string) (*models.WizardSession, error) {
	payload, err := s.kv.GetJSON(ctx, draftKey(sessionID))
	if errors.Is(err, redis.ErrNotFound) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	var session models.WizardSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wizard session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Delete removes a session
func (s *RedisDraftStore) Delete(ctx context.Context, sessionID string) error {
	return s.kv.Delete(ctx, draftKey(sessionID))
}

// Lock sets the session's lock key only if it is absent
func (s *RedisDraftStore) Lock(ctx context.Context, sessionID string) error {
	ok, err := s.kv.SetNX(ctx, lockKeyPrefix+sessionID, []byte("1"), draftLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDraftLocked
	}
	return nil
}

// Unlock releases the session's lock key
func (s *RedisDraftStore) Unlock(ctx context.Context, sessionID string) error {
	return s.kv.Delete(ctx, lockKeyPrefix+sessionID)
}

// MemoryDraftStore is used when Redis is not configured. Sessions are lost on restart.
type MemoryDraftStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	locks    map[string]struct{}
}

// NewMemoryDraftStore creates an empty in-process store
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{sessions: make(map[string][]byte), locks: make(map[string]struct{})}
}

// Save stores a copy of the session
func (s *MemoryDraftStore) Save(_ context.Context, session *models.WizardSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal wizard session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.SessionID] = payload
	return nil
}

// Load returns a copy of the stored session
func (s *MemoryDraftStore) Load(_ context.Context, sessionID string) (*models.WizardSession, error) {
	s.mu.RLock()
	payload, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrDraftNotFound
	}
	var session models.WizardSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes a session
func (s *MemoryDraftStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Lock claims the session for the caller. Claims do not expire.
func (s *MemoryDraftStore) Lock(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[sessionID]; held {
		return ErrDraftLocked
	}
	s.locks[sessionID] = struct{}{}
	return nil
}

// Unlock releases a claim
func (s *MemoryDraftStore) Unlock(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, sessionID)
	return nil
}
