package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/concierge-tc/portal-backend/shared/redis"
	"github.com/concierge-tc/portal-backend/v1/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB creates a sqlmock-backed GORM database using the postgres dialect
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	var db *sql.DB
	var mock sqlmock.Sqlmock
	var err error

	db, mock, err = sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	return gormDB, mock, func() { db.Close() }
}

// fakeKV is an in-memory stand-in for the Redis key/value calls
type fakeKV struct {
	mu      sync.Mutex
	values  map[string][]byte
	ttls    map[string]time.Duration
	failSet error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) SetJSON(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if f.failSet != nil {
		return f.failSet
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = append([]byte(nil), payload...)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) GetJSON(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return nil, redis.ErrNotFound
	}
	return v, nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func (f *fakeKV) SetNX(_ context.Context, key string, payload []byte, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = append([]byte(nil), payload...)
	f.ttls[key] = ttl
	return true, nil
}

// fakePublisher records pub/sub messages
type fakePublisher struct {
	channels []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload []byte) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, payload)
	return 1, nil
}

// recordingFeed captures published change events
type recordingFeed struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (f *recordingFeed) Publish(_ context.Context, event models.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *recordingFeed) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	ch := make(chan models.ChangeEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (f *recordingFeed) ids(table string, typ models.ChangeEventType) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		if e.Table == table && e.Type == typ {
			out = append(out, e.ID)
		}
	}
	return out
}

// MockFunctions is a func-field mock of FunctionInvoker
type MockFunctions struct {
	InvokeFunc func(ctx context.Context, name string, body interface{}, out interface{}) error
	calls      []string
}

func (m *MockFunctions) Invoke(ctx context.Context, name string, body interface{}, out interface{}) error {
	m.calls = append(m.calls, name)
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, name, body, out)
	}
	return nil
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

// seedAgent inserts an agent profile directly
func seedAgent(t *testing.T, db *gorm.DB, first, last, email string) *models.AgentProfile {
	t.Helper()
	agent := &models.AgentProfile{
		AgentID:          models.NewID(models.PrefixAgent),
		FirstName:        first,
		LastName:         last,
		Email:            email,
		InvitationStatus: models.InvitationStatusPending,
		AccountStatus:    models.AccountStatusActive,
		SetupMethod:      models.SetupMethodInvitation,
	}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("failed to seed agent: %v", err)
	}
	return agent
}

func adminUser() *models.AuthenticatedUser {
	return &models.AuthenticatedUser{UserID: "user-admin", Roles: []models.Role{models.RoleAdmin}}
}

func agentUser(userID string) *models.AuthenticatedUser {
	return &models.AuthenticatedUser{UserID: userID, Roles: []models.Role{models.RoleAgent}}
}
