package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDraftStore(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	store := NewRedisDraftStore(kv, 0)

	session := &models.WizardSession{
		SessionID:     "wiz_1",
		Kind:          models.WizardKindTransaction,
		OwnerID:       "user-1",
		CurrentStep:   2,
		CollectedData: map[string]map[string]interface{}{"property": {"city": "Austin"}},
	}
	require.NoError(t, store.Save(ctx, session))
	assert.Equal(t, DefaultDraftTTL, kv.ttls["wizard:draft:wiz_1"])

	loaded, err := store.Load(ctx, "wiz_1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.CurrentStep)
	assert.Equal(t, "Austin", loaded.CollectedData["property"]["city"])

	require.NoError(t, store.Delete(ctx, "wiz_1"))
	_, err = store.Load(ctx, "wiz_1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestDraftStore_Lock(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	stores := map[string]DraftStore{
		"redis":  NewRedisDraftStore(kv, 0),
		"memory": NewMemoryDraftStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Lock(ctx, "wiz_9"))
			assert.ErrorIs(t, store.Lock(ctx, "wiz_9"), ErrDraftLocked)
			require.NoError(t, store.Lock(ctx, "wiz_10"))

			require.NoError(t, store.Unlock(ctx, "wiz_9"))
			require.NoError(t, store.Lock(ctx, "wiz_9"))
		})
	}
	assert.Equal(t, draftLockTTL, kv.ttls["wizard:lock:wiz_9"])
}

func TestMemoryDraftStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDraftStore()

	session := &models.WizardSession{SessionID: "wiz_2", CollectedData: map[string]map[string]interface{}{"buyer": {"buyer_email": "a@x.com"}}}
	require.NoError(t, store.Save(ctx, session))
	session.CollectedData["buyer"]["buyer_email"] = "changed@x.com"

	loaded, err := store.Load(ctx, "wiz_2")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", loaded.CollectedData["buyer"]["buyer_email"])

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestRedisNotifier(t *testing.T) {
	pub := &fakePublisher{}
	notifier := NewRedisNotifier(pub)

	err := notifier.Notify(context.Background(), "user-1", models.Notification{
		Level: models.NotificationSuccess, Title: "Agent invited", Message: "Jane Roe was invited",
	})
	require.NoError(t, err)
	require.Len(t, pub.channels, 1)
	assert.Equal(t, "notifications:user-1", pub.channels[0])

	var got models.Notification
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "Agent invited", got.Title)

	// anonymous callers have no channel
	require.NoError(t, notifier.Notify(context.Background(), "", models.Notification{}))
	assert.Len(t, pub.channels, 1)

	pub.err = errors.New("redis down")
	assert.Error(t, notifier.Notify(context.Background(), "user-1", models.Notification{}))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), "user-1", models.Notification{Level: models.NotificationError}))
}

func TestChangeHub_BroadcastAndUnsubscribe(t *testing.T) {
	hub := NewChangeHub(4)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.SubscriberCount())

	hub.Broadcast(NewChangeEvent("transactions", models.ChangeInsert, "txn_1"))
	select {
	case ev := <-ch:
		assert.Equal(t, "txn_1", ev.ID)
		assert.Equal(t, models.ChangeInsert, ev.Type)
		assert.NotEmpty(t, ev.At)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestChangeHub_DropsForSlowSubscriber(t *testing.T) {
	hub := NewChangeHub(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := hub.Subscribe(ctx)
	require.NoError(t, err)

	hub.Broadcast(NewChangeEvent("agent_profiles", models.ChangeUpdate, "agt_1"))
	hub.Broadcast(NewChangeEvent("agent_profiles", models.ChangeUpdate, "agt_2"))

	ev := <-ch
	assert.Equal(t, "agt_1", ev.ID)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}

func TestLocalChangeFeed(t *testing.T) {
	feed := NewLocalChangeFeed()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, feed.Publish(ctx, NewChangeEvent("vendors", models.ChangeDelete, "ven_1")))
	assert.Equal(t, "ven_1", (<-ch).ID)
}

func TestPostgresChangeFeed_PublishUsesPgNotify(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	feed := NewPostgresChangeFeed(db, "", "")
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_notify($1, $2)")).
		WithArgs(DefaultChangeChannel, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := feed.Publish(context.Background(), NewChangeEvent("transactions", models.ChangeUpdate, "txn_9"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeChangeEvent(t *testing.T) {
	ev, err := decodeChangeEvent(`{"table":"offers","type":"INSERT","id":"off_1","at":"2024-01-01T00:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, "off_1", ev.ID)

	_, err = decodeChangeEvent(`{"table":"offers"}`)
	assert.Error(t, err)
	_, err = decodeChangeEvent(`not json`)
	assert.Error(t, err)
}

func TestFunctionsClient_InvokeWithClientCredentials(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	var gotBody SetupLinkRequest
	fnServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/generate-setup-link", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"setupLink":"https://portal.test/setup/abc"}`))
	}))
	defer fnServer.Close()

	client := NewFunctionsClient(FunctionsConfig{
		BaseURL:      fnServer.URL + "/",
		ClientID:     "portal",
		ClientSecret: "secret",
		TokenURL:     tokenServer.URL,
	})

	var resp SetupLinkResponse
	err := client.Invoke(context.Background(), FunctionGenerateSetupLink, SetupLinkRequest{AgentID: "agt_1", Email: "a@x.com"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.test/setup/abc", resp.SetupLink)
	assert.Equal(t, "agt_1", gotBody.AgentID)
}

func TestFunctionsClient_ErrorStatusIsRemoteCallError(t *testing.T) {
	fnServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer fnServer.Close()

	client := NewFunctionsClient(FunctionsConfig{BaseURL: fnServer.URL})
	err := client.Invoke(context.Background(), "anything", map[string]string{}, nil)
	require.Error(t, err)

	apiErr := apperrors.GetAPIError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.HTTPStatus)
	assert.Contains(t, apiErr.Unwrap().Error(), "status 500")
}

func TestFunctionsClient_NotConfigured(t *testing.T) {
	client := NewFunctionsClient(FunctionsConfig{})
	err := client.Invoke(context.Background(), FunctionGenerateSetupLink, nil, nil)
	assert.True(t, apperrors.IsAPIError(err))
}
