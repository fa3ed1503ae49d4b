package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/kanban-service/internal/config"
	"github.com/spec-kit/kanban-service/internal/events"
)

// webhookEndpoint records the JSON bodies POSTed to it and answers with status.
type webhookEndpoint struct {
	mu     sync.Mutex
	bodies []map[string]any
	types  []string
}

func newWebhookEndpoint(t *testing.T, status int) (*webhookEndpoint, string) {
	t.Helper()
	endpoint := &webhookEndpoint{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))

		endpoint.mu.Lock()
		endpoint.bodies = append(endpoint.bodies, body)
		endpoint.types = append(endpoint.types, r.Method+" "+r.Header.Get("Content-Type"))
		endpoint.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return endpoint, server.URL
}

func (e *webhookEndpoint) received() ([]map[string]any, []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]map[string]any(nil), e.bodies...), append([]string(nil), e.types...)
}

func TestNotificationServiceDeliversWebhooks(t *testing.T) {
	endpoint, url := newWebhookEndpoint(t, http.StatusNoContent)
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher(zap.New(core))
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{WebhookURL: url}).RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		ID:       "e1",
		Type:     events.EventTicketMoved,
		TicketID: "t1",
		Actor:    events.Actor{UserID: "u1"},
		Payload:  events.TicketMovedPayload{FromCategoryName: "Todo", ToCategoryName: "Done"},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "e2", Type: events.EventCategoryCreated, CategoryID: "c1"}))

	bodies, requests := endpoint.received()
	require.Len(t, bodies, 2)
	assert.Equal(t, []string{"POST application/json", "POST application/json"}, requests)
	assert.Equal(t, "e1", bodies[0]["id"])
	assert.Equal(t, string(events.EventTicketMoved), bodies[0]["type"])
	assert.Equal(t, "t1", bodies[0]["ticket_id"])
	assert.Equal(t, map[string]any{"user_id": "u1"}, bodies[0]["actor"])
	assert.Equal(t, "Done", bodies[0]["payload"].(map[string]any)["to_category_name"])
	assert.Equal(t, "c1", bodies[1]["category_id"])

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "TicketMoved", entries[0].Message)
	assert.Equal(t, "t1", entries[0].ContextMap()["ticket_id"])
	assert.Equal(t, "u1", entries[0].ContextMap()["actor"])
	assert.Equal(t, "webhook delivered", entries[1].Message)
	assert.Equal(t, int64(http.StatusNoContent), entries[1].ContextMap()["status"])
	assert.Equal(t, "BoardActivity", entries[2].Message)
	assert.Equal(t, "c1", entries[2].ContextMap()["category_id"])
}

func TestNotificationServiceReportsFailedDelivery(t *testing.T) {
	endpoint, url := newWebhookEndpoint(t, http.StatusInternalServerError)
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher(zap.New(core))
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{WebhookURL: url}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "e1", Type: events.EventTicketAssigned, TicketID: "t1"}))

	bodies, _ := endpoint.received()
	assert.Len(t, bodies, 1)
	failures := logs.FilterMessage("event handler failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "e1", failures[0].ContextMap()["event_id"])
	assert.Contains(t, failures[0].ContextMap()["error"], "unexpected status 500")
	assert.Zero(t, logs.FilterMessage("webhook delivered").Len())
}

func TestNotificationServiceWithoutWebhook(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "e1", Type: events.EventTicketAssigned}))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "TicketAssigned", logs.All()[0].Message)
}
