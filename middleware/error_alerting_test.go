package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookRecorder struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (r *webhookRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (r *webhookRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func (r *webhookRecorder) last() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bodies) == 0 {
		return nil
	}
	return r.bodies[len(r.bodies)-1]
}

func TestSendSlackAlert(t *testing.T) {
	t.Run("PostsBlocksPayloadToWebhook", func(t *testing.T) {
		recorder := &webhookRecorder{}
		server := httptest.NewServer(recorder.handler())
		defer server.Close()

		m := NewErrorAlertMiddleware(SlackAlertConfig{
			WebhookURL:  server.URL,
			Environment: "dev",
			AppName:     "slack-connect-server",
		})

		m.sendSlackAlert("delivery cycle failed: boom", "Background task: delivery cycle")

		require.Equal(t, 1, recorder.count())
		var payload map[string]any
		require.NoError(t, json.Unmarshal(recorder.last(), &payload))
		assert.Contains(t, string(recorder.last()), "delivery cycle failed: boom")
		assert.Contains(t, string(recorder.last()), "Background task: delivery cycle")
		assert.NotEmpty(t, payload["blocks"])
	})

	t.Run("NoWebhookConfiguredIsNoop", func(t *testing.T) {
		m := NewErrorAlertMiddleware(SlackAlertConfig{AppName: "slack-connect-server"})

		m.sendSlackAlert("boom", "ctx")
	})
}

func TestWrapBackgroundTask(t *testing.T) {
	t.Run("AlertsAndReturnsTaskError", func(t *testing.T) {
		recorder := &webhookRecorder{}
		server := httptest.NewServer(recorder.handler())
		defer server.Close()

		m := NewErrorAlertMiddleware(SlackAlertConfig{WebhookURL: server.URL, AppName: "slack-connect-server"})
		taskErr := errors.New("db connection refused")

		err := m.WrapBackgroundTask("delivery cycle", func() error { return taskErr })()

		assert.ErrorIs(t, err, taskErr)
		require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 5*time.Millisecond)
		assert.Contains(t, string(recorder.last()), "db connection refused")
	})

	t.Run("RepeatedErrorDedupedWithinCooldown", func(t *testing.T) {
		recorder := &webhookRecorder{}
		server := httptest.NewServer(recorder.handler())
		defer server.Close()

		m := NewErrorAlertMiddleware(SlackAlertConfig{WebhookURL: server.URL, AppName: "slack-connect-server"})
		task := m.WrapBackgroundTask("delivery cycle", func() error { return errors.New("same failure") })

		_ = task()
		require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 5*time.Millisecond)

		_ = task()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, recorder.count())
	})

	t.Run("SuccessDoesNotAlert", func(t *testing.T) {
		recorder := &webhookRecorder{}
		server := httptest.NewServer(recorder.handler())
		defer server.Close()

		m := NewErrorAlertMiddleware(SlackAlertConfig{WebhookURL: server.URL, AppName: "slack-connect-server"})

		err := m.WrapBackgroundTask("delivery cycle", func() error { return nil })()

		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 0, recorder.count())
	})
}
