package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/stakecraft/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, b *Broadcaster, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Subscribers() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, got %d", want, b.Subscribers())
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	b := NewBroadcaster(testLogger())
	server := httptest.NewServer(b)
	defer server.Close()
	defer b.Close()

	conn1 := dial(t, server)
	conn2 := dial(t, server)
	waitForSubscribers(t, b, 2)

	result := &models.EvaluationResult{
		Decision: models.Decision{Accepted: true},
		Metrics:  models.PortfolioMetrics{StakeTotal: 12.0, EVTotal: 2.4},
	}
	b.Broadcast(result)

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)

		var decoded models.EvaluationResult
		require.NoError(t, json.Unmarshal(payload, &decoded))
		assert.True(t, decoded.Decision.Accepted)
		assert.InDelta(t, 12.0, decoded.Metrics.StakeTotal, 1e-12)
	}
}

func TestSubscriberCountTracksDisconnects(t *testing.T) {
	b := NewBroadcaster(testLogger())
	server := httptest.NewServer(b)
	defer server.Close()
	defer b.Close()

	conn := dial(t, server)
	waitForSubscribers(t, b, 1)

	conn.Close()
	waitForSubscribers(t, b, 0)
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	b := NewBroadcaster(testLogger())

	// Must not panic or block
	b.Broadcast(&models.EvaluationResult{})
	assert.Equal(t, 0, b.Subscribers())
}

func TestCloseDisconnectsAll(t *testing.T) {
	b := NewBroadcaster(testLogger())
	server := httptest.NewServer(b)
	defer server.Close()

	dial(t, server)
	dial(t, server)
	waitForSubscribers(t, b, 2)

	b.Close()
	waitForSubscribers(t, b, 0)
}
