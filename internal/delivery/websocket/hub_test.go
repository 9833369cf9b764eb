package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"push-relay/internal/domain"
)

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHubDeliversToConnectedUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(hub, zerolog.Nop()).Handle))
	defer srv.Close()

	conn := dial(t, srv, "u1")
	defer conn.Close()

	hello := readEvent(t, conn)
	assert.Equal(t, "connected", hello.Event)
	assert.Equal(t, "u1", hello.UserID)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	err := hub.Deliver(context.Background(), []domain.Notification{
		{ID: "n-other", UserID: "u2", Title: "nope"},
		{ID: "n1", UserID: "u1", DeviceID: "d1", Title: "Hi", Body: "there"},
	})
	require.NoError(t, err)

	ev := readEvent(t, conn)
	assert.Equal(t, "notification", ev.Event)
	require.NotNil(t, ev.Notification)
	assert.Equal(t, "n1", ev.Notification.ID)
	assert.Equal(t, "Hi", ev.Notification.Title)
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(hub, zerolog.Nop()).Handle))
	defer srv.Close()

	a := dial(t, srv, "u1")
	b := dial(t, srv, "u1")
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	_ = b.Close()
}

func TestHandleRequiresUserID(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	rec := httptest.NewRecorder()
	NewHandler(hub, zerolog.Nop()).Handle(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}
