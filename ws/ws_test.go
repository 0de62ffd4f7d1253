package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/abeme/go_chat_api/entity"
	"github.com/abeme/go_chat_api/relay"
	"github.com/abeme/go_chat_api/service"
	"github.com/abeme/go_chat_api/utils"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T) (*httptest.Server, *Hub, service.MessageService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entity.User{}, &entity.Message{}))
	messages := service.NewMessageService(db)

	log := zap.NewNop()
	hub := NewHub(log)
	rel := relay.New(messages, hub, log)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ServeWS(hub, rel, testSecret, log, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(time.Second)
	})
	return srv, hub, messages
}

// dialAs opens an authenticated live connection and waits until the hub has
// the identity registered.
func dialAs(t *testing.T, srv *httptest.Server, h *Hub, userID string) *websocket.Conn {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, entity.User{LinkedInID: userID}, utils.TokenTTL)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.Connected(userID) },
		2*time.Second, 10*time.Millisecond, "connection for %s was not registered", userID)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) relay.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt relay.Event
	require.NoError(t, json.Unmarshal(raw, &evt))
	return evt
}

func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &evt))
	require.Equal(t, "error", evt.Type)
	return evt.Error
}

func TestUpgradeRequiresToken(t *testing.T) {
	req := require.New(t)
	srv, _, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestUpgradeRejectsInvalidToken(t *testing.T) {
	req := require.New(t)
	srv, _, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestSendMessageDeliversAndConfirms(t *testing.T) {
	req := require.New(t)
	srv, hub, messages := newTestServer(t)

	receiver := dialAs(t, srv, hub, "u2")
	sender := dialAs(t, srv, hub, "u1")

	err := sender.WriteJSON(map[string]string{
		"type": "send_message", "receiverId": "u2", "content": "hi",
	})
	req.NoError(err)

	evt := readEvent(t, receiver)
	req.Equal(relay.EventReceiveMessage, evt.Type)
	req.Equal("u1", evt.SenderID)
	req.Equal("u2", evt.ReceiverID)
	req.Equal("hi", evt.Content)
	req.NotZero(evt.ID)

	confirm := readEvent(t, sender)
	req.Equal(relay.EventMessageSent, confirm.Type)
	req.Equal(evt.ID, confirm.ID)

	msgs, err := messages.Conversation("u1", "u2")
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("hi", msgs[0].Content)
}

func TestSendMessageReceiverOffline(t *testing.T) {
	req := require.New(t)
	srv, hub, messages := newTestServer(t)

	sender := dialAs(t, srv, hub, "u1")
	err := sender.WriteJSON(map[string]string{
		"type": "send_message", "receiverId": "u2", "content": "hi",
	})
	req.NoError(err)

	// The sender still gets its confirmation and the message is durable.
	confirm := readEvent(t, sender)
	req.Equal(relay.EventMessageSent, confirm.Type)

	msgs, err := messages.Conversation("u1", "u2")
	req.NoError(err)
	req.Len(msgs, 1)
}

func TestSendMessageSenderMismatch(t *testing.T) {
	req := require.New(t)
	srv, hub, messages := newTestServer(t)

	sender := dialAs(t, srv, hub, "u1")
	err := sender.WriteJSON(map[string]string{
		"type": "send_message", "senderId": "impostor", "receiverId": "u2", "content": "hi",
	})
	req.NoError(err)
	req.Equal("sender_mismatch", readError(t, sender))

	msgs, err := messages.Conversation("u1", "u2")
	req.NoError(err)
	req.Empty(msgs)
}

func TestSendMessageMissingFields(t *testing.T) {
	req := require.New(t)
	srv, hub, _ := newTestServer(t)

	sender := dialAs(t, srv, hub, "u1")
	req.NoError(sender.WriteJSON(map[string]string{"type": "send_message", "receiverId": "u2"}))
	req.Equal("missing_fields", readError(t, sender))
}

func TestUnsupportedEventType(t *testing.T) {
	req := require.New(t)
	srv, hub, _ := newTestServer(t)

	sender := dialAs(t, srv, hub, "u1")
	req.NoError(sender.WriteJSON(map[string]string{"type": "presence"}))
	req.Equal("unsupported_type", readError(t, sender))
}

func TestInvalidJSON(t *testing.T) {
	req := require.New(t)
	srv, hub, _ := newTestServer(t)

	sender := dialAs(t, srv, hub, "u1")
	req.NoError(sender.WriteMessage(websocket.TextMessage, []byte("{not json")))
	req.Equal("invalid_json", readError(t, sender))
}

func TestLastConnectedWins(t *testing.T) {
	req := require.New(t)
	srv, hub, _ := newTestServer(t)

	first := dialAs(t, srv, hub, "u2")
	second := dialAs(t, srv, hub, "u2")

	// The replaced connection is closed by the hub.
	req.NoError(first.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := first.ReadMessage()
	req.Error(err)

	sender := dialAs(t, srv, hub, "u1")
	req.NoError(sender.WriteJSON(map[string]string{
		"type": "send_message", "receiverId": "u2", "content": "hi",
	}))
	evt := readEvent(t, second)
	req.Equal(relay.EventReceiveMessage, evt.Type)
	req.Equal("hi", evt.Content)
}

func TestDisconnectUnregisters(t *testing.T) {
	req := require.New(t)
	srv, hub, _ := newTestServer(t)

	receiver := dialAs(t, srv, hub, "u2")
	req.True(hub.Connected("u2"))

	req.NoError(receiver.Close())
	req.Eventually(func() bool { return !hub.Connected("u2") },
		2*time.Second, 20*time.Millisecond, "binding must be destroyed on disconnect")
}

func TestSendToUserNoConnection(t *testing.T) {
	hub := NewHub(zap.NewNop())
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })
	require.False(t, hub.SendToUser("nobody", []byte("x")))
}

// serverConns returns a dialer that yields the server side of a fresh
// websocket connection, for driving hub clients directly.
func serverConns(t *testing.T) func() *websocket.Conn {
	t.Helper()
	connCh := make(chan *websocket.Conn, 4)
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- conn
	}))
	t.Cleanup(srv.Close)
	return func() *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		client, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		return <-connCh
	}
}

// A reconnect can replace a connection whose read side is still handling a
// frame; emitting that frame's error event afterwards must neither panic
// nor block, and delivery to the replacement must keep working.
func TestReplacedConnectionEmitsEventSafely(t *testing.T) {
	req := require.New(t)
	hub := NewHub(zap.NewNop())
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })
	dial := serverConns(t)

	newClient := func() *Client {
		return &Client{
			hub:    hub,
			conn:   dial(),
			send:   make(chan []byte, 256),
			done:   make(chan struct{}),
			userID: "u2",
			log:    zap.NewNop(),
		}
	}
	old := newClient()
	hub.RegisterClient(old)
	replacement := newClient()
	hub.RegisterClient(replacement)

	select {
	case <-old.done:
	case <-time.After(2 * time.Second):
		t.Fatal("replaced connection was not dropped")
	}

	req.NotPanics(func() {
		old.enqueue([]byte(`{"type":"error","error":"invalid_json"}`))
	})

	req.True(hub.SendToUser("u2", []byte(`{"type":"noop"}`)))
	select {
	case payload := <-replacement.send:
		req.JSONEq(`{"type":"noop"}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("replacement connection did not receive delivery")
	}
}
