package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadmap/models"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// The client ids used by the connections of NewTestingEnv.
const (
	TestClientA = "client-a"
	TestClientB = "client-b"
)

// NewTestingEnv serves the change feed with handlers created by newHandler
// and connects two clients to it, identified by TestClientA and TestClientB.
// Logs are redirected to t until the returned func is called.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})
	errors.Encoder = json.Marshal

	server := httptest.NewServer(websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			h := newHandler()
			defer h.Close()

			Handle(context.Background(), conn, h)
		},
	})

	clientA := dialTestServer(t, server.URL, TestClientA)
	clientB := dialTestServer(t, server.URL, TestClientB)

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()

		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
	}
}

func dialTestServer(t *testing.T, serverURL, clientID string) *websocket.Conn {
	config, err := websocket.NewConfig(
		strings.Replace(serverURL, "http://", "ws://", 1),
		"http://localhost",
	)
	if err != nil {
		t.Fatalf("error initializing web socket: %s", err)
	}
	config.Header.Set("User-Agent", "quadmap-test")
	config.Header.Set(HeaderClientID, clientID)

	conn, err := websocket.DialConfig(config)
	if err != nil {
		t.Fatalf("error dialing web socket: %s", err)
	}
	return conn
}

// SendTestMsg sends msg as JSON on conn.
func SendTestMsg(t *testing.T, conn *websocket.Conn, msg Msg) {
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("error encoding message: %s", err)
	}
	if err := websocket.Message.Send(conn, string(data)); err != nil {
		t.Fatalf("error sending message: %s", err)
	}
}

// ReceiveTestMsg waits up to 5 seconds for the next message on conn.
func ReceiveTestMsg(t *testing.T, conn *websocket.Conn) Msg {
	conn.SetReadDeadline(time.Now().Add(time.Second * 5))

	msg, _, err := NewReceiver(conn)()
	if err != nil {
		t.Fatalf("error receiving message: %s", err)
	}
	return msg
}

func newTestHandler(w *models.World) func() Handler {
	return func() Handler {
		var h Handler = &FeedHandler{
			World:                   w,
			ClientKeepAliveInterval: time.Minute,
			ClientIdleTimeout:       time.Minute,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://quadmap-test.com")
		return h
	}
}
