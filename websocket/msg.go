package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadmap/models"
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// The error type returned when a received message cannot be decoded.
const ErrTypeInvalidMsg = "invalid_msg"

// MsgType is the type of a change feed message.
type MsgType string

const (
	// Sent to a client once connected, with the state of the map.
	MsgTypeHello MsgType = "hello"

	// Sent by either side to check the other one is alive. Answered with a
	// pong carrying the same request id.
	MsgTypePing MsgType = "ping"
	MsgTypePong MsgType = "pong"

	// Sent by a client to only receive the changes intersecting a rectangle.
	// A message without rectangle restores the whole map. Answered with a
	// subscribed message.
	MsgTypeSubscribe  MsgType = "subscribe"
	MsgTypeSubscribed MsgType = "subscribed"

	// Sent to a client after an edit of the world.
	MsgTypeChange MsgType = "change"

	// Sent to a client when one of its requests failed.
	MsgTypeError MsgType = "error"
)

// Msg is a message of the change feed.
type Msg struct {
	Type      MsgType        `json:"type"`
	Time      time.Time      `json:"time"`
	RequestID uint32         `json:"request_id,omitempty"`
	ClientID  string         `json:"client_id,omitempty"`
	Map       *MapState      `json:"map,omitempty"`
	Change    *models.Change `json:"change,omitempty"`
	Rect      *quadtree.Rect `json:"rect,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// MapState describes the map when a client connects.
type MapState struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Checksum string `json:"checksum"`
}

// Receiver receives a message. It returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender sends a message. It returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to a client.
type ResponseSender interface {
	Send(Msg)
}

// NewReceiver returns a receiver that reads JSON messages from conn.
func NewReceiver(conn *websocket.Conn) Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			return Msg{}, len(data), errors.New("decoding message failed").
				WithType(ErrTypeInvalidMsg).
				Wrap(err)
		}
		return msg, len(data), nil
	}
}

// NewSender returns a sender that writes JSON text messages to conn.
func NewSender(conn *websocket.Conn) Sender {
	return func(msg Msg) (int, error) {
		if msg.Time.IsZero() {
			msg.Time = time.Now()
		}

		data, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").Wrap(err)
		}

		if err := websocket.Message.Send(conn, string(data)); err != nil {
			return 0, err
		}
		return len(data), nil
	}
}
