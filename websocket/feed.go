package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadmap/models"
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	// The header a client can set to choose its id.
	HeaderClientID = "X-Client-ID"

	clientIDTag = "client_id"

	changesChanSize = 256
)

// FeedHandler forwards the changes of a world to a connected client.
type FeedHandler struct {
	// The world whose changes are forwarded.
	World *models.World

	// The interval between each keep alive ping sent to the connected client.
	ClientKeepAliveInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	conn        *websocket.Conn
	clientID    string
	changes     chan models.Change
	unsubscribe func()
	rect        *quadtree.Rect
	pingID      uint32
}

func (h *FeedHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	if req := conn.Request(); req != nil {
		h.clientID = req.Header.Get(HeaderClientID)
	}
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	h.changes = make(chan models.Change, changesChanSize)
	h.unsubscribe = h.World.Subscribe(func(c models.Change) {
		select {
		case h.changes <- c:
		default:
			instrumentDroppedChange()
			logs.WithTag(clientIDTag, h.clientID).
				WithTag("change", c).
				Warn("change dropped")
		}
	})
}

func (h *FeedHandler) HandleDisconnect(_ error) {
	h.Close()
}

func (h *FeedHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		Time:      time.Now(),
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *FeedHandler) HandlePong(ctx context.Context, respond ResponseSender, msg Msg) error {
	return nil
}

func (h *FeedHandler) HandleSubscribe(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Rect != nil {
		r := quadtree.NewRect(msg.Rect.Left, msg.Rect.Top, msg.Rect.Right, msg.Rect.Bottom)
		msg.Rect = &r
	}
	h.rect = msg.Rect

	respond.Send(Msg{
		Type:      MsgTypeSubscribed,
		Time:      time.Now(),
		RequestID: msg.RequestID,
		Rect:      h.rect,
	})
	return nil
}

func (h *FeedHandler) HandleChange(ctx context.Context, respond ResponseSender, c models.Change) error {
	if h.rect != nil && c.Kind != models.ChangeReload &&
		!h.rect.Intersects(c.Rect.Left, c.Rect.Top, c.Rect.Right, c.Rect.Bottom) {
		return nil
	}

	respond.Send(Msg{
		Type:   MsgTypeChange,
		Time:   time.Now(),
		Change: &c,
	})
	return nil
}

func (h *FeedHandler) SendHello(ctx context.Context, respond ResponseSender) error {
	respond.Send(Msg{
		Type:     MsgTypeHello,
		Time:     time.Now(),
		ClientID: h.clientID,
		Map: &MapState{
			Width:    h.World.Width(),
			Height:   h.World.Height(),
			Checksum: h.World.Checksum(),
		},
	})
	return nil
}

func (h *FeedHandler) SendKeepAlive(ctx context.Context, respond ResponseSender) error {
	h.pingID++
	respond.Send(Msg{
		Type:      MsgTypePing,
		Time:      time.Now(),
		RequestID: h.pingID,
	})
	return nil
}

func (h *FeedHandler) Changes() <-chan models.Change {
	return h.changes
}

func (h *FeedHandler) Receiver() Receiver {
	return NewReceiver(h.conn)
}

func (h *FeedHandler) Sender() Sender {
	return NewSender(h.conn)
}

// Close stops forwarding changes. It can be called several times.
func (h *FeedHandler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

func (h *FeedHandler) KeepAliveInterval() time.Duration {
	return h.ClientKeepAliveInterval
}

func (h *FeedHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *FeedHandler) GetClientID() string {
	return h.clientID
}
