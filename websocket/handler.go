package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadmap/models"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 32

	defaultKeepAliveInterval = time.Second * 30
	defaultIdleTimeout       = time.Minute * 5
)

// Handler represents a change feed handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a pong response to a keep alive ping.
	HandlePong(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to restrict the changes sent to the client.
	HandleSubscribe(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a change of the world.
	HandleChange(ctx context.Context, respond ResponseSender, c models.Change) error

	// Sends the hello message to the client.
	SendHello(ctx context.Context, respond ResponseSender) error

	// Sends a keep alive ping to the client.
	SendKeepAlive(ctx context.Context, respond ResponseSender) error

	// The changes to forward to the client.
	Changes() <-chan models.Change

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The interval between each keep alive message sent to the connected
	// client.
	KeepAliveInterval() time.Duration

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Get ClientID
	GetClientID() string
}

// Handle handles the given service.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The feed handler.
	Handler Handler

	sendChan       chan Msg
	receiveChan    chan Msg
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	keepAliveInterval := h.Handler.KeepAliveInterval()
	if keepAliveInterval <= 0 {
		keepAliveInterval = defaultKeepAliveInterval
	}
	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	var responder = responseSender{
		send: h.send,
	}

	if err := h.Handler.SendHello(ctx, responder); err != nil {
		h.disconnect(errors.New("sending hello failed").Wrap(err))
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case <-keepAliveTicker.C:
			if err := h.Handler.SendKeepAlive(ctx, responder); err != nil {
				h.disconnect(errors.New("sending keep alive failed").Wrap(err))
			}

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case c := <-h.Handler.Changes():
			if err := h.Handler.HandleChange(ctx, responder, c); err != nil {
				h.disconnect(errors.New("handling change failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(msg Msg) {
	select {
	case h.sendChan <- msg:
	default:
		h.disconnect(errors.New("send queue is full").
			WithTag("size", sendChanSize).
			WithTag("msg_type", msg.Type))
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		msg, _, err := h.receiver()
		if errors.IsType(err, ErrTypeInvalidMsg) {
			h.send(Msg{
				Type:  MsgTypeError,
				Time:  time.Now(),
				Error: "invalid message",
			})
			continue
		}
		if err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		select {
		case <-ctx.Done():
			return

		case h.receiveChan <- msg:
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	switch msg.Type {
	case MsgTypePing:
		return h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypePong:
		return h.Handler.HandlePong(ctx, responder, msg)

	case MsgTypeSubscribe:
		return h.Handler.HandleSubscribe(ctx, responder, msg)

	default:
		responder.Send(Msg{
			Type:      MsgTypeError,
			Time:      time.Now(),
			RequestID: msg.RequestID,
			Error:     "unsupported message type: " + string(msg.Type),
		})
		return nil
	}
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send func(Msg)
}

func (r responseSender) Send(msg Msg) {
	r.send(msg)
}
