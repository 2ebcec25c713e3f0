package websocket

import (
	"testing"

	"github.com/aukilabs/quadmap/models"
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newTestWorld(t *testing.T) *models.World {
	w, err := models.NewWorld(16, 16)
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func TestFeedHandler(t *testing.T) {
	t.Run("hello with map state", func(t *testing.T) {
		w := newTestWorld(t)
		require.NoError(t, w.SetHeightAtCorner(3, 3, 2))

		clientA, clientB, close := NewTestingEnv(t, newTestHandler(w))
		defer close()

		for clientID, c := range map[string]*websocket.Conn{
			TestClientA: clientA,
			TestClientB: clientB,
		} {
			hello := ReceiveTestMsg(t, c)
			require.Equal(t, MsgTypeHello, hello.Type)
			require.Equal(t, clientID, hello.ClientID)
			require.NotNil(t, hello.Map)
			require.Equal(t, 16, hello.Map.Width)
			require.Equal(t, 16, hello.Map.Height)
			require.Equal(t, w.Checksum(), hello.Map.Checksum)
		}
	})

	t.Run("ping pong", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler(newTestWorld(t)))
		defer close()

		ReceiveTestMsg(t, clientA)
		SendTestMsg(t, clientA, Msg{Type: MsgTypePing, RequestID: 42})

		pong := ReceiveTestMsg(t, clientA)
		require.Equal(t, MsgTypePong, pong.Type)
		require.Equal(t, uint32(42), pong.RequestID)
	})

	t.Run("changes are broadcast", func(t *testing.T) {
		w := newTestWorld(t)
		clientA, clientB, close := NewTestingEnv(t, newTestHandler(w))
		defer close()

		ReceiveTestMsg(t, clientA)
		ReceiveTestMsg(t, clientB)

		require.NoError(t, w.SetHeightAtCorner(4, 4, 1))

		for _, c := range []*websocket.Conn{clientA, clientB} {
			msg := ReceiveTestMsg(t, c)
			require.Equal(t, MsgTypeChange, msg.Type)
			require.NotNil(t, msg.Change)
			require.Equal(t, models.ChangeHeight, msg.Change.Kind)
			require.Equal(t, quadtree.NewRect(3, 3, 4, 4), msg.Change.Rect)
		}
	})

	t.Run("subscribe filters changes", func(t *testing.T) {
		w := newTestWorld(t)
		clientA, _, close := NewTestingEnv(t, newTestHandler(w))
		defer close()

		ReceiveTestMsg(t, clientA)

		rect := quadtree.NewRect(3, 3, 0, 0)
		SendTestMsg(t, clientA, Msg{
			Type:      MsgTypeSubscribe,
			RequestID: 7,
			Rect:      &rect,
		})

		subscribed := ReceiveTestMsg(t, clientA)
		require.Equal(t, MsgTypeSubscribed, subscribed.Type)
		require.Equal(t, uint32(7), subscribed.RequestID)
		require.Equal(t, &quadtree.Rect{Left: 0, Top: 0, Right: 3, Bottom: 3}, subscribed.Rect)

		require.NoError(t, w.SetHeightAtCorner(12, 12, 1))
		require.NoError(t, w.SetHeightAtCorner(1, 1, 1))

		msg := ReceiveTestMsg(t, clientA)
		require.Equal(t, MsgTypeChange, msg.Type)
		require.Equal(t, quadtree.NewRect(0, 0, 1, 1), msg.Change.Rect)

		require.NoError(t, w.Reload(8, 8))

		msg = ReceiveTestMsg(t, clientA)
		require.Equal(t, MsgTypeChange, msg.Type)
		require.Equal(t, models.ChangeReload, msg.Change.Kind)
	})

	t.Run("subscribe without rect restores the whole map", func(t *testing.T) {
		w := newTestWorld(t)
		clientA, _, close := NewTestingEnv(t, newTestHandler(w))
		defer close()

		ReceiveTestMsg(t, clientA)

		rect := quadtree.NewRect(0, 0, 1, 1)
		SendTestMsg(t, clientA, Msg{Type: MsgTypeSubscribe, Rect: &rect})
		ReceiveTestMsg(t, clientA)

		SendTestMsg(t, clientA, Msg{Type: MsgTypeSubscribe})
		subscribed := ReceiveTestMsg(t, clientA)
		require.Equal(t, MsgTypeSubscribed, subscribed.Type)
		require.Nil(t, subscribed.Rect)

		require.NoError(t, w.SetHeightAtCorner(12, 12, 1))

		msg := ReceiveTestMsg(t, clientA)
		require.Equal(t, MsgTypeChange, msg.Type)
		require.Equal(t, quadtree.NewRect(11, 11, 12, 12), msg.Change.Rect)
	})

	t.Run("invalid message", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler(newTestWorld(t)))
		defer close()

		ReceiveTestMsg(t, clientA)
		require.NoError(t, websocket.Message.Send(clientA, "{hello"))

		msg := ReceiveTestMsg(t, clientA)
		require.Equal(t, MsgTypeError, msg.Type)
		require.NotEmpty(t, msg.Error)

		// The connection stays open.
		SendTestMsg(t, clientA, Msg{Type: MsgTypePing, RequestID: 1})
		require.Equal(t, MsgTypePong, ReceiveTestMsg(t, clientA).Type)
	})

	t.Run("unsupported message type", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler(newTestWorld(t)))
		defer close()

		ReceiveTestMsg(t, clientA)
		SendTestMsg(t, clientA, Msg{Type: MsgTypeChange, RequestID: 3})

		msg := ReceiveTestMsg(t, clientA)
		require.Equal(t, MsgTypeError, msg.Type)
		require.Equal(t, uint32(3), msg.RequestID)
		require.Contains(t, msg.Error, "change")
	})

	t.Run("close unsubscribes", func(t *testing.T) {
		w := newTestWorld(t)
		h := &FeedHandler{World: w}

		h.unsubscribe = w.Subscribe(func(models.Change) {
			t.Error("change received after close")
		})
		h.Close()
		h.Close()

		require.NoError(t, w.SetHeightAtCorner(1, 1, 1))
	})
}
