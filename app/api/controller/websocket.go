package controller

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/canopy-network/govunlock/app/api/controller/types"
	"github.com/canopy-network/govunlock/pkg/governance"
	"github.com/canopy-network/govunlock/pkg/multicast"
	"github.com/canopy-network/govunlock/pkg/unlock"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// RequireAuth already gates the upgrade; cookies are SameSite=Strict.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
)

// clientSubscriptions holds one live overview subscription per key.
type clientSubscriptions struct {
	subs *xsync.Map[unlock.Key, *multicast.Subscription[governance.LocksOverview]]
	wg   sync.WaitGroup
}

func newClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{subs: xsync.NewMap[unlock.Key, *multicast.Subscription[governance.LocksOverview]]()}
}

// add reports false when key is already subscribed.
func (cs *clientSubscriptions) add(key unlock.Key, subscribe func() *multicast.Subscription[governance.LocksOverview]) (*multicast.Subscription[governance.LocksOverview], bool) {
	var created *multicast.Subscription[governance.LocksOverview]
	cs.subs.Compute(key, func(old *multicast.Subscription[governance.LocksOverview], loaded bool) (*multicast.Subscription[governance.LocksOverview], xsync.ComputeOp) {
		if loaded {
			return old, xsync.CancelOp
		}
		created = subscribe()
		return created, xsync.UpdateOp
	})
	return created, created != nil
}

// remove drops key only while it still maps to sub.
func (cs *clientSubscriptions) remove(key unlock.Key, sub *multicast.Subscription[governance.LocksOverview]) {
	cs.subs.Compute(key, func(old *multicast.Subscription[governance.LocksOverview], loaded bool) (*multicast.Subscription[governance.LocksOverview], xsync.ComputeOp) {
		if loaded && old == sub {
			return nil, xsync.DeleteOp
		}
		return old, xsync.CancelOp
	})
}

func (cs *clientSubscriptions) unsubscribe(key unlock.Key) bool {
	sub, ok := cs.subs.LoadAndDelete(key)
	if ok {
		sub.Close()
	}
	return ok
}

func (cs *clientSubscriptions) closeAll() {
	cs.subs.Range(func(key unlock.Key, sub *multicast.Subscription[governance.LocksOverview]) bool {
		cs.subs.Delete(key)
		sub.Close()
		return true
	})
	cs.wg.Wait()
}

// HandleWebSocket streams live lock overviews.
//
// Protocol:
// Client sends: {"action": "subscribe", "chainId": "polkadot", "account": "alice"}
// Client sends: {"action": "unsubscribe", "chainId": "polkadot", "account": "alice"}
//
// Server sends:
// - {"type": "locks.updated", "payload": {...overview...}}
// - {"type": "subscribed", "payload": {"chainId": "polkadot", "account": "alice"}}
// - {"type": "unsubscribed", "payload": {"chainId": "polkadot", "account": "alice"}}
// - {"type": "error", "payload": {"message": "..."}}
//
// WebSocket ping frames go out every 30s.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newClientSubscriptions()
	send := make(chan types.ServerMessage, 256)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer c.recoverConn("ping ticker", r, cancel)
		c.sendPings(ctx, conn)
	}()
	go func() {
		defer wg.Done()
		defer c.recoverConn("message writer", r, cancel)
		c.writeMessages(conn, send, cancel)
	}()

	// Blocks until the connection closes
	c.readClientMessages(ctx, conn, cancel, subs, send)

	cancel()
	subs.closeAll()
	close(send)
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (c *Controller) recoverConn(what string, r *http.Request, cancel context.CancelFunc) {
	if rec := recover(); rec != nil {
		c.App.Logger.Error("Panic in WebSocket goroutine",
			zap.String("goroutine", what),
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())),
			zap.String("remote_addr", r.RemoteAddr))
		cancel()
	}
}

// forward relays one subscription's updates until it ends or the connection goes away.
func (c *Controller) forward(ctx context.Context, key unlock.Key, sub *multicast.Subscription[governance.LocksOverview], subs *clientSubscriptions, send chan<- types.ServerMessage) {
	defer subs.wg.Done()
	for u := range sub.Updates() {
		msg := types.ServerMessage{Type: types.MessageLocksUpdated}
		if u.Err != nil {
			msg = types.ServerMessage{Type: types.MessageError, Payload: map[string]string{
				"message": u.Err.Error(),
				"chainId": key.Chain,
				"account": key.Account,
			}}
		} else {
			msg.Payload = types.NewOverview(key.Chain, key.Account, u.Value, time.Now())
		}
		select {
		case send <- msg:
		case <-ctx.Done():
			return
		}
	}
	// The flow ended on its own (producer error); forget it so the client can resubscribe.
	subs.remove(key, sub)
}

// sendPings sends periodic WebSocket ping frames to keep the connection alive.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages writes queued messages; after a write failure it keeps draining so senders never block.
func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan types.ServerMessage, cancel context.CancelFunc) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
			cancel()
			for range send {
			}
			return
		}
	}
}

func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- types.ServerMessage) {
	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	reply := func(msg types.ServerMessage) {
		select {
		case send <- msg:
		case <-ctx.Done():
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		var msg types.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.App.Logger.Warn("WebSocket read error", zap.Error(err))
			}
			cancel()
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
			return
		}

		key := unlock.Key{Chain: msg.ChainID, Account: msg.Account}
		if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
			reply(types.ServerMessage{Type: types.MessageError, Payload: map[string]string{"message": "unknown action: " + msg.Action}})
			continue
		}
		if !validIdent(key.Chain, 64) || !validIdent(key.Account, maxAccountLen) {
			reply(types.ServerMessage{Type: types.MessageError, Payload: map[string]string{"message": "chainId and account are required"}})
			continue
		}
		ack := map[string]string{"chainId": key.Chain, "account": key.Account}

		switch msg.Action {
		case "subscribe":
			sub, fresh := subs.add(key, func() *multicast.Subscription[governance.LocksOverview] {
				return c.App.Service.SubscribeOverview(key)
			})
			reply(types.ServerMessage{Type: types.MessageSubscribed, Payload: ack})
			if fresh {
				subs.wg.Add(1)
				go c.forward(ctx, key, sub, subs, send)
				c.App.Logger.Debug("Client subscribed", zap.String("key", key.String()))
			}

		case "unsubscribe":
			subs.unsubscribe(key)
			c.App.Logger.Debug("Client unsubscribed", zap.String("key", key.String()))
			reply(types.ServerMessage{Type: types.MessageUnsubscribed, Payload: ack})
		}
	}
}
