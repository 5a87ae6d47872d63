package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// streamMessage is one websocket frame of the live update stream.
type streamMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// streamClient queues events for one websocket connection. Events arrive on
// store dispatch paths, so enqueue never blocks; a full queue drops the event.
type streamClient struct {
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

func (c *streamClient) enqueue(msg streamMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *streamClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (api *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if api.sections == nil && api.fields == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
		return
	}
	client := &streamClient{send: make(chan []byte, api.streamBuffer)}
	deliver := func(msg streamMessage) {
		if !client.enqueue(msg) {
			api.logger.Warn("http.events.dropped", "type", msg.Type)
		}
	}

	var unsubscribers []func()
	if api.sections != nil {
		unsubscribers = append(unsubscribers, api.sections.SubscribeAll(func(ev sections.Event) {
			deliver(streamMessage{Type: ev.Type(), Payload: ev})
		}))
	}
	if api.fields != nil {
		unsubscribers = append(unsubscribers, api.fields.Subscribe(func(ev fields.Event) {
			deliver(streamMessage{Type: ev.Type(), Payload: ev})
		}))
	}
	unsubscribe := func() {
		for _, fn := range unsubscribers {
			fn()
		}
		client.close()
	}

	// Subscribing before the upgrade means no event published after the
	// handshake completes is missed.
	conn, err := api.upgrader.Upgrade(w, r, nil)
	if err != nil {
		unsubscribe()
		api.logger.Debug("http.events.upgrade_failed", "error", err)
		return
	}
	api.logger.Debug("http.events.connected", "remote_addr", r.RemoteAddr)

	go api.writeStream(conn, client)

	// The read loop only services control frames and notices disconnects.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	unsubscribe()
	api.logger.Debug("http.events.disconnected", "remote_addr", r.RemoteAddr)
}

func (api *API) writeStream(conn *websocket.Conn, client *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
