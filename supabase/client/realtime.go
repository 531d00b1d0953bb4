// Package client provides realtime subscription support for Supabase.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RealtimeClient handles Supabase Realtime subscriptions.
type RealtimeClient struct {
	mu       sync.RWMutex
	url      string
	apiKey   string
	conn     *websocket.Conn
	channels map[string]*Channel
	handlers map[string][]ChangeHandler
	done     chan struct{}
	ref      int
}

// ChangeHandler handles a decoded postgres change event.
type ChangeHandler func(event *ChangeEvent)

// ChangeEvent is a single row change pushed by the Realtime service.
type ChangeEvent struct {
	Type      string         // INSERT, UPDATE, DELETE
	Schema    string
	Table     string
	Record    map[string]any // new row state (nil for DELETE)
	OldRecord map[string]any // previous row state where available
}

// realtimeMessage is the raw phoenix protocol frame.
type realtimeMessage struct {
	Type    string         `json:"type,omitempty"`
	Event   string         `json:"event"`
	Topic   string         `json:"topic"`
	Payload map[string]any `json:"payload"`
	Ref     string         `json:"ref"`
	JoinRef string         `json:"join_ref,omitempty"`
}

// Channel represents a realtime channel bound to one table subscription.
type Channel struct {
	client  *RealtimeClient
	topic   string
	config  PostgresChangesConfig
	joined  bool
	joinRef string
}

// NewRealtimeClient creates a new realtime client.
func NewRealtimeClient(supabaseURL, apiKey string) *RealtimeClient {
	// Convert HTTP URL to WebSocket URL
	wsURL := supabaseURL
	if strings.HasPrefix(wsURL, "https") {
		wsURL = "wss" + wsURL[5:]
	} else if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + wsURL[4:]
	}
	wsURL += "/realtime/v1/websocket?apikey=" + apiKey + "&vsn=1.0.0"

	return &RealtimeClient{
		url:      wsURL,
		apiKey:   apiKey,
		channels: make(map[string]*Channel),
		handlers: make(map[string][]ChangeHandler),
	}
}

// Connect establishes the WebSocket connection.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil // Already connected
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})

	go r.handleMessages()
	go r.heartbeat()

	return nil
}

// Connected reports whether the websocket is established.
func (r *RealtimeClient) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn != nil
}

// Disconnect closes the WebSocket connection.
func (r *RealtimeClient) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}

	close(r.done)

	err := r.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	if err != nil {
		r.conn.Close()
		r.conn = nil
		return fmt.Errorf("close message: %w", err)
	}

	r.conn.Close()
	r.conn = nil
	return nil
}

// PostgresChangesConfig configures a postgres changes subscription.
type PostgresChangesConfig struct {
	Event  string // INSERT, UPDATE, DELETE, *
	Schema string
	Table  string
	Filter string // Optional filter like "id=eq.1"
}

// Subscribe joins a channel for the given table and registers the handler.
func (r *RealtimeClient) Subscribe(ctx context.Context, cfg PostgresChangesConfig, handler ChangeHandler) (*Channel, error) {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Event == "" {
		cfg.Event = "*"
	}

	topic := fmt.Sprintf("realtime:%s:%s", cfg.Schema, cfg.Table)
	if cfg.Filter != "" {
		topic += ":" + cfg.Filter
	}

	r.mu.Lock()
	ch, ok := r.channels[topic]
	if !ok {
		ch = &Channel{client: r, topic: topic, config: cfg}
		r.channels[topic] = ch
	}
	r.handlers[topic] = append(r.handlers[topic], handler)
	r.mu.Unlock()

	if err := ch.join(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *Channel) join(ctx context.Context) error {
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	return c.joinLocked()
}

// joinLocked sends the phx_join frame. The caller holds the client mutex.
func (c *Channel) joinLocked() error {
	if c.joined {
		return nil
	}
	if c.client.conn == nil {
		return fmt.Errorf("realtime client not connected")
	}

	c.client.ref++
	ref := fmt.Sprintf("%d", c.client.ref)
	c.joinRef = ref

	change := map[string]any{
		"event":  c.config.Event,
		"schema": c.config.Schema,
		"table":  c.config.Table,
	}
	if c.config.Filter != "" {
		change["filter"] = c.config.Filter
	}

	msg := realtimeMessage{
		Topic: c.topic,
		Event: "phx_join",
		Payload: map[string]any{
			"config": map[string]any{
				"postgres_changes": []any{change},
			},
		},
		Ref:     ref,
		JoinRef: ref,
	}

	if err := c.client.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	c.joined = true
	return nil
}

// Unsubscribe leaves the channel.
func (c *Channel) Unsubscribe(ctx context.Context) error {
	c.client.mu.Lock()
	defer c.client.mu.Unlock()

	if !c.joined {
		return nil
	}
	if c.client.conn == nil {
		c.joined = false
		delete(c.client.channels, c.topic)
		return nil
	}

	c.client.ref++
	msg := realtimeMessage{
		Topic:   c.topic,
		Event:   "phx_leave",
		Payload: map[string]any{},
		Ref:     fmt.Sprintf("%d", c.client.ref),
		JoinRef: c.joinRef,
	}

	if err := c.client.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send leave: %w", err)
	}

	c.joined = false
	delete(c.client.channels, c.topic)
	delete(c.client.handlers, c.topic)
	return nil
}

func (r *RealtimeClient) handleMessages() {
	for {
		select {
		case <-r.done:
			return
		default:
		}

		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if !r.reconnect(conn) {
				return
			}
			continue
		}

		var frame realtimeMessage
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}

		if frame.Event != "postgres_changes" {
			continue
		}
		r.dispatch(&frame)
	}
}

// reconnect redials after a read failure and rejoins every channel so a
// transient network drop does not silence subscriptions for the process
// lifetime. Returns false once the client is deliberately disconnected.
func (r *RealtimeClient) reconnect(old *websocket.Conn) bool {
	old.Close()
	backoff := time.Second

	for {
		select {
		case <-r.done:
			return false
		default:
		}

		r.mu.RLock()
		cur := r.conn
		r.mu.RUnlock()
		if cur == nil {
			return false
		}
		if cur != old {
			// Someone else already replaced the connection.
			return true
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.Dial(r.url, nil)
		if err != nil {
			select {
			case <-r.done:
				return false
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		r.mu.Lock()
		if r.conn != old {
			alive := r.conn != nil
			r.mu.Unlock()
			conn.Close()
			return alive
		}
		r.conn = conn
		for _, ch := range r.channels {
			ch.joined = false
			if err := ch.joinLocked(); err != nil {
				// The next read failure retries the whole cycle.
				break
			}
		}
		r.mu.Unlock()
		return true
	}
}

// dispatch decodes a postgres_changes frame and invokes the topic's handlers
// on the read loop, so handlers observe events in wire order.
func (r *RealtimeClient) dispatch(frame *realtimeMessage) {
	event := decodeChange(frame.Payload)
	if event == nil {
		return
	}

	r.mu.RLock()
	handlers := r.handlers[frame.Topic]
	r.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func decodeChange(payload map[string]any) *ChangeEvent {
	data, ok := payload["data"].(map[string]any)
	if !ok {
		return nil
	}

	event := &ChangeEvent{}
	if t, ok := data["type"].(string); ok {
		event.Type = t
	}
	if s, ok := data["schema"].(string); ok {
		event.Schema = s
	}
	if t, ok := data["table"].(string); ok {
		event.Table = t
	}
	if rec, ok := data["record"].(map[string]any); ok {
		event.Record = rec
	}
	if old, ok := data["old_record"].(map[string]any); ok {
		event.OldRecord = old
	}
	if event.Type == "" {
		return nil
	}
	return event
}

func (r *RealtimeClient) heartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn != nil {
				r.ref++
				msg := realtimeMessage{
					Topic:   "phoenix",
					Event:   "heartbeat",
					Payload: map[string]any{},
					Ref:     fmt.Sprintf("%d", r.ref),
				}
				r.conn.WriteJSON(msg)
			}
			r.mu.Unlock()
		}
	}
}
