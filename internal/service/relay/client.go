// Package relay streams raw channel posts from a WebSocket relay that sits in
// front of the chat platform.
//
// Frames are JSON. The client sends {"type":"subscribe","channels":[...]} after
// connecting; the relay pushes {"type":"message","data":{...}} with one input
// record, or {"type":"batch","data":[...]}. Other frame types are ignored.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"SignalBT/internal/domain/models"
	drepo "SignalBT/internal/domain/repository"
	applogger "SignalBT/pkg/logger"
)

type Config struct {
	URL            string
	Token          string
	Channels       []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// Client implements MessageStream over gorilla/websocket.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *applogger.Logger

	mu        sync.Mutex // guards conn and serializes writes
	conn      *websocket.Conn
	connected atomic.Bool
}

var _ drepo.MessageStream = (*Client)(nil)

func New(cfg Config, log *applogger.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		log:    log.With(applogger.String("component", "relay")),
	}
}

type frame struct {
	Type     string          `json:"type"`
	Channels []string        `json:"channels,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (c *Client) Connect(ctx context.Context) error {
	h := http.Header{}
	if c.cfg.Token != "" {
		h.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, h)
	if err != nil {
		return fmt.Errorf("relay connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.Info("relay connected", applogger.String("url", c.cfg.URL))
	return nil
}

// Subscribe asks for the configured channels; an empty list means all.
func (c *Client) Subscribe(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("relay not connected")
	}
	if err := c.conn.WriteJSON(frame{Type: "subscribe", Channels: c.cfg.Channels}); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	c.log.Info("relay subscribed", applogger.Strings("channels", c.cfg.Channels))
	return nil
}

// Read streams messages until the connection fails or ctx ends. Both
// channels are closed when reading stops; a failure is sent on the error
// channel first. Delivery blocks rather than dropping posts.
func (c *Client) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	out := make(chan *models.RawMessage, 256)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	rctx, cancel := context.WithCancel(ctx)
	go c.pingLoop(rctx, conn)

	go func() {
		defer cancel()
		defer close(out)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("relay not connected")
			return
		}
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				c.connected.Store(false)
				if rctx.Err() == nil {
					errs <- fmt.Errorf("relay read: %w", err)
				}
				return
			}
			msgs, err := decodeFrame(b)
			if err != nil {
				c.log.Warn("relay frame skipped", applogger.Error(err))
				continue
			}
			for _, m := range msgs {
				select {
				case out <- m:
				case <-rctx.Done():
					return
				}
			}
		}
	}()

	return out, errs
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if conn == nil {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.PingInterval / 2)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Debug("relay ping failed", applogger.Error(err))
			}
		}
	}
}

// decodeFrame returns the input records carried by one frame.
func decodeFrame(b []byte) ([]*models.RawMessage, error) {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch f.Type {
	case "message":
		var m models.RawMessage
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return keep(&m), nil
	case "batch":
		var ms []models.RawMessage
		if err := json.Unmarshal(f.Data, &ms); err != nil {
			return nil, fmt.Errorf("decode batch: %w", err)
		}
		out := make([]*models.RawMessage, 0, len(ms))
		for i := range ms {
			out = append(out, keep(&ms[i])...)
		}
		return out, nil
	default:
		return nil, nil
	}
}

func keep(m *models.RawMessage) []*models.RawMessage {
	if strings.TrimSpace(m.Source) == "" {
		return nil
	}
	m.Timestamp = m.Timestamp.UTC()
	return []*models.RawMessage{m}
}

// Reconnect closes the current connection, waits ReconnectDelay and
// connects and subscribes again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.cfg.ReconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool { return c.connected.Load() }
