package hub

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"devsocial/pkg/envelope"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

type join struct {
	action string
	data   interface{}
}

// Client is a websocket client for the hub. Joins are remembered and replayed
// after a reconnect.
type Client struct {
	url       string
	token     string
	log       *zap.Logger
	mu        sync.Mutex
	conn      *websocket.Conn
	joins     []join
	onMessage func(envelope.Envelope)
}

func NewClient(hubURL, token string, log *zap.Logger) *Client {
	return &Client{url: hubURL, token: token, log: log.Named("hub-client")}
}

// OnMessage registers the callback for every frame received.
func (c *Client) OnMessage(fn func(envelope.Envelope)) {
	c.onMessage = fn
}

func (c *Client) Dial(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return err
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	joins := append([]join(nil), c.joins...)
	c.mu.Unlock()

	for _, j := range joins {
		if _, err := c.Send(j.action, j.data); err != nil {
			c.closeConn()
			return err
		}
	}
	return nil
}

// Run keeps the client connected until ctx is cancelled, retrying every 3s.
func (c *Client) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := c.Dial(ctx); err != nil {
			c.log.Warn("connection failed, retrying in 3s", zap.String("url", c.url), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		c.log.Info("connected", zap.String("url", c.url))
		stop := context.AfterFunc(ctx, c.closeConn)
		c.Listen()
		stop()
		c.closeConn()
		c.log.Info("disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// Listen reads frames until the connection fails.
func (c *Client) Listen() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		env, err := envelope.Unmarshal(raw)
		if err != nil {
			continue
		}
		if c.onMessage != nil {
			c.onMessage(env)
		}
	}
}

// Send writes one action frame and returns its id.
func (c *Client) Send(action string, data interface{}) (string, error) {
	env, err := envelope.NewRequest(action, data)
	if err != nil {
		return "", err
	}
	raw, err := env.Marshal()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return "", errors.New("not connected")
	}
	return env.ID, c.conn.WriteMessage(websocket.TextMessage, raw)
}

// Join sends a join action and remembers it for reconnects. Before the first
// Dial it only records the join.
func (c *Client) Join(action string, data interface{}) error {
	c.mu.Lock()
	c.joins = append(c.joins, join{action: action, data: data})
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		return nil
	}
	_, err := c.Send(action, data)
	return err
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() {
	c.closeConn()
}
