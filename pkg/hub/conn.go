package hub

import (
	"errors"
	"sync"
	"time"

	"devsocial/pkg/envelope"
	"devsocial/pkg/models"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errQueueFull  = errors.New("outbound queue full")
	errConnClosed = errors.New("connection closed")
)

// Conn is one authenticated websocket connection. Frames are queued and
// written by a single writer goroutine, so per-connection order is the
// enqueue order.
type Conn struct {
	id           string
	identity     models.Identity
	socket       Socket
	queue        chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	log          *zap.Logger
}

func newConn(socket Socket, identity models.Identity, queueSize int, writeTimeout time.Duration, log *zap.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:           id,
		identity:     identity,
		socket:       socket,
		queue:        make(chan []byte, queueSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		log:          log.With(zap.String("conn", id), zap.Int64("account", identity.ID)),
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Identity() models.Identity {
	return c.identity
}

func (c *Conn) sender() *envelope.Sender {
	return &envelope.Sender{
		ID:       c.identity.ID,
		Username: c.identity.Handle,
		Name:     c.identity.Name,
		Avatar:   c.identity.Avatar,
	}
}

// enqueue never blocks: a full queue drops the frame for this connection.
func (c *Conn) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.queue <- frame:
		return nil
	default:
		return errQueueFull
	}
}

func (c *Conn) send(env envelope.Envelope) {
	frame, err := env.Marshal()
	if err != nil {
		c.log.Sugar().Errorf("failed to marshal %s: %s", env.Action, err.Error())
		return
	}
	if err := c.enqueue(frame); err != nil && !errors.Is(err, errConnClosed) {
		c.log.Warn("dropped reply", zap.String("action", env.Action), zap.Error(err))
	}
}

type deadlineSetter interface {
	SetWriteDeadline(t time.Time) error
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.queue:
			if ds, ok := c.socket.(deadlineSetter); ok && c.writeTimeout > 0 {
				ds.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				c.close()
				return
			}
		}
	}
}

// close stops the writer and closes the socket, which unblocks the reader.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.socket.Close()
	})
}
