package stomp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"portfolioclient/internal/engine"
	"portfolioclient/types"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrConnectRejected = errors.New("broker rejected CONNECT")
	ErrClosed          = errors.New("stomp client closed")
)

const (
	headerUserName    = "user-name"
	headerQueueSuffix = "queue-suffix"
	maxFrameSize      = 1024 * 1024
)

// Compile-time check to ensure Client implements engine.Transport
var _ engine.Transport = (*Client)(nil)

// Client speaks STOMP 1.2 over one websocket connection. Inbound MESSAGE
// frames are handed to subscription handlers from a single reader goroutine.
type Client struct {
	URL      string
	Login    string
	Passcode string
	Host     string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Dialer           *websocket.Dialer

	logger *zap.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu       sync.Mutex
	handlers map[string]func([]byte)
	done     chan struct{}
}

func NewClient(url string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		Dialer:           websocket.DefaultDialer,
		logger:           logger,
		handlers:         make(map[string]func([]byte)),
	}
}

// Connect dials the broker and completes the STOMP handshake. The session
// identity and routing suffix come from the CONNECTED frame.
func (c *Client) Connect(ctx context.Context) (types.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.HandshakeTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Sec-WebSocket-Protocol", "v12.stomp")
	conn, _, err := c.Dialer.DialContext(ctx, c.URL, header)
	if err != nil {
		return types.Session{}, fmt.Errorf("dial %s: %w", c.URL, err)
	}
	conn.SetReadLimit(maxFrameSize)

	host := c.Host
	if host == "" {
		host = "/"
	}
	connect := NewFrame(CommandConnect,
		"accept-version", "1.2",
		"host", host,
		"heart-beat", "0,0",
	)
	if c.Login != "" {
		connect.Headers["login"] = c.Login
		connect.Headers["passcode"] = c.Passcode
	}

	deadline, _ := ctx.Deadline()
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, connect.Encode()); err != nil {
		conn.Close()
		return types.Session{}, fmt.Errorf("write CONNECT: %w", err)
	}

	conn.SetReadDeadline(deadline)
	reply, err := readFrame(conn)
	if err != nil {
		conn.Close()
		return types.Session{}, fmt.Errorf("read CONNECTED: %w", err)
	}
	switch reply.Command {
	case CommandConnected:
	case CommandError:
		conn.Close()
		return types.Session{}, fmt.Errorf("%w: %s %s", ErrConnectRejected, reply.Header("message"), reply.Body)
	default:
		conn.Close()
		return types.Session{}, fmt.Errorf("%w: unexpected %s frame", ErrConnectRejected, reply.Command)
	}
	conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.conn = conn
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.readPump(conn, c.done)

	session := types.Session{
		Identity:      reply.Header(headerUserName),
		RoutingSuffix: reply.Header(headerQueueSuffix),
	}
	c.logger.Info("stomp connected", zap.String("url", c.URL), zap.String("user", session.Identity))
	return session, nil
}

type subscription struct {
	client *Client
	id     string
}

func (s subscription) Unsubscribe() error {
	s.client.mu.Lock()
	delete(s.client.handlers, s.id)
	s.client.mu.Unlock()
	return s.client.write(context.Background(), NewFrame(CommandUnsubscribe, "id", s.id))
}

func (c *Client) Subscribe(destination string, handler func(payload []byte)) (engine.Subscription, error) {
	id := "sub-" + uuid.NewString()
	c.mu.Lock()
	c.handlers[id] = handler
	c.mu.Unlock()

	frame := NewFrame(CommandSubscribe, "id", id, "destination", destination, "ack", "auto")
	if err := c.write(context.Background(), frame); err != nil {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
		return nil, err
	}
	return subscription{client: c, id: id}, nil
}

func (c *Client) Send(ctx context.Context, destination string, payload []byte) error {
	frame := NewFrame(CommandSend,
		"destination", destination,
		"content-type", "application/json;charset=UTF-8",
		"content-length", strconv.Itoa(len(payload)),
	)
	frame.Body = payload
	return c.write(ctx, frame)
}

// Disconnect sends DISCONNECT, closes the socket and waits for the reader to exit.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.handlers = make(map[string]func([]byte))
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	err := conn.WriteMessage(websocket.TextMessage, NewFrame(CommandDisconnect).Encode())
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug("write DISCONNECT failed", zap.Error(err))
	}
	closeErr := conn.Close()
	<-done
	return closeErr
}

func (c *Client) write(ctx context.Context, frame *Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}

	deadline := time.Now().Add(c.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, frame.Encode()); err != nil {
		return fmt.Errorf("write %s: %w", frame.Command, err)
	}
	return nil
}

// readPump dispatches MESSAGE frames until the socket closes.
func (c *Client) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		frame, err := readFrame(conn)
		if errors.Is(err, ErrHeartbeat) {
			continue
		}
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug("stomp connection closed", zap.Error(err))
			} else {
				c.logger.Warn("stomp read failed", zap.Error(err))
			}
			return
		}

		switch frame.Command {
		case CommandMessage:
			c.mu.Lock()
			handler, ok := c.handlers[frame.Header("subscription")]
			c.mu.Unlock()
			if !ok {
				c.logger.Debug("message for unknown subscription", zap.String("destination", frame.Header("destination")))
				continue
			}
			handler(frame.Body)
		case CommandError:
			c.logger.Error("stomp ERROR frame", zap.String("message", frame.Header("message")), zap.ByteString("body", frame.Body))
		case CommandReceipt:
		default:
			c.logger.Debug("ignoring frame", zap.String("command", frame.Command))
		}
	}
}

func readFrame(conn *websocket.Conn) (*Frame, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
