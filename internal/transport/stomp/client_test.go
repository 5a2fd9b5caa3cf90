package stomp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// fakeBroker accepts one client and records every frame it receives.
type fakeBroker struct {
	t      *testing.T
	reject bool

	mu     sync.Mutex
	conn   *websocket.Conn
	frames []*Frame
	subs   map[string]string // destination -> subscription id
	got    chan *Frame
}

func startBroker(t *testing.T, reject bool) (*fakeBroker, *httptest.Server) {
	b := &fakeBroker{t: t, reject: reject, subs: make(map[string]string), got: make(chan *Frame, 16)}
	upgrader := websocket.Upgrader{Subprotocols: []string{"v12.stomp"}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()
		b.serve(conn)
	}))
	t.Cleanup(server.Close)
	return b, server
}

func (b *fakeBroker) serve(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := Decode(data)
		if err != nil {
			continue
		}
		b.mu.Lock()
		b.frames = append(b.frames, frame)
		if frame.Command == CommandSubscribe {
			b.subs[frame.Header("destination")] = frame.Header("id")
		}
		b.mu.Unlock()

		switch frame.Command {
		case CommandConnect:
			reply := NewFrame(CommandConnected, "version", "1.2", headerUserName, "fabrice", headerQueueSuffix, "-user123")
			if b.reject {
				reply = NewFrame(CommandError, "message", "bad credentials")
			}
			b.write(reply)
		case CommandDisconnect:
			b.got <- frame
			return
		}
		b.got <- frame
	}
}

func (b *fakeBroker) write(frame *Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.WriteMessage(websocket.TextMessage, frame.Encode()); err != nil {
		b.t.Errorf("broker write: %v", err)
	}
}

func (b *fakeBroker) publish(destination, body string) {
	b.mu.Lock()
	id := b.subs[destination]
	b.mu.Unlock()
	b.write(&Frame{
		Command: CommandMessage,
		Headers: map[string]string{"destination": destination, "subscription": id, "message-id": "1"},
		Body:    []byte(body),
	})
}

func (b *fakeBroker) expect(command string) *Frame {
	b.t.Helper()
	for {
		select {
		case f := <-b.got:
			if f.Command == command {
				return f
			}
		case <-time.After(2 * time.Second):
			b.t.Fatalf("timed out waiting for %s", command)
			return nil
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_Connect(t *testing.T) {
	broker, server := startBroker(t, false)
	client := NewClient(wsURL(server), zap.NewNop())
	client.Login, client.Passcode = "fabrice", "secret"

	session, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect()

	if session.Identity != "fabrice" || session.RoutingSuffix != "-user123" {
		t.Errorf("Connect() session = %+v", session)
	}
	connect := broker.expect(CommandConnect)
	if connect.Header("accept-version") != "1.2" || connect.Header("login") != "fabrice" || connect.Header("passcode") != "secret" {
		t.Errorf("CONNECT headers = %v", connect.Headers)
	}
}

func TestClient_ConnectRejected(t *testing.T) {
	_, server := startBroker(t, true)
	client := NewClient(wsURL(server), zap.NewNop())

	if _, err := client.Connect(context.Background()); !errors.Is(err, ErrConnectRejected) {
		t.Fatalf("Connect() error = %v, want ErrConnectRejected", err)
	}
}

func TestClient_ConnectUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	client := NewClient(url, zap.NewNop())
	client.HandshakeTimeout = 500 * time.Millisecond
	if _, err := client.Connect(context.Background()); err == nil {
		t.Fatalf("Connect() expected error")
	}
}

func TestClient_SubscribeAndReceive(t *testing.T) {
	broker, server := startBroker(t, false)
	client := NewClient(wsURL(server), zap.NewNop())
	if _, err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect()

	received := make(chan string, 1)
	sub, err := client.Subscribe("/queue/errors-user123", func(payload []byte) {
		received <- string(payload)
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	frame := broker.expect(CommandSubscribe)
	if !strings.HasPrefix(frame.Header("id"), "sub-") || frame.Header("destination") != "/queue/errors-user123" {
		t.Errorf("SUBSCRIBE headers = %v", frame.Headers)
	}

	broker.publish("/queue/errors-user123", "not enough shares")
	select {
	case got := <-received:
		if got != "not enough shares" {
			t.Errorf("handler payload = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler not called")
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if unsub := broker.expect(CommandUnsubscribe); unsub.Header("id") != frame.Header("id") {
		t.Errorf("UNSUBSCRIBE id = %q, want %q", unsub.Header("id"), frame.Header("id"))
	}
}

func TestClient_Send(t *testing.T) {
	broker, server := startBroker(t, false)
	client := NewClient(wsURL(server), zap.NewNop())
	if _, err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect()

	payload := `{"action":"Buy","ticker":"ABC","shares":3}`
	if err := client.Send(context.Background(), "/app/trade", []byte(payload)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	frame := broker.expect(CommandSend)
	if frame.Header("destination") != "/app/trade" || string(frame.Body) != payload {
		t.Errorf("SEND frame = %v %q", frame.Headers, frame.Body)
	}
	if frame.Header("content-length") != "42" {
		t.Errorf("content-length = %q", frame.Header("content-length"))
	}
}

func TestClient_Disconnect(t *testing.T) {
	broker, server := startBroker(t, false)
	client := NewClient(wsURL(server), zap.NewNop())
	if _, err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	_ = client.Disconnect()
	broker.expect(CommandDisconnect)

	if err := client.Send(context.Background(), "/app/trade", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Disconnect error = %v, want ErrClosed", err)
	}
	if err := client.Disconnect(); err != nil {
		t.Errorf("second Disconnect() error = %v", err)
	}
}
