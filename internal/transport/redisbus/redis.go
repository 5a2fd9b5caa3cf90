package redisbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"portfolioclient/internal/engine"
	"portfolioclient/types"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionsKey is the hash the client registers identity -> routing suffix in,
// so the server side knows where to route per-user replies.
const SessionsKey = "portfolio:sessions"

var ErrNoIdentity = errors.New("redis transport needs an identity")

// Compile-time check to ensure Bus implements engine.Transport
var _ engine.Transport = (*Bus)(nil)

// Bus carries the portfolio channels over Redis pub/sub. Destinations with a
// '*' are pattern subscriptions.
type Bus struct {
	client   *redis.Client
	identity string
	logger   *zap.Logger

	mu      sync.Mutex
	session *types.Session
	subs    map[*subscription]struct{}
}

func New(client *redis.Client, identity string, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		client:   client,
		identity: identity,
		logger:   logger,
		subs:     make(map[*subscription]struct{}),
	}
}

// Connect checks the server is reachable and registers a fresh routing suffix
// for this identity.
func (b *Bus) Connect(ctx context.Context) (types.Session, error) {
	if b.identity == "" {
		return types.Session{}, ErrNoIdentity
	}
	if err := b.client.Ping(ctx).Err(); err != nil {
		return types.Session{}, fmt.Errorf("ping redis: %w", err)
	}
	session := types.Session{Identity: b.identity, RoutingSuffix: "-" + uuid.NewString()}
	if err := b.client.HSet(ctx, SessionsKey, session.Identity, session.RoutingSuffix).Err(); err != nil {
		return types.Session{}, fmt.Errorf("register session: %w", err)
	}

	b.mu.Lock()
	b.session = &session
	b.mu.Unlock()
	b.logger.Info("redis connected", zap.String("addr", b.client.Options().Addr), zap.String("user", session.Identity))
	return session, nil
}

type subscription struct {
	bus    *Bus
	pubsub *redis.PubSub
	done   chan struct{}
}

func (s *subscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	err := s.pubsub.Close()
	<-s.done
	return err
}

func (b *Bus) Subscribe(destination string, handler func(payload []byte)) (engine.Subscription, error) {
	ctx := context.Background()
	var pubsub *redis.PubSub
	if strings.Contains(destination, "*") {
		pubsub = b.client.PSubscribe(ctx, destination)
	} else {
		pubsub = b.client.Subscribe(ctx, destination)
	}
	// wait for the confirmation so no message published after Subscribe returns is lost
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", destination, err)
	}

	sub := &subscription{bus: b, pubsub: pubsub, done: make(chan struct{})}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(sub.done)
		for msg := range pubsub.Channel() {
			handler([]byte(msg.Payload))
		}
	}()
	return sub, nil
}

func (b *Bus) Send(ctx context.Context, destination string, payload []byte) error {
	b.mu.Lock()
	connected := b.session != nil
	b.mu.Unlock()
	if !connected {
		return engine.ErrNotConnected
	}
	if err := b.client.Publish(ctx, destination, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", destination, err)
	}
	return nil
}

// Disconnect closes any subscription still open and removes the session entry.
// The redis client itself stays open and belongs to the caller.
func (b *Bus) Disconnect() error {
	b.mu.Lock()
	session := b.session
	b.session = nil
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil {
			b.logger.Warn("close pubsub failed", zap.Error(err))
		}
	}
	if session == nil {
		return nil
	}
	if err := b.client.HDel(context.Background(), SessionsKey, session.Identity).Err(); err != nil {
		return fmt.Errorf("unregister session: %w", err)
	}
	return nil
}
