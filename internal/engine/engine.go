package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"portfolioclient/internal/metrics"
	"portfolioclient/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrHandshake        = errors.New("handshake failed")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

const journalTimeout = 5 * time.Second

// Logical channel names used for logging and metric labels.
const (
	channelPositions       = "positions"
	channelQuotes          = "quotes"
	channelPositionUpdates = "position-updates"
	channelErrors          = "errors"
)

// Controller owns the transport session and routes inbound messages to the
// position book and the notification log. Deliveries and Do calls are
// serialised on one lock, so the book and the log never see two writers.
type Controller struct {
	transport Transport
	channels  *ChannelConfig
	view      View
	journal   TradeJournal
	logger    *zap.Logger
	metrics   *metrics.Metrics

	session atomic.Pointer[types.Session]

	mu            sync.Mutex
	generation    uint64
	subscriptions []Subscription
	book          *PositionBook
	notifications *NotificationLog
	snapshotSeen  bool
	unjournaled   []string
}

type ControllerOption func(*Controller)

func WithView(view View) ControllerOption {
	return func(c *Controller) { c.view = view }
}

func WithJournal(journal TradeJournal) ControllerOption {
	return func(c *Controller) { c.journal = journal }
}

func WithMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

func NewController(transport Transport, channels *ChannelConfig, logger *zap.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		transport:     transport,
		channels:      channels,
		view:          NopView{},
		logger:        logger,
		notifications: NewNotificationLog(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.channels == nil {
		c.channels = DefaultChannelConfig()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}
	c.book = NewPositionBook(c.view)
	return c
}

// Connect performs the handshake and subscribes the four inbound channels.
// Every session starts from an empty book that the snapshot fills.
func (c *Controller) Connect(ctx context.Context) error {
	if c.session.Load() != nil {
		return ErrAlreadyConnected
	}
	session, err := c.transport.Connect(ctx)
	if err != nil {
		c.logger.Error("handshake failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.book = NewPositionBook(c.view)
	c.snapshotSeen = false
	c.session.Store(&session)
	c.mu.Unlock()

	c.logger.Info("connected",
		zap.String("identity", session.Identity),
		zap.String("routing_suffix", session.RoutingSuffix))

	routes := []struct {
		name   string
		dest   string
		handle func(payload []byte)
	}{
		{channelPositions, c.channels.positions, c.handleSnapshot},
		{channelQuotes, c.channels.quotes, c.handleQuote},
		{channelPositionUpdates, c.channels.positionUpdatesFor(session), c.handlePositionUpdate},
		{channelErrors, c.channels.errorsFor(session), c.handleError},
	}
	for _, r := range routes {
		sub, err := c.transport.Subscribe(r.dest, c.dispatch(gen, r.name, r.handle))
		if err != nil {
			c.logger.Error("subscribe failed", zap.String("destination", r.dest), zap.Error(err))
			_ = c.Disconnect()
			return fmt.Errorf("subscribe %s: %w", r.dest, err)
		}
		c.mu.Lock()
		c.subscriptions = append(c.subscriptions, sub)
		c.mu.Unlock()
	}
	return nil
}

// Disconnect stops dispatch and closes the transport session. The book and the
// notification log keep their contents until the next Connect.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	if c.session.Load() == nil {
		c.mu.Unlock()
		return nil
	}
	subs := c.subscriptions
	c.subscriptions = nil
	c.generation++
	c.session.Store(nil)
	c.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("unsubscribe failed", zap.Error(err))
		}
	}
	if err := c.transport.Disconnect(); err != nil {
		c.logger.Warn("transport disconnect failed", zap.Error(err))
		return err
	}
	c.logger.Info("disconnected")
	return nil
}

// SubmitTrade sends req on the trade channel and returns once it is handed to
// the transport. The outcome arrives later as a position update or an error.
// It reads the book for the journal's reference price, so call it inside Do.
func (c *Controller) SubmitTrade(ctx context.Context, req types.TradeRequest) error {
	session := c.session.Load()
	if session == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := c.transport.Send(ctx, c.channels.trade, payload); err != nil {
		c.logger.Error("trade send failed", zap.String("ticker", req.Ticker), zap.Error(err))
		return fmt.Errorf("send trade: %w", err)
	}
	c.metrics.TradesSubmitted.Inc()
	c.logger.Info("trade submitted",
		zap.String("action", string(req.Action)),
		zap.String("ticker", req.Ticker),
		zap.Int64("shares", req.Shares))

	if c.journal != nil {
		refPrice := decimal.Zero
		if pos, ok := c.book.Lookup(req.Ticker); ok {
			refPrice = pos.Price()
		}
		if err := c.journal.RecordTrade(ctx, *session, req, refPrice); err != nil {
			c.logger.Warn("journal trade failed", zap.Error(err))
		}
	}
	return nil
}

// Do runs fn on the dispatch lock. User actions that read the book (opening
// or submitting a trade dialog) go through here.
func (c *Controller) Do(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Book returns the book of the current session. Read it inside Do.
func (c *Controller) Book() *PositionBook {
	return c.book
}

func (c *Controller) Notifications() *NotificationLog {
	return c.notifications
}

func (c *Controller) Session() (types.Session, bool) {
	s := c.session.Load()
	if s == nil {
		return types.Session{}, false
	}
	return *s, true
}

func (c *Controller) Connected() bool {
	return c.session.Load() != nil
}

func (c *Controller) dispatch(gen uint64, channel string, handle func(payload []byte)) func([]byte) {
	return func(payload []byte) {
		c.mu.Lock()
		if c.generation != gen || c.session.Load() == nil {
			c.mu.Unlock()
			c.metrics.Dropped.WithLabelValues(channel, "stale_session").Inc()
			return
		}
		c.metrics.Dispatched.WithLabelValues(channel).Inc()
		handle(payload)
		pending := c.unjournaled
		c.unjournaled = nil
		session := c.session.Load()
		c.mu.Unlock()

		c.journalNotifications(session, pending)
	}
}

func (c *Controller) handleSnapshot(payload []byte) {
	if c.snapshotSeen {
		c.metrics.Dropped.WithLabelValues(channelPositions, "duplicate_snapshot").Inc()
		c.logger.Warn("ignoring repeated positions snapshot")
		return
	}
	var records []types.PositionRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		c.malformed(channelPositions, err)
		return
	}
	if err := c.book.LoadSnapshot(records); err != nil {
		c.malformed(channelPositions, err)
		return
	}
	c.snapshotSeen = true
	c.logger.Info("positions loaded", zap.Int("positions", c.book.Len()))
	c.view.OnPositionsLoaded(slices.Collect(c.book.Rows()))
}

func (c *Controller) handleQuote(payload []byte) {
	var quote types.Quote
	if err := json.Unmarshal(payload, &quote); err != nil {
		c.malformed(channelQuotes, err)
		return
	}
	if !c.book.ApplyQuote(quote.Ticker, quote.Price) {
		c.metrics.Dropped.WithLabelValues(channelQuotes, "unknown_ticker").Inc()
	}
}

// handlePositionUpdate logs the raw body before decoding it, so even an
// unreadable update shows up in the notification log.
func (c *Controller) handlePositionUpdate(payload []byte) {
	c.push("Position update " + string(payload))
	var update types.PositionUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		c.malformed(channelPositionUpdates, err)
		return
	}
	if !c.book.ApplyPositionUpdate(update.Ticker, update.Shares) {
		c.metrics.Dropped.WithLabelValues(channelPositionUpdates, "unknown_ticker").Inc()
		c.logger.Debug("position update dropped", zap.String("ticker", update.Ticker))
		return
	}
	c.view.OnPositionChanged(update.Ticker, update.Shares)
}

func (c *Controller) handleError(payload []byte) {
	c.push("Error " + string(payload))
}

func (c *Controller) push(text string) {
	c.notifications.Push(text)
	c.view.OnNotification(text)
	if c.journal != nil {
		c.unjournaled = append(c.unjournaled, text)
	}
}

func (c *Controller) malformed(channel string, err error) {
	c.metrics.Malformed.WithLabelValues(channel).Inc()
	c.logger.Warn("dropping malformed message", zap.String("channel", channel), zap.Error(err))
}

func (c *Controller) journalNotifications(session *types.Session, texts []string) {
	if len(texts) == 0 || session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	for _, text := range texts {
		if err := c.journal.RecordNotification(ctx, *session, text); err != nil {
			c.logger.Warn("journal notification failed", zap.Error(err))
		}
	}
}
