package engine

import (
	"portfolioclient/types"
)

// ChannelConfig names the destinations the controller subscribes and sends to.
// Position updates and errors are private to a session: the routing suffix
// handed out at handshake is appended to them.
type ChannelConfig struct {
	positions       string
	quotes          string
	positionUpdates string
	errors          string
	trade           string
}

func NewChannelConfig(positions, quotes, positionUpdates, errors, trade string) *ChannelConfig {
	return &ChannelConfig{
		positions:       positions,
		quotes:          quotes,
		positionUpdates: positionUpdates,
		errors:          errors,
		trade:           trade,
	}
}

func DefaultChannelConfig() *ChannelConfig {
	return NewChannelConfig(
		"/app/positions",
		"/topic/price.stock.*",
		"/queue/position-updates",
		"/queue/errors",
		"/app/trade",
	)
}

func (c *ChannelConfig) Trade() string { return c.trade }

func (c *ChannelConfig) positionUpdatesFor(s types.Session) string {
	return c.positionUpdates + s.RoutingSuffix
}

func (c *ChannelConfig) errorsFor(s types.Session) string {
	return c.errors + s.RoutingSuffix
}
