package types

// Session is created once per successful handshake and never changes afterwards.
type Session struct {
	Identity      string
	RoutingSuffix string
}
