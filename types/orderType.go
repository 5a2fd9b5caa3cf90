package types

type Side string

type Direction string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"

	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}
