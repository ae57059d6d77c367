package contracts

import "errors"

var (
	// ErrNoPrice is returned when a security has no current price
	ErrNoPrice = errors.New("no price")

	// ErrInsufficientCash is returned when a buy exceeds available cash
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrNoPosition is returned when a sell exceeds the shares held
	ErrNoPosition = errors.New("no position")

	// ErrOrderNotFound is returned when canceling an unknown order
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnknownStrategy is returned when a strategy name is not registered
	ErrUnknownStrategy = errors.New("unknown strategy")
)
