package shop

import "errors"

// Business errors surfaced to callers as distinguishable kinds. Handlers map
// each to its own HTTP category; nothing below is ever collapsed into a
// generic failure. Infrastructure errors are wrapped and propagated instead.
var (
	ErrInvalidProduct = errors.New("product missing or inactive")
	ErrOutOfStock     = errors.New("insufficient available stock")
	ErrCartLocked     = errors.New("cart is locked for checkout")
	ErrCartEmpty      = errors.New("cart has no items")
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderLocked    = errors.New("order is not awaiting payment")
	ErrSessionTimeout = errors.New("session timed out")
)
