package domain

import "errors"

// Domain sentinel errors. Message wording matters: the transport layer maps
// "insufficient" and "transition" to 409 and "permission denied" to 403.
var (
	ErrPartNotFound        = errors.New("part not found")
	ErrPartCodeExists      = errors.New("part code already exists")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidStockLevels  = errors.New("invalid stock levels")
	ErrPartInactive        = errors.New("part is inactive")
	ErrOrderNotFound       = errors.New("purchase order not found")
	ErrSupplierRequired    = errors.New("supplier is required")
	ErrNoItems             = errors.New("purchase order requires at least one item")
	ErrDuplicatePart       = errors.New("invalid items: duplicate part in order")
	ErrInvalidUnitPrice    = errors.New("invalid unit price")
	ErrDeliveryDateInPast  = errors.New("invalid expected delivery date: must be in the future")
	ErrOrderNotEditable    = errors.New("invalid state: only draft orders can be edited")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrRoleNotPermitted    = errors.New("permission denied for this transition")
	ErrInsufficientCapital = errors.New("insufficient capital")
	ErrAccountInitialized  = errors.New("capital account already exists with an initial amount")
	ErrAccountNotFound     = errors.New("capital account not found")
	ErrInvalidAmount       = errors.New("invalid amount")
)
