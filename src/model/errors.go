package model

import "errors"

// Error taxonomy shared by the controller and settlement layers. Local
// precondition failures (parameter, no-change, insufficient funds, missing
// credential) are raised before any network call; the rest classify ledger
// and chain failures.
var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrNoChangeSpecified   = errors.New("no change specified")
	ErrNotFound            = errors.New("order not found")
	ErrNotModifiable       = errors.New("order is not in a modifiable state")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation")
	ErrAPI                 = errors.New("ledger api error")
	ErrRateLimited         = errors.New("rate limited")
	ErrMissingCredential   = errors.New("missing credential")
)
