package domain

import "errors"

// Validation errors, returned before any ledger transaction starts.
var (
	ErrUnauthenticated = errors.New("bidder identity required")
	ErrAuctionNotFound = errors.New("auction not found")
	ErrInvalidAmount   = errors.New("bid must be a positive integer")
)

// Business rule rejections. Expected outcomes, not faults.
var (
	ErrWindowClosed  = errors.New("bidding is only open during trading hours")
	ErrAuctionClosed = errors.New("auction is closed")
	ErrBidTooLow     = errors.New("bid must be higher than current highest bid")
)

// ErrTransactionConflict marks a write conflict detected by the ledger's isolation layer.
// The whole place-bid operation can be retried safely.
var ErrTransactionConflict = errors.New("concurrent bid conflict")

type RejectReason string

const (
	ReasonUnauthenticated RejectReason = "UNAUTHENTICATED"
	ReasonNotFound        RejectReason = "NOT_FOUND"
	ReasonWindowClosed    RejectReason = "WINDOW_CLOSED"
	ReasonAuctionClosed   RejectReason = "AUCTION_CLOSED"
	ReasonBidTooLow       RejectReason = "BID_TOO_LOW"
	ReasonInvalidAmount   RejectReason = "INVALID_AMOUNT"
)

var reasonErrors = map[RejectReason]error{
	ReasonUnauthenticated: ErrUnauthenticated,
	ReasonNotFound:        ErrAuctionNotFound,
	ReasonWindowClosed:    ErrWindowClosed,
	ReasonAuctionClosed:   ErrAuctionClosed,
	ReasonBidTooLow:       ErrBidTooLow,
	ReasonInvalidAmount:   ErrInvalidAmount,
}

// Err returns the sentinel error for the reason, or nil for an unknown reason.
func (r RejectReason) Err() error {
	return reasonErrors[r]
}

// ReasonOf maps an error back to its reject code. ok is false for infrastructure errors.
func ReasonOf(err error) (RejectReason, bool) {
	for reason, sentinel := range reasonErrors {
		if errors.Is(err, sentinel) {
			return reason, true
		}
	}
	return "", false
}
