package market

import (
	"errors"

	nativecommon "lifemarket/native/common"
)

var (
	// Authorization failures.
	ErrNotAssetOwner       = errors.New("market: caller does not own asset")
	ErrNotListingOwner     = errors.New("market: caller is not the listing seller")
	ErrNotCurrentBidder    = errors.New("market: caller is not the current bidder")
	ErrNotAuthorizedBuyer  = errors.New("market: listing reserved for another buyer")
	ErrNotOperator         = errors.New("market: caller is not the operator")
	ErrSellerCannotBid     = errors.New("market: seller cannot bid on own listing")
	ErrSellerCannotBeBuyer = errors.New("market: seller cannot buy own listing")

	// State failures.
	ErrListingExists    = errors.New("market: asset already listed")
	ErrListingNotFound  = errors.New("market: listing not active")
	ErrNoActiveBid      = errors.New("market: no active bid")
	ErrApprovalRequired = errors.New("market: custody approval required")
	ErrTargetedDisabled = errors.New("market: targeted listings disabled")

	// Value failures.
	ErrInvalidPrice       = errors.New("market: price must be positive")
	ErrBidBelowMinimum    = errors.New("market: bid below listing minimum")
	ErrBidTooLow          = errors.New("market: bid must exceed current bid")
	ErrIncorrectValueSent = errors.New("market: sent value does not match amount")

	// Unsupported payment asset.
	ErrUnsupportedPayment = errors.New("market: payment method not accepted")

	// External transfer failures.
	ErrAssetTransferFailed = errors.New("market: asset transfer rejected")
	ErrTokenTransferFailed = errors.New("market: token transfer rejected")
	ErrInsufficientFunds   = errors.New("market: insufficient funds")

	// Resource exhaustion.
	ErrFeeExceedsMaximum   = errors.New("market: fee exceeds configured maximum")
	ErrNoRefundAvailable   = errors.New("market: no refund available")
	ErrNoEarningsAvailable = errors.New("market: no earnings available")
)

// ErrorKind groups the sentinel errors into the coarse taxonomy surfaced to
// RPC clients.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindAuthorization
	KindState
	KindValue
	KindUnsupportedAsset
	KindTransferFailure
	KindResourceExhausted
	KindPaused
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindValue:
		return "value"
	case KindUnsupportedAsset:
		return "unsupported_asset"
	case KindTransferFailure:
		return "transfer_failure"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// KindOf classifies an error returned by the settlement engine.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, nativecommon.ErrModulePaused):
		return KindPaused
	case errors.Is(err, ErrNotAssetOwner),
		errors.Is(err, ErrNotListingOwner),
		errors.Is(err, ErrNotCurrentBidder),
		errors.Is(err, ErrNotAuthorizedBuyer),
		errors.Is(err, ErrNotOperator),
		errors.Is(err, ErrSellerCannotBid),
		errors.Is(err, ErrSellerCannotBeBuyer):
		return KindAuthorization
	case errors.Is(err, ErrListingExists),
		errors.Is(err, ErrListingNotFound),
		errors.Is(err, ErrNoActiveBid),
		errors.Is(err, ErrApprovalRequired),
		errors.Is(err, ErrTargetedDisabled):
		return KindState
	case errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrBidBelowMinimum),
		errors.Is(err, ErrBidTooLow),
		errors.Is(err, ErrIncorrectValueSent):
		return KindValue
	case errors.Is(err, ErrUnsupportedPayment):
		return KindUnsupportedAsset
	case errors.Is(err, ErrAssetTransferFailed),
		errors.Is(err, ErrTokenTransferFailed),
		errors.Is(err, ErrInsufficientFunds):
		return KindTransferFailure
	case errors.Is(err, ErrFeeExceedsMaximum),
		errors.Is(err, ErrNoRefundAvailable),
		errors.Is(err, ErrNoEarningsAvailable):
		return KindResourceExhausted
	default:
		return KindUnknown
	}
}
