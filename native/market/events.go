package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"lifemarket/core/types"
)

const (
	EventTypeListingCreated     = "market.listing.created"
	EventTypeListingCancelled   = "market.listing.cancelled"
	EventTypeBidPlaced          = "market.bid.placed"
	EventTypeBidCancelled       = "market.bid.cancelled"
	EventTypeBidWithdrawn       = "market.bid.withdrawn"
	EventTypeSold               = "market.sold"
	EventTypeRefundIssued       = "market.refund.issued"
	EventTypeRefundWithdrawn    = "market.refund.withdrawn"
	EventTypeEarningsWithdrawn  = "market.earnings.withdrawn"
	EventTypeFeeUpdated         = "market.fee.updated"
	EventTypeTradingPaused      = "market.trading.paused"
	EventTypeTradingResumed     = "market.trading.resumed"
	EventTypeOperatorChanged    = "market.operator.changed"
	EventTypeAssetMinted        = "market.asset.minted"
	EventTypeAccountFunded      = "market.account.funded"
	EventTypeApprovalChanged    = "market.approval.changed"
)

// NewListingCreatedEvent returns the canonical payload for a freshly created
// listing.
func NewListingCreatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCreated, l)
}

// NewListingCancelledEvent returns the payload emitted when a seller cancels
// their listing.
func NewListingCancelledEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCancelled, l)
}

// NewBidPlacedEvent returns the payload for a newly recorded highest bid.
func NewBidPlacedEvent(b *Bid) *types.Event { return newBidEvent(EventTypeBidPlaced, b) }

// NewBidCancelledEvent returns the payload emitted when a bid is displaced by
// a higher bid or settled away by a direct purchase.
func NewBidCancelledEvent(b *Bid) *types.Event { return newBidEvent(EventTypeBidCancelled, b) }

// NewBidWithdrawnEvent returns the payload emitted when a bidder withdraws
// their own bid.
func NewBidWithdrawnEvent(b *Bid) *types.Event { return newBidEvent(EventTypeBidWithdrawn, b) }

// NewSoldEvent returns the payload for a completed settlement, whether via
// bid acceptance or direct purchase.
func NewSoldEvent(assetID uint64, seller, buyer [20]byte, payment PaymentMethod, price, fee *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeSold,
		Attributes: map[string]string{
			"assetId": strconv.FormatUint(assetID, 10),
			"seller":  hex.EncodeToString(seller[:]),
			"buyer":   hex.EncodeToString(buyer[:]),
			"payment": payment.LedgerKey(),
			"price":   formatAmount(price),
			"fee":     formatAmount(fee),
		},
	}
}

// NewRefundIssuedEvent returns the payload emitted when an amount becomes
// claimable in the refund ledger.
func NewRefundIssuedEvent(account [20]byte, payment PaymentMethod, amount *big.Int) *types.Event {
	return newLedgerEvent(EventTypeRefundIssued, account, payment, amount)
}

// NewRefundWithdrawnEvent returns the payload emitted when a refund balance is
// paid out.
func NewRefundWithdrawnEvent(account [20]byte, payment PaymentMethod, amount *big.Int) *types.Event {
	return newLedgerEvent(EventTypeRefundWithdrawn, account, payment, amount)
}

// NewEarningsWithdrawnEvent returns the payload emitted when the operator
// collects accumulated fees.
func NewEarningsWithdrawnEvent(operator [20]byte, payment PaymentMethod, amount *big.Int) *types.Event {
	return newLedgerEvent(EventTypeEarningsWithdrawn, operator, payment, amount)
}

// NewFeeUpdatedEvent returns the payload emitted after a fee configuration
// change.
func NewFeeUpdatedEvent(cfg FeeConfig) *types.Event {
	return &types.Event{
		Type: EventTypeFeeUpdated,
		Attributes: map[string]string{
			"feeBps":    strconv.FormatUint(uint64(cfg.FeeBps), 10),
			"maxFeeBps": strconv.FormatUint(uint64(cfg.MaxFeeBps), 10),
		},
	}
}

// NewTradingStatusEvent returns the payload emitted when trading is paused or
// resumed.
func NewTradingStatusEvent(paused bool) *types.Event {
	evtType := EventTypeTradingResumed
	if paused {
		evtType = EventTypeTradingPaused
	}
	return &types.Event{Type: evtType, Attributes: map[string]string{}}
}

// NewOperatorChangedEvent returns the payload emitted after an operator
// handover.
func NewOperatorChangedEvent(previous, next [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeOperatorChanged,
		Attributes: map[string]string{
			"previous": hex.EncodeToString(previous[:]),
			"operator": hex.EncodeToString(next[:]),
		},
	}
}

// NewAssetMintedEvent returns the payload emitted when the operator registers
// a new asset.
func NewAssetMintedEvent(assetID uint64, owner [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeAssetMinted,
		Attributes: map[string]string{
			"assetId": strconv.FormatUint(assetID, 10),
			"owner":   hex.EncodeToString(owner[:]),
		},
	}
}

// NewAccountFundedEvent returns the payload emitted when the operator credits
// a ledger balance.
func NewAccountFundedEvent(account [20]byte, payment PaymentMethod, amount *big.Int) *types.Event {
	return newLedgerEvent(EventTypeAccountFunded, account, payment, amount)
}

// NewApprovalChangedEvent returns the payload emitted when an owner grants or
// revokes the custody transfer approval.
func NewApprovalChangedEvent(owner, operator [20]byte, approved bool) *types.Event {
	return &types.Event{
		Type: EventTypeApprovalChanged,
		Attributes: map[string]string{
			"owner":    hex.EncodeToString(owner[:]),
			"operator": hex.EncodeToString(operator[:]),
			"approved": strconv.FormatBool(approved),
		},
	}
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["assetId"] = strconv.FormatUint(sanitized.AssetID, 10)
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["payment"] = sanitized.Payment.LedgerKey()
	attrs["minPrice"] = sanitized.MinPrice.String()
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	if sanitized.ExclusiveBuyer != nil {
		attrs["exclusiveBuyer"] = hex.EncodeToString(sanitized.ExclusiveBuyer[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newBidEvent(eventType string, b *Bid) *types.Event {
	attrs := make(map[string]string)
	if b == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeBid(b)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["assetId"] = strconv.FormatUint(sanitized.AssetID, 10)
	attrs["bidder"] = hex.EncodeToString(sanitized.Bidder[:])
	attrs["payment"] = sanitized.Payment.LedgerKey()
	attrs["amount"] = sanitized.Amount.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newLedgerEvent(eventType string, account [20]byte, payment PaymentMethod, amount *big.Int) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"account": hex.EncodeToString(account[:]),
			"payment": payment.LedgerKey(),
			"amount":  formatAmount(amount),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
