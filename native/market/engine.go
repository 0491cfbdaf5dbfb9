package market

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"lifemarket/core/events"
	"lifemarket/core/types"
	nativecommon "lifemarket/native/common"
)

const moduleName = "market"

var (
	errNilState    = errors.New("market engine: state not configured")
	errNilRegistry = errors.New("market engine: asset registry not configured")
	errNilPayments = errors.New("market engine: payment adapter not configured")
	errNilCustody  = errors.New("market engine: custody account not configured")
)

type engineState interface {
	ListingPut(*Listing) error
	ListingGet(assetID uint64) (*Listing, bool)
	ListingDelete(assetID uint64) error
	BidPut(*Bid) error
	BidGet(assetID uint64) (*Bid, bool)
	BidDelete(assetID uint64) error
	RefundAdd(account [20]byte, method PaymentMethod, amount *big.Int) error
	RefundBalance(account [20]byte, method PaymentMethod) (*big.Int, error)
	RefundClear(account [20]byte, method PaymentMethod) error
	EarningsAdd(method PaymentMethod, amount *big.Int) error
	EarningsBalance(method PaymentMethod) (*big.Int, error)
	EarningsClear(method PaymentMethod) error
	FeeConfigGet() (FeeConfig, bool, error)
	FeeConfigPut(FeeConfig) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine orchestrates the listing and bid lifecycle: escrow custody, bid
// displacement with refund accounting, fee extraction, and settlement. All
// mutating entry points serialize per asset identifier so two operations on
// the same asset can never interleave partially.
type Engine struct {
	state    engineState
	registry AssetRegistry
	payments PaymentAdapter
	emitter  events.Emitter
	pauses   *nativecommon.PauseSwitch
	nowFn    func() int64

	custodyModel CustodyModel
	custody      [20]byte
	targeted     bool

	cfgMu    sync.RWMutex
	operator [20]byte
	accepted map[[20]byte]bool

	assetMu    sync.Mutex
	assetLocks map[uint64]*sync.Mutex

	ledgerMu sync.Mutex
}

// NewEngine creates a settlement engine with a no-op emitter, an unpaused
// trading switch, and the escrow custody model. Callers wire state and
// capabilities via the setters before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:    events.NoopEmitter{},
		pauses:     nativecommon.NewPauseSwitch(),
		nowFn:      func() int64 { return time.Now().Unix() },
		accepted:   make(map[[20]byte]bool),
		assetLocks: make(map[uint64]*sync.Mutex),
		targeted:   true,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the asset registry capability.
func (e *Engine) SetRegistry(registry AssetRegistry) { e.registry = registry }

// SetPayments configures the payment adapter capability.
func (e *Engine) SetPayments(payments PaymentAdapter) { e.payments = payments }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses overrides the trading pause switch, allowing several engines to
// share one administrative control plane.
func (e *Engine) SetPauses(p *nativecommon.PauseSwitch) {
	if p == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetOperator configures the platform operator account.
func (e *Engine) SetOperator(operator [20]byte) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	e.operator = operator
}

// Operator returns the current platform operator account.
func (e *Engine) Operator() [20]byte {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.operator
}

// SetCustodyAccount configures the account that holds escrowed assets and
// funds during active listings.
func (e *Engine) SetCustodyAccount(custody [20]byte) { e.custody = custody }

// CustodyAccount returns the configured custody account.
func (e *Engine) CustodyAccount() [20]byte { return e.custody }

// SetCustodyModel selects between escrowed and approval-only custody.
func (e *Engine) SetCustodyModel(model CustodyModel) {
	if model.Valid() {
		e.custodyModel = model
	}
}

// SetTargetedListings toggles support for listings reserved to one buyer.
func (e *Engine) SetTargetedListings(enabled bool) { e.targeted = enabled }

// SetAcceptedTokens replaces the fungible-token allow-list. Native payments
// are always accepted.
func (e *Engine) SetAcceptedTokens(tokens [][20]byte) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	e.accepted = make(map[[20]byte]bool, len(tokens))
	for _, token := range tokens {
		if token != ([20]byte{}) {
			e.accepted[token] = true
		}
	}
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.registry == nil:
		return errNilRegistry
	case e.payments == nil:
		return errNilPayments
	case e.custody == ([20]byte{}):
		return errNilCustody
	default:
		return nil
	}
}

// lockAsset serializes mutations per asset identifier. The per-asset mutex
// doubles as the reentrancy lock: an operation holding it has exclusive
// custody of that asset's listing and bid until it returns.
func (e *Engine) lockAsset(assetID uint64) func() {
	e.assetMu.Lock()
	lock, ok := e.assetLocks[assetID]
	if !ok {
		lock = &sync.Mutex{}
		e.assetLocks[assetID] = lock
	}
	e.assetMu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (e *Engine) acceptedPayment(method PaymentMethod) bool {
	if !method.Valid() {
		return false
	}
	if method.Kind == PaymentNative {
		return true
	}
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.accepted[method.Token]
}

func (e *Engine) requireOperator(caller [20]byte) error {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	if caller == ([20]byte{}) || caller != e.operator {
		return ErrNotOperator
	}
	return nil
}

func (e *Engine) feeConfig() (FeeConfig, error) {
	cfg, ok, err := e.state.FeeConfigGet()
	if err != nil {
		return FeeConfig{}, err
	}
	if !ok {
		return FeeConfig{MaxFeeBps: AbsoluteMaxFeeBps}, nil
	}
	return cfg, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// computeFee splits the sale amount into the operator commission and the
// seller proceeds. The split is rejected rather than allowed to underflow
// when fee configuration and amount combine pathologically.
func computeFee(amount *big.Int, feeBps uint32) (fee, proceeds *big.Int, err error) {
	total := cloneBigInt(amount)
	if total.Sign() <= 0 {
		return nil, nil, ErrInvalidPrice
	}
	fee = new(big.Int).Mul(total, new(big.Int).SetUint64(uint64(feeBps)))
	fee.Div(fee, big.NewInt(10_000))
	if fee.Cmp(total) > 0 {
		return nil, nil, ErrFeeExceedsMaximum
	}
	proceeds = new(big.Int).Sub(total, fee)
	return fee, proceeds, nil
}

// creditRefund records an amount owed to an account in the refund ledger.
// Crediting never performs an outbound transfer: a failing push to one
// displaced bidder must never block acceptance of a winning bid.
func (e *Engine) creditRefund(account [20]byte, method PaymentMethod, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil
	}
	if err := e.state.RefundAdd(account, method, amt); err != nil {
		return err
	}
	e.emit(NewRefundIssuedEvent(account, method, amt))
	return nil
}

// CreateListing writes an active listing for the asset and, under the escrow
// custody model, moves the asset into marketplace custody.
func (e *Engine) CreateListing(caller [20]byte, assetID uint64, payment PaymentMethod, minPrice *big.Int) (*Listing, error) {
	return e.createListing(caller, assetID, payment, minPrice, nil)
}

// CreateListingToAddress is CreateListing with the purchase reserved to one
// buyer; any other account's purchase attempt fails with ErrNotAuthorizedBuyer.
func (e *Engine) CreateListingToAddress(caller [20]byte, assetID uint64, payment PaymentMethod, minPrice *big.Int, exclusiveBuyer [20]byte) (*Listing, error) {
	if exclusiveBuyer == ([20]byte{}) {
		return nil, ErrNotAuthorizedBuyer
	}
	return e.createListing(caller, assetID, payment, minPrice, &exclusiveBuyer)
}

func (e *Engine) createListing(caller [20]byte, assetID uint64, payment PaymentMethod, minPrice *big.Int, exclusiveBuyer *[20]byte) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	unlock := e.lockAsset(assetID)
	defer unlock()

	price := cloneBigInt(minPrice)
	if price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if !e.acceptedPayment(payment) {
		return nil, ErrUnsupportedPayment
	}
	if exclusiveBuyer != nil && !e.targeted {
		return nil, ErrTargetedDisabled
	}
	if _, exists := e.state.ListingGet(assetID); exists {
		return nil, ErrListingExists
	}
	owner, err := e.registry.OwnerOf(assetID)
	if err != nil {
		return nil, err
	}
	if owner != caller {
		return nil, ErrNotAssetOwner
	}
	// Both custody models require a standing approval: escrow moves the
	// asset now, approval-only moves it at settlement.
	approved, err := e.registry.IsApprovedForTransfer(caller, e.custody)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, ErrApprovalRequired
	}

	listing := &Listing{
		AssetID:        assetID,
		Seller:         caller,
		Payment:        payment,
		MinPrice:       price,
		ExclusiveBuyer: exclusiveBuyer,
		CreatedAt:      e.now(),
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	if e.custodyModel == CustodyEscrow {
		if err := e.registry.TransferCustody(caller, e.custody, assetID); err != nil {
			_ = e.state.ListingDelete(assetID)
			return nil, fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
		}
	}
	e.emit(NewListingCreatedEvent(listing))
	return listing.Clone(), nil
}

// CancelListing deletes the listing and, under the escrow model, returns the
// asset to the seller. An outstanding bid survives the cancellation; the
// funds behind it stay claimable through WithdrawBid.
func (e *Engine) CancelListing(caller [20]byte, assetID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	unlock := e.lockAsset(assetID)
	defer unlock()

	listing, ok := e.state.ListingGet(assetID)
	if !ok {
		return ErrListingNotFound
	}
	if listing.Seller != caller {
		return ErrNotListingOwner
	}
	if err := e.state.ListingDelete(assetID); err != nil {
		return err
	}
	if e.custodyModel == CustodyEscrow {
		if err := e.registry.TransferCustody(e.custody, listing.Seller, assetID); err != nil {
			_ = e.state.ListingPut(listing)
			return fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
		}
	}
	e.emit(NewListingCancelledEvent(listing))
	return nil
}

// PlaceBid escrows the bid amount and replaces the current highest bid. The
// displaced bidder's amount is credited to the refund ledger atomically with
// the new bid write. For native payment sentValue must equal amount; token
// bids must not attach native value.
func (e *Engine) PlaceBid(caller [20]byte, assetID uint64, amount *big.Int, payment PaymentMethod, sentValue *big.Int) (*Bid, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	unlock := e.lockAsset(assetID)
	defer unlock()

	listing, ok := e.state.ListingGet(assetID)
	if !ok {
		return nil, ErrListingNotFound
	}
	if caller == listing.Seller {
		return nil, ErrSellerCannotBid
	}
	if !e.acceptedPayment(payment) || payment != listing.Payment {
		return nil, ErrUnsupportedPayment
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if amt.Cmp(listing.MinPrice) < 0 {
		return nil, ErrBidBelowMinimum
	}
	current, hasCurrent := e.state.BidGet(assetID)
	if hasCurrent && amt.Cmp(current.Amount) <= 0 {
		return nil, ErrBidTooLow
	}
	if err := checkSentValue(payment, amt, sentValue); err != nil {
		return nil, err
	}
	if err := e.payments.Pull(caller, payment, amt); err != nil {
		return nil, err
	}

	bid := &Bid{
		AssetID:  assetID,
		Bidder:   caller,
		Amount:   amt,
		Payment:  payment,
		PlacedAt: e.now(),
	}
	if hasCurrent {
		if err := e.creditRefund(current.Bidder, current.Payment, current.Amount); err != nil {
			_ = e.payments.Push(caller, payment, amt)
			return nil, err
		}
	}
	if err := e.state.BidPut(bid); err != nil {
		_ = e.payments.Push(caller, payment, amt)
		return nil, err
	}
	if hasCurrent {
		e.emit(NewBidCancelledEvent(current))
	}
	e.emit(NewBidPlacedEvent(bid))
	return bid.Clone(), nil
}

// WithdrawBid removes the caller's bid and moves its amount into the refund
// ledger for a later pull-based payout.
func (e *Engine) WithdrawBid(caller [20]byte, assetID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	unlock := e.lockAsset(assetID)
	defer unlock()

	bid, ok := e.state.BidGet(assetID)
	if !ok || bid.Bidder != caller {
		return ErrNotCurrentBidder
	}
	if err := e.state.BidDelete(assetID); err != nil {
		return err
	}
	if err := e.creditRefund(bid.Bidder, bid.Payment, bid.Amount); err != nil {
		_ = e.state.BidPut(bid)
		return err
	}
	e.emit(NewBidWithdrawnEvent(bid))
	return nil
}

// AcceptBid settles the listing against the current highest bid: the fee is
// credited to the operator's earnings, the remainder paid to the seller, and
// the asset released to the bidder. Listing and bid are cleared atomically
// with the settlement.
func (e *Engine) AcceptBid(caller [20]byte, assetID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	unlock := e.lockAsset(assetID)
	defer unlock()

	listing, ok := e.state.ListingGet(assetID)
	if !ok {
		return ErrListingNotFound
	}
	if listing.Seller != caller {
		return ErrNotListingOwner
	}
	bid, ok := e.state.BidGet(assetID)
	if !ok || bid.Amount == nil || bid.Amount.Sign() <= 0 {
		return ErrNoActiveBid
	}
	return e.settle(listing, bid.Bidder, bid.Payment, bid.Amount, bid)
}

// Buy performs the buy-now path at the exact listed price. If the buyer also
// holds the current highest bid, that bid is cancelled and refunded inline
// within the same operation.
func (e *Engine) Buy(caller [20]byte, assetID uint64, sentValue *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	unlock := e.lockAsset(assetID)
	defer unlock()

	listing, ok := e.state.ListingGet(assetID)
	if !ok {
		return ErrListingNotFound
	}
	if listing.ExclusiveBuyer != nil && *listing.ExclusiveBuyer != caller {
		return ErrNotAuthorizedBuyer
	}
	if caller == listing.Seller {
		return ErrSellerCannotBeBuyer
	}
	price := cloneBigInt(listing.MinPrice)
	if err := checkSentValue(listing.Payment, price, sentValue); err != nil {
		return err
	}
	if err := e.payments.Pull(caller, listing.Payment, price); err != nil {
		return err
	}

	var refunded *Bid
	if bid, ok := e.state.BidGet(assetID); ok {
		if bid.Bidder == caller {
			// Same transaction context: push the bid straight back
			// instead of parking it in the refund ledger.
			if err := e.state.BidDelete(assetID); err != nil {
				_ = e.payments.Push(caller, listing.Payment, price)
				return err
			}
			if err := e.payments.Push(bid.Bidder, bid.Payment, bid.Amount); err != nil {
				_ = e.state.BidPut(bid)
				_ = e.payments.Push(caller, listing.Payment, price)
				return fmt.Errorf("%w: %v", ErrTokenTransferFailed, err)
			}
			refunded = bid
		}
	}
	if err := e.settle(listing, caller, listing.Payment, price, nil); err != nil {
		// Return the escrowed price and, when the caller's own bid was
		// refunded inline, re-escrow it so the book matches the ledgers.
		_ = e.payments.Push(caller, listing.Payment, price)
		if refunded != nil {
			if pullErr := e.payments.Pull(refunded.Bidder, refunded.Payment, refunded.Amount); pullErr == nil {
				_ = e.state.BidPut(refunded)
			}
		}
		return err
	}
	if refunded != nil {
		e.emit(NewBidCancelledEvent(refunded))
	}
	return nil
}

// settle runs the shared fee/proceeds computation and custody release for
// AcceptBid and Buy. Fallible external conditions are validated up front,
// ledger credits wait until the outbound transfers succeed, and a rejected
// transfer restores the listing and bid book, so a late failure never
// strands partial state.
func (e *Engine) settle(listing *Listing, buyer [20]byte, payment PaymentMethod, price *big.Int, winning *Bid) error {
	cfg, err := e.feeConfig()
	if err != nil {
		return err
	}
	fee, proceeds, err := computeFee(price, cfg.FeeBps)
	if err != nil {
		return err
	}

	// The custody account must be able to cover the payout and must hold
	// the asset, or carry a still-standing approval to move it, before any
	// state is touched. The approval can be revoked after listing, so it is
	// re-checked here rather than trusted from CreateListing.
	custodyBalance, err := e.payments.Balance(e.custody, payment)
	if err != nil {
		return err
	}
	if custodyBalance.Cmp(price) < 0 {
		return ErrInsufficientFunds
	}
	assetFrom := e.custody
	if e.custodyModel == CustodyApprovalOnly {
		assetFrom = listing.Seller
		approved, err := e.registry.IsApprovedForTransfer(listing.Seller, e.custody)
		if err != nil {
			return err
		}
		if !approved {
			return ErrApprovalRequired
		}
	}
	owner, err := e.registry.OwnerOf(listing.AssetID)
	if err != nil {
		return err
	}
	if owner != assetFrom {
		return ErrAssetTransferFailed
	}

	// Effects: clear the book. A losing bid is displaced into the refund
	// ledger and the fee is recorded only after the outbound transfers
	// succeed, so a rejected transfer has nothing but the book to restore.
	var displaced *Bid
	if remaining, ok := e.state.BidGet(listing.AssetID); ok {
		if err := e.state.BidDelete(listing.AssetID); err != nil {
			return err
		}
		if winning == nil || remaining.Bidder != winning.Bidder || remaining.Amount.Cmp(winning.Amount) != 0 {
			displaced = remaining
		}
	}
	restoreBook := func() {
		_ = e.state.ListingPut(listing)
		if displaced != nil {
			_ = e.state.BidPut(displaced)
		} else if winning != nil {
			_ = e.state.BidPut(winning)
		}
	}
	if err := e.state.ListingDelete(listing.AssetID); err != nil {
		if displaced != nil {
			_ = e.state.BidPut(displaced)
		} else if winning != nil {
			_ = e.state.BidPut(winning)
		}
		return err
	}

	// Interactions: the payout comes first because it is reversible (the
	// proceeds can be pulled back from the seller); the asset release is
	// not, once the asset reaches the buyer no approval exists to return
	// it, so it runs last.
	if proceeds.Sign() > 0 {
		if err := e.payments.Push(listing.Seller, payment, proceeds); err != nil {
			restoreBook()
			return fmt.Errorf("%w: %v", ErrTokenTransferFailed, err)
		}
	}
	if err := e.registry.TransferCustody(assetFrom, buyer, listing.AssetID); err != nil {
		if proceeds.Sign() > 0 {
			_ = e.payments.Pull(listing.Seller, payment, proceeds)
		}
		restoreBook()
		return fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
	}

	if displaced != nil {
		if err := e.creditRefund(displaced.Bidder, displaced.Payment, displaced.Amount); err != nil {
			return err
		}
		e.emit(NewBidCancelledEvent(displaced))
	}
	if fee.Sign() > 0 {
		if err := e.state.EarningsAdd(payment, fee); err != nil {
			return err
		}
	}
	e.emit(NewSoldEvent(listing.AssetID, listing.Seller, buyer, payment, price, fee))
	return nil
}

// WithdrawRefund pays out the caller's accumulated refund balance for the
// payment kind. The balance is zeroed before the transfer so a re-entrant
// call cannot double-withdraw. Withdrawals stay available while trading is
// paused.
func (e *Engine) WithdrawRefund(caller [20]byte, method PaymentMethod) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.ledgerMu.Lock()
	defer e.ledgerMu.Unlock()

	balance, err := e.state.RefundBalance(caller, method)
	if err != nil {
		return nil, err
	}
	if balance.Sign() <= 0 {
		return nil, ErrNoRefundAvailable
	}
	if err := e.state.RefundClear(caller, method); err != nil {
		return nil, err
	}
	if err := e.payments.Push(caller, method, balance); err != nil {
		_ = e.state.RefundAdd(caller, method, balance)
		return nil, fmt.Errorf("%w: %v", ErrTokenTransferFailed, err)
	}
	e.emit(NewRefundWithdrawnEvent(caller, method, balance))
	return balance, nil
}

// WithdrawEarnings pays the accumulated fee earnings for the payment kind to
// the operator. Like refunds, earnings withdrawal is exempt from the pause
// switch and zeroes the balance before transferring.
func (e *Engine) WithdrawEarnings(caller [20]byte, method PaymentMethod) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireOperator(caller); err != nil {
		return nil, err
	}
	e.ledgerMu.Lock()
	defer e.ledgerMu.Unlock()

	balance, err := e.state.EarningsBalance(method)
	if err != nil {
		return nil, err
	}
	if balance.Sign() <= 0 {
		return nil, ErrNoEarningsAvailable
	}
	if err := e.state.EarningsClear(method); err != nil {
		return nil, err
	}
	if err := e.payments.Push(caller, method, balance); err != nil {
		_ = e.state.EarningsAdd(method, balance)
		return nil, fmt.Errorf("%w: %v", ErrTokenTransferFailed, err)
	}
	e.emit(NewEarningsWithdrawnEvent(caller, method, balance))
	return balance, nil
}

// SetFee updates the commission applied to settlements.
func (e *Engine) SetFee(caller [20]byte, feeBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	cfg, err := e.feeConfig()
	if err != nil {
		return err
	}
	if feeBps > cfg.MaxFeeBps {
		return ErrFeeExceedsMaximum
	}
	cfg.FeeBps = feeBps
	if err := e.state.FeeConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewFeeUpdatedEvent(cfg))
	return nil
}

// SetMaxFee lowers or raises the fee ceiling within the absolute cap. A new
// ceiling below the currently configured fee is rejected rather than
// silently reducing the fee.
func (e *Engine) SetMaxFee(caller [20]byte, maxFeeBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if maxFeeBps > AbsoluteMaxFeeBps {
		return ErrFeeExceedsMaximum
	}
	cfg, err := e.feeConfig()
	if err != nil {
		return err
	}
	if cfg.FeeBps > maxFeeBps {
		return ErrFeeExceedsMaximum
	}
	cfg.MaxFeeBps = maxFeeBps
	if err := e.state.FeeConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewFeeUpdatedEvent(cfg))
	return nil
}

// Pause halts every state-mutating entry point except refund and earnings
// withdrawal.
func (e *Engine) Pause(caller [20]byte) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	e.pauses.SetPaused(moduleName, true)
	e.emit(NewTradingStatusEvent(true))
	return nil
}

// Resume re-enables trading.
func (e *Engine) Resume(caller [20]byte) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	e.pauses.SetPaused(moduleName, false)
	e.emit(NewTradingStatusEvent(false))
	return nil
}

// Paused reports whether trading is currently halted.
func (e *Engine) Paused() bool {
	return e.pauses.IsPaused(moduleName)
}

// TransferOperator hands the operator role to another account.
func (e *Engine) TransferOperator(caller, next [20]byte) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if next == ([20]byte{}) {
		return ErrNotOperator
	}
	e.cfgMu.Lock()
	previous := e.operator
	e.operator = next
	e.cfgMu.Unlock()
	e.emit(NewOperatorChangedEvent(previous, next))
	return nil
}

// GetListing returns the active listing for the asset, if any.
func (e *Engine) GetListing(assetID uint64) (*Listing, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	listing, ok := e.state.ListingGet(assetID)
	if !ok {
		return nil, false
	}
	return listing.Clone(), true
}

// GetBid returns the current highest bid for the asset, if any.
func (e *Engine) GetBid(assetID uint64) (*Bid, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	bid, ok := e.state.BidGet(assetID)
	if !ok {
		return nil, false
	}
	return bid.Clone(), true
}

// RefundBalance reports the claimable refund for the account and kind.
func (e *Engine) RefundBalance(account [20]byte, method PaymentMethod) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.RefundBalance(account, method)
}

// EarningsBalance reports the operator's accumulated fees for the kind.
func (e *Engine) EarningsBalance(method PaymentMethod) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.EarningsBalance(method)
}

// FeeConfig returns the currently effective fee configuration.
func (e *Engine) FeeConfig() (FeeConfig, error) {
	if e == nil || e.state == nil {
		return FeeConfig{}, errNilState
	}
	return e.feeConfig()
}

// checkSentValue enforces the exact-value rule: native payments must attach
// value equal to the amount, token payments must attach none.
func checkSentValue(method PaymentMethod, amount, sentValue *big.Int) error {
	attached := cloneBigInt(sentValue)
	if method.Kind == PaymentNative {
		if attached.Cmp(amount) != 0 {
			return ErrIncorrectValueSent
		}
		return nil
	}
	if attached.Sign() != 0 {
		return ErrIncorrectValueSent
	}
	return nil
}
