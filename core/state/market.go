package state

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"

	"lifemarket/native/market"
)

func listingKey(assetID uint64) []byte {
	return appendKey(listingPrefix, strconv.FormatUint(assetID, 10))
}

func bidKey(assetID uint64) []byte {
	return appendKey(bidPrefix, strconv.FormatUint(assetID, 10))
}

func refundKey(account [20]byte, method market.PaymentMethod) []byte {
	return appendKey(refundPrefix, hex.EncodeToString(account[:])+"/"+method.LedgerKey())
}

func earningsKey(method market.PaymentMethod) []byte {
	return appendKey(earningsPrefix, method.LedgerKey())
}

// storedListing mirrors market.Listing with RLP-friendly field types: RLP has
// no signed integers and no pointers, so timestamps widen to big.Int and the
// optional exclusive buyer flattens into a flag plus address.
type storedListing struct {
	AssetID        uint64
	Seller         [20]byte
	PaymentKind    uint8
	PaymentToken   [20]byte
	MinPrice       *big.Int
	HasExclusive   bool
	ExclusiveBuyer [20]byte
	CreatedAt      *big.Int
}

func newStoredListing(l *market.Listing) *storedListing {
	stored := &storedListing{
		AssetID:      l.AssetID,
		Seller:       l.Seller,
		PaymentKind:  uint8(l.Payment.Kind),
		PaymentToken: l.Payment.Token,
		MinPrice:     new(big.Int).Set(l.MinPrice),
		CreatedAt:    big.NewInt(l.CreatedAt),
	}
	if l.ExclusiveBuyer != nil {
		stored.HasExclusive = true
		stored.ExclusiveBuyer = *l.ExclusiveBuyer
	}
	return stored
}

func (s *storedListing) toListing() (*market.Listing, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil listing record")
	}
	listing := &market.Listing{
		AssetID:  s.AssetID,
		Seller:   s.Seller,
		Payment:  market.PaymentMethod{Kind: market.PaymentKind(s.PaymentKind), Token: s.PaymentToken},
		MinPrice: new(big.Int),
	}
	if s.MinPrice != nil {
		listing.MinPrice.Set(s.MinPrice)
	}
	if s.HasExclusive {
		buyer := s.ExclusiveBuyer
		listing.ExclusiveBuyer = &buyer
	}
	if s.CreatedAt != nil {
		listing.CreatedAt = s.CreatedAt.Int64()
	}
	return market.SanitizeListing(listing)
}

type storedBid struct {
	AssetID      uint64
	Bidder       [20]byte
	Amount       *big.Int
	PaymentKind  uint8
	PaymentToken [20]byte
	PlacedAt     *big.Int
}

func newStoredBid(b *market.Bid) *storedBid {
	return &storedBid{
		AssetID:      b.AssetID,
		Bidder:       b.Bidder,
		Amount:       new(big.Int).Set(b.Amount),
		PaymentKind:  uint8(b.Payment.Kind),
		PaymentToken: b.Payment.Token,
		PlacedAt:     big.NewInt(b.PlacedAt),
	}
}

func (s *storedBid) toBid() (*market.Bid, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil bid record")
	}
	bid := &market.Bid{
		AssetID: s.AssetID,
		Bidder:  s.Bidder,
		Payment: market.PaymentMethod{Kind: market.PaymentKind(s.PaymentKind), Token: s.PaymentToken},
		Amount:  new(big.Int),
	}
	if s.Amount != nil {
		bid.Amount.Set(s.Amount)
	}
	if s.PlacedAt != nil {
		bid.PlacedAt = s.PlacedAt.Int64()
	}
	return market.SanitizeBid(bid)
}

// ListingPut persists the sanitized listing under its asset identifier.
func (m *Manager) ListingPut(l *market.Listing) error {
	sanitized, err := market.SanitizeListing(l)
	if err != nil {
		return err
	}
	return m.putRLP(listingKey(sanitized.AssetID), newStoredListing(sanitized))
}

// ListingGet loads the active listing for the asset, if any.
func (m *Manager) ListingGet(assetID uint64) (*market.Listing, bool) {
	stored := new(storedListing)
	ok, err := m.getRLP(listingKey(assetID), stored)
	if err != nil || !ok {
		return nil, false
	}
	listing, err := stored.toListing()
	if err != nil {
		return nil, false
	}
	return listing, true
}

// ListingDelete removes the listing record.
func (m *Manager) ListingDelete(assetID uint64) error {
	return m.db.Delete(listingKey(assetID))
}

// ListingAll enumerates every active listing in ascending key order.
func (m *Manager) ListingAll() ([]*market.Listing, error) {
	var listings []*market.Listing
	var decodeErr error
	err := m.db.IteratePrefix(listingPrefix, func(_, value []byte) bool {
		stored := new(storedListing)
		if err := rlpDecode(value, stored); err != nil {
			decodeErr = err
			return false
		}
		listing, err := stored.toListing()
		if err != nil {
			decodeErr = err
			return false
		}
		listings = append(listings, listing)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return listings, nil
}

// BidPut persists the sanitized bid under its asset identifier.
func (m *Manager) BidPut(b *market.Bid) error {
	sanitized, err := market.SanitizeBid(b)
	if err != nil {
		return err
	}
	return m.putRLP(bidKey(sanitized.AssetID), newStoredBid(sanitized))
}

// BidGet loads the current highest bid for the asset, if any.
func (m *Manager) BidGet(assetID uint64) (*market.Bid, bool) {
	stored := new(storedBid)
	ok, err := m.getRLP(bidKey(assetID), stored)
	if err != nil || !ok {
		return nil, false
	}
	bid, err := stored.toBid()
	if err != nil {
		return nil, false
	}
	return bid, true
}

// BidDelete removes the bid record.
func (m *Manager) BidDelete(assetID uint64) error {
	return m.db.Delete(bidKey(assetID))
}

func (m *Manager) ledgerAdd(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: ledger credit must be positive")
	}
	balance := new(big.Int)
	if _, err := m.getRLP(key, balance); err != nil {
		return err
	}
	balance.Add(balance, amount)
	return m.putRLP(key, balance)
}

func (m *Manager) ledgerBalance(key []byte) (*big.Int, error) {
	balance := new(big.Int)
	if _, err := m.getRLP(key, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// RefundAdd credits the account's claimable refund balance for the kind.
func (m *Manager) RefundAdd(account [20]byte, method market.PaymentMethod, amount *big.Int) error {
	return m.ledgerAdd(refundKey(account, method), amount)
}

// RefundBalance reports the account's claimable refund balance for the kind.
func (m *Manager) RefundBalance(account [20]byte, method market.PaymentMethod) (*big.Int, error) {
	return m.ledgerBalance(refundKey(account, method))
}

// RefundClear zeroes the account's refund balance for the kind.
func (m *Manager) RefundClear(account [20]byte, method market.PaymentMethod) error {
	return m.db.Delete(refundKey(account, method))
}

// EarningsAdd accrues operator fee earnings for the kind.
func (m *Manager) EarningsAdd(method market.PaymentMethod, amount *big.Int) error {
	return m.ledgerAdd(earningsKey(method), amount)
}

// EarningsBalance reports accumulated operator earnings for the kind.
func (m *Manager) EarningsBalance(method market.PaymentMethod) (*big.Int, error) {
	return m.ledgerBalance(earningsKey(method))
}

// EarningsClear zeroes the operator earnings for the kind.
func (m *Manager) EarningsClear(method market.PaymentMethod) error {
	return m.db.Delete(earningsKey(method))
}

type storedFeeConfig struct {
	FeeBps    uint32
	MaxFeeBps uint32
}

// FeeConfigPut persists the validated fee configuration.
func (m *Manager) FeeConfigPut(cfg market.FeeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return m.putRLP(feeConfigKey, &storedFeeConfig{FeeBps: cfg.FeeBps, MaxFeeBps: cfg.MaxFeeBps})
}

// FeeConfigGet loads the fee configuration. The boolean reports whether one
// has been persisted yet.
func (m *Manager) FeeConfigGet() (market.FeeConfig, bool, error) {
	stored := new(storedFeeConfig)
	ok, err := m.getRLP(feeConfigKey, stored)
	if err != nil || !ok {
		return market.FeeConfig{}, ok, err
	}
	return market.FeeConfig{FeeBps: stored.FeeBps, MaxFeeBps: stored.MaxFeeBps}, true, nil
}
