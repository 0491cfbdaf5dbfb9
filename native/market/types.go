package market

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PaymentKind distinguishes the settlement currencies the marketplace accepts.
type PaymentKind uint8

const (
	// PaymentNative settles in the platform's native currency.
	PaymentNative PaymentKind = iota
	// PaymentToken settles in a fungible token identified by its address.
	PaymentToken
)

// PaymentMethod is the tagged payment selector carried by listings and bids.
// For the native kind the token address is zero.
type PaymentMethod struct {
	Kind  PaymentKind
	Token [20]byte
}

// NativePayment returns the native-currency payment method.
func NativePayment() PaymentMethod {
	return PaymentMethod{Kind: PaymentNative}
}

// TokenPayment returns a fungible-token payment method for the given address.
func TokenPayment(token [20]byte) PaymentMethod {
	return PaymentMethod{Kind: PaymentToken, Token: token}
}

// Valid reports whether the method is well formed: token payments require a
// non-zero token address, native payments a zero one.
func (m PaymentMethod) Valid() bool {
	switch m.Kind {
	case PaymentNative:
		return m.Token == [20]byte{}
	case PaymentToken:
		return m.Token != [20]byte{}
	default:
		return false
	}
}

// LedgerKey renders the canonical string form used for ledger keys and event
// attributes: "native" or "token:0x…".
func (m PaymentMethod) LedgerKey() string {
	if m.Kind == PaymentNative {
		return "native"
	}
	return "token:" + strings.ToLower(common.Address(m.Token).Hex())
}

func (m PaymentMethod) String() string { return m.LedgerKey() }

// ParsePaymentMethod is the inverse of LedgerKey.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "native" {
		return NativePayment(), nil
	}
	if rest, ok := strings.CutPrefix(trimmed, "token:"); ok {
		if !common.IsHexAddress(rest) {
			return PaymentMethod{}, fmt.Errorf("market: invalid payment token address %q", rest)
		}
		addr := common.HexToAddress(rest)
		if addr == (common.Address{}) {
			return PaymentMethod{}, fmt.Errorf("market: payment token address must be non-zero")
		}
		return TokenPayment(addr), nil
	}
	return PaymentMethod{}, fmt.Errorf("market: unknown payment method %q", raw)
}

// CustodyModel selects how a listed asset is held during the listing.
type CustodyModel uint8

const (
	// CustodyEscrow moves the asset into the marketplace custody account for
	// the lifetime of the listing.
	CustodyEscrow CustodyModel = iota
	// CustodyApprovalOnly leaves the asset with the seller and relies on a
	// standing transfer approval at settlement time.
	CustodyApprovalOnly
)

// Valid reports whether the custody model value is supported.
func (m CustodyModel) Valid() bool {
	return m == CustodyEscrow || m == CustodyApprovalOnly
}

func (m CustodyModel) String() string {
	switch m {
	case CustodyEscrow:
		return "escrow"
	case CustodyApprovalOnly:
		return "approval"
	default:
		return fmt.Sprintf("custody(%d)", uint8(m))
	}
}

// ParseCustodyModel maps the configuration string onto a custody model.
func ParseCustodyModel(raw string) (CustodyModel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "escrow":
		return CustodyEscrow, nil
	case "approval", "approval-only", "approvalonly":
		return CustodyApprovalOnly, nil
	default:
		return CustodyEscrow, fmt.Errorf("market: unknown custody model %q", raw)
	}
}

// Listing captures one active sale intent for one asset. At most one active
// listing exists per asset identifier.
type Listing struct {
	AssetID        uint64
	Seller         [20]byte
	Payment        PaymentMethod
	MinPrice       *big.Int
	ExclusiveBuyer *[20]byte
	CreatedAt      int64
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.MinPrice != nil {
		clone.MinPrice = new(big.Int).Set(l.MinPrice)
	} else {
		clone.MinPrice = big.NewInt(0)
	}
	if l.ExclusiveBuyer != nil {
		buyer := *l.ExclusiveBuyer
		clone.ExclusiveBuyer = &buyer
	}
	return &clone
}

// SanitizeListing validates and normalises the supplied listing, returning a
// cloned instance with a non-nil price. The original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	clone := l.Clone()
	if !clone.Payment.Valid() {
		return nil, fmt.Errorf("market: listing payment method malformed")
	}
	if clone.MinPrice.Sign() <= 0 {
		return nil, fmt.Errorf("market: listing price must be positive")
	}
	if clone.Seller == ([20]byte{}) {
		return nil, fmt.Errorf("market: listing seller must be set")
	}
	return clone, nil
}

// Bid is the single highest outstanding bid for one asset.
type Bid struct {
	AssetID  uint64
	Bidder   [20]byte
	Amount   *big.Int
	Payment  PaymentMethod
	PlacedAt int64
}

// Clone returns a deep copy of the bid.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Amount != nil {
		clone.Amount = new(big.Int).Set(b.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SanitizeBid validates and normalises the supplied bid, returning a cloned
// instance with a non-nil amount. The original value is not mutated.
func SanitizeBid(b *Bid) (*Bid, error) {
	if b == nil {
		return nil, fmt.Errorf("market: nil bid")
	}
	clone := b.Clone()
	if !clone.Payment.Valid() {
		return nil, fmt.Errorf("market: bid payment method malformed")
	}
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("market: bid amount must be positive")
	}
	if clone.Bidder == ([20]byte{}) {
		return nil, fmt.Errorf("market: bidder must be set")
	}
	return clone, nil
}

// AbsoluteMaxFeeBps caps the configurable fee ceiling at 10% of the sale
// amount regardless of operator configuration.
const AbsoluteMaxFeeBps uint32 = 1_000

// FeeConfig carries the marketplace commission parameters. FeeBps is the
// commission applied to settlements; MaxFeeBps is the operator-adjustable
// ceiling FeeBps may never exceed.
type FeeConfig struct {
	FeeBps    uint32
	MaxFeeBps uint32
}

// Validate reports whether the configuration respects both the relative and
// the absolute ceiling.
func (c FeeConfig) Validate() error {
	if c.MaxFeeBps > AbsoluteMaxFeeBps {
		return fmt.Errorf("market: max fee %d bps exceeds absolute ceiling %d", c.MaxFeeBps, AbsoluteMaxFeeBps)
	}
	if c.FeeBps > c.MaxFeeBps {
		return fmt.Errorf("market: fee %d bps exceeds configured maximum %d", c.FeeBps, c.MaxFeeBps)
	}
	return nil
}
