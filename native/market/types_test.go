package market

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaymentMethodLedgerKeyRoundTrip(t *testing.T) {
	native := NativePayment()
	require.True(t, native.Valid())
	require.Equal(t, "native", native.LedgerKey())

	parsed, err := ParsePaymentMethod("native")
	require.NoError(t, err)
	require.Equal(t, native, parsed)

	token := TokenPayment(newTestAddress(0xAB))
	require.True(t, token.Valid())
	parsed, err = ParsePaymentMethod(token.LedgerKey())
	require.NoError(t, err)
	require.Equal(t, token, parsed)
}

func TestParsePaymentMethodRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "gold", "token:", "token:0x12", "token:0x0000000000000000000000000000000000000000"} {
		if _, err := ParsePaymentMethod(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestPaymentMethodValid(t *testing.T) {
	require.False(t, PaymentMethod{Kind: PaymentNative, Token: newTestAddress(0x01)}.Valid())
	require.False(t, PaymentMethod{Kind: PaymentToken}.Valid())
	require.False(t, PaymentMethod{Kind: PaymentKind(9)}.Valid())
}

func TestParseCustodyModel(t *testing.T) {
	model, err := ParseCustodyModel("")
	require.NoError(t, err)
	require.Equal(t, CustodyEscrow, model)

	model, err = ParseCustodyModel("approval-only")
	require.NoError(t, err)
	require.Equal(t, CustodyApprovalOnly, model)

	_, err = ParseCustodyModel("vault")
	require.Error(t, err)
}

func TestSanitizeListing(t *testing.T) {
	listing := &Listing{
		AssetID:  7,
		Seller:   newTestAddress(0x03),
		Payment:  NativePayment(),
		MinPrice: big.NewInt(25),
	}
	sanitized, err := SanitizeListing(listing)
	require.NoError(t, err)
	require.NotSame(t, listing, sanitized)
	require.NotSame(t, listing.MinPrice, sanitized.MinPrice)

	_, err = SanitizeListing(&Listing{Seller: newTestAddress(0x03), Payment: NativePayment(), MinPrice: big.NewInt(0)})
	require.Error(t, err)
	_, err = SanitizeListing(&Listing{Payment: NativePayment(), MinPrice: big.NewInt(1)})
	require.Error(t, err)
	_, err = SanitizeListing(nil)
	require.Error(t, err)
}

func TestSanitizeBid(t *testing.T) {
	bid := &Bid{AssetID: 7, Bidder: newTestAddress(0x04), Amount: big.NewInt(30), Payment: NativePayment()}
	sanitized, err := SanitizeBid(bid)
	require.NoError(t, err)
	require.NotSame(t, bid.Amount, sanitized.Amount)

	_, err = SanitizeBid(&Bid{Bidder: newTestAddress(0x04), Amount: big.NewInt(-1), Payment: NativePayment()})
	require.Error(t, err)
}

func TestFeeConfigValidate(t *testing.T) {
	require.NoError(t, FeeConfig{FeeBps: 200, MaxFeeBps: 500}.Validate())
	require.Error(t, FeeConfig{FeeBps: 600, MaxFeeBps: 500}.Validate())
	require.Error(t, FeeConfig{FeeBps: 0, MaxFeeBps: AbsoluteMaxFeeBps + 1}.Validate())
}

func TestComputeFee(t *testing.T) {
	fee, proceeds, err := computeFee(big.NewInt(1_000), 200)
	require.NoError(t, err)
	require.EqualValues(t, 20, fee.Int64())
	require.EqualValues(t, 980, proceeds.Int64())

	// Sub-unit sales floor the fee to zero.
	fee, proceeds, err = computeFee(big.NewInt(15), 200)
	require.NoError(t, err)
	require.EqualValues(t, 0, fee.Int64())
	require.EqualValues(t, 15, proceeds.Int64())

	_, _, err = computeFee(big.NewInt(0), 200)
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{ErrNotAssetOwner, KindAuthorization},
		{ErrNotOperator, KindAuthorization},
		{ErrListingExists, KindState},
		{ErrNoActiveBid, KindState},
		{ErrBidTooLow, KindValue},
		{ErrIncorrectValueSent, KindValue},
		{ErrUnsupportedPayment, KindUnsupportedAsset},
		{ErrTokenTransferFailed, KindTransferFailure},
		{ErrNoRefundAvailable, KindResourceExhausted},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Fatalf("KindOf(%v) = %v, want %v", tc.err, got, tc.kind)
		}
	}
	wrapped := errors.Join(errors.New("outer"), ErrBidBelowMinimum)
	if got := KindOf(wrapped); got != KindValue {
		t.Fatalf("wrapped classification = %v, want KindValue", got)
	}
}
