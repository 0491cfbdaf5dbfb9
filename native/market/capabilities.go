package market

import "math/big"

// AssetRegistry is the capability the engine consumes for asset ownership and
// custody moves. The registry owns the truth about who holds each asset; the
// engine only requests transfers it is entitled to.
type AssetRegistry interface {
	OwnerOf(assetID uint64) ([20]byte, error)
	// TransferCustody moves the asset between accounts. It fails when from is
	// not the current owner or when the transfer lacks a standing approval.
	TransferCustody(from, to [20]byte, assetID uint64) error
	IsApprovedForTransfer(owner, operator [20]byte) (bool, error)
}

// PaymentAdapter abstracts native-currency and fungible-token settlement
// behind one interface so the engine's accounting is payment-method-agnostic.
type PaymentAdapter interface {
	// Pull escrows amount from the account into marketplace custody.
	Pull(from [20]byte, method PaymentMethod, amount *big.Int) error
	// Push pays amount out of marketplace custody to the account.
	Push(to [20]byte, method PaymentMethod, amount *big.Int) error
	Balance(account [20]byte, method PaymentMethod) (*big.Int, error)
}
