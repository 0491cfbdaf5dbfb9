package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lifemarket/native/market"
)

func TestRegistryMintAndOwnership(t *testing.T) {
	m := newTestManager(t)
	custody := testAddr(0x02)
	seller := testAddr(0x03)
	registry := NewRegistry(m, custody)

	_, err := registry.OwnerOf(1)
	require.ErrorIs(t, err, ErrAssetNotFound)

	require.NoError(t, registry.Mint(1, seller))
	owner, err := registry.OwnerOf(1)
	require.NoError(t, err)
	require.Equal(t, seller, owner)

	require.Error(t, registry.Mint(1, seller))
	require.Error(t, registry.Mint(2, [20]byte{}))
}

func TestRegistryTransferRules(t *testing.T) {
	m := newTestManager(t)
	custody := testAddr(0x02)
	seller := testAddr(0x03)
	buyer := testAddr(0x04)
	registry := NewRegistry(m, custody)
	require.NoError(t, registry.Mint(1, seller))

	// A third-party source needs a standing approval for the custody account.
	err := registry.TransferCustody(seller, custody, 1)
	require.Error(t, err)

	require.NoError(t, registry.SetApproval(seller, custody, true))
	approved, err := registry.IsApprovedForTransfer(seller, custody)
	require.NoError(t, err)
	require.True(t, approved)
	require.NoError(t, registry.TransferCustody(seller, custody, 1))

	// Custody itself moves assets without any approval.
	require.NoError(t, registry.TransferCustody(custody, buyer, 1))
	owner, err := registry.OwnerOf(1)
	require.NoError(t, err)
	require.Equal(t, buyer, owner)

	// Wrong source is rejected.
	require.Error(t, registry.TransferCustody(seller, custody, 1))
	require.ErrorIs(t, registry.TransferCustody(custody, buyer, 99), ErrAssetNotFound)
}

func TestRegistryApprovalRevocation(t *testing.T) {
	m := newTestManager(t)
	custody := testAddr(0x02)
	seller := testAddr(0x03)
	registry := NewRegistry(m, custody)
	require.NoError(t, registry.Mint(1, seller))
	require.NoError(t, registry.SetApproval(seller, custody, true))
	require.NoError(t, registry.SetApproval(seller, custody, false))

	approved, err := registry.IsApprovedForTransfer(seller, custody)
	require.NoError(t, err)
	require.False(t, approved)
	require.Error(t, registry.TransferCustody(seller, custody, 1))
}

func TestPaymentLedgerPullPush(t *testing.T) {
	m := newTestManager(t)
	custody := testAddr(0x02)
	account := testAddr(0x04)
	ledger := NewPaymentLedger(m, custody)
	method := market.NativePayment()

	require.NoError(t, ledger.Credit(account, method, big.NewInt(100)))
	balance, err := ledger.Balance(account, method)
	require.NoError(t, err)
	require.EqualValues(t, 100, balance.Int64())

	require.NoError(t, ledger.Pull(account, method, big.NewInt(60)))
	held, err := ledger.Balance(custody, method)
	require.NoError(t, err)
	require.EqualValues(t, 60, held.Int64())

	require.NoError(t, ledger.Push(account, method, big.NewInt(60)))
	balance, err = ledger.Balance(account, method)
	require.NoError(t, err)
	require.EqualValues(t, 100, balance.Int64())
}

func TestPaymentLedgerInsufficientFunds(t *testing.T) {
	m := newTestManager(t)
	custody := testAddr(0x02)
	account := testAddr(0x04)
	ledger := NewPaymentLedger(m, custody)

	err := ledger.Pull(account, market.NativePayment(), big.NewInt(1))
	require.True(t, errors.Is(err, market.ErrInsufficientFunds))

	token := market.TokenPayment(testAddr(0xF0))
	err = ledger.Pull(account, token, big.NewInt(1))
	require.True(t, errors.Is(err, market.ErrTokenTransferFailed))

	require.Error(t, ledger.Pull(account, market.NativePayment(), big.NewInt(0)))
	require.Error(t, ledger.Credit(account, market.NativePayment(), nil))
}

func TestPaymentLedgerSeparatesKinds(t *testing.T) {
	m := newTestManager(t)
	custody := testAddr(0x02)
	account := testAddr(0x04)
	ledger := NewPaymentLedger(m, custody)
	token := market.TokenPayment(testAddr(0xF0))

	require.NoError(t, ledger.Credit(account, token, big.NewInt(50)))
	native, err := ledger.Balance(account, market.NativePayment())
	require.NoError(t, err)
	require.Zero(t, native.Sign())

	err = ledger.Pull(account, market.NativePayment(), big.NewInt(10))
	require.True(t, errors.Is(err, market.ErrInsufficientFunds))
}
