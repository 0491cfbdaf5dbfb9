package state

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"lifemarket/core/events"
	"lifemarket/core/types"
	"lifemarket/native/market"
)

func balanceKey(account [20]byte, method market.PaymentMethod) []byte {
	return appendKey(balancePrefix, hex.EncodeToString(account[:])+"/"+method.LedgerKey())
}

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

// PaymentLedger is the state-backed payment adapter: it keeps native and
// fungible-token balances per account and moves value between accounts and
// the marketplace custody address. It stands in for the audited external
// token service the settlement core is specified against.
type PaymentLedger struct {
	mu      sync.Mutex
	state   *Manager
	custody [20]byte
	emitter events.Emitter
}

// NewPaymentLedger wraps the state manager with the configured custody
// account.
func NewPaymentLedger(state *Manager, custody [20]byte) *PaymentLedger {
	return &PaymentLedger{state: state, custody: custody, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *PaymentLedger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *PaymentLedger) emit(evt *types.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(ledgerEvent{evt: evt})
}

func (l *PaymentLedger) balance(account [20]byte, method market.PaymentMethod) (*big.Int, error) {
	return l.state.ledgerBalance(balanceKey(account, method))
}

func (l *PaymentLedger) setBalance(account [20]byte, method market.PaymentMethod, amount *big.Int) error {
	if amount.Sign() == 0 {
		return l.state.db.Delete(balanceKey(account, method))
	}
	return l.state.putRLP(balanceKey(account, method), amount)
}

// Balance reports the account's holdings for the payment kind.
func (l *PaymentLedger) Balance(account [20]byte, method market.PaymentMethod) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account, method)
}

func (l *PaymentLedger) transfer(from, to [20]byte, method market.PaymentMethod, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: transfer amount must be positive")
	}
	fromBalance, err := l.balance(from, method)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		if method.Kind == market.PaymentToken {
			return fmt.Errorf("%w: balance %s below %s", market.ErrTokenTransferFailed, fromBalance, amount)
		}
		return fmt.Errorf("%w: balance %s below %s", market.ErrInsufficientFunds, fromBalance, amount)
	}
	toBalance, err := l.balance(to, method)
	if err != nil {
		return err
	}
	if err := l.setBalance(from, method, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.setBalance(to, method, new(big.Int).Add(toBalance, amount))
}

// Pull escrows the amount from the account into marketplace custody.
func (l *PaymentLedger) Pull(from [20]byte, method market.PaymentMethod, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(from, l.custody, method, amount)
}

// Push pays the amount out of marketplace custody to the account.
func (l *PaymentLedger) Push(to [20]byte, method market.PaymentMethod, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(l.custody, to, method, amount)
}

// Credit mints the amount into the account's balance. Reserved for operator
// provisioning and genesis funding.
func (l *PaymentLedger) Credit(account [20]byte, method market.PaymentMethod, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: credit amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err := l.balance(account, method)
	if err != nil {
		return err
	}
	if err := l.setBalance(account, method, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	l.emit(market.NewAccountFundedEvent(account, method, amount))
	return nil
}
