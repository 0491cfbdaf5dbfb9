package state

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"

	"lifemarket/core/events"
	"lifemarket/core/types"
	"lifemarket/native/market"
)

func assetKey(assetID uint64) []byte {
	return appendKey(assetPrefix, strconv.FormatUint(assetID, 10))
}

func approvalKey(owner, operator [20]byte) []byte {
	return appendKey(approvalPrefix, hex.EncodeToString(owner[:])+"/"+hex.EncodeToString(operator[:]))
}

type storedAsset struct {
	Owner [20]byte
}

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// Registry is the state-backed asset registry. It owns NFT ownership and
// approval records and enforces the transfer rules the settlement engine
// relies on: custody moves require either the trusted custody account as the
// source or a standing approval from the owner.
type Registry struct {
	mu      sync.Mutex
	state   *Manager
	trusted [20]byte
	emitter events.Emitter
}

// NewRegistry wraps the state manager. The trusted account is the
// marketplace custody address whose approvals gate third-party transfers.
func NewRegistry(state *Manager, trusted [20]byte) *Registry {
	return &Registry{state: state, trusted: trusted, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) emit(evt *types.Event) {
	if r == nil || r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(registryEvent{evt: evt})
}

// Mint registers a new asset owned by the given account.
func (r *Registry) Mint(assetID uint64, owner [20]byte) error {
	if owner == ([20]byte{}) {
		return fmt.Errorf("state: asset owner must be set")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := new(storedAsset)
	ok, err := r.state.getRLP(assetKey(assetID), stored)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("state: asset %d already minted", assetID)
	}
	if err := r.state.putRLP(assetKey(assetID), &storedAsset{Owner: owner}); err != nil {
		return err
	}
	r.emit(market.NewAssetMintedEvent(assetID, owner))
	return nil
}

// OwnerOf returns the current owner of the asset.
func (r *Registry) OwnerOf(assetID uint64) ([20]byte, error) {
	stored := new(storedAsset)
	ok, err := r.state.getRLP(assetKey(assetID), stored)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrAssetNotFound
	}
	return stored.Owner, nil
}

// SetApproval grants or revokes the operator's right to move the owner's
// assets.
func (r *Registry) SetApproval(owner, operator [20]byte, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := approvalKey(owner, operator)
	var err error
	if approved {
		err = r.state.putRLP(key, approved)
	} else {
		err = r.state.db.Delete(key)
	}
	if err != nil {
		return err
	}
	r.emit(market.NewApprovalChangedEvent(owner, operator, approved))
	return nil
}

// IsApprovedForTransfer reports whether the operator may move assets held by
// the owner.
func (r *Registry) IsApprovedForTransfer(owner, operator [20]byte) (bool, error) {
	var approved bool
	ok, err := r.state.getRLP(approvalKey(owner, operator), &approved)
	if err != nil {
		return false, err
	}
	return ok && approved, nil
}

// TransferCustody moves the asset from its current owner to the recipient.
// It fails when from is not the owner, or when from is a third party without
// a standing approval for the trusted custody account.
func (r *Registry) TransferCustody(from, to [20]byte, assetID uint64) error {
	if to == ([20]byte{}) {
		return fmt.Errorf("state: transfer recipient must be set")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := new(storedAsset)
	ok, err := r.state.getRLP(assetKey(assetID), stored)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssetNotFound
	}
	if stored.Owner != from {
		return fmt.Errorf("state: account %x does not own asset %d", from, assetID)
	}
	if from != r.trusted {
		approved, err := r.isApprovedLocked(from, r.trusted)
		if err != nil {
			return err
		}
		if !approved {
			return fmt.Errorf("state: transfer of asset %d not approved", assetID)
		}
	}
	return r.state.putRLP(assetKey(assetID), &storedAsset{Owner: to})
}

func (r *Registry) isApprovedLocked(owner, operator [20]byte) (bool, error) {
	var approved bool
	ok, err := r.state.getRLP(approvalKey(owner, operator), &approved)
	if err != nil {
		return false, err
	}
	return ok && approved, nil
}
