package state

import (
	"errors"

	"github.com/ethereum/go-ethereum/rlp"

	"lifemarket/storage"
)

// Key prefixes for the marketplace state namespace. Keys stay readable (no
// hashing) so prefix scans can enumerate listings and ledger entries.
var (
	listingPrefix  = []byte("market/listing/")
	bidPrefix      = []byte("market/bid/")
	refundPrefix   = []byte("market/refund/")
	earningsPrefix = []byte("market/earnings/")
	feeConfigKey   = []byte("market/feeconfig")
	assetPrefix    = []byte("registry/asset/")
	approvalPrefix = []byte("registry/approval/")
	balancePrefix  = []byte("ledger/balance/")
)

// ErrAssetNotFound is returned when an asset identifier is not registered.
var ErrAssetNotFound = errors.New("state: asset not found")

// Manager persists marketplace state through a storage.Database. It carries
// no business rules; the settlement engine and the capability adapters own
// those.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// getRLP decodes the stored value into out. The boolean reports presence.
func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func rlpDecode(raw []byte, out interface{}) error {
	return rlp.DecodeBytes(raw, out)
}

func appendKey(prefix []byte, suffix string) []byte {
	key := make([]byte, 0, len(prefix)+len(suffix))
	key = append(key, prefix...)
	key = append(key, suffix...)
	return key
}
