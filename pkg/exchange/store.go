package exchange

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/events"
)

// Store is the Pebble-backed persistence layer for the exchange. Every
// mutating operation writes one Batch so that ledger entries, order
// state, counters and the event journal commit as a single atomic unit.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at path.
func NewStore(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(32 << 20),
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 2,
		MaxOpenFiles:          1000,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// State is everything the exchange reloads on boot. HasFeeConfig reports
// whether a persisted fee configuration exists; a fresh database defers
// to the constructor-supplied values.
type State struct {
	Balances   map[common.Address]map[common.Address]*big.Int
	Orders     map[uint64]*Order
	Cancelled  map[uint64]bool
	Filled     map[uint64]bool
	OrderCount uint64
	EventSeq   uint64

	HasFeeConfig bool
	Admin        common.Address
	FeeAccount   common.Address
	FeePercent   uint64
}

// LoadState scans the whole keyspace back into memory.
func (s *Store) LoadState() (*State, error) {
	st := &State{
		Balances:  make(map[common.Address]map[common.Address]*big.Int),
		Orders:    make(map[uint64]*Order),
		Cancelled: make(map[uint64]bool),
		Filled:    make(map[uint64]bool),
	}

	if err := s.scan(prefixBalance, func(key, val []byte) error {
		asset, account, err := balanceKeyParse(key)
		if err != nil {
			return err
		}
		amount, ok := new(big.Int).SetString(string(val), 10)
		if !ok {
			return fmt.Errorf("malformed balance value for %q: %q", key, val)
		}
		accounts, ok := st.Balances[asset]
		if !ok {
			accounts = make(map[common.Address]*big.Int)
			st.Balances[asset] = accounts
		}
		accounts[account] = amount
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan(prefixOrder, func(key, val []byte) error {
		var o Order
		if err := json.Unmarshal(val, &o); err != nil {
			return fmt.Errorf("failed to unmarshal order %q: %w", key, err)
		}
		st.Orders[o.ID] = &o
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan(prefixCancelled, func(key, _ []byte) error {
		id, err := idFromKey(key, prefixCancelled)
		if err != nil {
			return err
		}
		st.Cancelled[id] = true
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan(prefixFilled, func(key, _ []byte) error {
		id, err := idFromKey(key, prefixFilled)
		if err != nil {
			return err
		}
		st.Filled[id] = true
		return nil
	}); err != nil {
		return nil, err
	}

	var err error
	if st.OrderCount, err = s.getUint64(metaOrderCount); err != nil {
		return nil, err
	}
	if st.EventSeq, err = s.getUint64(metaEventSeq); err != nil {
		return nil, err
	}

	admin, okAdmin, err := s.getAddress(metaAdmin)
	if err != nil {
		return nil, err
	}
	feeAccount, okAccount, err := s.getAddress(metaFeeAccount)
	if err != nil {
		return nil, err
	}
	feePercent, err := s.getUint64(metaFeePercent)
	if err != nil {
		return nil, err
	}
	if okAdmin && okAccount {
		st.HasFeeConfig = true
		st.Admin = admin
		st.FeeAccount = feeAccount
		st.FeePercent = feePercent
	}

	return st, nil
}

// LoadEvents returns up to limit journal entries with Seq > after, in
// emission order. limit <= 0 means no cap.
func (s *Store) LoadEvents(after uint64, limit int) ([]events.Event, error) {
	lower := eventKey(after + 1)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: keyUpperBound([]byte(prefixEvent)),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []events.Event
	for iter.First(); iter.Valid(); iter.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		var evt events.Event
		if err := json.Unmarshal(iter.Value(), &evt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event %q: %w", iter.Key(), err)
		}
		out = append(out, evt)
	}
	return out, nil
}

func (s *Store) scan(prefix string, fn func(key, val []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keyUpperBound([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) getUint64(name string) (uint64, error) {
	val, closer, err := s.db.Get(metaKey(name))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get meta %s: %w", name, err)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("malformed meta %s: %d bytes", name, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

func (s *Store) getAddress(name string) (common.Address, bool, error) {
	val, closer, err := s.db.Get(metaKey(name))
	if err == pebble.ErrNotFound {
		return common.Address{}, false, nil
	}
	if err != nil {
		return common.Address{}, false, fmt.Errorf("failed to get meta %s: %w", name, err)
	}
	defer closer.Close()
	if len(val) != common.AddressLength {
		return common.Address{}, false, fmt.Errorf("malformed meta %s: %d bytes", name, len(val))
	}
	return common.BytesToAddress(val), true, nil
}

// Batch accumulates the writes of one exchange operation and commits
// them atomically.
type Batch struct {
	b *pebble.Batch
}

// NewBatch starts a write batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

// SetBalance records an absolute ledger balance.
func (b *Batch) SetBalance(asset, account common.Address, amount *big.Int) error {
	return b.b.Set(balanceKey(asset, account), []byte(amount.Text(10)), nil)
}

// PutOrder persists an order record.
func (b *Batch) PutOrder(o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	return b.b.Set(orderKey(o.ID), data, nil)
}

// MarkCancelled adds id to the persisted cancelled-set.
func (b *Batch) MarkCancelled(id uint64) error {
	return b.b.Set(cancelledKey(id), []byte{1}, nil)
}

// MarkFilled adds id to the persisted filled-set.
func (b *Batch) MarkFilled(id uint64) error {
	return b.b.Set(filledKey(id), []byte{1}, nil)
}

// AppendEvent journals one event under its sequence key and advances the
// persisted sequence counter.
func (b *Batch) AppendEvent(evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.b.Set(eventKey(evt.Seq), data, nil); err != nil {
		return err
	}
	return b.SetUint64(metaEventSeq, evt.Seq)
}

// SetUint64 writes a meta counter.
func (b *Batch) SetUint64(name string, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return b.b.Set(metaKey(name), buf[:], nil)
}

// SetAddress writes a meta address.
func (b *Batch) SetAddress(name string, addr common.Address) error {
	return b.b.Set(metaKey(name), addr.Bytes(), nil)
}

// Commit writes the batch durably.
func (b *Batch) Commit() error {
	return b.b.Commit(pebble.Sync)
}

// Close discards the batch without committing.
func (b *Batch) Close() error {
	return b.b.Close()
}
