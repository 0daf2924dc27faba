package state

import (
	"errors"
	"math/big"
	"sync"

	"settlr/native/settlement"
	"settlr/storage"
)

// Manager owns the durable settlement ledger. Every operation runs against a
// staged transaction: reads see committed state overlaid with the
// transaction's own writes, and the writes reach the database only as a single
// atomic batch once the operation succeeds. A mutex serializes all
// transactions so no caller ever observes a partially applied mutation.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager wraps the given database in a transactional ledger manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn against a staged transaction and commits its writes
// atomically when fn returns nil. Any error from fn discards the staged writes
// wholesale.
func (m *Manager) Update(fn func(settlement.Txn) error) error {
	if m == nil || m.db == nil {
		return errors.New("state: database not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txn := newTxn(m.db)
	if err := fn(txn); err != nil {
		return err
	}
	return m.db.WriteBatch(txn.staged())
}

// View runs fn against a read-only snapshot of committed state. Writes staged
// through the transaction are never committed.
func (m *Manager) View(fn func(settlement.Txn) error) error {
	if m == nil || m.db == nil {
		return errors.New("state: database not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(newTxn(m.db))
}

// Txn implements settlement.Txn as an overlay of staged writes on top of the
// committed database state.
type Txn struct {
	db     storage.Database
	writes map[string][]byte
	order  []string
}

func newTxn(db storage.Database) *Txn {
	return &Txn{db: db, writes: make(map[string][]byte)}
}

func (t *Txn) staged() []storage.KV {
	entries := make([]storage.KV, 0, len(t.order))
	for _, key := range t.order {
		entries = append(entries, storage.KV{Key: []byte(key), Value: t.writes[key]})
	}
	return entries
}

func (t *Txn) get(key []byte) ([]byte, bool, error) {
	if value, ok := t.writes[string(key)]; ok {
		return value, true, nil
	}
	value, err := t.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *Txn) put(key []byte, value []byte) {
	if _, ok := t.writes[string(key)]; !ok {
		t.order = append(t.order, string(key))
	}
	t.writes[string(key)] = value
}

// MetaGet returns the singleton ledger configuration.
func (t *Txn) MetaGet() (*settlement.Meta, bool, error) {
	raw, ok, err := t.get(metaKey)
	if err != nil || !ok {
		return nil, false, err
	}
	meta, err := decodeMeta(raw)
	if err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

// MetaPut stages the singleton ledger configuration.
func (t *Txn) MetaPut(meta *settlement.Meta) error {
	raw, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	t.put(metaKey, raw)
	return nil
}

// PaymentGet returns the payment with the given id.
func (t *Txn) PaymentGet(id uint64) (*settlement.Payment, bool, error) {
	raw, ok, err := t.get(paymentKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	payment, err := decodePayment(raw)
	if err != nil {
		return nil, false, err
	}
	return payment, true, nil
}

// PaymentPut stages the payment record.
func (t *Txn) PaymentPut(payment *settlement.Payment) error {
	raw, err := encodePayment(payment)
	if err != nil {
		return err
	}
	t.put(paymentKey(payment.ID), raw)
	return nil
}

// MerchantInfoGet returns the merchant's registry entry.
func (t *Txn) MerchantInfoGet(addr [20]byte) (*settlement.MerchantInfo, bool, error) {
	raw, ok, err := t.get(merchantKey(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	info, err := decodeMerchantInfo(raw)
	if err != nil {
		return nil, false, err
	}
	return info, true, nil
}

// MerchantInfoPut stages the merchant's registry entry.
func (t *Txn) MerchantInfoPut(addr [20]byte, info *settlement.MerchantInfo) error {
	raw, err := encodeMerchantInfo(info)
	if err != nil {
		return err
	}
	t.put(merchantKey(addr), raw)
	return nil
}

// MerchantPayments returns the merchant's payment id list in creation order.
func (t *Txn) MerchantPayments(addr [20]byte) ([]uint64, error) {
	return t.idList(merchantIndexKey(addr))
}

// MerchantPaymentsAppend appends id to the merchant's index list.
func (t *Txn) MerchantPaymentsAppend(addr [20]byte, id uint64) error {
	return t.idListAppend(merchantIndexKey(addr), id)
}

// PayerPayments returns the payer's payment id list in creation order.
func (t *Txn) PayerPayments(addr [20]byte) ([]uint64, error) {
	return t.idList(payerIndexKey(addr))
}

// PayerPaymentsAppend appends id to the payer's index list.
func (t *Txn) PayerPaymentsAppend(addr [20]byte, id uint64) error {
	return t.idListAppend(payerIndexKey(addr), id)
}

func (t *Txn) idList(key []byte) ([]uint64, error) {
	raw, ok, err := t.get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []uint64{}, nil
	}
	return decodeIDList(raw)
}

func (t *Txn) idListAppend(key []byte, id uint64) error {
	ids, err := t.idList(key)
	if err != nil {
		return err
	}
	raw, err := encodeIDList(append(ids, id))
	if err != nil {
		return err
	}
	t.put(key, raw)
	return nil
}

// BalanceGet returns the token balance of the address, zero for unknown
// accounts.
func (t *Txn) BalanceGet(addr [20]byte) (*big.Int, error) {
	raw, ok, err := t.get(balanceKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return decodeBalance(raw)
}

// BalancePut stages the token balance of the address.
func (t *Txn) BalancePut(addr [20]byte, amount *big.Int) error {
	raw, err := encodeBalance(amount)
	if err != nil {
		return err
	}
	t.put(balanceKey(addr), raw)
	return nil
}
