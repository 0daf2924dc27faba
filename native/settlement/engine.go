package settlement

import (
	"errors"
	"math/big"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"settlr/core/events"
	"settlr/core/types"
)

var (
	errNilState     = errors.New("settlement engine: state not configured")
	errNilCustodian = errors.New("settlement engine: custodian not configured")
)

type settlementEvent struct {
	evt *types.Event
}

func (e settlementEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e settlementEvent) Event() *types.Event { return e.evt }

// Engine wires the payment lifecycle state machine with the transactional
// ledger state, the token custodian and the audit event emitter. Every public
// operation validates its inputs, runs as a single staged transaction and, on
// success, emits exactly one audit event.
type Engine struct {
	state     State
	custodian Custodian
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine creates a settlement engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the transactional state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetCustodian configures the token custodian invoked for fund movements.
func (e *Engine) SetCustodian(custodian Custodian) { e.custodian = custodian }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(settlementEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.custodian == nil {
		return errNilCustodian
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func requireMeta(txn Txn) (*Meta, error) {
	meta, ok, err := txn.MetaGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return meta, nil
}

// Initialize fixes the custodied token address, designates the caller as
// administrator and starts the payment id counter at one. It may be called
// exactly once for the lifetime of the ledger.
func (e *Engine) Initialize(caller, token [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if token == ([20]byte{}) {
		return ErrInvalidToken
	}
	return e.state.Update(func(txn Txn) error {
		_, ok, err := txn.MetaGet()
		if err != nil {
			return err
		}
		if ok {
			return ErrAlreadyInitialized
		}
		return txn.MetaPut(&Meta{Token: token, Admin: caller, NextID: 1})
	})
}

// CreatePayment escrows amount token units from the payer against the
// merchant and records a new pending payment. The custody pull and the record
// creation succeed or fail together: a failed pull leaves the id counter, the
// payment store and both index lists untouched.
func (e *Engine) CreatePayment(payer, merchant [20]byte, amount *big.Int, reference string) (*Payment, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if merchant == ([20]byte{}) {
		return nil, ErrInvalidMerchant
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	var created *Payment
	err := e.state.Update(func(txn Txn) error {
		meta, err := requireMeta(txn)
		if err != nil {
			return err
		}
		amt := cloneBigInt(amount)
		if err := e.custodian.PullIntoEscrow(txn, payer, amt); err != nil {
			return err
		}
		payment := &Payment{
			ID:            meta.NextID,
			Payer:         payer,
			Merchant:      merchant,
			Amount:        amt,
			CreatedAt:     e.now(),
			ReferenceHash: ethcrypto.Keccak256Hash([]byte(reference)),
			Status:        StatusPending,
			LockedRate:    big.NewInt(0),
		}
		sanitized, err := SanitizePayment(payment)
		if err != nil {
			return err
		}
		if err := txn.PaymentPut(sanitized); err != nil {
			return err
		}
		if err := txn.MerchantPaymentsAppend(merchant, sanitized.ID); err != nil {
			return err
		}
		if err := txn.PayerPaymentsAppend(payer, sanitized.ID); err != nil {
			return err
		}
		meta.NextID++
		if err := txn.MetaPut(meta); err != nil {
			return err
		}
		created = sanitized.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewPaymentCreatedEvent(created, reference))
	return created.Clone(), nil
}

// AcceptPayment transitions a pending payment to accepted, locks the supplied
// exchange rate and releases the escrowed amount to the administrator. Only
// the payment's merchant may accept, and only while the payment is pending.
func (e *Engine) AcceptPayment(caller [20]byte, id uint64, rate *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	var accepted *Payment
	err := e.state.Update(func(txn Txn) error {
		meta, err := requireMeta(txn)
		if err != nil {
			return err
		}
		payment, ok, err := txn.PaymentGet(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPaymentNotFound
		}
		if payment.Merchant != caller {
			return ErrNotYourPayment
		}
		if payment.Status != StatusPending {
			return ErrAlreadyProcessed
		}
		if rate == nil || rate.Sign() <= 0 {
			return ErrInvalidRate
		}
		payment.Status = StatusAccepted
		payment.LockedRate = cloneBigInt(rate)
		if err := e.custodian.PushFromEscrow(txn, meta.Admin, payment.Amount); err != nil {
			return err
		}
		if err := txn.PaymentPut(payment); err != nil {
			return err
		}
		accepted = payment.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(NewPaymentAcceptedEvent(accepted))
	return nil
}

// RejectPayment transitions a pending payment to rejected and refunds the
// escrowed amount to the original payer. Same caller and status guards as
// AcceptPayment.
func (e *Engine) RejectPayment(caller [20]byte, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	var rejected *Payment
	err := e.state.Update(func(txn Txn) error {
		if _, err := requireMeta(txn); err != nil {
			return err
		}
		payment, ok, err := txn.PaymentGet(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPaymentNotFound
		}
		if payment.Merchant != caller {
			return ErrNotYourPayment
		}
		if payment.Status != StatusPending {
			return ErrAlreadyProcessed
		}
		payment.Status = StatusRejected
		if err := e.custodian.PushFromEscrow(txn, payment.Payer, payment.Amount); err != nil {
			return err
		}
		if err := txn.PaymentPut(payment); err != nil {
			return err
		}
		rejected = payment.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(NewPaymentRejectedEvent(rejected))
	return nil
}

// MarkPaid closes an accepted payment once the administrator has performed the
// off-band fiat transfer. No funds move; custody was already released to the
// administrator on acceptance.
func (e *Engine) MarkPaid(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	var paid *Payment
	err := e.state.Update(func(txn Txn) error {
		meta, err := requireMeta(txn)
		if err != nil {
			return err
		}
		if meta.Admin != caller {
			return ErrOnlyAdmin
		}
		payment, ok, err := txn.PaymentGet(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPaymentNotFound
		}
		if payment.Status != StatusAccepted {
			return ErrMustBeAcceptedFirst
		}
		payment.Status = StatusPaid
		if err := txn.PaymentPut(payment); err != nil {
			return err
		}
		paid = payment.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(NewPaymentMarkedPaidEvent(paid))
	return nil
}

// RegisterMerchant stores keccak256 commitments of the caller's banking
// identifiers and marks the caller as registered. Repeated registration
// overwrites the stored digests wholesale. The plaintext fields are emitted on
// the audit event and never persisted.
func (e *Engine) RegisterMerchant(caller [20]byte, bankName, accountName, accountNumber string) error {
	return e.putMerchant(caller, bankName, accountName, accountNumber, false)
}

// UpdateMerchant overwrites a registered merchant's banking commitments. It
// fails with ErrNotRegistered when RegisterMerchant was never called for the
// caller.
func (e *Engine) UpdateMerchant(caller [20]byte, bankName, accountName, accountNumber string) error {
	return e.putMerchant(caller, bankName, accountName, accountNumber, true)
}

func (e *Engine) putMerchant(caller [20]byte, bankName, accountName, accountNumber string, requireRegistered bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if strings.TrimSpace(bankName) == "" {
		return ErrBankNameRequired
	}
	if strings.TrimSpace(accountName) == "" {
		return ErrAccountNameRequired
	}
	if strings.TrimSpace(accountNumber) == "" {
		return ErrAccountNumberRequired
	}
	err := e.state.Update(func(txn Txn) error {
		if _, err := requireMeta(txn); err != nil {
			return err
		}
		if requireRegistered {
			info, ok, err := txn.MerchantInfoGet(caller)
			if err != nil {
				return err
			}
			if !ok || !info.Registered {
				return ErrNotRegistered
			}
		}
		return txn.MerchantInfoPut(caller, &MerchantInfo{
			BankNameHash:      ethcrypto.Keccak256Hash([]byte(bankName)),
			AccountNameHash:   ethcrypto.Keccak256Hash([]byte(accountName)),
			AccountNumberHash: ethcrypto.Keccak256Hash([]byte(accountNumber)),
			Registered:        true,
		})
	})
	if err != nil {
		return err
	}
	if requireRegistered {
		e.emit(NewMerchantUpdatedEvent(caller, bankName, accountName, accountNumber))
	} else {
		e.emit(NewMerchantRegisteredEvent(caller, bankName, accountName, accountNumber))
	}
	return nil
}

// GetPayment returns the redacted projection of the payment with the given id.
func (e *Engine) GetPayment(id uint64) (*PaymentSummary, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var summary *PaymentSummary
	err := e.state.View(func(txn Txn) error {
		payment, ok, err := txn.PaymentGet(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPaymentNotFound
		}
		summary = payment.Summary()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// MerchantBankDetails returns the persisted digests for the merchant. All
// digests are zero when the merchant never registered; callers test the
// bank-name digest for registration existence.
func (e *Engine) MerchantBankDetails(merchant [20]byte) (BankDetails, error) {
	if e == nil || e.state == nil {
		return BankDetails{}, errNilState
	}
	var details BankDetails
	err := e.state.View(func(txn Txn) error {
		info, ok, err := txn.MerchantInfoGet(merchant)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		details = BankDetails{
			BankNameHash:      info.BankNameHash,
			AccountNameHash:   info.AccountNameHash,
			AccountNumberHash: info.AccountNumberHash,
		}
		return nil
	})
	if err != nil {
		return BankDetails{}, err
	}
	return details, nil
}

// MerchantPaymentIDs returns every payment id recorded against the merchant in
// creation order.
func (e *Engine) MerchantPaymentIDs(merchant [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var ids []uint64
	err := e.state.View(func(txn Txn) error {
		list, err := txn.MerchantPayments(merchant)
		if err != nil {
			return err
		}
		ids = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// PayerPaymentIDs returns every payment id created by the payer in creation
// order.
func (e *Engine) PayerPaymentIDs(payer [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var ids []uint64
	err := e.state.View(func(txn Txn) error {
		list, err := txn.PayerPayments(payer)
		if err != nil {
			return err
		}
		ids = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
