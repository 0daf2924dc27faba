package settlement

import (
	"fmt"
	"math/big"
)

// PaymentStatus represents the lifecycle states of an escrowed payment.
type PaymentStatus uint8

const (
	StatusPending PaymentStatus = iota
	StatusAccepted
	StatusRejected
	StatusPaid
)

// Valid reports whether the status value is within the supported range.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusPaid:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s PaymentStatus) Terminal() bool {
	return s == StatusRejected || s == StatusPaid
}

func (s PaymentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusPaid:
		return "paid"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Payment captures a single escrow record tracking token units held for a
// merchant pending off-band fiat settlement. The reference string supplied at
// creation is stored only as its keccak256 digest; the plaintext travels
// exclusively through the payment-created audit event.
type Payment struct {
	ID            uint64
	Payer         [20]byte
	Merchant      [20]byte
	Amount        *big.Int
	CreatedAt     int64
	ReferenceHash [32]byte
	Status        PaymentStatus
	LockedRate    *big.Int
}

// Clone returns a deep copy of the payment so callers can safely mutate the
// copy without affecting the stored instance.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if p.LockedRate != nil {
		clone.LockedRate = new(big.Int).Set(p.LockedRate)
	} else {
		clone.LockedRate = big.NewInt(0)
	}
	return &clone
}

// SanitizePayment validates the supplied payment record and returns a cloned
// instance with non-nil big integer fields. The locked rate must be zero while
// the payment is pending or rejected and strictly positive once accepted or
// paid. The function does not mutate the original value.
func SanitizePayment(p *Payment) (*Payment, error) {
	if p == nil {
		return nil, fmt.Errorf("settlement: nil payment")
	}
	clone := p.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("settlement: payment id must be positive")
	}
	if clone.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("settlement: payment amount must be positive")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("settlement: invalid payment status: %d", clone.Status)
	}
	switch clone.Status {
	case StatusPending, StatusRejected:
		if clone.LockedRate.Sign() != 0 {
			return nil, fmt.Errorf("settlement: locked rate must be zero in status %s", clone.Status)
		}
	case StatusAccepted, StatusPaid:
		if clone.LockedRate.Sign() <= 0 {
			return nil, fmt.Errorf("settlement: locked rate must be positive in status %s", clone.Status)
		}
	}
	return clone, nil
}

// MerchantInfo stores the commitment form of a merchant's banking identifiers.
// Only keccak256 digests are persisted; the plaintext exists solely in the
// merchant-registered and merchant-updated audit events.
type MerchantInfo struct {
	BankNameHash      [32]byte
	AccountNameHash   [32]byte
	AccountNumberHash [32]byte
	Registered        bool
}

// Clone returns a copy of the merchant info.
func (m *MerchantInfo) Clone() *MerchantInfo {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// BankDetails is the public projection of a merchant's registry entry. A zero
// bank-name digest signals that the merchant has never registered.
type BankDetails struct {
	BankNameHash      [32]byte
	AccountNameHash   [32]byte
	AccountNumberHash [32]byte
}

// Meta captures the singleton ledger configuration fixed at initialization,
// plus the strictly increasing payment id counter.
type Meta struct {
	Token  [20]byte
	Admin  [20]byte
	NextID uint64
}

// Clone returns a copy of the meta record.
func (m *Meta) Clone() *Meta {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// PaymentSummary is the redacted projection returned by payment queries. The
// locked exchange rate is deliberately omitted; it is obtainable only from the
// payment-accepted audit event.
type PaymentSummary struct {
	ID            uint64
	Payer         [20]byte
	Merchant      [20]byte
	Amount        *big.Int
	CreatedAt     int64
	ReferenceHash [32]byte
	Status        PaymentStatus
}

// Summary converts the payment into its redacted query projection.
func (p *Payment) Summary() *PaymentSummary {
	if p == nil {
		return nil
	}
	clone := p.Clone()
	return &PaymentSummary{
		ID:            clone.ID,
		Payer:         clone.Payer,
		Merchant:      clone.Merchant,
		Amount:        clone.Amount,
		CreatedAt:     clone.CreatedAt,
		ReferenceHash: clone.ReferenceHash,
		Status:        clone.Status,
	}
}
