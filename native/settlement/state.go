package settlement

import "math/big"

// State provides transactional access to the settlement ledger. Update runs fn
// against a staged view of the ledger: mutations become visible to other
// callers only after fn returns nil, and are discarded wholesale when fn
// returns an error. View runs fn against a read snapshot. Implementations must
// serialize calls so that no two operations interleave.
type State interface {
	Update(fn func(Txn) error) error
	View(fn func(Txn) error) error
}

// Txn is the staged view handed to an operation. All mutations performed
// through it commit or roll back together with the enclosing Update call.
type Txn interface {
	MetaGet() (*Meta, bool, error)
	MetaPut(*Meta) error
	PaymentGet(id uint64) (*Payment, bool, error)
	PaymentPut(*Payment) error
	MerchantInfoGet(addr [20]byte) (*MerchantInfo, bool, error)
	MerchantInfoPut(addr [20]byte, info *MerchantInfo) error
	MerchantPayments(addr [20]byte) ([]uint64, error)
	MerchantPaymentsAppend(addr [20]byte, id uint64) error
	PayerPayments(addr [20]byte) ([]uint64, error)
	PayerPaymentsAppend(addr [20]byte, id uint64) error

	AccountState
}

// AccountState exposes custodied token balances. It is the slice of the
// transaction consumed by the Custodian so that fund movements commit or roll
// back together with the lifecycle transition that triggered them.
type AccountState interface {
	BalanceGet(addr [20]byte) (*big.Int, error)
	BalancePut(addr [20]byte, amount *big.Int) error
}

// Custodian moves custodied token units between payer, escrow vault and
// administrator on the engine's behalf. A returned error aborts the enclosing
// operation; implementations must not silently swallow failed transfers.
type Custodian interface {
	// PullIntoEscrow moves amount from the payer into the escrow vault.
	PullIntoEscrow(state AccountState, from [20]byte, amount *big.Int) error
	// PushFromEscrow moves amount from the escrow vault to the recipient.
	PushFromEscrow(state AccountState, to [20]byte, amount *big.Int) error
}
