package token

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"settlr/native/settlement"
)

var (
	// ErrInvalidAmount marks zero or negative transfer amounts.
	ErrInvalidAmount = errors.New("token: amount must be positive")
	// ErrInsufficientBalance marks transfers exceeding the source balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInvalidRecipient marks transfers to the zero address.
	ErrInvalidRecipient = errors.New("token: invalid recipient")
)

// vaultLabel seeds the escrow vault address. The vault is a module-owned
// account with no corresponding private key.
const vaultLabel = "settlr/token/escrow-vault"

// Ledger implements the settlement.Custodian interface on top of token
// balances persisted through the shared transactional state. Transfers
// performed inside an engine operation commit or roll back together with the
// lifecycle transition that requested them.
type Ledger struct {
	vault [20]byte
}

// NewLedger creates a token ledger with a deterministic escrow vault address.
func NewLedger() *Ledger {
	l := &Ledger{}
	digest := ethcrypto.Keccak256([]byte(vaultLabel))
	copy(l.vault[:], digest[12:])
	return l
}

// VaultAddress returns the module-owned escrow vault address.
func (l *Ledger) VaultAddress() [20]byte { return l.vault }

// PullIntoEscrow moves amount from the payer into the escrow vault.
func (l *Ledger) PullIntoEscrow(state settlement.AccountState, from [20]byte, amount *big.Int) error {
	return l.transfer(state, from, l.vault, amount)
}

// PushFromEscrow moves amount from the escrow vault to the recipient.
func (l *Ledger) PushFromEscrow(state settlement.AccountState, to [20]byte, amount *big.Int) error {
	if to == ([20]byte{}) {
		return ErrInvalidRecipient
	}
	return l.transfer(state, l.vault, to, amount)
}

// Mint credits amount to the recipient. Minting backs account funding at
// bootstrap; the settlement engine itself never mints.
func (l *Ledger) Mint(state settlement.AccountState, to [20]byte, amount *big.Int) error {
	if state == nil {
		return errors.New("token: state not configured")
	}
	if to == ([20]byte{}) {
		return ErrInvalidRecipient
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := state.BalanceGet(to)
	if err != nil {
		return err
	}
	return state.BalancePut(to, new(big.Int).Add(balance, amount))
}

// BalanceOf returns the token balance of the address, zero for unknown
// accounts.
func (l *Ledger) BalanceOf(state settlement.AccountState, addr [20]byte) (*big.Int, error) {
	if state == nil {
		return nil, errors.New("token: state not configured")
	}
	return state.BalanceGet(addr)
}

func (l *Ledger) transfer(state settlement.AccountState, from, to [20]byte, amount *big.Int) error {
	if state == nil {
		return errors.New("token: state not configured")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBalance, err := state.BalanceGet(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	// A self-transfer must not change the balance: reading both sides before
	// writing would otherwise credit the debit away.
	if from == to {
		return nil
	}
	toBalance, err := state.BalanceGet(to)
	if err != nil {
		return err
	}
	if err := state.BalancePut(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return state.BalancePut(to, new(big.Int).Add(toBalance, amount))
}
