package settlement

import "errors"

var (
	// ErrNotInitialized marks operations attempted before Initialize.
	ErrNotInitialized = errors.New("settlement: ledger not initialized")
	// ErrAlreadyInitialized marks repeated Initialize calls.
	ErrAlreadyInitialized = errors.New("settlement: ledger already initialized")
	// ErrInvalidToken marks a zero custodied-token address.
	ErrInvalidToken = errors.New("settlement: invalid token address")
	// ErrInvalidMerchant marks a zero merchant address.
	ErrInvalidMerchant = errors.New("settlement: invalid merchant address")
	// ErrInvalidAmount marks a zero or missing payment amount.
	ErrInvalidAmount = errors.New("settlement: invalid amount")
	// ErrInvalidRate marks a zero or missing exchange rate.
	ErrInvalidRate = errors.New("settlement: invalid rate")
	// ErrOnlyAdmin marks admin-gated operations invoked by other callers.
	ErrOnlyAdmin = errors.New("settlement: only admin")
	// ErrNotYourPayment marks accept/reject attempts by a caller that is not
	// the payment's merchant.
	ErrNotYourPayment = errors.New("settlement: not your payment")
	// ErrAlreadyProcessed marks transitions on a payment that left the
	// pending state.
	ErrAlreadyProcessed = errors.New("settlement: payment already processed")
	// ErrMustBeAcceptedFirst marks mark-paid attempts on a payment that is
	// not in the accepted state.
	ErrMustBeAcceptedFirst = errors.New("settlement: payment must be accepted first")
	// ErrPaymentNotFound marks lookups of unknown payment ids.
	ErrPaymentNotFound = errors.New("settlement: payment not found")
	// ErrBankNameRequired marks an empty bank name field.
	ErrBankNameRequired = errors.New("settlement: bank name required")
	// ErrAccountNameRequired marks an empty account name field.
	ErrAccountNameRequired = errors.New("settlement: account name required")
	// ErrAccountNumberRequired marks an empty account number field.
	ErrAccountNumberRequired = errors.New("settlement: account number required")
	// ErrNotRegistered marks update attempts before registration.
	ErrNotRegistered = errors.New("settlement: merchant not registered")
)
