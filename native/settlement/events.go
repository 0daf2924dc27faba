package settlement

import (
	"encoding/hex"
	"strconv"

	"settlr/core/types"
	"settlr/crypto"
)

const (
	EventTypeMerchantRegistered = "settlement.merchant_registered"
	EventTypeMerchantUpdated    = "settlement.merchant_updated"
	EventTypePaymentCreated     = "settlement.payment_created"
	EventTypePaymentAccepted    = "settlement.payment_accepted"
	EventTypePaymentRejected    = "settlement.payment_rejected"
	EventTypePaymentMarkedPaid  = "settlement.payment_marked_paid"
)

// NewPaymentCreatedEvent returns the canonical event payload for a newly
// escrowed payment. The plaintext reference rides on the event only; the
// ledger persists just its digest.
func NewPaymentCreatedEvent(p *Payment, reference string) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: EventTypePaymentCreated, Attributes: attrs}
	}
	clone := p.Clone()
	attrs["id"] = strconv.FormatUint(clone.ID, 10)
	attrs["payer"] = addressString(clone.Payer)
	attrs["merchant"] = addressString(clone.Merchant)
	attrs["amount"] = clone.Amount.String()
	attrs["reference"] = reference
	attrs["referenceHash"] = hex.EncodeToString(clone.ReferenceHash[:])
	attrs["createdAt"] = strconv.FormatInt(clone.CreatedAt, 10)
	return &types.Event{Type: EventTypePaymentCreated, Attributes: attrs}
}

// NewPaymentAcceptedEvent returns the event payload emitted when a merchant
// accepts a payment. This event is the only channel exposing the locked rate.
func NewPaymentAcceptedEvent(p *Payment) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: EventTypePaymentAccepted, Attributes: attrs}
	}
	clone := p.Clone()
	attrs["id"] = strconv.FormatUint(clone.ID, 10)
	attrs["lockedRate"] = clone.LockedRate.String()
	return &types.Event{Type: EventTypePaymentAccepted, Attributes: attrs}
}

// NewPaymentRejectedEvent returns the event payload emitted when a merchant
// rejects a payment and the escrowed funds return to the payer.
func NewPaymentRejectedEvent(p *Payment) *types.Event {
	return paymentIDEvent(EventTypePaymentRejected, p)
}

// NewPaymentMarkedPaidEvent returns the event payload emitted when the
// administrator confirms the off-band fiat transfer.
func NewPaymentMarkedPaidEvent(p *Payment) *types.Event {
	return paymentIDEvent(EventTypePaymentMarkedPaid, p)
}

// NewMerchantRegisteredEvent returns the event payload carrying the plaintext
// banking identifiers committed by a first-time registration.
func NewMerchantRegisteredEvent(merchant [20]byte, bankName, accountName, accountNumber string) *types.Event {
	return merchantEvent(EventTypeMerchantRegistered, merchant, bankName, accountName, accountNumber)
}

// NewMerchantUpdatedEvent returns the event payload carrying the plaintext
// banking identifiers of an update. Readers must treat the latest of the
// registered/updated events for a merchant as authoritative.
func NewMerchantUpdatedEvent(merchant [20]byte, bankName, accountName, accountNumber string) *types.Event {
	return merchantEvent(EventTypeMerchantUpdated, merchant, bankName, accountName, accountNumber)
}

func paymentIDEvent(eventType string, p *Payment) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["id"] = strconv.FormatUint(p.ID, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func merchantEvent(eventType string, merchant [20]byte, bankName, accountName, accountNumber string) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"merchant":      addressString(merchant),
			"bankName":      bankName,
			"accountName":   accountName,
			"accountNumber": accountNumber,
		},
	}
}

func addressString(addr [20]byte) string {
	return crypto.NewAddress(crypto.SettlrPrefix, addr[:]).String()
}
