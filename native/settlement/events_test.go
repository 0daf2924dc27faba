package settlement

import (
	"encoding/hex"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestNewPaymentCreatedEventCarriesPlaintextReference(t *testing.T) {
	payment := &Payment{
		ID:            1,
		Payer:         newTestAddress(0x0B),
		Merchant:      newTestAddress(0x0C),
		Amount:        big.NewInt(5_000_000),
		CreatedAt:     1_700_000_000,
		ReferenceHash: ethcrypto.Keccak256Hash([]byte("INV-001")),
		Status:        StatusPending,
		LockedRate:    big.NewInt(0),
	}
	evt := NewPaymentCreatedEvent(payment, "INV-001")
	if evt.Type != EventTypePaymentCreated {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["reference"] != "INV-001" {
		t.Fatalf("expected plaintext reference, got %q", evt.Attributes["reference"])
	}
	if evt.Attributes["referenceHash"] != hex.EncodeToString(payment.ReferenceHash[:]) {
		t.Fatal("reference digest mismatch")
	}
	if evt.Attributes["amount"] != "5000000" || evt.Attributes["id"] != "1" {
		t.Fatalf("unexpected attributes: %v", evt.Attributes)
	}
	if evt.Attributes["payer"] == "" || evt.Attributes["merchant"] == "" {
		t.Fatal("expected bech32 payer and merchant attributes")
	}
	if _, ok := evt.Attributes["lockedRate"]; ok {
		t.Fatal("created event must not expose a rate")
	}
}

func TestNewPaymentAcceptedEventExposesLockedRate(t *testing.T) {
	payment := &Payment{
		ID:         4,
		Payer:      newTestAddress(0x0B),
		Merchant:   newTestAddress(0x0C),
		Amount:     big.NewInt(10),
		Status:     StatusAccepted,
		LockedRate: big.NewInt(1500),
	}
	evt := NewPaymentAcceptedEvent(payment)
	if evt.Type != EventTypePaymentAccepted {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["id"] != "4" || evt.Attributes["lockedRate"] != "1500" {
		t.Fatalf("unexpected attributes: %v", evt.Attributes)
	}
}

func TestPaymentIDEvents(t *testing.T) {
	payment := &Payment{ID: 9, Amount: big.NewInt(1), Status: StatusRejected, LockedRate: big.NewInt(0)}
	rejected := NewPaymentRejectedEvent(payment)
	if rejected.Type != EventTypePaymentRejected || rejected.Attributes["id"] != "9" {
		t.Fatalf("unexpected rejected event: %+v", rejected)
	}
	paid := NewPaymentMarkedPaidEvent(payment)
	if paid.Type != EventTypePaymentMarkedPaid || paid.Attributes["id"] != "9" {
		t.Fatalf("unexpected paid event: %+v", paid)
	}
	empty := NewPaymentRejectedEvent(nil)
	if len(empty.Attributes) != 0 {
		t.Fatalf("nil payment must yield empty attributes, got %v", empty.Attributes)
	}
}

func TestMerchantEventsCarryPlaintext(t *testing.T) {
	merchant := newTestAddress(0x0C)
	registered := NewMerchantRegisteredEvent(merchant, "First Bank", "Acme Ltd", "12345")
	if registered.Type != EventTypeMerchantRegistered {
		t.Fatalf("unexpected type %s", registered.Type)
	}
	for key, want := range map[string]string{
		"bankName":      "First Bank",
		"accountName":   "Acme Ltd",
		"accountNumber": "12345",
	} {
		if registered.Attributes[key] != want {
			t.Fatalf("attribute %s: expected %q, got %q", key, want, registered.Attributes[key])
		}
	}
	updated := NewMerchantUpdatedEvent(merchant, "Second Bank", "Acme Ltd", "54321")
	if updated.Type != EventTypeMerchantUpdated || updated.Attributes["bankName"] != "Second Bank" {
		t.Fatalf("unexpected updated event: %+v", updated)
	}
	if registered.Attributes["merchant"] != updated.Attributes["merchant"] {
		t.Fatal("merchant attribute must be stable across events")
	}
}
