package state

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"settlr/native/settlement"
)

// Stored forms keep addresses and digests hex-encoded and big integers as
// decimal strings so that records stay readable in debugging tools.

type storedMeta struct {
	Token  string `json:"token"`
	Admin  string `json:"admin"`
	NextID uint64 `json:"nextId"`
}

type storedPayment struct {
	ID            uint64 `json:"id"`
	Payer         string `json:"payer"`
	Merchant      string `json:"merchant"`
	Amount        string `json:"amount"`
	CreatedAt     int64  `json:"createdAt"`
	ReferenceHash string `json:"referenceHash"`
	Status        uint8  `json:"status"`
	LockedRate    string `json:"lockedRate"`
}

type storedMerchantInfo struct {
	BankNameHash      string `json:"bankNameHash"`
	AccountNameHash   string `json:"accountNameHash"`
	AccountNumberHash string `json:"accountNumberHash"`
	Registered        bool   `json:"registered"`
}

func encodeMeta(meta *settlement.Meta) ([]byte, error) {
	if meta == nil {
		return nil, fmt.Errorf("state: nil meta")
	}
	return json.Marshal(storedMeta{
		Token:  hex.EncodeToString(meta.Token[:]),
		Admin:  hex.EncodeToString(meta.Admin[:]),
		NextID: meta.NextID,
	})
}

func decodeMeta(raw []byte) (*settlement.Meta, error) {
	var stored storedMeta
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode meta: %w", err)
	}
	meta := &settlement.Meta{NextID: stored.NextID}
	if err := decodeAddress(stored.Token, &meta.Token); err != nil {
		return nil, fmt.Errorf("state: decode meta token: %w", err)
	}
	if err := decodeAddress(stored.Admin, &meta.Admin); err != nil {
		return nil, fmt.Errorf("state: decode meta admin: %w", err)
	}
	return meta, nil
}

func encodePayment(payment *settlement.Payment) ([]byte, error) {
	sanitized, err := settlement.SanitizePayment(payment)
	if err != nil {
		return nil, err
	}
	return json.Marshal(storedPayment{
		ID:            sanitized.ID,
		Payer:         hex.EncodeToString(sanitized.Payer[:]),
		Merchant:      hex.EncodeToString(sanitized.Merchant[:]),
		Amount:        sanitized.Amount.String(),
		CreatedAt:     sanitized.CreatedAt,
		ReferenceHash: hex.EncodeToString(sanitized.ReferenceHash[:]),
		Status:        uint8(sanitized.Status),
		LockedRate:    sanitized.LockedRate.String(),
	})
}

func decodePayment(raw []byte) (*settlement.Payment, error) {
	var stored storedPayment
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode payment: %w", err)
	}
	payment := &settlement.Payment{
		ID:        stored.ID,
		CreatedAt: stored.CreatedAt,
		Status:    settlement.PaymentStatus(stored.Status),
	}
	if err := decodeAddress(stored.Payer, &payment.Payer); err != nil {
		return nil, fmt.Errorf("state: decode payment payer: %w", err)
	}
	if err := decodeAddress(stored.Merchant, &payment.Merchant); err != nil {
		return nil, fmt.Errorf("state: decode payment merchant: %w", err)
	}
	if err := decodeDigest(stored.ReferenceHash, &payment.ReferenceHash); err != nil {
		return nil, fmt.Errorf("state: decode payment reference hash: %w", err)
	}
	amount, err := decodeBigInt(stored.Amount)
	if err != nil {
		return nil, fmt.Errorf("state: decode payment amount: %w", err)
	}
	payment.Amount = amount
	rate, err := decodeBigInt(stored.LockedRate)
	if err != nil {
		return nil, fmt.Errorf("state: decode payment locked rate: %w", err)
	}
	payment.LockedRate = rate
	return settlement.SanitizePayment(payment)
}

func encodeMerchantInfo(info *settlement.MerchantInfo) ([]byte, error) {
	if info == nil {
		return nil, fmt.Errorf("state: nil merchant info")
	}
	return json.Marshal(storedMerchantInfo{
		BankNameHash:      hex.EncodeToString(info.BankNameHash[:]),
		AccountNameHash:   hex.EncodeToString(info.AccountNameHash[:]),
		AccountNumberHash: hex.EncodeToString(info.AccountNumberHash[:]),
		Registered:        info.Registered,
	})
}

func decodeMerchantInfo(raw []byte) (*settlement.MerchantInfo, error) {
	var stored storedMerchantInfo
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode merchant info: %w", err)
	}
	info := &settlement.MerchantInfo{Registered: stored.Registered}
	if err := decodeDigest(stored.BankNameHash, &info.BankNameHash); err != nil {
		return nil, fmt.Errorf("state: decode bank name hash: %w", err)
	}
	if err := decodeDigest(stored.AccountNameHash, &info.AccountNameHash); err != nil {
		return nil, fmt.Errorf("state: decode account name hash: %w", err)
	}
	if err := decodeDigest(stored.AccountNumberHash, &info.AccountNumberHash); err != nil {
		return nil, fmt.Errorf("state: decode account number hash: %w", err)
	}
	return info, nil
}

func encodeIDList(ids []uint64) ([]byte, error) {
	if ids == nil {
		ids = []uint64{}
	}
	return json.Marshal(ids)
}

func decodeIDList(raw []byte) ([]uint64, error) {
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("state: decode id list: %w", err)
	}
	return ids, nil
}

func encodeBalance(amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("state: balance must be non-negative")
	}
	return []byte(amount.String()), nil
}

func decodeBalance(raw []byte) (*big.Int, error) {
	return decodeBigInt(string(raw))
}

func decodeBigInt(s string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("state: invalid integer %q", s)
	}
	return value, nil
}

func decodeAddress(s string, out *[20]byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(out) {
		return fmt.Errorf("state: expected %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return nil
}

func decodeDigest(s string, out *[32]byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(out) {
		return fmt.Errorf("state: expected %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return nil
}
