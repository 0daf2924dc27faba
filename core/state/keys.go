package state

import "fmt"

// Key layout for the settlement ledger. Payment keys are zero-padded so that
// lexicographic iteration matches id order.
var (
	metaKey             = []byte("settlement/meta")
	paymentPrefix       = []byte("settlement/payment/")
	merchantPrefix      = []byte("settlement/merchant/")
	merchantIndexPrefix = []byte("settlement/index/merchant/")
	payerIndexPrefix    = []byte("settlement/index/payer/")
	balancePrefix       = []byte("token/balance/")
)

func paymentKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", paymentPrefix, id))
}

func merchantKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", merchantPrefix, addr))
}

func merchantIndexKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", merchantIndexPrefix, addr))
}

func payerIndexKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", payerIndexPrefix, addr))
}

func balanceKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", balancePrefix, addr))
}
