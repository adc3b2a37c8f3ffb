package checkout

import (
	"crypto/rand"
	"time"
)

// Ambiguous characters (0/O, 1/I) are left out.
const orderNumberAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// NewOrderNumber returns a human readable order number such as ORD-20260105-7KQ2MX.
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return "ORD-" + now.UTC().Format("20060102") + "-" + string(buf)
}
