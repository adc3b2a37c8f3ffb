package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "12.34 USD", Format(1234, ""))
	assert.Equal(t, "0.05 EUR", Format(5, "eur"))
	assert.Equal(t, "-1.00 USD", Format(-100, "USD"))
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, int64(2997), LineTotal(999, 3))
	assert.Equal(t, int64(0), LineTotal(999, 0))
}

func TestFromCents(t *testing.T) {
	assert.Equal(t, "19.99", FromCents(1999).String())
}
