package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnitsPerMajor is the gateway's fixed subunit factor (paise per rupee, cents per dollar).
const minorUnitsPerMajor = 100

var hundred = decimal.NewFromInt(minorUnitsPerMajor)

// ToMinorUnits converts a major-unit amount (250.00) to the gateway's integer subunits (25000).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts gateway subunits back to a major-unit amount.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).DivRound(hundred, 2)
}

// IdempotencyKey identifies one logical checkout for an invoice.
type IdempotencyKey string

// NewIdempotencyKey derives a key from the buyer and invoice identity.
// Fields are length-prefixed before hashing so distinct tuples never share a key.
func NewIdempotencyKey(buyerEmail, serie string, number int64) IdempotencyKey {
	h := sha256.New()
	for _, field := range []string{strings.ToLower(strings.TrimSpace(buyerEmail)), serie, strconv.FormatInt(number, 10)} {
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(len(field)))
		h.Write(size[:])
		h.Write([]byte(field))
	}
	return IdempotencyKey(hex.EncodeToString(h.Sum(nil)))
}

func (k IdempotencyKey) String() string {
	return string(k)
}
