// File: internal/platform/crypto/generator.go
package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateNumericCode returns a uniformly random decimal code of exactly
// digits characters with no leading zero.
func GenerateNumericCode(digits int) (string, error) {
	if digits < 1 || digits > 18 {
		return "", fmt.Errorf("unsupported code length %d", digits)
	}
	low := int64(1)
	for i := 1; i < digits; i++ {
		low *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9*low))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()+low), nil
}

// GeneratePickupCode returns a six digit code in the range 100000-999999.
func GeneratePickupCode() (string, error) {
	return GenerateNumericCode(6)
}
