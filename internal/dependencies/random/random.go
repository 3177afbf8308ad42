// internal/dependencies/random/random.go
package random

import (
	"crypto/rand"
	"math/big"
)

// Random is the source of every random decision made by the hub: room codes,
// number targets, question draws and hangman words.
type Random interface {
	// Intn returns a value in [0, n). n <= 0 yields 0.
	Intn(n int) int

	// String returns a string of the given length drawn from alphabet.
	String(length int, alphabet string) string
}

// CryptoRandom implements Random with crypto/rand.
type CryptoRandom struct{}

func New() *CryptoRandom {
	return &CryptoRandom{}
}

func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func (r *CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || alphabet == "" {
		return ""
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(out)
}
