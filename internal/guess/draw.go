package guess

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// Entropy is the input of a draw. Sequence is the last committed event
// sequence, so any state change in between alters the outcome.
type Entropy struct {
	Timestamp int64
	Sequence  uint64
	Caller    Address
}

// RandomDraw maps entropy to a target in [MinGuess, MaxGuess].
type RandomDraw interface {
	Draw(Entropy) int
}

// KeccakDraw hashes the entropy with keccak256 and reduces it modulo 101.
// The result is predictable by anyone who knows the inputs.
type KeccakDraw struct{}

func (KeccakDraw) Draw(e Entropy) int {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(e.Timestamp))
	binary.BigEndian.PutUint64(buf[8:], e.Sequence)

	h := sha3.NewLegacyKeccak256()
	h.Write(buf[:])
	h.Write([]byte(e.Caller))
	sum := h.Sum(nil)

	n := new(big.Int).SetBytes(sum)
	return int(n.Mod(n, big.NewInt(MaxGuess-MinGuess+1)).Int64()) + MinGuess
}

// FixedDraw always returns the same target.
type FixedDraw int

func (f FixedDraw) Draw(Entropy) int {
	return int(f)
}

// ValidGuess reports whether g is inside the guess range.
func ValidGuess(g int) bool {
	return g >= MinGuess && g <= MaxGuess
}
