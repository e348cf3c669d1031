// Package entropy is the single process-wide source of cryptographic
// random bytes, plus the arbitrary-precision integer helpers the DHM
// and RSA components build on: modular exponentiation, probable-prime
// testing, next-prime search, modular inverse, gcd, lcm, and the
// right-justified fixed-width byte encoding every wire field needs.
package entropy

import (
	"io"
	"math/big"
	"os"
	"sync"

	"github.com/ssviatko/dhmrsa/exception"
)

const DefaultDevice = "/dev/urandom"

var (
	ErrOpenRandom  = exception.New("unable to open random source")
	ErrReadRandom  = exception.New("short read from random source")
	ErrCloseRandom = exception.New("unable to close random source")
)

// Source is a mutex-serialized handle onto a randomness device. One
// Source is meant to be shared by every worker in a process; reads
// never interleave. It wraps an io.Reader rather than a concrete file
// so tests can inject a deterministic byte stream in place of a real
// device.
type Source struct {
	mu sync.Mutex
	r  io.Reader
	c  io.Closer
}

// Open acquires the randomness device at path. An empty path uses
// DefaultDevice.
func Open(path string) (*Source, error) {
	if path == "" {
		path = DefaultDevice
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrOpenRandom.Apply(err)
	}
	return &Source{r: f, c: f}, nil
}

// FromReader wraps an arbitrary io.Reader as a Source. There is
// nothing to close; Close is a no-op. Used by tests to drive the DHM
// and RSA components with deterministic byte streams.
func FromReader(r io.Reader) *Source {
	return &Source{r: r}
}

// Fill reads len(buf) cryptographically random bytes into buf,
// serialized against concurrent callers.
func (s *Source) Fill(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := io.ReadFull(s.r, buf)
	if err != nil || n != len(buf) {
		return ErrReadRandom.Apply(err)
	}
	return nil
}

// Discard reads and drops n bytes from the source; used to "warm up"
// a freshly opened device before it is trusted for key material.
func (s *Source) Discard(n int) error {
	buf := make([]byte, 4096)
	for n > 0 {
		chunk := len(buf)
		if n < chunk {
			chunk = n
		}
		if err := s.Fill(buf[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Close releases the underlying device, if any.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return nil
	}
	if err := s.c.Close(); err != nil {
		return ErrCloseRandom.Apply(err)
	}
	return nil
}

// RandomInt samples nbytes random bytes and imports them as an
// unsigned big.Int.
func (s *Source) RandomInt(nbytes int) (*big.Int, error) {
	buf := make([]byte, nbytes)
	if err := s.Fill(buf); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(buf), nil
}

// ModPow computes base^exp mod m.
func ModPow(base, exp, m *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, m)
}

// ProbablyPrime runs rounds of Miller-Rabin (via math/big's witness
// set, which already exceeds what plain Miller-Rabin needs, but the
// round count is still honored as the caller-facing knob).
func ProbablyPrime(n *big.Int, rounds int) bool {
	return n.ProbablyPrime(rounds)
}

// NextPrime returns the smallest probable prime strictly greater than
// n, tested with rounds rounds of Miller-Rabin. math/big has no
// built-in next-prime, so this walks odd candidates upward.
func NextPrime(n *big.Int, rounds int) *big.Int {
	one := big.NewInt(1)
	two := big.NewInt(2)
	c := new(big.Int).Add(n, one)
	if c.Bit(0) == 0 {
		c.Add(c, one)
	}
	for !c.ProbablyPrime(rounds) {
		c.Add(c, two)
	}
	return c
}

// ModInverse returns a^-1 mod m, and false if a has no inverse.
func ModInverse(a, m *big.Int) (*big.Int, bool) {
	inv := new(big.Int).ModInverse(a, m)
	if inv == nil {
		return nil, false
	}
	return inv, true
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b *big.Int) *big.Int {
	return new(big.Int).GCD(nil, nil, a, b)
}

// LCM returns the least common multiple of a and b.
func LCM(a, b *big.Int) *big.Int {
	g := GCD(a, b)
	if g.Sign() == 0 {
		return big.NewInt(0)
	}
	t := new(big.Int).Mul(a, b)
	return t.Div(t, g)
}

// RightJustify encodes n as a big-endian byte slice of exactly width
// bytes, left-padding with zeros. math/big.Int.Bytes strips leading
// zeros on export, so every fixed-width wire field in this toolkit
// MUST go through this instead of calling Bytes directly.
func RightJustify(n *big.Int, width int) []byte {
	raw := n.Bytes()
	out := make([]byte, width)
	if len(raw) > width {
		// value too large for the field: keep the low-order bytes,
		// matching a truncating store rather than panicking.
		copy(out, raw[len(raw)-width:])
		return out
	}
	copy(out[width-len(raw):], raw)
	return out
}

// ImportBytes parses a big-endian byte slice (as produced by
// RightJustify) back into an unsigned big.Int.
func ImportBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// SmallPrimesUpTo100 is the rejection-sampling set used when vetting
// p-1 and q-1 for small factors.
var SmallPrimesUpTo100 = []int64{
	3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61,
	67, 71, 73, 79, 83, 89, 97,
}

// HasSmallFactor reports whether n shares a factor with any prime in
// SmallPrimesUpTo100.
func HasSmallFactor(n *big.Int) bool {
	for _, p := range SmallPrimesUpTo100 {
		bp := big.NewInt(p)
		if GCD(n, bp).Cmp(big.NewInt(1)) != 0 {
			return true
		}
	}
	return false
}
