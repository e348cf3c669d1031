// Package rsakit implements the RSA toolkit: a multi-worker key
// generator built on math/big rather than crypto/rsa (so every
// structural constraint on p, q, e, and d is under this package's
// control), a TLV keyfile format, an optional PEM wrapper, and the
// block-oriented codec that encrypts, decrypts, signs, and verifies
// files against a fileinfo_header embedded in the first ciphertext
// block.
package rsakit

import (
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ssviatko/dhmrsa/entropy"
	"github.com/ssviatko/dhmrsa/exception"
	"github.com/ssviatko/dhmrsa/glog"
)

const (
	MinBits   = 768
	MaxBits   = 262144
	MaxWorkers = 48

	// MillerRabinRounds is the round count used for every probable-prime
	// test in key generation, matching the DHM engine's own choice.
	MillerRabinRounds = 50

	// publicExponentFloor is the point after which the first probable
	// prime becomes the candidate for e; next-prime(65536) is 65537.
	publicExponentFloor = 65536
)

var (
	ErrBitWidth    = exception.New("rsa bit width out of range")
	ErrWorkerCount = exception.New("rsa worker count out of range")
	ErrNoKeyFound  = exception.New("rsa key generation produced no key")
)

// PublicKey is the modulus and public exponent half of an RSA key pair.
type PublicKey struct {
	Bits int
	N    *big.Int
	E    *big.Int
}

// PrivateKey is a full RSA key pair together with the CRT auxiliary
// values used to accelerate decryption.
type PrivateKey struct {
	Bits int
	N    *big.Int
	E    *big.Int
	D    *big.Int
	P    *big.Int
	Q    *big.Int
	Dp   *big.Int
	Dq   *big.Int
	Qinv *big.Int
}

// Public returns the public half of k.
func (k *PrivateKey) Public() *PublicKey {
	return &PublicKey{Bits: k.Bits, N: k.N, E: k.E}
}

// GenerateKey races workers independent goroutines against each other,
// each repeatedly sampling candidate primes until one produces a
// structurally valid key. The first to finish wins; the losers notice
// a shared cancellation flag at the top of their next attempt and
// return without writing anything, and GenerateKey joins all of them
// before returning. This replaces the one-shot "bell" flag plus
// exit() the key generator this was modeled on uses to terminate
// the losing workers: instead of tearing down the process out from
// under them, every worker is allowed to notice cancellation and
// unwind on its own.
func GenerateKey(source *entropy.Source, bits int, workers int) (*PrivateKey, error) {
	if bits < MinBits || bits > MaxBits || bits%256 != 0 {
		return nil, ErrBitWidth
	}
	if workers < 1 || workers > MaxWorkers {
		return nil, ErrWorkerCount
	}

	var won atomic.Bool
	var result atomic.Pointer[keygenFind]
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		id := i
		go func() {
			defer wg.Done()
			find, err := keygenWorker(source, bits, id, &won)
			if err != nil {
				glog.Errorf("rsakit: keygen worker %d: %v", id, err)
				return
			}
			if find == nil {
				return // cancelled before this worker found anything
			}
			if won.CompareAndSwap(false, true) {
				result.Store(find)
			}
		}()
	}
	wg.Wait()

	find := result.Load()
	if find == nil {
		return nil, ErrNoKeyFound
	}
	if glog.V(glog.LV_KEYGEN) {
		glog.Infof("rsakit: key found (%d bits)", bits)
	}
	return &PrivateKey{
		Bits: bits,
		N:    find.n,
		E:    find.e,
		D:    find.d,
		P:    find.p,
		Q:    find.q,
		Dp:   find.dp,
		Dq:   find.dq,
		Qinv: find.qinv,
	}, nil
}

type keygenFind struct {
	p, q, n, e, d, dp, dq, qinv *big.Int
}

// keygenWorker repeatedly attempts to produce a key, checking the
// shared cancellation flag at the top of each attempt. It returns
// (nil, nil) if cancelled before success.
func keygenWorker(source *entropy.Source, bits int, id int, cancelled *atomic.Bool) (*keygenFind, error) {
	attempt := 0
	for {
		if cancelled.Load() {
			return nil, nil
		}
		attempt++
		if glog.V(glog.LV_WORKER) {
			glog.Infof("rsakit: worker %d: attempt %d", id, attempt)
		}
		find, err := keygenAttempt(source, bits)
		if err != nil {
			return nil, err
		}
		if find != nil {
			return find, nil
		}
		// candidate rejected; silently retry
	}
}

// keygenAttempt runs one full candidate generation. A nil, nil return
// means the candidate was rejected by one of the structural checks and
// the caller should simply try again.
func keygenAttempt(source *entropy.Source, bits int) (*keygenFind, error) {
	one := big.NewInt(1)
	pqBytes := (bits / 2) / 8

	pBuf := make([]byte, pqBytes)
	if err := source.Fill(pBuf); err != nil {
		return nil, err
	}
	pBuf[0] |= 0xc0
	pBuf[pqBytes-1] |= 0x01
	p := entropy.ImportBytes(pBuf)
	if !entropy.ProbablyPrime(p, MillerRabinRounds) {
		p = entropy.NextPrime(p, MillerRabinRounds)
	}

	qBuf := make([]byte, pqBytes)
	if err := source.Fill(qBuf); err != nil {
		return nil, err
	}
	qBuf[0] |= 0xc0
	qBuf[pqBytes-1] |= 0x01
	if qBuf[0]&0xf0 == pBuf[0]&0xf0 {
		qBuf[0] ^= 0x30
	}
	q := entropy.ImportBytes(qBuf)
	if !entropy.ProbablyPrime(q, MillerRabinRounds) {
		q = entropy.NextPrime(q, MillerRabinRounds)
	}

	p1 := new(big.Int).Sub(p, one)
	q1 := new(big.Int).Sub(q, one)

	if entropy.HasSmallFactor(p1) || entropy.HasSmallFactor(q1) {
		return nil, nil
	}

	n := new(big.Int).Mul(p, q)
	lambda := entropy.LCM(p1, q1)

	e := big.NewInt(publicExponentFloor)
	for {
		e = entropy.NextPrime(e, MillerRabinRounds)
		if entropy.GCD(e, lambda).Cmp(one) == 0 {
			break
		}
	}

	d, ok := entropy.ModInverse(e, lambda)
	if !ok {
		return nil, nil
	}
	if d.BitLen() < bits-4 {
		return nil, nil
	}

	dp := new(big.Int).Mod(d, p1)
	dq := new(big.Int).Mod(d, q1)
	qinv, ok := entropy.ModInverse(q, p)
	if !ok {
		return nil, nil
	}

	return &keygenFind{p: p, q: q, n: n, e: e, d: d, dp: dp, dq: dq, qinv: qinv}, nil
}
