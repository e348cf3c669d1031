package rsakit

import (
	cryptorand "crypto/rand"
	"math/big"
	"testing"

	"github.com/ssviatko/dhmrsa/entropy"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerateKeyStructuralInvariants(t *testing.T) {
	Convey("Given a freshly generated key at the minimum bit width", t, func() {
		source := entropy.FromReader(cryptorand.Reader)
		key, err := GenerateKey(source, MinBits, 2)
		So(err, ShouldBeNil)

		Convey("n equals p times q", func() {
			n := new(big.Int).Mul(key.P, key.Q)
			So(n.Cmp(key.N), ShouldEqual, 0)
		})

		Convey("p and q are distinct with different top nibbles", func() {
			So(key.P.Cmp(key.Q), ShouldNotEqual, 0)
			pBuf := entropy.RightJustify(key.P, MinBits/2/8)
			qBuf := entropy.RightJustify(key.Q, MinBits/2/8)
			So(pBuf[0]&0xc0, ShouldEqual, byte(0xc0))
			So(qBuf[0]&0xc0, ShouldEqual, byte(0xc0))
			So(pBuf[0]&0xf0, ShouldNotEqual, qBuf[0]&0xf0)
		})

		Convey("p-1 and q-1 have no small prime factor", func() {
			p1 := new(big.Int).Sub(key.P, big.NewInt(1))
			q1 := new(big.Int).Sub(key.Q, big.NewInt(1))
			So(entropy.HasSmallFactor(p1), ShouldBeFalse)
			So(entropy.HasSmallFactor(q1), ShouldBeFalse)
		})

		Convey("e and d are inverses modulo lcm(p-1, q-1)", func() {
			p1 := new(big.Int).Sub(key.P, big.NewInt(1))
			q1 := new(big.Int).Sub(key.Q, big.NewInt(1))
			lambda := entropy.LCM(p1, q1)
			prod := new(big.Int).Mul(key.E, key.D)
			So(prod.Mod(prod, lambda).Cmp(big.NewInt(1)), ShouldEqual, 0)
		})

		Convey("d has at least bits-4 bits", func() {
			So(key.D.BitLen(), ShouldBeGreaterThanOrEqualTo, MinBits-4)
		})

		Convey("the CRT auxiliary values satisfy their defining congruences", func() {
			p1 := new(big.Int).Sub(key.P, big.NewInt(1))
			q1 := new(big.Int).Sub(key.Q, big.NewInt(1))
			So(new(big.Int).Mod(key.D, p1).Cmp(key.Dp), ShouldEqual, 0)
			So(new(big.Int).Mod(key.D, q1).Cmp(key.Dq), ShouldEqual, 0)
			qinvq := new(big.Int).Mul(key.Qinv, key.Q)
			So(qinvq.Mod(qinvq, key.P).Cmp(big.NewInt(1)), ShouldEqual, 0)
		})

		Convey("raw RSA round-trips an arbitrary message through e then d", func() {
			m := big.NewInt(424242)
			c := entropy.ModPow(m, key.E, key.N)
			back := entropy.ModPow(c, key.D, key.N)
			So(back.Cmp(m), ShouldEqual, 0)
		})
	})
}

func TestGenerateKeyRejectsBadParameters(t *testing.T) {
	source := entropy.FromReader(cryptorand.Reader)

	Convey("Given a bit width below the floor", t, func() {
		_, err := GenerateKey(source, 512, 1)
		Convey("GenerateKey refuses it", func() {
			So(err, ShouldEqual, ErrBitWidth)
		})
	})

	Convey("Given a bit width not divisible by 256", t, func() {
		_, err := GenerateKey(source, 1000, 1)
		Convey("GenerateKey refuses it", func() {
			So(err, ShouldEqual, ErrBitWidth)
		})
	})

	Convey("Given zero workers", t, func() {
		_, err := GenerateKey(source, MinBits, 0)
		Convey("GenerateKey refuses it", func() {
			So(err, ShouldEqual, ErrWorkerCount)
		})
	})
}
