package entropy

import (
	"math/big"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRightJustify(t *testing.T) {
	Convey("Given integers shorter than the target width", t, func() {
		n := big.NewInt(0x1234)

		Convey("RightJustify pads with leading zeros", func() {
			got := RightJustify(n, 8)
			So(len(got), ShouldEqual, 8)
			So(got, ShouldResemble, []byte{0, 0, 0, 0, 0, 0, 0x12, 0x34})
		})

		Convey("ImportBytes round-trips through RightJustify", func() {
			got := RightJustify(n, 8)
			So(ImportBytes(got).Cmp(n), ShouldEqual, 0)
		})
	})

	Convey("Given zero", t, func() {
		Convey("RightJustify yields an all-zero buffer, not an empty one", func() {
			got := RightJustify(big.NewInt(0), 4)
			So(got, ShouldResemble, []byte{0, 0, 0, 0})
		})
	})
}

func TestNextPrime(t *testing.T) {
	Convey("Given an even starting point", t, func() {
		n := big.NewInt(10)
		Convey("NextPrime returns the next odd probable prime", func() {
			p := NextPrime(n, 50)
			So(p.Int64(), ShouldEqual, int64(11))
		})
	})

	Convey("Given a prime itself", t, func() {
		n := big.NewInt(97)
		Convey("NextPrime advances past it, never returning n", func() {
			p := NextPrime(n, 50)
			So(p.Cmp(n), ShouldBeGreaterThan, 0)
			So(ProbablyPrime(p, 50), ShouldBeTrue)
		})
	})
}

func TestModInverseAndLCM(t *testing.T) {
	Convey("Given lcm(6, 4)", t, func() {
		got := LCM(big.NewInt(6), big.NewInt(4))
		Convey("the result is 12", func() {
			So(got.Int64(), ShouldEqual, int64(12))
		})
	})

	Convey("Given a modular inverse that exists", t, func() {
		inv, ok := ModInverse(big.NewInt(3), big.NewInt(11))
		Convey("3*inv mod 11 == 1", func() {
			So(ok, ShouldBeTrue)
			So(new(big.Int).Mod(new(big.Int).Mul(big.NewInt(3), inv), big.NewInt(11)).Int64(), ShouldEqual, int64(1))
		})
	})
}

func TestHasSmallFactor(t *testing.T) {
	Convey("Given 101 (prime, > 100)", t, func() {
		Convey("it has no factor in the rejection set", func() {
			So(HasSmallFactor(big.NewInt(101)), ShouldBeFalse)
		})
	})

	Convey("Given 99 = 9*11", t, func() {
		Convey("it shares the factor 3", func() {
			So(HasSmallFactor(big.NewInt(99)), ShouldBeTrue)
		})
	})
}
