package rsakit

import (
	"io"

	"github.com/ssviatko/dhmrsa/entropy"
	"github.com/ssviatko/dhmrsa/exception"
	"github.com/ssviatko/dhmrsa/wire"
)

// Key item type tags, in the order a private keyfile serializes them.
const (
	TagModulus  byte = 1
	TagPubExp   byte = 2
	TagPrivExp  byte = 3
	TagP        byte = 4
	TagQ        byte = 5
	TagDp       byte = 6
	TagDq       byte = 7
	TagQinv     byte = 8

	itemHeaderSize = 5 // 1-byte tag + 4-byte big-endian bit width
)

var ErrUnknownTag = exception.New("unrecognized key item tag")

func writeKeyItem(w io.Writer, tag byte, bitWidth uint32, value []byte) error {
	var hdr [itemHeaderSize]byte
	hdr[0] = tag
	wire.PutUint32BE(hdr[1:5], bitWidth)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(value)
	return err
}

func readKeyItem(r io.Reader) (tag byte, bitWidth uint32, value []byte, err error) {
	var hdr [itemHeaderSize]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return
	}
	tag = hdr[0]
	bitWidth = wire.GetUint32BE(hdr[1:5])
	value = make([]byte, (bitWidth+7)/8)
	_, err = io.ReadFull(r, value)
	return
}

// WritePrivateKeyFile serializes k as the full record sequence
// (modulus, pubexp, privexp, p, q, dp, dq, qinv).
func WritePrivateKeyFile(w io.Writer, k *PrivateKey) error {
	pqBits := uint32(k.Bits / 2)
	if err := writeKeyItem(w, TagModulus, uint32(k.Bits), entropy.RightJustify(k.N, k.Bits/8)); err != nil {
		return err
	}
	if err := writeKeyItem(w, TagPubExp, 32, entropy.RightJustify(k.E, 4)); err != nil {
		return err
	}
	if err := writeKeyItem(w, TagPrivExp, uint32(k.Bits), entropy.RightJustify(k.D, k.Bits/8)); err != nil {
		return err
	}
	if err := writeKeyItem(w, TagP, pqBits, entropy.RightJustify(k.P, int(pqBits/8))); err != nil {
		return err
	}
	if err := writeKeyItem(w, TagQ, pqBits, entropy.RightJustify(k.Q, int(pqBits/8))); err != nil {
		return err
	}
	if err := writeKeyItem(w, TagDp, pqBits, entropy.RightJustify(k.Dp, int(pqBits/8))); err != nil {
		return err
	}
	if err := writeKeyItem(w, TagDq, pqBits, entropy.RightJustify(k.Dq, int(pqBits/8))); err != nil {
		return err
	}
	if err := writeKeyItem(w, TagQinv, pqBits, entropy.RightJustify(k.Qinv, int(pqBits/8))); err != nil {
		return err
	}
	return nil
}

// WritePublicKeyFile serializes only the modulus and public exponent
// records, as a public keyfile carries no private material.
func WritePublicKeyFile(w io.Writer, k *PublicKey) error {
	if err := writeKeyItem(w, TagModulus, uint32(k.Bits), entropy.RightJustify(k.N, k.Bits/8)); err != nil {
		return err
	}
	return writeKeyItem(w, TagPubExp, 32, entropy.RightJustify(k.E, 4))
}

// ReadPrivateKeyFile parses a full keyfile record stream. Any subset
// of tags 1-8 present is accepted; ReadPublicKeyFile below is a thin
// convenience for the public-only case.
func ReadPrivateKeyFile(r io.Reader) (*PrivateKey, error) {
	k := &PrivateKey{}
	for {
		tag, bitWidth, value, err := readKeyItem(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		n := entropy.ImportBytes(value)
		switch tag {
		case TagModulus:
			k.N = n
			k.Bits = int(bitWidth)
		case TagPubExp:
			k.E = n
		case TagPrivExp:
			k.D = n
		case TagP:
			k.P = n
		case TagQ:
			k.Q = n
		case TagDp:
			k.Dp = n
		case TagDq:
			k.Dq = n
		case TagQinv:
			k.Qinv = n
		default:
			return nil, ErrUnknownTag
		}
	}
	return k, nil
}

// ReadPublicKeyFile parses a keyfile expected to carry only the
// modulus and public exponent records.
func ReadPublicKeyFile(r io.Reader) (*PublicKey, error) {
	priv, err := ReadPrivateKeyFile(r)
	if err != nil {
		return nil, err
	}
	return &PublicKey{Bits: priv.Bits, N: priv.N, E: priv.E}, nil
}
