// Package dhm implements the Diffie-Hellman-Merkle session and packet
// engine: a bespoke key-agreement handshake using a freshly sampled
// prime per session rather than a standardized group, framed into two
// fixed-size packets with SHA-224 integrity hashes.
package dhm

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/ssviatko/dhmrsa/entropy"
	"github.com/ssviatko/dhmrsa/exception"
	"github.com/ssviatko/dhmrsa/wire"
)

// Fixed sizes from the wire contract.
const (
	PubSize  = 272 // bytes; 2176-bit public modulus / exponentiation results
	PrivSize = 46  // bytes; 368-bit private exponents
	GuidSize = 12

	MillerRabinRounds = 50
	warmupBytes       = 32 * 256
)

// Packet type stamps, compared directly against the big-endian wire
// value. The source this was distilled from instead compared the wire
// value against ntohs(0xC1A5), which on a little-endian host reduces
// to comparing against 0xA5C1 -- the check happens to succeed only
// because the wire layout is byte-swapped to match, a coincidence of
// two wrongs. This implementation compares the decoded wire integer
// against the constant directly.
const (
	AlicePacktype uint16 = 0xC1A5
	BobPacktype   uint16 = 0xC2A5
)

var (
	ErrWrongPacketType = exception.New("unrecognized packet type")
	ErrHashFailure      = exception.New("packet hash check failure")
	ErrValue            = exception.New("value error")
)

// Packet field offsets. No alignment padding: every field is packed
// back to back in declaration order.
const (
	offPacktype = 0
	offHash     = offPacktype + 2
	offGuid     = offHash + wire.SHASize // 30
	offAliceG   = offGuid + GuidSize     // 42
	offAliceP   = offAliceG + 2          // 44
	offAliceA   = offAliceP + PubSize    // 316

	AlicePacketSize = offAliceA + PubSize // 588

	offBobB      = offGuid + GuidSize // 42
	BobPacketSize = offBobB + PubSize // 314
)

// Session owns the session's randomness handle, its 12-byte GUID, and
// the 272-byte slot that ends up holding the derived shared secret
// once either side has completed the handshake.
type Session struct {
	source *entropy.Source
	guid   [GuidSize]byte
	secret [PubSize]byte
}

// NewSession opens the randomness device at path (empty uses the
// platform default), warms it by discarding 8192 bytes, and samples a
// fresh session GUID.
func NewSession(devicePath string) (*Session, error) {
	src, err := entropy.Open(devicePath)
	if err != nil {
		return nil, err
	}
	s, err := newSessionFromSource(src)
	if err != nil {
		src.Close()
		return nil, err
	}
	return s, nil
}

// NewSessionFromSource builds a Session over an already-open entropy
// source, for callers (and tests) that want to inject their own.
func NewSessionFromSource(src *entropy.Source) (*Session, error) {
	return newSessionFromSource(src)
}

func newSessionFromSource(src *entropy.Source) (*Session, error) {
	if err := src.Discard(warmupBytes); err != nil {
		return nil, err
	}
	s := &Session{source: src}
	if err := src.Fill(s.guid[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the session's randomness source.
func (s *Session) Close() error {
	return s.source.Close()
}

// GUID returns the session's 12-byte identifier.
func (s *Session) GUID() [GuidSize]byte {
	return s.guid
}

// Secret returns the 272-byte derived shared secret. It is all-zero
// until GetBob or AliceSecret has populated it.
func (s *Session) Secret() [PubSize]byte {
	return s.secret
}

// AlicePrivateKey is Alice's 46-byte private exponent. It is never
// transmitted and is owned exclusively by the initiating side.
type AlicePrivateKey [PrivSize]byte

// AlicePacket is the fixed 588-byte packet the initiator sends:
// packtype(2) . hash(28) . guid(12) . g(2) . p(272) . A(272).
type AlicePacket struct {
	buf [AlicePacketSize]byte
}

func (p *AlicePacket) Bytes() []byte { return p.buf[:] }

func (p *AlicePacket) Packtype() uint16 { return wire.GetUint16BE(p.buf[offPacktype:]) }
func (p *AlicePacket) Hash() []byte     { return p.buf[offHash : offHash+wire.SHASize] }
func (p *AlicePacket) Guid() []byte     { return p.buf[offGuid : offGuid+GuidSize] }
func (p *AlicePacket) G() uint16        { return wire.GetUint16BE(p.buf[offAliceG:]) }
func (p *AlicePacket) P() *big.Int {
	return entropy.ImportBytes(p.buf[offAliceP : offAliceP+PubSize])
}
func (p *AlicePacket) A() *big.Int {
	return entropy.ImportBytes(p.buf[offAliceA : offAliceA+PubSize])
}

// ParseAlicePacket validates the length of buf and wraps it as an
// AlicePacket without interpreting any fields yet.
func ParseAlicePacket(buf []byte) (*AlicePacket, error) {
	if len(buf) != AlicePacketSize {
		return nil, ErrValue.Apply("alice packet wrong size")
	}
	p := new(AlicePacket)
	copy(p.buf[:], buf)
	return p, nil
}

func aliceHash(buf []byte) [wire.SHASize]byte {
	return wire.Sha224(buf[offGuid:AlicePacketSize])
}

// GetAlice builds a fresh Alice packet for session: samples p, forces
// its top and bottom bits, advances to the next probable prime if
// composite, chooses a generator of 3 or 5 from a random coin flip,
// samples Alice's private exponent, computes A = g^a mod p, and seals
// the packet with its SHA-224 hash.
func GetAlice(session *Session) (*AlicePacket, AlicePrivateKey, error) {
	var priv AlicePrivateKey
	p := new(AlicePacket)

	wire.PutUint16BE(p.buf[offPacktype:], AlicePacktype)
	copy(p.buf[offGuid:], session.guid[:])

	if err := session.source.Fill(p.buf[offAliceP : offAliceP+PubSize]); err != nil {
		return nil, priv, err
	}
	p.buf[offAliceP] |= 0x80
	p.buf[offAliceP+PubSize-1] |= 0x01

	pInt := entropy.ImportBytes(p.buf[offAliceP : offAliceP+PubSize])
	if !entropy.ProbablyPrime(pInt, MillerRabinRounds) {
		pInt = entropy.NextPrime(pInt, MillerRabinRounds)
	}
	copy(p.buf[offAliceP:offAliceP+PubSize], entropy.RightJustify(pInt, PubSize))

	var gSeed [4]byte
	if err := session.source.Fill(gSeed[:]); err != nil {
		return nil, priv, err
	}
	g := uint16(3)
	if binary.LittleEndian.Uint32(gSeed[:])&1 != 0 {
		g = 5
	}
	wire.PutUint16BE(p.buf[offAliceG:], g)

	if err := session.source.Fill(priv[:]); err != nil {
		return nil, priv, err
	}
	aInt := entropy.ImportBytes(priv[:])

	AInt := entropy.ModPow(big.NewInt(int64(g)), aInt, pInt)
	copy(p.buf[offAliceA:offAliceA+PubSize], entropy.RightJustify(AInt, PubSize))

	digest := aliceHash(p.buf[:])
	copy(p.buf[offHash:offHash+wire.SHASize], digest[:])

	return p, priv, nil
}

// BobPacket is the fixed 314-byte packet the responder sends back:
// packtype(2) . hash(28) . guid(12) . B(272).
type BobPacket struct {
	buf [BobPacketSize]byte
}

func (p *BobPacket) Bytes() []byte { return p.buf[:] }

func (p *BobPacket) Packtype() uint16 { return wire.GetUint16BE(p.buf[offPacktype:]) }
func (p *BobPacket) Hash() []byte     { return p.buf[offHash : offHash+wire.SHASize] }
func (p *BobPacket) Guid() []byte     { return p.buf[offGuid : offGuid+GuidSize] }
func (p *BobPacket) B() *big.Int {
	return entropy.ImportBytes(p.buf[offBobB : offBobB+PubSize])
}

// ParseBobPacket validates the length of buf and wraps it as a
// BobPacket without interpreting any fields yet.
func ParseBobPacket(buf []byte) (*BobPacket, error) {
	if len(buf) != BobPacketSize {
		return nil, ErrValue.Apply("bob packet wrong size")
	}
	p := new(BobPacket)
	copy(p.buf[:], buf)
	return p, nil
}

func bobHash(buf []byte) [wire.SHASize]byte {
	return wire.Sha224(buf[offGuid:BobPacketSize])
}

// GetBob validates the received Alice packet (packtype, then hash),
// then builds the responder's Bob packet: samples Bob's private
// exponent, computes B = g^b mod p, and computes the shared secret
// s = A^b mod p into session's secret slot before hashing and
// returning the packet.
func GetBob(session *Session, alice *AlicePacket) (*BobPacket, error) {
	if alice.Packtype() != AlicePacktype {
		return nil, ErrWrongPacketType
	}
	want := aliceHash(alice.buf[:])
	if !bytes.Equal(want[:], alice.Hash()) {
		return nil, ErrHashFailure
	}

	b := new(BobPacket)
	wire.PutUint16BE(b.buf[offPacktype:], BobPacktype)
	copy(session.guid[:], alice.Guid())
	copy(b.buf[offGuid:], alice.Guid())

	var bpriv [PrivSize]byte
	if err := session.source.Fill(bpriv[:]); err != nil {
		return nil, err
	}
	bInt := entropy.ImportBytes(bpriv[:])

	pInt := alice.P()
	gInt := big.NewInt(int64(alice.G()))
	AInt := alice.A()

	BInt := entropy.ModPow(gInt, bInt, pInt)
	copy(b.buf[offBobB:offBobB+PubSize], entropy.RightJustify(BInt, PubSize))

	secretInt := entropy.ModPow(AInt, bInt, pInt)
	copy(session.secret[:], entropy.RightJustify(secretInt, PubSize))

	digest := bobHash(b.buf[:])
	copy(b.buf[offHash:offHash+wire.SHASize], digest[:])

	return b, nil
}

// AliceSecret validates the received Bob packet and derives Alice's
// side of the shared secret s = B^a mod p into session's secret slot.
func AliceSecret(session *Session, alice *AlicePacket, bob *BobPacket, alicePriv AlicePrivateKey) error {
	if bob.Packtype() != BobPacktype {
		return ErrWrongPacketType
	}
	want := bobHash(bob.buf[:])
	if !bytes.Equal(want[:], bob.Hash()) {
		return ErrHashFailure
	}

	pInt := alice.P()
	BInt := bob.B()
	aInt := entropy.ImportBytes(alicePriv[:])

	secretInt := entropy.ModPow(BInt, aInt, pInt)
	copy(session.secret[:], entropy.RightJustify(secretInt, PubSize))
	return nil
}
