package dhm

import (
	"bytes"
	cryptorand "crypto/rand"
	"io"
	"testing"

	"github.com/ssviatko/dhmrsa/entropy"
)

func mustSession(t *testing.T, r io.Reader) *Session {
	t.Helper()
	s, err := NewSessionFromSource(entropy.FromReader(r))
	if err != nil {
		t.Fatalf("NewSessionFromSource: %v", err)
	}
	return s
}

func TestHandshakeSharedSecretMatches(t *testing.T) {
	aliceSession := mustSession(t, cryptorand.Reader)
	bobSession := mustSession(t, cryptorand.Reader)

	alicePacket, alicePriv, err := GetAlice(aliceSession)
	if err != nil {
		t.Fatalf("GetAlice: %v", err)
	}
	if alicePacket.Packtype() != AlicePacktype {
		t.Fatalf("packtype = %#04x, want %#04x", alicePacket.Packtype(), AlicePacktype)
	}
	if alicePacket.G() != 3 && alicePacket.G() != 5 {
		t.Fatalf("g = %d, want 3 or 5", alicePacket.G())
	}
	pBytes := alicePacket.Bytes()[offAliceP]
	if pBytes&0x80 == 0 {
		t.Fatalf("p[0] high bit not set")
	}
	lastP := alicePacket.Bytes()[offAliceA-1]
	if lastP&0x01 == 0 {
		t.Fatalf("p[271] low bit not set")
	}

	bobPacket, err := GetBob(bobSession, alicePacket)
	if err != nil {
		t.Fatalf("GetBob: %v", err)
	}
	if bobPacket.Packtype() != BobPacktype {
		t.Fatalf("packtype = %#04x, want %#04x", bobPacket.Packtype(), BobPacktype)
	}
	aliceGUID := aliceSession.GUID()
	if !bytes.Equal(bobPacket.Guid(), aliceGUID[:]) {
		t.Fatalf("bob guid does not match alice session guid")
	}

	if err := AliceSecret(aliceSession, alicePacket, bobPacket, alicePriv); err != nil {
		t.Fatalf("AliceSecret: %v", err)
	}

	aliceSecret := aliceSession.Secret()
	bobSecret := bobSession.Secret()
	if !bytes.Equal(aliceSecret[:], bobSecret[:]) {
		t.Fatalf("shared secrets differ")
	}
}

func TestTamperedHashIsRejected(t *testing.T) {
	aliceSession := mustSession(t, cryptorand.Reader)
	bobSession := mustSession(t, cryptorand.Reader)

	alicePacket, _, err := GetAlice(aliceSession)
	if err != nil {
		t.Fatalf("GetAlice: %v", err)
	}
	// flip a byte inside the hashed range
	alicePacket.buf[offGuid] ^= 0xFF

	if _, err := GetBob(bobSession, alicePacket); err != ErrHashFailure {
		t.Fatalf("GetBob returned %v, want ErrHashFailure", err)
	}
}

func TestWrongPacktypeIsRejected(t *testing.T) {
	aliceSession := mustSession(t, cryptorand.Reader)
	bobSession := mustSession(t, cryptorand.Reader)

	alicePacket, _, err := GetAlice(aliceSession)
	if err != nil {
		t.Fatalf("GetAlice: %v", err)
	}
	alicePacket.buf[0] = 0xFF
	alicePacket.buf[1] = 0xFF

	if _, err := GetBob(bobSession, alicePacket); err != ErrWrongPacketType {
		t.Fatalf("GetBob returned %v, want ErrWrongPacketType", err)
	}
}

func TestGeneratorSelectionIsDeterministic(t *testing.T) {
	prefixLen := 8192 + GuidSize + PubSize
	prefix := bytes.Repeat([]byte{0xAB}, prefixLen)
	trailer := bytes.Repeat([]byte{0xCD}, PrivSize)

	cases := []struct {
		word    []byte
		wantG   uint16
	}{
		{word: []byte{0x02, 0x00, 0x00, 0x00}, wantG: 3},
		{word: []byte{0x03, 0x00, 0x00, 0x00}, wantG: 5},
	}

	for _, c := range cases {
		reader := io.MultiReader(bytes.NewReader(prefix), bytes.NewReader(c.word), bytes.NewReader(trailer))
		session := mustSession(t, reader)
		packet, _, err := GetAlice(session)
		if err != nil {
			t.Fatalf("GetAlice: %v", err)
		}
		if got := packet.G(); got != c.wantG {
			t.Errorf("g = %d, want %d for word %x", got, c.wantG, c.word)
		}
	}
}

func TestPacketSizesMatchWireContract(t *testing.T) {
	if AlicePacketSize != 588 {
		t.Fatalf("AlicePacketSize = %d, want 588", AlicePacketSize)
	}
	if BobPacketSize != 314 {
		t.Fatalf("BobPacketSize = %d, want 314", BobPacketSize)
	}
}
