package rsakit

import (
	"bytes"
	cryptorand "crypto/rand"
	"errors"
	"testing"

	"github.com/ssviatko/dhmrsa/entropy"
)

func TestPrivateKeyFileRoundTrip(t *testing.T) {
	source := entropy.FromReader(cryptorand.Reader)
	key, err := GenerateKey(source, MinBits, 2)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	var buf bytes.Buffer
	if err := WritePrivateKeyFile(&buf, key); err != nil {
		t.Fatalf("WritePrivateKeyFile: %v", err)
	}

	got, err := ReadPrivateKeyFile(&buf)
	if err != nil {
		t.Fatalf("ReadPrivateKeyFile: %v", err)
	}

	if got.Bits != key.Bits {
		t.Errorf("Bits = %d, want %d", got.Bits, key.Bits)
	}
	if got.N.Cmp(key.N) != 0 {
		t.Error("N mismatch after round trip")
	}
	if got.E.Cmp(key.E) != 0 {
		t.Error("E mismatch after round trip")
	}
	if got.D.Cmp(key.D) != 0 {
		t.Error("D mismatch after round trip")
	}
	if got.P.Cmp(key.P) != 0 || got.Q.Cmp(key.Q) != 0 {
		t.Error("P or Q mismatch after round trip")
	}
	if got.Dp.Cmp(key.Dp) != 0 || got.Dq.Cmp(key.Dq) != 0 {
		t.Error("Dp or Dq mismatch after round trip")
	}
	if got.Qinv.Cmp(key.Qinv) != 0 {
		t.Error("Qinv mismatch after round trip")
	}
}

func TestPublicKeyFileRoundTrip(t *testing.T) {
	source := entropy.FromReader(cryptorand.Reader)
	key, err := GenerateKey(source, MinBits, 2)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := key.Public()

	var buf bytes.Buffer
	if err := WritePublicKeyFile(&buf, pub); err != nil {
		t.Fatalf("WritePublicKeyFile: %v", err)
	}

	got, err := ReadPublicKeyFile(&buf)
	if err != nil {
		t.Fatalf("ReadPublicKeyFile: %v", err)
	}
	if got.Bits != pub.Bits || got.N.Cmp(pub.N) != 0 || got.E.Cmp(pub.E) != 0 {
		t.Error("public keyfile round trip mismatch")
	}
}

func TestPrivateKeyFileRejectsUnknownTag(t *testing.T) {
	var buf bytes.Buffer
	if err := writeKeyItem(&buf, 0xEE, 32, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("writeKeyItem: %v", err)
	}
	if _, err := ReadPrivateKeyFile(&buf); err != ErrUnknownTag {
		t.Fatalf("err = %v, want ErrUnknownTag", err)
	}
}

func TestPrivateKeyFilePEMRoundTrip(t *testing.T) {
	source := entropy.FromReader(cryptorand.Reader)
	key, err := GenerateKey(source, MinBits, 2)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	var buf bytes.Buffer
	if err := WritePrivateKeyFilePEM(&buf, key); err != nil {
		t.Fatalf("WritePrivateKeyFilePEM: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("BEGIN PRIVATE KEY")) {
		t.Error("PEM output missing private key header")
	}

	got, err := ReadPrivateKeyFilePEM(&buf)
	if err != nil {
		t.Fatalf("ReadPrivateKeyFilePEM: %v", err)
	}
	if got.N.Cmp(key.N) != 0 || got.D.Cmp(key.D) != 0 {
		t.Error("PEM round trip mismatch")
	}
}

func TestDecodePEMRejectsNonPEMData(t *testing.T) {
	_, err := DecodePEM([]byte("not a pem block at all"))
	if !errors.Is(err, ErrKeyError) {
		t.Fatalf("err = %v, want ErrKeyError", err)
	}
}
