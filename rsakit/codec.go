package rsakit

import (
	"bytes"
	"crypto/sha512"
	"io"
	"math/big"
	"sync"

	"github.com/ssviatko/dhmrsa/entropy"
	"github.com/ssviatko/dhmrsa/exception"
	"github.com/ssviatko/dhmrsa/glog"
	"github.com/ssviatko/dhmrsa/wire"
)

// Block layout constants. Every block starts with a zeroed byte
// followed by 7 bytes of random PKCS#1-style padding; every block also
// leaves its last 4 bytes untouched by any payload write, so Padding
// (the front 8 plus the trailing 4) is 12 bytes total even though the
// payload region itself always begins at PayloadOffset.
const (
	PayloadOffset      = 8
	Padding            = 12
	FileInfoHeaderSize = 33

	sigDigestOffset = 8
	sigTimeOffset   = 72
	sigLatOffset    = 80
	sigLongOffset   = 84
	SignatureRecordSize = 88
)

var (
	ErrKeyError      = exception.New("wrong key file or damaged key")
	ErrCrcMismatch   = exception.New("output crc does not match embedded crc")
	ErrVerifyFailed  = exception.New("verify failed")
	ErrBlockMultiple = exception.New("input file must be a multiple of block size to decrypt")
	ErrEmptyInput    = exception.New("input file has zero length")
)

// BlockSize returns the block size in bytes for a key of bits width.
func BlockSize(bits int) int { return bits / 8 }

// BlockCapacity returns the subsequent-block payload capacity.
func BlockCapacity(bits int) int { return BlockSize(bits) - Padding }

// FirstBlockCapacity returns the first-block payload capacity, which
// is smaller than BlockCapacity by the size of the fileinfo_header
// sharing its block.
func FirstBlockCapacity(bits int) int { return BlockCapacity(bits) - FileInfoHeaderSize }

// GeoLocation is the latitude/longitude pair embedded in fileinfo
// headers and signature records.
type GeoLocation struct {
	Latitude  float32
	Longitude float32
}

// FileInfoHeader is the 33-byte record embedded at offset 8 of the
// first ciphertext block of an encrypted file.
type FileInfoHeader struct {
	Flags     byte
	Size      uint32
	SizeXor   uint32
	Crc       uint32
	CrcXor    uint32
	Time      int64
	Latitude  float32
	Longitude float32
}

const flagSigned = 0x80

func (h *FileInfoHeader) marshal(buf []byte) {
	buf[0] = h.Flags
	wire.PutUint32BE(buf[1:5], h.Size)
	wire.PutUint32BE(buf[5:9], h.SizeXor)
	wire.PutUint32BE(buf[9:13], h.Crc)
	wire.PutUint32BE(buf[13:17], h.CrcXor)
	wire.PutInt64LE(buf[17:25], h.Time)
	wire.PutFloat32LE(buf[25:29], h.Latitude)
	wire.PutFloat32LE(buf[29:33], h.Longitude)
}

func parseFileInfoHeader(buf []byte) FileInfoHeader {
	return FileInfoHeader{
		Flags:     buf[0],
		Size:      wire.GetUint32BE(buf[1:5]),
		SizeXor:   wire.GetUint32BE(buf[5:9]),
		Crc:       wire.GetUint32BE(buf[9:13]),
		CrcXor:    wire.GetUint32BE(buf[13:17]),
		Time:      wire.GetInt64LE(buf[17:25]),
		Latitude:  wire.GetFloat32LE(buf[25:29]),
		Longitude: wire.GetFloat32LE(buf[29:33]),
	}
}

// readPayload fills buf from r and reports how many bytes were
// actually available before EOF, distinguishing a full read from a
// short or empty one without treating either as an error.
func readPayload(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	switch err {
	case nil, io.EOF, io.ErrUnexpectedEOF:
		return n, nil
	default:
		return n, err
	}
}

// Encrypt reads all of in (which must support Seek so its CRC-32 can
// be computed before the block loop re-reads it from the start, the
// way the original utility re-opens its input file), and writes the
// block-framed ciphertext to out.
func Encrypt(source *entropy.Source, pub *PublicKey, in io.ReadSeeker, out io.Writer, geo GeoLocation, now int64) error {
	crc := wire.NewCRC32()
	length, err := io.Copy(crc, in)
	if err != nil {
		return err
	}
	if length == 0 {
		return ErrEmptyInput
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return err
	}

	bits := pub.Bits
	blockSize := BlockSize(bits)
	capacity := BlockCapacity(bits)
	firstCap := FirstBlockCapacity(bits)

	buf := make([]byte, blockSize)
	if err := source.Fill(buf); err != nil {
		return err
	}
	buf[0] = 0

	var flagByte [1]byte
	if err := source.Fill(flagByte[:]); err != nil {
		return err
	}
	size := uint32(length)
	header := FileInfoHeader{
		Flags:     flagByte[0] &^ flagSigned,
		Size:      size,
		SizeXor:   size ^ 0xFFFFFFFF,
		Crc:       crc.Sum32(),
		CrcXor:    crc.Sum32() ^ 0xFFFFFFFF,
		Time:      now,
		Latitude:  geo.Latitude,
		Longitude: geo.Longitude,
	}
	header.marshal(buf[PayloadOffset : PayloadOffset+FileInfoHeaderSize])

	n, err := readPayload(in, buf[PayloadOffset+FileInfoHeaderSize:PayloadOffset+FileInfoHeaderSize+firstCap])
	if err != nil {
		return err
	}
	if err := encryptBlock(pub, buf, out); err != nil {
		return err
	}
	if n < firstCap {
		return nil
	}

	for {
		if err := source.Fill(buf); err != nil {
			return err
		}
		buf[0] = 0
		n, err := readPayload(in, buf[PayloadOffset:PayloadOffset+capacity])
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := encryptBlock(pub, buf, out); err != nil {
			return err
		}
		if n < capacity {
			return nil
		}
	}
}

func encryptBlock(pub *PublicKey, block []byte, out io.Writer) error {
	m := entropy.ImportBytes(block)
	c := entropy.ModPow(m, pub.E, pub.N)
	_, err := out.Write(entropy.RightJustify(c, len(block)))
	return err
}

// decryptWorker owns one block's worth of scratch and the
// condition-variable handshake the orchestrator uses to hand it a
// ciphertext block and wait for the corresponding plaintext.
type decryptWorker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	sigflag bool
	runflag bool
	cipher  []byte
	plain   []byte
}

func newDecryptWorker(blockSize int) *decryptWorker {
	w := &decryptWorker{
		runflag: true,
		cipher:  make([]byte, blockSize),
		plain:   make([]byte, blockSize),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *decryptWorker) signal() {
	w.mu.Lock()
	w.sigflag = true
	w.mu.Unlock()
	w.cond.Signal()
}

func (w *decryptWorker) shutdown() {
	w.mu.Lock()
	w.runflag = false
	w.mu.Unlock()
	w.cond.Signal()
}

func (w *decryptWorker) run(priv *PrivateKey, useCRT bool, id int, tally *tallyGroup, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		w.mu.Lock()
		for !w.sigflag && w.runflag {
			w.cond.Wait()
		}
		if !w.runflag {
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		decryptBlock(priv, useCRT, w.cipher, w.plain)
		if glog.V(glog.LV_BLOCK) {
			glog.Infof("rsakit: decrypt worker %d finished a block", id)
		}

		w.mu.Lock()
		w.sigflag = false
		w.mu.Unlock()
		tally.bump()
	}
}

func decryptBlock(priv *PrivateKey, useCRT bool, cipher, plain []byte) {
	c := entropy.ImportBytes(cipher)
	var m *big.Int
	if !useCRT {
		m = entropy.ModPow(c, priv.D, priv.N)
	} else {
		m1 := entropy.ModPow(c, priv.Dp, priv.P)
		m2 := entropy.ModPow(c, priv.Dq, priv.Q)
		h := new(big.Int).Sub(m1, m2)
		h.Mul(h, priv.Qinv)
		h.Mod(h, priv.P)
		h.Mul(h, priv.Q)
		m = new(big.Int).Add(m2, h)
	}
	copy(plain, entropy.RightJustify(m, len(cipher)))
}

// tallyGroup is the orchestrator's global "how many workers in this
// batch have finished" counter.
type tallyGroup struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func newTallyGroup() *tallyGroup {
	t := &tallyGroup{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *tallyGroup) reset() {
	t.mu.Lock()
	t.count = 0
	t.mu.Unlock()
}

func (t *tallyGroup) bump() {
	t.mu.Lock()
	t.count++
	t.cond.Signal()
	t.mu.Unlock()
}

func (t *tallyGroup) waitFor(n int) {
	t.mu.Lock()
	for t.count < n {
		t.cond.Wait()
	}
	t.mu.Unlock()
}

// Decrypt fans ciphertext blocks out to workers workers, CRT-accelerated
// unless useCRT is false, and reassembles plaintext in ascending block
// order regardless of which worker finished first. It returns the
// first block's fileinfo header on success.
func Decrypt(priv *PrivateKey, useCRT bool, workers int, in io.Reader, out io.Writer) (*FileInfoHeader, error) {
	if workers < 1 {
		workers = 1
	}
	bits := priv.Bits
	blockSize := BlockSize(bits)
	capacity := BlockCapacity(bits)
	firstCap := FirstBlockCapacity(bits)

	ws := make([]*decryptWorker, workers)
	tally := newTallyGroup()
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range ws {
		ws[i] = newDecryptWorker(blockSize)
		go ws[i].run(priv, useCRT, i, tally, &wg)
	}
	defer func() {
		for _, w := range ws {
			w.shutdown()
		}
		wg.Wait()
	}()

	var header FileInfoHeader
	var bytesWritten uint32
	blockCtr := 0
	outCrc := wire.NewCRC32()

	for {
		tally.reset()
		batch := 0
		for i := 0; i < workers; i++ {
			n, err := io.ReadFull(in, ws[i].cipher)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, ErrBlockMultiple.Apply(err)
			}
			_ = n
			blockCtr++
			ws[i].signal()
			batch++
		}
		if batch == 0 {
			break
		}
		tally.waitFor(batch)

		for i := 0; i < batch; i++ {
			plain := ws[i].plain
			idx := blockCtr - batch + i + 1
			if idx == 1 {
				header = parseFileInfoHeader(plain[PayloadOffset : PayloadOffset+FileInfoHeaderSize])
				if header.Size != header.SizeXor^0xFFFFFFFF || header.Crc != header.CrcXor^0xFFFFFFFF {
					return nil, ErrKeyError
				}
				expect := firstCap
				if int(header.Size) < firstCap {
					expect = int(header.Size)
				}
				chunk := plain[PayloadOffset+FileInfoHeaderSize : PayloadOffset+FileInfoHeaderSize+expect]
				if _, err := out.Write(chunk); err != nil {
					return nil, err
				}
				outCrc.Write(chunk)
				bytesWritten += uint32(expect)
			} else {
				if bytesWritten == header.Size {
					return nil, ErrBlockMultiple
				}
				remaining := header.Size - bytesWritten
				expect := capacity
				if int(remaining) < capacity {
					expect = int(remaining)
				}
				chunk := plain[PayloadOffset : PayloadOffset+expect]
				if _, err := out.Write(chunk); err != nil {
					return nil, err
				}
				outCrc.Write(chunk)
				bytesWritten += uint32(expect)
			}
		}
		if bytesWritten == header.Size {
			trailing := make([]byte, blockSize)
			n, err := io.ReadFull(in, trailing)
			if err != io.EOF || n != 0 {
				return nil, ErrBlockMultiple
			}
			break
		}
	}

	if outCrc.Sum32() != header.Crc {
		return &header, ErrCrcMismatch
	}
	return &header, nil
}

// Sign computes the SHA-512 digest of in, embeds it (plus the current
// time and geolocation) in a single random-padded block, and encrypts
// that block with the private exponent: a raw textbook-RSA signature,
// not RSA-PSS.
func Sign(priv *PrivateKey, source *entropy.Source, in io.Reader, geo GeoLocation, now int64) ([]byte, error) {
	digest := sha512.New()
	if _, err := io.Copy(digest, in); err != nil {
		return nil, err
	}
	sum := digest.Sum(nil)

	blockSize := BlockSize(priv.Bits)
	buf := make([]byte, blockSize)
	if err := source.Fill(buf); err != nil {
		return nil, err
	}
	buf[0] = 0
	copy(buf[sigDigestOffset:sigDigestOffset+sha512.Size], sum)
	wire.PutInt64LE(buf[sigTimeOffset:sigTimeOffset+8], now)
	wire.PutFloat32LE(buf[sigLatOffset:sigLatOffset+4], geo.Latitude)
	wire.PutFloat32LE(buf[sigLongOffset:sigLongOffset+4], geo.Longitude)

	m := entropy.ImportBytes(buf)
	s := entropy.ModPow(m, priv.D, priv.N)
	return entropy.RightJustify(s, blockSize), nil
}

// Verify decrypts sig with the public exponent and compares the
// embedded SHA-512 digest against one freshly computed over in.
func Verify(pub *PublicKey, in io.Reader, sig []byte) (ok bool, geo GeoLocation, signedAt int64, err error) {
	blockSize := BlockSize(pub.Bits)
	if len(sig) != blockSize {
		return false, GeoLocation{}, 0, ErrVerifyFailed.Apply("signature block size mismatch")
	}

	s := entropy.ImportBytes(sig)
	m := entropy.ModPow(s, pub.E, pub.N)
	buf := entropy.RightJustify(m, blockSize)

	embedded := buf[sigDigestOffset : sigDigestOffset+sha512.Size]
	signedAt = wire.GetInt64LE(buf[sigTimeOffset : sigTimeOffset+8])
	geo.Latitude = wire.GetFloat32LE(buf[sigLatOffset : sigLatOffset+4])
	geo.Longitude = wire.GetFloat32LE(buf[sigLongOffset : sigLongOffset+4])

	digest := sha512.New()
	if _, err := io.Copy(digest, in); err != nil {
		return false, geo, signedAt, err
	}
	want := digest.Sum(nil)

	if !bytes.Equal(embedded, want) {
		return false, geo, signedAt, ErrVerifyFailed
	}
	return true, geo, signedAt, nil
}
