package compress

import (
	"bytes"
	"fmt"
	"io"

	"aitea-distribution/types"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm identifies the compression applied to a stored payload. The
// values are written into the payload header and must not change.
type Algorithm uint8

const (
	None Algorithm = 0
	Zlib Algorithm = 1
	Zstd Algorithm = 2
	LZ4  Algorithm = 3
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAlgorithm parses an algorithm name. The empty name is zlib.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "", "zlib":
		return Zlib, nil
	case "none":
		return None, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return None, fmt.Errorf("unknown compression algorithm: %q", name)
	}
}

// Every stored payload starts with a three byte header: the magic "AD" and
// the algorithm byte. The receiver refuses payloads whose algorithm differs
// from its own setting instead of deserializing garbage.
var magic = [2]byte{'A', 'D'}

const headerSize = 3

// Stage applies the same compression to every payload of a transfer manager.
type Stage struct {
	algorithm Algorithm
}

// NewStage builds the stage for the enabled flag and algorithm name. A
// disabled stage still frames payloads, with algorithm none.
func NewStage(enabled bool, algorithm string) (*Stage, error) {
	if !enabled {
		return &Stage{algorithm: None}, nil
	}
	a, err := ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	return &Stage{algorithm: a}, nil
}

func (s *Stage) Algorithm() Algorithm {
	return s.algorithm
}

func (s *Stage) Enabled() bool {
	return s.algorithm != None
}

// Compress frames and compresses data.
func (s *Stage) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(data))
	buf.Write(magic[:])
	buf.WriteByte(byte(s.algorithm))

	var err error
	switch s.algorithm {
	case None:
		_, err = buf.Write(data)
	case Zlib:
		err = compressZlib(&buf, data)
	case Zstd:
		buf.Write(zstdEncoder.EncodeAll(data, nil))
	case LZ4:
		err = compressLZ4(&buf, data)
	default:
		err = fmt.Errorf("unsupported algorithm %s", s.algorithm)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrCompressFailed, err)
	}
	return buf.Bytes(), nil
}

// Decompress checks the payload header against the stage algorithm and
// returns the original bytes.
func (s *Stage) Decompress(payload []byte) ([]byte, error) {
	if len(payload) < headerSize || payload[0] != magic[0] || payload[1] != magic[1] {
		return nil, types.Wrapf(types.ErrDecompressFailed, "payload has no compression header")
	}
	got := Algorithm(payload[2])
	if got != s.algorithm {
		return nil, types.Wrapf(types.ErrCompressionMismatch, "payload uses %s, local setting is %s", got, s.algorithm)
	}

	body := payload[headerSize:]
	var (
		out []byte
		err error
	)
	switch got {
	case None:
		out = body
	case Zlib:
		out, err = decompressZlib(body)
	case Zstd:
		out, err = zstdDecoder.DecodeAll(body, nil)
	case LZ4:
		out, err = io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
	default:
		err = fmt.Errorf("unsupported algorithm %s", got)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrDecompressFailed, err)
	}
	return out, nil
}

func compressZlib(w io.Writer, data []byte) error {
	zw := zlib.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	return zw.Close()
}

func decompressZlib(body []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func compressLZ4(w io.Writer, data []byte) error {
	lw := lz4.NewWriter(w)
	if _, err := lw.Write(data); err != nil {
		return err
	}
	return lw.Close()
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use through
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}
