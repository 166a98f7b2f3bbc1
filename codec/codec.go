package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec compresses and decompresses the column block payloads of the
// compressed relation. Implementations are safe for concurrent use.
type Codec interface {
	Name() string
	Compress(src []byte) []byte
	Decompress(src []byte) ([]byte, error)
}

type SnappyCodec struct{}

var _ Codec = SnappyCodec{}

func (SnappyCodec) Name() string {
	return "snappy"
}

func (SnappyCodec) Compress(src []byte) []byte {
	return snappy.Encode(nil, src)
}

func (SnappyCodec) Decompress(src []byte) ([]byte, error) {
	dst, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress: %w", err)
	}
	return dst, nil
}

type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ Codec = &ZstdCodec{}

func NewZstd() *ZstdCodec {
	// neither can fail without options
	enc, _ := zstd.NewWriter(nil)
	dec, _ := zstd.NewReader(nil)
	return &ZstdCodec{enc: enc, dec: dec}
}

func (z *ZstdCodec) Name() string {
	return "zstd"
}

func (z *ZstdCodec) Compress(src []byte) []byte {
	return z.enc.EncodeAll(src, nil)
}

func (z *ZstdCodec) Decompress(src []byte) ([]byte, error) {
	dst, err := z.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return dst, nil
}

type LZ4Codec struct{}

var _ Codec = LZ4Codec{}

func (LZ4Codec) Name() string {
	return "lz4"
}

func (LZ4Codec) Compress(src []byte) []byte {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (LZ4Codec) Decompress(src []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	dst, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return dst, nil
}
