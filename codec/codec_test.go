package codec

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allCodecs() []Codec {
	return []Codec{SnappyCodec{}, NewZstd(), LZ4Codec{}}
}

func TestCompress_Should_Round_Trip(t *testing.T) {
	payload := bytes.Repeat([]byte("floe_block_payload_"), 500)

	for _, c := range allCodecs() {
		compressed := c.Compress(payload)
		got, err := c.Decompress(compressed)
		require.NoError(t, err, c.Name())
		assert.Equal(t, payload, got, c.Name())
	}
}

func TestCompress_Should_Round_Trip_Empty_Payload(t *testing.T) {
	for _, c := range allCodecs() {
		compressed := c.Compress([]byte{})
		got, err := c.Decompress(compressed)
		require.NoError(t, err, c.Name())
		assert.Empty(t, got, c.Name())
	}
}

func TestCompress_Should_Round_Trip_Incompressible_Payload(t *testing.T) {
	payload := make([]byte, 4096)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	for _, c := range allCodecs() {
		compressed := c.Compress(payload)
		got, err := c.Decompress(compressed)
		require.NoError(t, err, c.Name())
		assert.Equal(t, payload, got, c.Name())
	}
}

func TestCompress_Should_Shrink_Repetitive_Payload(t *testing.T) {
	payload := bytes.Repeat([]byte{42}, 1<<16)

	for _, c := range allCodecs() {
		compressed := c.Compress(payload)
		assert.Less(t, len(compressed), len(payload), c.Name())
	}
}

func TestDecompress_Should_Fail_On_Garbage(t *testing.T) {
	garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02}

	for _, c := range allCodecs() {
		_, err := c.Decompress(garbage)
		assert.Error(t, err, c.Name())
	}
}
