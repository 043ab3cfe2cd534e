package chunk

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	r := rand.New(rand.NewPCG(uint64(n), 7))
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(r.UintN(256))
	}
	return data
}

func TestSplitCountsAndRoundTrip(t *testing.T) {
	sizes := []int{1, PartSize - 1, PartSize, PartSize + 1, 3*PartSize + 17, 10 * PartSize}

	for _, size := range sizes {
		data := payload(size)
		parts := Split(data)

		require.Len(t, parts.Parts, (size+PartSize-1)/PartSize, "size %d", size)
		assert.Equal(t, Count(int64(size)), len(parts.Parts))
		assert.Equal(t, int64(size), parts.Size)
		assert.True(t, bytes.Equal(data, parts.Join()), "size %d: parts must concatenate to the payload", size)
		assert.Equal(t, Checksum(parts.Join()), parts.MD5)
		assert.True(t, parts.Verify())

		for i, part := range parts.Parts[:len(parts.Parts)-1] {
			assert.Len(t, part, PartSize, "part %d of size %d", i, size)
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	parts := Split(nil)
	assert.True(t, parts.Empty())
	assert.Empty(t, parts.MD5)
	assert.Zero(t, parts.Size)
	assert.True(t, parts.Verify())
	assert.Zero(t, Count(0))
}

func TestSplitPartsDoNotGrowIntoNeighbours(t *testing.T) {
	data := payload(2 * PartSize)
	parts := Split(data)

	first := append(parts.Parts[0], 0xFF)
	assert.Len(t, first, PartSize+1)
	assert.Equal(t, data[PartSize], parts.Parts[1][0], "appending to a part must not overwrite the next one")
}

func TestChecksumKnownValue(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Checksum(nil))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", Checksum([]byte("hello")))
}

func TestSplitReaderMatchesSplit(t *testing.T) {
	data := payload(5*PartSize + 123)

	fromReader, err := SplitReader(iotest.HalfReader(bytes.NewReader(data)))
	require.NoError(t, err)

	fromBytes := Split(data)
	assert.Equal(t, fromBytes.MD5, fromReader.MD5)
	assert.Equal(t, fromBytes.Size, fromReader.Size)
	require.Len(t, fromReader.Parts, len(fromBytes.Parts))
	for i := range fromBytes.Parts {
		assert.True(t, bytes.Equal(fromBytes.Parts[i], fromReader.Parts[i]), "part %d differs", i)
	}
}

func TestSplitReaderEmptyAndError(t *testing.T) {
	parts, err := SplitReader(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.True(t, parts.Empty())

	boom := errors.New("disk gone")
	_, err = SplitReader(iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
}

func TestVerifyDetectsTampering(t *testing.T) {
	parts := Split(payload(PartSize + 10))
	parts.Parts[1][0] ^= 0xFF
	assert.False(t, parts.Verify())
}
