// Package chunk splits upload payloads into fixed-size ordered parts and
// records an MD5 checksum over the whole payload.
package chunk

import (
	"bytes"
	"crypto/md5" //nolint:gosec // MD5 is the checksum the upload protocol expects, not a security primitive
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// PartSize is the size of every part except possibly the last one.
const PartSize = 32 * 1024

// Parts is a payload split for upload. Parts[i] covers bytes
// [i*PartSize, min((i+1)*PartSize, Size)).
type Parts struct {
	Parts [][]byte
	Size  int64
	MD5   string
}

// Split cuts data into PartSize parts. An empty payload yields empty Parts.
// The parts alias data, so callers must not modify data afterwards.
func Split(data []byte) Parts {
	if len(data) == 0 {
		return Parts{}
	}

	parts := make([][]byte, 0, Count(int64(len(data))))
	for offset := 0; offset < len(data); offset += PartSize {
		end := min(offset+PartSize, len(data))
		parts = append(parts, data[offset:end:end])
	}

	return Parts{
		Parts: parts,
		Size:  int64(len(data)),
		MD5:   Checksum(data),
	}
}

// SplitReader reads r to EOF, splitting as it goes. The checksum is computed
// incrementally so the payload is never held twice.
func SplitReader(r io.Reader) (Parts, error) {
	hash := md5.New() //nolint:gosec // see package import
	var result Parts

	for {
		buf := make([]byte, PartSize)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			part := buf[:n:n]
			hash.Write(part)
			result.Parts = append(result.Parts, part)
			result.Size += int64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return Parts{}, fmt.Errorf("failed to read payload part %d: %w", len(result.Parts), err)
		}
	}

	if result.Size == 0 {
		return Parts{}, nil
	}
	result.MD5 = hex.EncodeToString(hash.Sum(nil))
	return result, nil
}

// Count returns the number of parts a payload of size bytes splits into.
func Count(size int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + PartSize - 1) / PartSize)
}

// Checksum returns the lowercase hex MD5 of data.
func Checksum(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // see package import
	return hex.EncodeToString(sum[:])
}

// Empty reports whether there is nothing to upload.
func (p Parts) Empty() bool {
	return len(p.Parts) == 0
}

// Join concatenates the parts back into the original payload.
func (p Parts) Join() []byte {
	return bytes.Join(p.Parts, nil)
}

// Verify recomputes the checksum over the joined parts and compares it to
// the recorded one.
func (p Parts) Verify() bool {
	if p.Empty() {
		return p.MD5 == "" && p.Size == 0
	}
	joined := p.Join()
	return int64(len(joined)) == p.Size && Checksum(joined) == p.MD5
}
