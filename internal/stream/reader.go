package stream

import (
	"errors"
	"io"
)

// DefaultBufferSize is the largest chunk a Reader returns.
const DefaultBufferSize = 32 * 1024

// maxConsecutiveEmptyReads is how many (0, nil) reads Next tolerates before
// giving up with io.ErrNoProgress.
const maxConsecutiveEmptyReads = 100

// Reader splits a body into chunks, one per successful Read call.
type Reader struct {
	r   io.Reader
	buf []byte
}

// NewReader creates a Reader over r. A non-positive size uses DefaultBufferSize.
func NewReader(r io.Reader, size int) *Reader {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Reader{r: r, buf: make([]byte, size)}
}

// Next returns the next chunk. The returned slice is a copy the caller owns.
// It returns io.EOF once the body is exhausted; data delivered together with
// io.EOF is returned first and io.EOF on the following call. A body that
// keeps returning neither data nor an error fails with io.ErrNoProgress.
func (r *Reader) Next() ([]byte, error) {
	for range maxConsecutiveEmptyReads {
		n, err := r.r.Read(r.buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, r.buf[:n])
			if err != nil && !errors.Is(err, io.EOF) {
				return chunk, err
			}
			if errors.Is(err, io.EOF) {
				r.r = eofReader{}
			}
			return chunk, nil
		}
		if err != nil {
			return nil, err
		}
	}
	return nil, io.ErrNoProgress
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
