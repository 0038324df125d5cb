package stream

import (
	"errors"
	"mime"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder converts raw body chunks to text.
type Decoder interface {
	// Decode converts one chunk.
	Decode(chunk []byte) (string, error)

	// Flush returns text for bytes still held back when the body ends.
	Flush() (string, error)
}

// EncodingFor returns the text encoding announced by a Content-Type header.
// A missing, malformed or unknown charset falls back to UTF-8.
func EncodingFor(contentType string) encoding.Encoding {
	if contentType == "" {
		return unicode.UTF8
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return unicode.UTF8
	}
	label := strings.TrimSpace(params["charset"])
	if label == "" {
		return unicode.UTF8
	}
	enc, _ := charset.Lookup(label)
	if enc == nil {
		return unicode.UTF8
	}
	return enc
}

// chunkDecoder decodes each chunk independently.
type chunkDecoder struct {
	t transform.Transformer
}

// NewChunkDecoder returns a Decoder that treats every chunk as a complete
// byte sequence. Incomplete characters at chunk edges become U+FFFD.
// A nil encoding means UTF-8.
func NewChunkDecoder(enc encoding.Encoding) Decoder {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &chunkDecoder{t: enc.NewDecoder()}
}

func (d *chunkDecoder) Decode(chunk []byte) (string, error) {
	d.t.Reset()
	out, _, err := transformBytes(d.t, chunk, true)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (d *chunkDecoder) Flush() (string, error) {
	return "", nil
}

// streamDecoder keeps undecodable trailing bytes until more input arrives.
type streamDecoder struct {
	t       transform.Transformer
	pending []byte
}

// NewStreamDecoder returns a stateful Decoder for one body.
// A nil encoding means UTF-8.
func NewStreamDecoder(enc encoding.Encoding) Decoder {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &streamDecoder{t: enc.NewDecoder()}
}

func (d *streamDecoder) Decode(chunk []byte) (string, error) {
	src := append(d.pending, chunk...)
	out, n, err := transformBytes(d.t, src, false)
	if err != nil {
		return "", err
	}
	d.pending = append([]byte(nil), src[n:]...)
	return string(out), nil
}

func (d *streamDecoder) Flush() (string, error) {
	src := d.pending
	d.pending = nil
	if len(src) == 0 {
		d.t.Reset()
		return "", nil
	}
	out, _, err := transformBytes(d.t, src, true)
	d.t.Reset()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// transformBytes runs t over src, growing the destination as needed.
// When atEOF is false, a trailing incomplete sequence is left unconsumed and
// the number of consumed bytes is returned.
func transformBytes(t transform.Transformer, src []byte, atEOF bool) ([]byte, int, error) {
	dst := make([]byte, 2*len(src)+8)
	var out []byte
	consumed := 0

	for {
		nDst, nSrc, err := t.Transform(dst, src[consumed:], atEOF)
		out = append(out, dst[:nDst]...)
		consumed += nSrc

		switch {
		case err == nil:
			return out, consumed, nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		case errors.Is(err, transform.ErrShortSrc) && !atEOF:
			return out, consumed, nil
		default:
			return out, consumed, err
		}
	}
}
