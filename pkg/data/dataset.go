package data

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Format identifies how a corpus file is encoded on disk
type Format string

const (
	FormatPlain Format = "plain"
	FormatZstd  Format = "zstd"
	FormatLZ4   Format = "lz4"
)

// Frame magic numbers, little-endian as they appear on disk
var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Corpus streams the characters of a training text in order.
// Compressed input is decoded transparently, and every decoded byte
// feeds a BLAKE3 hash so a run can be tied to the exact text it saw.
type Corpus struct {
	reader *bufio.Reader
	hasher *blake3.Hasher
	format Format
	runes  int64
	closer func() error
}

// Open opens the corpus file at path
func Open(path string) (*Corpus, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	corpus, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	decoderClose := corpus.closer
	corpus.closer = func() error {
		decoderClose()
		return file.Close()
	}
	return corpus, nil
}

// NewReader wraps r, detecting zstd and lz4 frames by their magic number
func NewReader(r io.Reader) (*Corpus, error) {
	raw := bufio.NewReader(r)
	format := detectFormat(raw)

	var decoded io.Reader
	closer := func() error { return nil }
	switch format {
	case FormatZstd:
		decoder, err := zstd.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		decoded = decoder
		closer = func() error {
			decoder.Close()
			return nil
		}
	case FormatLZ4:
		decoded = lz4.NewReader(raw)
	default:
		decoded = raw
	}

	hasher := blake3.New()
	return &Corpus{
		reader: bufio.NewReader(io.TeeReader(decoded, hasher)),
		hasher: hasher,
		format: format,
		closer: closer,
	}, nil
}

func detectFormat(r *bufio.Reader) Format {
	// Short or unreadable input is treated as plain text; the error
	// surfaces on the first read.
	head, _ := r.Peek(4)
	switch {
	case bytes.Equal(head, zstdMagic):
		return FormatZstd
	case bytes.Equal(head, lz4Magic):
		return FormatLZ4
	default:
		return FormatPlain
	}
}

// ReadRune returns the next character of the corpus, or io.EOF once the
// stream is exhausted
func (c *Corpus) ReadRune() (rune, int, error) {
	r, size, err := c.reader.ReadRune()
	if err == nil {
		c.runes++
	}
	return r, size, err
}

// Format returns the detected encoding
func (c *Corpus) Format() Format {
	return c.format
}

// Runes returns how many characters have been read so far
func (c *Corpus) Runes() int64 {
	return c.runes
}

// Fingerprint returns the hex BLAKE3 digest of the decoded bytes read so
// far. After the stream is drained it identifies the whole corpus.
func (c *Corpus) Fingerprint() string {
	return hex.EncodeToString(c.hasher.Sum(nil))
}

// Close releases the decoder and the underlying file
func (c *Corpus) Close() error {
	return c.closer()
}

// DownloadIfNotExists downloads url to path if path doesn't exist
func DownloadIfNotExists(ctx context.Context, url, path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		return false, fmt.Errorf("downloading corpus: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("downloading corpus: %s: %s", url, resp.Status)
	}

	// Write next to the target and rename so an interrupted download
	// never leaves a truncated corpus behind.
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.partial")
	if err != nil {
		return false, err
	}
	defer os.Remove(file.Name())

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return false, fmt.Errorf("downloading corpus: %w", err)
	}
	if err := file.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(file.Name(), path); err != nil {
		return false, err
	}
	return true, nil
}
