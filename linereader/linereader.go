// Package linereader yields the text lines of a staged object, transparently
// decompressing gzip content and replacing invalid UTF-8 so that decoders
// always receive valid text.
package linereader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrDecompress wraps gzip framing and checksum errors. A file failing with
// it fails the same way on every attempt.
var ErrDecompress = errors.New("gzip decompression failed")

var gzipMagic = []byte{0x1f, 0x8b}

var gzipExtensions = []string{".gz", ".gzip"}

// IsGzip reports whether the file at path holds gzip data. The file name is
// checked for a gzip extension first; other files are probed for the gzip
// magic bytes.
func IsGzip(path string) (bool, error) {
	if hasGzipExtension(path) {
		return true, nil
	}

	return hasGzipMagic(path)
}

func hasGzipExtension(path string) bool {
	lower := strings.ToLower(path)

	for _, ext := range gzipExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}

func hasGzipMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, len(gzipMagic))

	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return bytes.Equal(header, gzipMagic), nil
}

// Lines returns a single-use sequence of the lines in the file at path,
// without their line terminators. A final line without a terminator is
// still produced.
//
// When opening, decompressing or reading fails, the sequence yields one
// final pair carrying the error and stops. The file and decompressor are
// released when the sequence ends, including when the caller stops ranging
// early.
//
//	for line, err := range linereader.Lines(path) {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
func Lines(path string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		compressed, err := IsGzip(path)
		if err != nil {
			yield("", err)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			yield("", fmt.Errorf("failed to open %s: %w", path, err))
			return
		}
		defer f.Close()

		var src io.Reader = f

		if compressed {
			zr, err := gzip.NewReader(f)
			if err != nil {
				yield("", fmt.Errorf("%w: %s: %w", ErrDecompress, path, err))
				return
			}
			defer zr.Close()

			src = zr
		}

		// The UTF-8 decoder replaces every invalid byte with U+FFFD.
		r := bufio.NewReaderSize(transform.NewReader(src, unicode.UTF8.NewDecoder()), 64*1024)

		for {
			line, err := r.ReadString('\n')

			if err == nil || (errors.Is(err, io.EOF) && len(line) > 0) {
				if !yield(trimEOL(line), nil) {
					return
				}
			}

			if errors.Is(err, io.EOF) {
				return
			}

			// A partial line read before a failure is dropped.
			if err != nil {
				if compressed {
					err = fmt.Errorf("%w: %s: %w", ErrDecompress, path, err)
				} else {
					err = fmt.Errorf("failed to read %s: %w", path, err)
				}

				yield("", err)

				return
			}
		}
	}
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
