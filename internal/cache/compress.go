package cache

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/s2"
)

// Algorithm names the compression scheme used on a stored entry, so
// decompression is unambiguous regardless of which intent picked it.
type Algorithm string

const (
	AlgorithmNone   Algorithm = "none"
	AlgorithmS2     Algorithm = "s2"     // IntentFast
	AlgorithmGzip   Algorithm = "gzip"   // IntentSize
	AlgorithmBrotli Algorithm = "brotli" // IntentBalanced
)

// CompressionIntent selects which algorithm to use for a given write,
// trading off speed against size.
type CompressionIntent string

const (
	IntentFast     CompressionIntent = "fast"
	IntentSize     CompressionIntent = "size"
	IntentBalanced CompressionIntent = "balanced"
)

func algorithmFor(intent CompressionIntent) Algorithm {
	switch intent {
	case IntentFast:
		return AlgorithmS2
	case IntentSize:
		return AlgorithmGzip
	default:
		return AlgorithmBrotli
	}
}

// compress encodes data with the algorithm chosen for intent. Data at
// or below threshold bytes is left uncompressed (AlgorithmNone).
func compress(data []byte, intent CompressionIntent, threshold int) ([]byte, Algorithm, error) {
	if len(data) <= threshold {
		return data, AlgorithmNone, nil
	}

	algo := algorithmFor(intent)
	var buf bytes.Buffer

	switch algo {
	case AlgorithmS2:
		w := s2.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
	case AlgorithmGzip:
		w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(data); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
	case AlgorithmBrotli:
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
	default:
		return data, AlgorithmNone, nil
	}

	return buf.Bytes(), algo, nil
}

// decompress reverses compress given the algorithm recorded on the entry.
func decompress(data []byte, algo Algorithm) ([]byte, error) {
	switch algo {
	case AlgorithmNone, "":
		return data, nil
	case AlgorithmS2:
		r := s2.NewReader(bytes.NewReader(data))
		return io.ReadAll(r)
	case AlgorithmGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case AlgorithmBrotli:
		r := brotli.NewReader(bytes.NewReader(data))
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unknown compression algorithm %q", algo)
	}
}
