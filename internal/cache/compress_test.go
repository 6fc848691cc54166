package cache

import (
	"bytes"
	"strings"
	"testing"
)

func TestSmallPayloadsStoredVerbatim(t *testing.T) {
	data := []byte("tiny")
	out, algo, err := compress(data, IntentBalanced, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if algo != AlgorithmNone {
		t.Errorf("expected no compression under threshold, got %s", algo)
	}
	if !bytes.Equal(out, data) {
		t.Error("verbatim payload was altered")
	}
}

func TestCompressionRoundTripPerIntent(t *testing.T) {
	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 100))

	cases := []struct {
		intent CompressionIntent
		algo   Algorithm
	}{
		{IntentFast, AlgorithmS2},
		{IntentSize, AlgorithmGzip},
		{IntentBalanced, AlgorithmBrotli},
	}

	for _, c := range cases {
		out, algo, err := compress(data, c.intent, 64)
		if err != nil {
			t.Fatalf("%s: compress: %v", c.intent, err)
		}
		if algo != c.algo {
			t.Errorf("%s: got algorithm %s, want %s", c.intent, algo, c.algo)
		}
		if len(out) >= len(data) {
			t.Errorf("%s: output (%d bytes) not smaller than input (%d bytes)", c.intent, len(out), len(data))
		}

		back, err := decompress(out, algo)
		if err != nil {
			t.Fatalf("%s: decompress: %v", c.intent, err)
		}
		if !bytes.Equal(back, data) {
			t.Errorf("%s: round trip mismatch", c.intent)
		}
	}
}

func TestDecompressRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := decompress([]byte("x"), Algorithm("zstd")); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestDecompressNoneIsIdentity(t *testing.T) {
	data := []byte("plain")
	out, err := decompress(data, AlgorithmNone)
	if err != nil || !bytes.Equal(out, data) {
		t.Errorf("identity decompress failed: %v", err)
	}
}
