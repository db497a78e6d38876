package zstdsafe

import (
	"bytes"
	"encoding/hex"
	"math/rand"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte(""),
		[]byte("a"),
		[]byte("hello world"),
		bytes.Repeat([]byte("compressible pattern "), 1000),
		randomBytes(64 * 1024),
	}
	for i, payload := range payloads {
		compressed, err := Compress(nil, payload)
		if err != nil {
			t.Fatalf("payload %d: Compress: %v", i, err)
		}
		decompressed, err := Decompress(nil, compressed)
		if err != nil {
			t.Fatalf("payload %d: Decompress: %v", i, err)
		}
		if !bytes.Equal(payload, decompressed) {
			t.Fatalf("payload %d: round trip mismatch", i)
		}
	}
}

func randomBytes(n int) []byte {
	rng := rand.New(rand.NewSource(42))
	b := make([]byte, n)
	rng.Read(b)
	return b
}

func TestCompressAppendsToDst(t *testing.T) {
	prefix := []byte("prefix:")
	compressed, err := Compress(append([]byte(nil), prefix...), []byte("appended payload"))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !bytes.HasPrefix(compressed, prefix) {
		t.Fatal("Compress must append to dst")
	}

	decompressed, err := Decompress([]byte("out:"), compressed[len(prefix):])
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(decompressed) != "out:appended payload" {
		t.Fatalf("Decompress append result: %q", decompressed)
	}
}

func TestDecompressSmallBlockWithoutSingleSegmentFlag(t *testing.T) {
	// See https://github.com/VictoriaMetrics/VictoriaMetrics/issues/281 .
	cblockHex := "28B52FFD00007D000038C0A907DFD40300015407022B0E02"
	dblockHexExpected := "C0A907DFD4030000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000000000000000" +
		"00000000000000000000000000000000000000000000000000000000000000000000000" +
		"000000000000000000000000000000000"

	cblock, err := hex.DecodeString(cblockHex)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	dblockExpected, err := hex.DecodeString(dblockHexExpected)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}

	for _, dstCap := range []int{0, len(dblockExpected) / 2, len(dblockExpected)} {
		dblock, err := Decompress(make([]byte, 0, dstCap), cblock)
		if err != nil {
			t.Fatalf("dst cap %d: Decompress: %v", dstCap, err)
		}
		if !bytes.Equal(dblock, dblockExpected) {
			t.Fatalf("dst cap %d: unexpected decompressed block;\ngot\n%X\nwant\n%X",
				dstCap, dblock, dblockExpected)
		}
	}
}

func TestDecompressIntoPresizedDst(t *testing.T) {
	payload := bytes.Repeat([]byte("presized "), 100)
	compressed, err := Compress(nil, payload)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	// Fast path: dst already has enough spare capacity.
	dst := make([]byte, 0, len(payload)+16)
	decompressed, err := Decompress(dst, compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(payload, decompressed) {
		t.Fatal("round trip mismatch")
	}
}

func TestDecompressUnknownContentSize(t *testing.T) {
	// Streaming writers do not pledge a size, so the frame header carries
	// none and the one-shot falls back to streaming decode.
	payload := bytes.Repeat([]byte("unknown content size "), 400)
	var compressed bytes.Buffer
	zw, err := NewWriter(&compressed)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer zw.Release()
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, known, err := GetFrameContentSize(compressed.Bytes()); err != nil || known {
		t.Fatalf("expected unknown content size, got known=%v err=%v", known, err)
	}

	decompressed, err := Decompress(nil, compressed.Bytes())
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(payload, decompressed) {
		t.Fatal("round trip mismatch")
	}
}

func TestDecompressLimited(t *testing.T) {
	payload := bytes.Repeat([]byte("bomb "), 10000)
	compressed, err := Compress(nil, payload)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	// Under the limit.
	decompressed, err := DecompressLimited(nil, compressed, len(payload))
	if err != nil {
		t.Fatalf("DecompressLimited: %v", err)
	}
	if !bytes.Equal(payload, decompressed) {
		t.Fatal("round trip mismatch")
	}

	// Over the limit: rejected before producing the payload.
	if _, err := DecompressLimited(nil, compressed, len(payload)-1); err == nil {
		t.Fatal("oversized payload must be rejected")
	} else if !IsBufferError(err) {
		t.Fatalf("expected a buffer error, got: %v", err)
	}
}

func TestDecompressLimitedUnknownSize(t *testing.T) {
	payload := bytes.Repeat([]byte("unknown size bomb "), 2000)
	var compressed bytes.Buffer
	zw, err := NewWriter(&compressed)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer zw.Release()
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := DecompressLimited(nil, compressed.Bytes(), 1024); err == nil {
		t.Fatal("oversized payload must be rejected even without a declared size")
	} else if !IsBufferError(err) {
		t.Fatalf("expected a buffer error, got: %v", err)
	}
}

func TestConcurrentOneShots(t *testing.T) {
	payload := bytes.Repeat([]byte("concurrent one-shot calls share pooled contexts "), 50)
	done := make(chan error, 16)
	for g := 0; g < 16; g++ {
		go func() {
			for i := 0; i < 50; i++ {
				compressed, err := Compress(nil, payload)
				if err != nil {
					done <- err
					return
				}
				decompressed, err := Decompress(nil, compressed)
				if err != nil {
					done <- err
					return
				}
				if !bytes.Equal(payload, decompressed) {
					done <- errMismatch
					return
				}
			}
			done <- nil
		}()
	}
	for g := 0; g < 16; g++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent round trip: %v", err)
		}
	}
}

var errMismatch = newZstdError(ErrGeneric, "test", "round trip mismatch", ErrorContext{})
