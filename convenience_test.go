package zstdsafe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestCompressDecompressFile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "input.txt")
	zstPath := filepath.Join(dir, "input.txt.zst")
	outPath := filepath.Join(dir, "output.txt")

	payload := bytes.Repeat([]byte("file helper round trip\n"), 500)
	if err := os.WriteFile(srcPath, payload, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := CompressFileLevel(srcPath, zstPath, 5); err != nil {
		t.Fatalf("CompressFileLevel: %v", err)
	}
	if err := DecompressFile(zstPath, outPath); err != nil {
		t.Fatalf("DecompressFile: %v", err)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(payload, out) {
		t.Fatal("round trip mismatch")
	}
}

func TestStreamCompressDecompressFile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "input.bin")
	zstPath := filepath.Join(dir, "input.bin.zst")
	outPath := filepath.Join(dir, "output.bin")

	payload := bytes.Repeat([]byte("streamed through bounded buffers "), 10000)
	if err := os.WriteFile(srcPath, payload, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := StreamCompressFile(srcPath, zstPath, DefaultCompressionLevel); err != nil {
		t.Fatalf("StreamCompressFile: %v", err)
	}
	if err := StreamDecompressFile(zstPath, outPath); err != nil {
		t.Fatalf("StreamDecompressFile: %v", err)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(payload, out) {
		t.Fatal("round trip mismatch")
	}
}

func TestBatchRoundTrip(t *testing.T) {
	var inputs [][]byte
	for i := 0; i < 50; i++ {
		inputs = append(inputs, bytes.Repeat([]byte(fmt.Sprintf("batch item %d ", i)), 100))
	}

	compressed, err := BatchCompress(context.Background(), inputs, 3)
	if err != nil {
		t.Fatalf("BatchCompress: %v", err)
	}
	if len(compressed) != len(inputs) {
		t.Fatalf("got %d outputs, want %d", len(compressed), len(inputs))
	}

	decompressed, err := BatchDecompress(context.Background(), compressed)
	if err != nil {
		t.Fatalf("BatchDecompress: %v", err)
	}
	for i := range inputs {
		if !bytes.Equal(inputs[i], decompressed[i]) {
			t.Fatalf("item %d: round trip mismatch", i)
		}
	}
}

func TestBatchDecompressFailsFast(t *testing.T) {
	good, err := Compress(nil, []byte("fine"))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	inputs := [][]byte{good, []byte("garbage, not a frame"), good}

	if _, err := BatchDecompress(context.Background(), inputs); err == nil {
		t.Fatal("batch with a bad item must fail")
	}
}
