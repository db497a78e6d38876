package zstdsafe

import (
	"bytes"
	"testing"
)

func TestGetFrameInfo(t *testing.T) {
	payload := bytes.Repeat([]byte("frame metadata "), 200)

	ctx, err := NewCCtx()
	if err != nil {
		t.Fatalf("NewCCtx: %v", err)
	}
	defer ctx.Release()
	if err := ctx.SetParameter(ZSTD_c_checksumFlag, 1); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	compressed, err := ctx.Compress(nil, payload)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	info, err := GetFrameInfo(compressed)
	if err != nil {
		t.Fatalf("GetFrameInfo: %v", err)
	}
	if !info.HasContentSize || info.ContentSize != uint64(len(payload)) {
		t.Fatalf("content size = (%d, %v), want (%d, true)",
			info.ContentSize, info.HasContentSize, len(payload))
	}
	if !info.HasChecksum {
		t.Fatal("checksum flag not reflected in frame info")
	}
	if info.CompressedSize != uint64(len(compressed)) {
		t.Fatalf("compressed size = %d, want %d", info.CompressedSize, len(compressed))
	}
	if info.DictionaryID != 0 {
		t.Fatalf("dictionary ID = %d, want 0", info.DictionaryID)
	}
}

func TestGetFrameCompressedSizeSplitsConcatenation(t *testing.T) {
	frame1, err := Compress(nil, []byte("first"))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	stream, err := Compress(append([]byte(nil), frame1...), []byte("second"))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	size, err := GetFrameCompressedSize(stream)
	if err != nil {
		t.Fatalf("GetFrameCompressedSize: %v", err)
	}
	if size != uint64(len(frame1)) {
		t.Fatalf("first frame size = %d, want %d", size, len(frame1))
	}

	second, err := Decompress(nil, stream[size:])
	if err != nil {
		t.Fatalf("Decompress second frame: %v", err)
	}
	if string(second) != "second" {
		t.Fatalf("second frame decoded to %q", second)
	}
}

func TestIsZstdFrame(t *testing.T) {
	compressed, err := Compress(nil, []byte("magic check"))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !IsZstdFrame(compressed) {
		t.Fatal("valid frame not recognized")
	}
	if IsZstdFrame([]byte("not a frame")) {
		t.Fatal("garbage recognized as a frame")
	}
	if IsZstdFrame(compressed[:3]) {
		t.Fatal("short input recognized as a frame")
	}
}

func TestFrameInspectionRejectsGarbage(t *testing.T) {
	if _, _, err := GetFrameContentSize([]byte("garbage input here")); err == nil {
		t.Fatal("garbage must be rejected")
	} else if !IsFrameError(err) {
		t.Fatalf("expected a frame error, got: %v", err)
	}

	if _, err := GetFrameInfo([]byte("garbage input here")); err == nil {
		t.Fatal("garbage must be rejected")
	}

	if _, _, err := GetFrameContentSize([]byte("ab")); err == nil {
		t.Fatal("short input must be rejected")
	} else if !IsBufferError(err) {
		t.Fatalf("expected a buffer error, got: %v", err)
	}
}

func TestFrameDictID(t *testing.T) {
	dict := trainTestDict(t)
	cd, err := NewCDict(dict)
	if err != nil {
		t.Fatalf("NewCDict: %v", err)
	}
	defer cd.Release()

	compressed, err := CompressDict(nil, []byte("dict id in header"), cd)
	if err != nil {
		t.Fatalf("CompressDict: %v", err)
	}
	info, err := GetFrameInfo(compressed)
	if err != nil {
		t.Fatalf("GetFrameInfo: %v", err)
	}
	if info.DictionaryID == 0 {
		t.Fatal("trained dictionary ID missing from frame header")
	}
}
