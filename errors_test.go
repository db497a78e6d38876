package zstdsafe

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCategories(t *testing.T) {
	cases := []struct {
		code ErrorCode
		pred func(error) bool
		name string
	}{
		{ErrParameterOutOfBound, IsParameterError, "parameter"},
		{ErrParameterCombination, IsParameterError, "parameter"},
		{ErrDictionaryCorrupted, IsDictionaryError, "dictionary"},
		{ErrDictionaryWrong, IsDictionaryError, "dictionary"},
		{ErrMemoryAllocation, IsMemoryError, "memory"},
		{ErrDstSizeTooSmall, IsBufferError, "buffer"},
		{ErrSrcSizeWrong, IsBufferError, "buffer"},
		{ErrCorruptionDetected, IsCorruptionError, "corruption"},
		{ErrChecksumWrong, IsCorruptionError, "corruption"},
		{ErrPrefixUnknown, IsFrameError, "frame"},
		{ErrStageWrong, IsStreamStateError, "stream state"},
		{ErrVersionUnsupported, IsVersionError, "version"},
	}
	for _, tc := range cases {
		err := newZstdError(tc.code, "test", "test message", ErrorContext{})
		if !tc.pred(err) {
			t.Errorf("code %d not classified as %s error: %v", tc.code, tc.name, err)
		}
	}
}

func TestErrorCodeReachableThroughWrapping(t *testing.T) {
	base := newZstdError(ErrCorruptionDetected, "decompression", "corrupted block", ErrorContext{InputSize: 42})
	wrapped := fmt.Errorf("loading snapshot: %w", base)

	if !IsCorruptionError(wrapped) {
		t.Fatal("category predicate must follow wrapped chains")
	}
	var ce *CorruptionError
	if !errors.As(wrapped, &ce) {
		t.Fatal("errors.As failed to extract CorruptionError")
	}
	if ce.Code != ErrCorruptionDetected {
		t.Fatalf("code = %d, want %d", ce.Code, ErrCorruptionDetected)
	}
	if ce.Context.InputSize != 42 {
		t.Fatalf("context InputSize = %d, want 42", ce.Context.InputSize)
	}
}

func TestErrorRecoverable(t *testing.T) {
	recoverable := newZstdError(ErrParameterOutOfBound, "set parameter", "x", ErrorContext{})
	var pe *ParameterError
	if !errors.As(recoverable, &pe) || !pe.Recoverable() {
		t.Fatal("out-of-bound parameter must be recoverable")
	}

	fatal := newZstdError(ErrCorruptionDetected, "decompression", "x", ErrorContext{})
	var ce *CorruptionError
	if !errors.As(fatal, &ce) || ce.Recoverable() {
		t.Fatal("corruption must not be recoverable")
	}
}

func TestDecompressCorruptInput(t *testing.T) {
	compressed, err := Compress(nil, []byte("some payload that compresses"))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	// Flip bytes inside the block payload.
	corrupted := append([]byte(nil), compressed...)
	for i := len(corrupted) - 4; i < len(corrupted); i++ {
		corrupted[i] ^= 0xFF
	}

	_, err = Decompress(nil, corrupted)
	if err == nil {
		t.Fatal("decompressing corrupted input must fail")
	}
	if !IsCorruptionError(err) && !IsBufferError(err) && !IsFrameError(err) {
		t.Fatalf("unexpected error category: %v", err)
	}
}

func TestDecompressGarbageInput(t *testing.T) {
	_, err := Decompress(nil, []byte("this is definitely not a zstd frame"))
	if err == nil {
		t.Fatal("decompressing garbage must fail")
	}
	if !IsFrameError(err) {
		t.Fatalf("expected a frame error, got: %v", err)
	}
}
