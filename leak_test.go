package zstdsafe

import (
	"bytes"
	"testing"

	"go.uber.org/goleak"
)

func TestNoGoroutineLeaks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	payload := bytes.Repeat([]byte("leak check "), 1000)

	var compressed bytes.Buffer
	zw, err := NewWriter(&compressed)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	zw.Release()

	zr, err := NewReader(&compressed)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var out bytes.Buffer
	if _, err := zr.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	zr.Release()

	if !bytes.Equal(payload, out.Bytes()) {
		t.Fatal("round trip mismatch")
	}
}

func TestContextBalanceAfterUse(t *testing.T) {
	for i := 0; i < 20; i++ {
		ctx, err := NewCCtx()
		if err != nil {
			t.Fatalf("NewCCtx: %v", err)
		}
		if _, err := ctx.Compress(nil, []byte("balanced lifecycle")); err != nil {
			ctx.Release()
			t.Fatalf("Compress: %v", err)
		}
		ctx.Release()
	}

	s := DefaultMetrics.Snapshot()
	if s.ContextsReleased > s.ContextsCreated {
		t.Fatalf("released %d contexts but only created %d", s.ContextsReleased, s.ContextsCreated)
	}
}
