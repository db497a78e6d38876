package zstdsafe

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func streamingRoundTrip(t *testing.T, payload []byte, outCap int) []byte {
	t.Helper()

	cctx, err := NewCCtx()
	if err != nil {
		t.Fatalf("NewCCtx: %v", err)
	}
	defer cctx.Release()

	var compressed []byte
	in := NewInBuffer(payload)
	outBuf := make([]byte, outCap)
	for {
		out := NewOutBuffer(outBuf)
		res, err := cctx.CompressStream2(in, out, End)
		if err != nil {
			t.Fatalf("CompressStream2: %v", err)
		}
		compressed = append(compressed, out.Bytes()...)
		if res.FrameComplete {
			break
		}
	}

	dctx, err := NewDCtx()
	if err != nil {
		t.Fatalf("NewDCtx: %v", err)
	}
	defer dctx.Release()

	var decompressed []byte
	din := NewInBuffer(compressed)
	doutBuf := make([]byte, outCap)
	for {
		dout := NewOutBuffer(doutBuf)
		res, err := dctx.DecompressStream(din, dout)
		if err != nil {
			t.Fatalf("DecompressStream: %v", err)
		}
		decompressed = append(decompressed, dout.Bytes()...)
		if res.FrameComplete && din.Exhausted() {
			break
		}
	}

	if !bytes.Equal(payload, decompressed) {
		t.Fatalf("round trip mismatch: %d bytes in, %d bytes out", len(payload), len(decompressed))
	}
	return compressed
}

func TestStreamingRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("streaming round trip through position-tracked views "), 500)
	streamingRoundTrip(t, payload, CStreamOutSize())
}

func TestStreamingTinyOutputBuffer(t *testing.T) {
	// A 1-byte output view forces the maximum number of full-output steps.
	// Draining through it must yield the exact bytes a large buffer yields.
	payload := bytes.Repeat([]byte("tiny output buffer "), 50)
	tiny := streamingRoundTrip(t, payload, 1)
	big := streamingRoundTrip(t, payload, CStreamOutSize())
	if !bytes.Equal(tiny, big) {
		t.Fatalf("1-byte drain produced %d bytes, large buffer %d bytes", len(tiny), len(big))
	}
}

func TestStreamingEmptyInputFrame(t *testing.T) {
	// An End directive on an empty session still produces a valid frame.
	compressed := streamingRoundTrip(t, nil, CStreamOutSize())
	if len(compressed) == 0 {
		t.Fatal("empty input must still produce a frame")
	}

	decompressed, err := Decompress(nil, compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if len(decompressed) != 0 {
		t.Fatalf("empty frame decoded to %d bytes", len(decompressed))
	}
}

func TestStreamingPositionsAdvanceExactly(t *testing.T) {
	cctx, err := NewCCtx()
	if err != nil {
		t.Fatalf("NewCCtx: %v", err)
	}
	defer cctx.Release()

	payload := bytes.Repeat([]byte("position accounting "), 200)
	in := NewInBuffer(payload)
	out := NewOutBuffer(make([]byte, CStreamOutSize()))

	prevIn, prevOut := in.Pos(), out.Pos()
	for {
		res, err := cctx.CompressStream2(in, out, End)
		if err != nil {
			t.Fatalf("CompressStream2: %v", err)
		}
		if in.Pos() < prevIn || out.Pos() < prevOut {
			t.Fatalf("positions moved backwards: in %d->%d, out %d->%d",
				prevIn, in.Pos(), prevOut, out.Pos())
		}
		prevIn, prevOut = in.Pos(), out.Pos()
		if res.FrameComplete {
			break
		}
	}
	if !in.Exhausted() {
		t.Fatalf("input not fully consumed: pos=%d size=%d", in.Pos(), in.Size())
	}
}

func TestFlushMakesDataDecodable(t *testing.T) {
	cctx, err := NewCCtx()
	if err != nil {
		t.Fatalf("NewCCtx: %v", err)
	}
	defer cctx.Release()

	dctx, err := NewDCtx()
	if err != nil {
		t.Fatalf("NewDCtx: %v", err)
	}
	defer dctx.Release()

	payload := []byte("flush forces buffered bytes out without ending the frame")

	in := NewInBuffer(payload)
	out := NewOutBuffer(make([]byte, CStreamOutSize()))
	if _, err := cctx.CompressStream2(in, out, Continue); err != nil {
		t.Fatalf("CompressStream2(Continue): %v", err)
	}

	empty := NewInBuffer(nil)
	for {
		res, err := cctx.CompressStream2(empty, out, Flush)
		if err != nil {
			t.Fatalf("CompressStream2(Flush): %v", err)
		}
		if res.Hint == 0 {
			break
		}
	}

	// Everything written so far must decode even though the frame is open.
	din := NewInBuffer(out.Bytes())
	dout := NewOutBuffer(make([]byte, len(payload)+64))
	res, err := dctx.DecompressStream(din, dout)
	if err != nil {
		t.Fatalf("DecompressStream: %v", err)
	}
	if !bytes.Equal(payload, dout.Bytes()) {
		t.Fatalf("flushed prefix decoded to %q", dout.Bytes())
	}
	if res.FrameComplete {
		t.Fatal("frame must still be open after a flush")
	}
	if cctx.InSession() != true {
		t.Fatal("compression session must stay open after a flush")
	}
}

func TestStreamResultHintDrainsToZero(t *testing.T) {
	cctx, err := NewCCtx()
	if err != nil {
		t.Fatalf("NewCCtx: %v", err)
	}
	defer cctx.Release()

	in := NewInBuffer(bytes.Repeat([]byte("hint "), 10000))
	var last StreamResult
	outBuf := make([]byte, 128)
	for {
		out := NewOutBuffer(outBuf)
		last, err = cctx.CompressStream2(in, out, End)
		if err != nil {
			t.Fatalf("CompressStream2: %v", err)
		}
		if last.FrameComplete {
			break
		}
	}
	if last.Hint != 0 {
		t.Fatalf("completed frame reported hint %d", last.Hint)
	}
	if cctx.InSession() {
		t.Fatal("session must be closed after the frame completes")
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("io.Writer and io.Reader adapters over the streaming core. "), 2000)

	var compressed bytes.Buffer
	zw, err := NewWriterLevel(&compressed, 7)
	if err != nil {
		t.Fatalf("NewWriterLevel: %v", err)
	}
	defer zw.Release()

	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("second Close must be a no-op, got: %v", err)
	}

	zr, err := NewReader(&compressed)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer zr.Release()

	decompressed, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(payload, decompressed) {
		t.Fatal("round trip mismatch")
	}
}

func TestWriterFlush(t *testing.T) {
	var compressed bytes.Buffer
	zw, err := NewWriter(&compressed)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer zw.Release()

	if _, err := zw.Write([]byte("flushed payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if compressed.Len() == 0 {
		t.Fatal("flush produced no output")
	}
}

func TestWriterReset(t *testing.T) {
	var first, second bytes.Buffer
	zw, err := NewWriterLevel(&first, 5)
	if err != nil {
		t.Fatalf("NewWriterLevel: %v", err)
	}
	defer zw.Release()

	if _, err := zw.Write([]byte("first stream")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := zw.Reset(&second); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := zw.Write([]byte("second stream")); err != nil {
		t.Fatalf("Write after Reset: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close after Reset: %v", err)
	}

	for i, buf := range []*bytes.Buffer{&first, &second} {
		decompressed, err := Decompress(nil, buf.Bytes())
		if err != nil {
			t.Fatalf("Decompress stream %d: %v", i, err)
		}
		want := []string{"first stream", "second stream"}[i]
		if string(decompressed) != want {
			t.Fatalf("stream %d decoded to %q, want %q", i, decompressed, want)
		}
	}
}

func TestReaderTruncatedStream(t *testing.T) {
	compressed, err := Compress(nil, bytes.Repeat([]byte("truncate me "), 500))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	zr, err := NewReader(bytes.NewReader(compressed[:len(compressed)/2]))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer zr.Release()

	_, err = io.ReadAll(zr)
	if err == nil {
		t.Fatal("truncated stream must not decode cleanly")
	}
	if err != io.ErrUnexpectedEOF && !IsCorruptionError(err) {
		t.Fatalf("unexpected error for truncated stream: %v", err)
	}
}

func TestReaderMultipleFrames(t *testing.T) {
	frame1, err := Compress(nil, []byte("first frame."))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	stream, err := Compress(frame1, []byte("second frame."))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	zr, err := NewReader(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer zr.Release()

	decompressed, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(decompressed) != "first frame.second frame." {
		t.Fatalf("concatenated frames decoded to %q", decompressed)
	}
}

func TestStreamHelpers(t *testing.T) {
	payload := strings.Repeat("stream helper round trip ", 1000)

	var compressed bytes.Buffer
	if err := StreamCompress(&compressed, strings.NewReader(payload)); err != nil {
		t.Fatalf("StreamCompress: %v", err)
	}

	var decompressed bytes.Buffer
	if err := StreamDecompress(&decompressed, &compressed); err != nil {
		t.Fatalf("StreamDecompress: %v", err)
	}
	if decompressed.String() != payload {
		t.Fatal("round trip mismatch")
	}
}
