package zstdsafe

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#include <zstd.h>

// The stream wrappers rebuild ZSTD_inBuffer/ZSTD_outBuffer on the C side
// from flat pointers and positions. Passing the structs from Go would
// either allocate per call or trip the cgo pointer rules; this keeps the
// calls allocation-free. See https://github.com/golang/go/issues/24450 .

static size_t ZSTD_compressStream2_wrapper(void *cctx,
        void *dst, size_t dstCapacity, size_t *dstPos,
        void *src, size_t srcSize, size_t *srcPos,
        int endOp) {
    ZSTD_outBuffer out = { dst, dstCapacity, *dstPos };
    ZSTD_inBuffer in = { (const void*)src, srcSize, *srcPos };
    size_t result = ZSTD_compressStream2((ZSTD_CCtx*)cctx, &out, &in, (ZSTD_EndDirective)endOp);
    *dstPos = out.pos;
    *srcPos = in.pos;
    return result;
}

static size_t ZSTD_decompressStream_wrapper(void *dctx,
        void *dst, size_t dstCapacity, size_t *dstPos,
        void *src, size_t srcSize, size_t *srcPos) {
    ZSTD_outBuffer out = { dst, dstCapacity, *dstPos };
    ZSTD_inBuffer in = { (const void*)src, srcSize, *srcPos };
    size_t result = ZSTD_decompressStream((ZSTD_DCtx*)dctx, &out, &in);
    *dstPos = out.pos;
    *srcPos = in.pos;
    return result;
}
*/
import "C"

import (
	"io"
	"reflect"
	"runtime"
	"unsafe"
)

// Directive instructs a compression step what to do with buffered state,
// matching ZSTD_EndDirective.
type Directive int

const (
	// Continue lets the encoder buffer input internally for better ratio.
	Continue Directive = 0

	// Flush forces all currently buffered compressed bytes to be emitted.
	// The frame stays open; internal state survives for future input.
	Flush Directive = 1

	// End finalizes the frame, writing any configured checksum and footer.
	// Keep stepping with End (and an exhausted input view) until the
	// returned hint is zero: a single call may lack the output capacity to
	// drain everything.
	End Directive = 2
)

// StreamResult is the structured outcome of one streaming step.
type StreamResult struct {
	// Hint is the native layer's advisory byte count: for compression the
	// number of bytes still buffered internally, for decompression a
	// suggested size for the next input chunk. Zero means the current
	// directive or frame is fully satisfied.
	Hint uint64

	// FrameComplete reports that the frame is finished: an End directive
	// fully drained for compression, or the frame footer decoded for
	// decompression.
	FrameComplete bool
}

// CompressStream2 issues one native streaming-compression call with the
// remaining portions of in and out, then advances both views by exactly
// what the native layer consumed and produced.
//
// A full output view is not an error: drain out, Rewind it and step again.
// A zero-length input view with the Continue directive is a legal no-op.
// If the step fails, positions already advanced by earlier steps remain
// valid but the session is undefined and must be reset or released.
func (ctx *CCtx) CompressStream2(in *InBuffer, out *OutBuffer, directive Directive) (StreamResult, error) {
	h := ctx.handle()

	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&in.data))
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&out.data))
	srcPos := C.size_t(in.pos)
	dstPos := C.size_t(out.pos)

	result := C.ZSTD_compressStream2_wrapper(
		unsafe.Pointer(h),
		unsafe.Pointer(dstHdr.Data), C.size_t(len(out.data)), &dstPos,
		unsafe.Pointer(srcHdr.Data), C.size_t(len(in.data)), &srcPos,
		C.int(directive))
	runtime.KeepAlive(in.data)
	runtime.KeepAlive(out.data)

	consumed := int(srcPos) - in.pos
	produced := int(dstPos) - out.pos
	in.advance(consumed)
	out.advance(produced)

	if err := mapZstdError(result, "compress stream", ErrorContext{
		InputSize:  in.Size(),
		OutputSize: out.Capacity(),
	}); err != nil {
		metricCompress(consumed, produced, true)
		return StreamResult{}, err
	}
	metricCompress(consumed, produced, false)

	hint := uint64(result)
	complete := directive == End && hint == 0
	ctx.streaming = !complete
	return StreamResult{Hint: hint, FrameComplete: complete}, nil
}

// DecompressStream issues one native streaming-decompression call with the
// remaining portions of in and out, advancing both views by what was
// consumed and produced.
//
// FrameComplete is true when the frame is fully decoded. Otherwise, if the
// input view is exhausted the caller must supply more compressed bytes; if
// the output view is full the caller must drain it and step again.
func (ctx *DCtx) DecompressStream(in *InBuffer, out *OutBuffer) (StreamResult, error) {
	h := ctx.handle()

	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&in.data))
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&out.data))
	srcPos := C.size_t(in.pos)
	dstPos := C.size_t(out.pos)

	result := C.ZSTD_decompressStream_wrapper(
		unsafe.Pointer(h),
		unsafe.Pointer(dstHdr.Data), C.size_t(len(out.data)), &dstPos,
		unsafe.Pointer(srcHdr.Data), C.size_t(len(in.data)), &srcPos)
	runtime.KeepAlive(in.data)
	runtime.KeepAlive(out.data)

	consumed := int(srcPos) - in.pos
	produced := int(dstPos) - out.pos
	in.advance(consumed)
	out.advance(produced)

	if err := mapZstdError(result, "decompress stream", ErrorContext{
		InputSize:  in.Size(),
		OutputSize: out.Capacity(),
	}); err != nil {
		metricDecompress(consumed, produced, true)
		return StreamResult{}, err
	}
	metricDecompress(consumed, produced, false)

	hint := uint64(result)
	complete := hint == 0
	ctx.streaming = !complete
	return StreamResult{Hint: hint, FrameComplete: complete}, nil
}

// Recommended chunk sizes from the native layer, so callers can size their
// buffers without guessing.

// CStreamInSize returns the recommended input buffer size for streaming
// compression.
func CStreamInSize() int { return int(C.ZSTD_CStreamInSize()) }

// CStreamOutSize returns the recommended output buffer size for streaming
// compression; a buffer of this size always fits a fully flushed block.
func CStreamOutSize() int { return int(C.ZSTD_CStreamOutSize()) }

// DStreamInSize returns the recommended input buffer size for streaming
// decompression.
func DStreamInSize() int { return int(C.ZSTD_DStreamInSize()) }

// DStreamOutSize returns the recommended output buffer size for streaming
// decompression; a buffer of this size always fits a decoded block.
func DStreamOutSize() int { return int(C.ZSTD_DStreamOutSize()) }

// WriterParams configures a Writer. The zero value selects the default
// compression level with no dictionary.
type WriterParams struct {
	// CompressionLevel 0 means DefaultCompressionLevel.
	CompressionLevel int

	// WindowLog 0 keeps the level's default.
	WindowLog int

	// NbWorkers 0 compresses in the calling goroutine. Values above zero
	// require a multithreaded libzstd build; see HasMultithreading.
	NbWorkers int

	// Checksum appends a content checksum to every frame.
	Checksum bool

	// Dict is an optional digested dictionary. It must stay unreleased
	// while the Writer uses it.
	Dict *CDict
}

// Writer is an io.WriteCloser that compresses everything written to it
// into one frame on the underlying writer. It drives the streaming core
// with recommended-size chunks. Writer is not safe for concurrent use.
type Writer struct {
	w      io.Writer
	ctx    *CCtx
	params WriterParams
	out    []byte
	closed bool
}

// NewWriter returns a Writer compressing at the default level.
func NewWriter(w io.Writer) (*Writer, error) {
	return NewWriterParams(w, WriterParams{})
}

// NewWriterLevel returns a Writer compressing at the given level.
func NewWriterLevel(w io.Writer, compressionLevel int) (*Writer, error) {
	return NewWriterParams(w, WriterParams{CompressionLevel: compressionLevel})
}

// NewWriterDict returns a Writer using the given digested dictionary.
func NewWriterDict(w io.Writer, cd *CDict) (*Writer, error) {
	return NewWriterParams(w, WriterParams{Dict: cd})
}

// NewWriterParams returns a Writer with full parameter control.
func NewWriterParams(w io.Writer, params WriterParams) (*Writer, error) {
	ctx, err := NewCCtx()
	if err != nil {
		return nil, err
	}
	zw := &Writer{
		w:   w,
		ctx: ctx,
		out: make([]byte, CStreamOutSize()),
	}
	if err := zw.apply(params); err != nil {
		ctx.Release()
		return nil, err
	}
	return zw, nil
}

func (zw *Writer) apply(params WriterParams) error {
	if err := zw.ctx.SetParameter(ZSTD_c_compressionLevel, params.CompressionLevel); err != nil {
		return err
	}
	if params.WindowLog != 0 {
		if err := zw.ctx.SetParameter(ZSTD_c_windowLog, params.WindowLog); err != nil {
			return err
		}
	}
	if params.NbWorkers != 0 {
		if err := zw.ctx.SetParameter(ZSTD_c_nbWorkers, params.NbWorkers); err != nil {
			return err
		}
	}
	if params.Checksum {
		if err := zw.ctx.SetParameter(ZSTD_c_checksumFlag, 1); err != nil {
			return err
		}
	}
	if params.Dict != nil {
		if err := zw.ctx.RefCDict(params.Dict); err != nil {
			return err
		}
	}
	zw.params = params
	return nil
}

// Reset abandons any open frame and re-arms the Writer for w with the same
// parameters, reusing the native state. It allows pooling Writers across
// streams.
func (zw *Writer) Reset(w io.Writer) error {
	if err := zw.ctx.Reset(ZSTD_reset_session_and_parameters); err != nil {
		return err
	}
	if err := zw.apply(zw.params); err != nil {
		return err
	}
	zw.w = w
	zw.closed = false
	return nil
}

// Write compresses p. The bytes may be buffered internally; call Flush to
// force them out or Close to finish the frame.
func (zw *Writer) Write(p []byte) (int, error) {
	in := NewInBuffer(p)
	for !in.Exhausted() {
		out := NewOutBuffer(zw.out)
		if _, err := zw.ctx.CompressStream2(in, out, Continue); err != nil {
			return in.Pos(), err
		}
		if err := zw.emit(out); err != nil {
			return in.Pos(), err
		}
	}
	return len(p), nil
}

// Flush forces all internally buffered compressed bytes onto the
// underlying writer without closing the frame.
func (zw *Writer) Flush() error {
	return zw.drain(Flush)
}

// Close finalizes the frame and flushes it completely. It does not release
// the native state; call Release when the Writer itself is done.
func (zw *Writer) Close() error {
	if zw.closed {
		return nil
	}
	if err := zw.drain(End); err != nil {
		return err
	}
	zw.closed = true
	return nil
}

// drain re-invokes the streaming step with an exhausted input view until
// the directive is fully satisfied. The output view may fill on any
// iteration; that is the normal multi-step case, not an error.
func (zw *Writer) drain(directive Directive) error {
	in := NewInBuffer(nil)
	for {
		out := NewOutBuffer(zw.out)
		res, err := zw.ctx.CompressStream2(in, out, directive)
		if err != nil {
			return err
		}
		if err := zw.emit(out); err != nil {
			return err
		}
		if res.Hint == 0 {
			return nil
		}
	}
}

func (zw *Writer) emit(out *OutBuffer) error {
	if out.Pos() == 0 {
		return nil
	}
	_, err := zw.w.Write(out.Bytes())
	return err
}

// Release frees the native state. The Writer must not be used afterwards.
func (zw *Writer) Release() {
	zw.ctx.Release()
	zw.out = nil
}

// Reader is an io.Reader that decompresses a stream of one or more frames
// from the underlying reader. Reader is not safe for concurrent use.
type Reader struct {
	r   io.Reader
	ctx *DCtx

	inRaw     []byte
	in        *InBuffer
	srcEOF    bool
	frameDone bool
}

// NewReader returns a Reader decompressing from r.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderDict(r, nil)
}

// NewReaderDict returns a Reader using the given digested dictionary. dd
// must stay unreleased while the Reader uses it.
func NewReaderDict(r io.Reader, dd *DDict) (*Reader, error) {
	ctx, err := NewDCtx()
	if err != nil {
		return nil, err
	}
	if dd != nil {
		if err := ctx.RefDDict(dd); err != nil {
			ctx.Release()
			return nil, err
		}
	}
	return &Reader{
		r:         r,
		ctx:       ctx,
		inRaw:     make([]byte, DStreamInSize()),
		in:        NewInBuffer(nil),
		frameDone: true,
	}, nil
}

// Reset re-arms the Reader for r with dictionary dd, reusing the native
// state.
func (zr *Reader) Reset(r io.Reader, dd *DDict) error {
	if err := zr.ctx.Reset(ZSTD_reset_session_and_parameters); err != nil {
		return err
	}
	if dd != nil {
		if err := zr.ctx.RefDDict(dd); err != nil {
			return err
		}
	}
	zr.r = r
	zr.in = NewInBuffer(nil)
	zr.srcEOF = false
	zr.frameDone = true
	return nil
}

// Read decompresses into p. It returns io.EOF once the source is exhausted
// on a frame boundary, and io.ErrUnexpectedEOF if the source ends inside a
// frame.
func (zr *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	out := NewOutBuffer(p)
	for {
		if zr.in.Exhausted() && zr.srcEOF {
			if zr.frameDone {
				return 0, io.EOF
			}
			return 0, io.ErrUnexpectedEOF
		}
		if zr.in.Exhausted() {
			n, err := zr.r.Read(zr.inRaw)
			zr.in = NewInBuffer(zr.inRaw[:n])
			if err == io.EOF {
				zr.srcEOF = true
			} else if err != nil {
				return 0, err
			}
			if n == 0 {
				continue
			}
		}
		res, err := zr.ctx.DecompressStream(zr.in, out)
		if err != nil {
			return out.Pos(), err
		}
		zr.frameDone = res.FrameComplete
		if out.Pos() > 0 {
			return out.Pos(), nil
		}
	}
}

// WriteTo decompresses the whole stream into w.
func (zr *Reader) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, DStreamOutSize())
	var total int64
	for {
		n, err := zr.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Release frees the native state. The Reader must not be used afterwards.
func (zr *Reader) Release() {
	zr.ctx.Release()
	zr.inRaw = nil
}

// StreamCompress compresses everything read from src into a single frame
// written to dst.
func StreamCompress(dst io.Writer, src io.Reader) error {
	return StreamCompressLevel(dst, src, DefaultCompressionLevel)
}

// StreamCompressLevel compresses everything read from src into a single
// frame written to dst using the given compression level.
func StreamCompressLevel(dst io.Writer, src io.Reader, compressionLevel int) error {
	zw, err := NewWriterLevel(dst, compressionLevel)
	if err != nil {
		return err
	}
	defer zw.Release()

	buf := make([]byte, CStreamInSize())
	if _, err := io.CopyBuffer(struct{ io.Writer }{zw}, src, buf); err != nil {
		return err
	}
	return zw.Close()
}

// StreamDecompress decompresses everything read from src into dst.
func StreamDecompress(dst io.Writer, src io.Reader) error {
	zr, err := NewReader(src)
	if err != nil {
		return err
	}
	defer zr.Release()
	_, err = zr.WriteTo(dst)
	return err
}
