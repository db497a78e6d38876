package zstdsafe

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#include <zstd.h>
#include <zstd_errors.h>

// The following *_wrapper functions allow avoiding memory allocations
// during calls from Go.
// See https://github.com/golang/go/issues/24450 .

static size_t ZSTD_compressCCtx_wrapper(void *ctx, void *dst, size_t dstCapacity, void *src, size_t srcSize, int compressionLevel) {
    return ZSTD_compressCCtx((ZSTD_CCtx*)ctx, dst, dstCapacity, (const void*)src, srcSize, compressionLevel);
}

static size_t ZSTD_compress2_wrapper(void *ctx, void *dst, size_t dstCapacity, void *src, size_t srcSize) {
    return ZSTD_compress2((ZSTD_CCtx*)ctx, dst, dstCapacity, (const void*)src, srcSize);
}

static size_t ZSTD_compress_usingCDict_wrapper(void *ctx, void *dst, size_t dstCapacity, void *src, size_t srcSize, void *cdict) {
    return ZSTD_compress_usingCDict((ZSTD_CCtx*)ctx, dst, dstCapacity, (const void*)src, srcSize, (const ZSTD_CDict*)cdict);
}

static size_t ZSTD_decompressDCtx_wrapper(void *ctx, void *dst, size_t dstCapacity, void *src, size_t srcSize) {
    return ZSTD_decompressDCtx((ZSTD_DCtx*)ctx, dst, dstCapacity, (const void*)src, srcSize);
}

static size_t ZSTD_decompress_usingDDict_wrapper(void *ctx, void *dst, size_t dstCapacity, void *src, size_t srcSize, void *ddict) {
    return ZSTD_decompress_usingDDict((ZSTD_DCtx*)ctx, dst, dstCapacity, (const void*)src, srcSize, (const ZSTD_DDict*)ddict);
}

static unsigned long long ZSTD_getFrameContentSize_wrapper(void *src, size_t srcSize) {
    return ZSTD_getFrameContentSize((const void*)src, srcSize);
}
*/
import "C"

import (
	"io"
	"reflect"
	"runtime"
	"sync"
	"unsafe"
)

// DefaultCompressionLevel is ZSTD_CLEVEL_DEFAULT.
const DefaultCompressionLevel = 3

// Compress appends compressed src to dst and returns the result. It uses a
// pooled native context, so repeated one-shot calls do not reallocate
// native state.
func Compress(dst, src []byte) ([]byte, error) {
	return CompressLevel(dst, src, DefaultCompressionLevel)
}

// CompressLevel appends compressed src to dst at the given compression
// level and returns the result.
func CompressLevel(dst, src []byte, compressionLevel int) ([]byte, error) {
	cw := oneShotCCtxPool.Get().(*oneShotCCtx)
	dst, err := oneShotCompress(cw, dst, src, nil, compressionLevel)
	oneShotCCtxPool.Put(cw)
	return dst, err
}

// CompressDict appends compressed src to dst using the digested dictionary
// cd and returns the result. The dictionary's baked-in level is used.
func CompressDict(dst, src []byte, cd *CDict) ([]byte, error) {
	cw := oneShotCCtxDictPool.Get().(*oneShotCCtx)
	dst, err := oneShotCompress(cw, dst, src, cd, 0)
	oneShotCCtxDictPool.Put(cw)
	return dst, err
}

// Pooled bare native contexts for the package-level one-shots. They hold
// no wrapper-side state, so a finalizer is enough to reclaim them.

type oneShotCCtx struct {
	cctx *C.ZSTD_CCtx
}

var oneShotCCtxPool = &sync.Pool{New: newOneShotCCtx}
var oneShotCCtxDictPool = &sync.Pool{New: newOneShotCCtx}

func newOneShotCCtx() interface{} {
	cw := &oneShotCCtx{cctx: C.ZSTD_createCCtx()}
	runtime.SetFinalizer(cw, freeOneShotCCtx)
	return cw
}

func freeOneShotCCtx(cw *oneShotCCtx) {
	C.ZSTD_freeCCtx(cw.cctx)
	cw.cctx = nil
}

func oneShotCompress(cw *oneShotCCtx, dst, src []byte, cd *CDict, compressionLevel int) ([]byte, error) {
	dstLen := len(dst)
	ctx := ErrorContext{
		InputSize:        len(src),
		OutputSize:       cap(dst) - dstLen,
		CompressionLevel: compressionLevel,
	}

	if cap(dst) > dstLen {
		// Fast path: try compressing into the spare capacity of dst.
		result, err := oneShotCompressInternal(cw, dst[dstLen:cap(dst)], src, cd, compressionLevel)
		if err != nil {
			return dst, err
		}
		if int(result) >= 0 {
			metricCompress(len(src), int(result), false)
			return dst[:dstLen+int(result)], nil
		}
		if C.ZSTD_getErrorCode(result) != C.ZSTD_error_dstSize_tooSmall {
			metricCompress(len(src), 0, true)
			return dst, mapZstdError(result, "compression", ctx)
		}
	}

	// Slow path: grow dst to the worst-case compressed size.
	compressBound := int(C.ZSTD_compressBound(C.size_t(len(src)))) + 1
	requiredTotal := dstLen + compressBound
	if cap(dst) < requiredTotal {
		newBuf := GetBuffer(requiredTotal)
		newBuf = append(newBuf, dst[:dstLen]...)
		dst = newBuf
	}

	result, err := oneShotCompressInternal(cw, dst[dstLen:dstLen+compressBound], src, cd, compressionLevel)
	if err != nil {
		return dst[:dstLen], err
	}
	if zstdIsError(result) {
		// With a compressBound-sized dst this cannot legally fail.
		ensureNoError("ZSTD_compressCCtx", result)
	}
	metricCompress(len(src), int(result), false)
	return dst[:dstLen+int(result)], nil
}

func oneShotCompressInternal(cw *oneShotCCtx, dst, src []byte, cd *CDict, compressionLevel int) (C.size_t, error) {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	if cd != nil {
		if !cd.acquireRef() {
			return 0, newZstdError(ErrDictionaryWrong, "compression",
				"digested dictionary already released", ErrorContext{InputSize: len(src)})
		}
		defer cd.releaseRef()

		result := C.ZSTD_compress_usingCDict_wrapper(
			unsafe.Pointer(cw.cctx),
			unsafe.Pointer(dstHdr.Data), C.size_t(cap(dst)),
			unsafe.Pointer(srcHdr.Data), C.size_t(len(src)),
			unsafe.Pointer(cd.p))
		// Prevent from GC'ing of dst and src during CGO call above.
		runtime.KeepAlive(dst)
		runtime.KeepAlive(src)
		return result, nil
	}

	result := C.ZSTD_compressCCtx_wrapper(
		unsafe.Pointer(cw.cctx),
		unsafe.Pointer(dstHdr.Data), C.size_t(cap(dst)),
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)),
		C.int(compressionLevel))
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	return result, nil
}

// compress2 compresses src into a frame appended to dst using cctx with
// whatever parameters and dictionary are applied to it. It backs
// CCtx.Compress.
func compress2(cctx *C.ZSTD_CCtx, dst, src []byte) ([]byte, error) {
	dstLen := len(dst)
	ctx := ErrorContext{
		InputSize:  len(src),
		OutputSize: cap(dst) - dstLen,
	}

	if cap(dst) > dstLen {
		result := compress2Internal(cctx, dst[dstLen:cap(dst)], src)
		if int(result) >= 0 {
			metricCompress(len(src), int(result), false)
			return dst[:dstLen+int(result)], nil
		}
		if C.ZSTD_getErrorCode(result) != C.ZSTD_error_dstSize_tooSmall {
			metricCompress(len(src), 0, true)
			return dst, mapZstdError(result, "compression", ctx)
		}
	}

	compressBound := int(C.ZSTD_compressBound(C.size_t(len(src)))) + 1
	requiredTotal := dstLen + compressBound
	if cap(dst) < requiredTotal {
		newBuf := GetBuffer(requiredTotal)
		newBuf = append(newBuf, dst[:dstLen]...)
		dst = newBuf
	}

	result := compress2Internal(cctx, dst[dstLen:dstLen+compressBound], src)
	if err := mapZstdError(result, "compression", ctx); err != nil {
		// Parameter combinations can still fail here, e.g. a pledged size
		// that does not match len(src).
		metricCompress(len(src), 0, true)
		return dst[:dstLen], err
	}
	metricCompress(len(src), int(result), false)
	return dst[:dstLen+int(result)], nil
}

func compress2Internal(cctx *C.ZSTD_CCtx, dst, src []byte) C.size_t {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	result := C.ZSTD_compress2_wrapper(
		unsafe.Pointer(cctx),
		unsafe.Pointer(dstHdr.Data), C.size_t(cap(dst)),
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	return result
}

// Decompress appends decompressed src to dst and returns the result. src
// must hold one or more complete frames.
func Decompress(dst, src []byte) ([]byte, error) {
	return DecompressDict(dst, src, nil)
}

// DecompressDict appends decompressed src to dst using the digested
// dictionary dd and returns the result.
func DecompressDict(dst, src []byte, dd *DDict) ([]byte, error) {
	var pool *sync.Pool
	if dd == nil {
		pool = oneShotDCtxPool
	} else {
		pool = oneShotDCtxDictPool
	}
	dw := pool.Get().(*oneShotDCtx)
	dst, err := oneShotDecompress(dw, dst, src, dd)
	pool.Put(dw)
	return dst, err
}

type oneShotDCtx struct {
	dctx *C.ZSTD_DCtx
}

var oneShotDCtxPool = &sync.Pool{New: newOneShotDCtx}
var oneShotDCtxDictPool = &sync.Pool{New: newOneShotDCtx}

func newOneShotDCtx() interface{} {
	dw := &oneShotDCtx{dctx: C.ZSTD_createDCtx()}
	runtime.SetFinalizer(dw, freeOneShotDCtx)
	return dw
}

func freeOneShotDCtx(dw *oneShotDCtx) {
	C.ZSTD_freeDCtx(dw.dctx)
	dw.dctx = nil
}

func oneShotDecompress(dw *oneShotDCtx, dst, src []byte, dd *DDict) ([]byte, error) {
	dstLen := len(dst)
	ctx := ErrorContext{
		InputSize:  len(src),
		OutputSize: cap(dst) - dstLen,
	}

	if cap(dst) > dstLen {
		// Fast path: try decompressing into the spare capacity of dst.
		result, err := oneShotDecompressInternal(dw, dst[dstLen:cap(dst)], src, dd)
		if err != nil {
			return dst, err
		}
		if int(result) >= 0 {
			metricDecompress(len(src), int(result), false)
			return dst[:dstLen+int(result)], nil
		}
		if C.ZSTD_getErrorCode(result) != C.ZSTD_error_dstSize_tooSmall {
			metricDecompress(len(src), 0, true)
			return dst[:dstLen], mapZstdError(result, "decompression", ctx)
		}
	}

	// Slow path: size dst from the declared content sizes.
	contentSize, err := totalContentSize(src)
	if err != nil {
		return dst, err
	}
	if contentSize < 0 {
		// Unknown content size, decode through the streaming core.
		return streamOneShotDecompress(dst, src, dd)
	}
	decompressBound := contentSize + 1

	requiredTotal := dstLen + decompressBound
	if cap(dst) < requiredTotal {
		newBuf := GetBuffer(requiredTotal)
		newBuf = append(newBuf, dst[:dstLen]...)
		dst = newBuf
	}

	result, err := oneShotDecompressInternal(dw, dst[dstLen:dstLen+decompressBound], src, dd)
	if err != nil {
		return dst[:dstLen], err
	}
	if zErr := mapZstdError(result, "decompression", ctx); zErr != nil {
		metricDecompress(len(src), 0, true)
		return dst[:dstLen], zErr
	}
	metricDecompress(len(src), int(result), false)
	return dst[:dstLen+int(result)], nil
}

func oneShotDecompressInternal(dw *oneShotDCtx, dst, src []byte, dd *DDict) (C.size_t, error) {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	if dd != nil {
		if !dd.acquireRef() {
			return 0, newZstdError(ErrDictionaryWrong, "decompression",
				"digested dictionary already released", ErrorContext{InputSize: len(src)})
		}
		defer dd.releaseRef()

		result := C.ZSTD_decompress_usingDDict_wrapper(
			unsafe.Pointer(dw.dctx),
			unsafe.Pointer(dstHdr.Data), C.size_t(cap(dst)),
			unsafe.Pointer(srcHdr.Data), C.size_t(len(src)),
			unsafe.Pointer(dd.p))
		// Prevent from GC'ing of dst and src during CGO call above.
		runtime.KeepAlive(dst)
		runtime.KeepAlive(src)
		return result, nil
	}

	result := C.ZSTD_decompressDCtx_wrapper(
		unsafe.Pointer(dw.dctx),
		unsafe.Pointer(dstHdr.Data), C.size_t(cap(dst)),
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	return result, nil
}

// frameContentSize reads the declared content size of the first frame in
// src. It returns -1 when the frame does not declare its size, and a
// FrameError when src does not start with a valid frame header.
func frameContentSize(src []byte) (int, error) {
	if len(src) == 0 {
		return 0, newZstdError(ErrSrcSizeWrong, "decompression",
			"input is empty", ErrorContext{})
	}
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	size := C.ZSTD_getFrameContentSize_wrapper(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	runtime.KeepAlive(src)
	switch size {
	case C.ZSTD_CONTENTSIZE_UNKNOWN:
		return -1, nil
	case C.ZSTD_CONTENTSIZE_ERROR:
		return 0, newZstdError(ErrPrefixUnknown, "decompression",
			"input does not begin with a valid frame header", ErrorContext{InputSize: len(src)})
	}
	return int(size), nil
}

// totalContentSize sums the declared content sizes of every frame in src,
// skippable frames included. It returns -1 when any frame leaves its size
// undeclared.
func totalContentSize(src []byte) (int, error) {
	total := 0
	rest := src
	for len(rest) > 0 {
		size, err := frameContentSize(rest)
		if err != nil {
			return 0, err
		}
		if size < 0 {
			return -1, nil
		}
		total += size
		compressedSize, err := GetFrameCompressedSize(rest)
		if err != nil {
			return 0, err
		}
		rest = rest[compressedSize:]
	}
	return total, nil
}

// streamOneShotDecompress decodes frames with undeclared content size by
// running src through a pooled streaming Reader.
func streamOneShotDecompress(dst, src []byte, dd *DDict) ([]byte, error) {
	sd, err := getStreamDecompressor(dd)
	if err != nil {
		return dst, err
	}
	sd.dst = dst
	sd.src = src
	_, err = sd.zr.WriteTo(sd)
	dst = sd.dst
	putStreamDecompressor(sd)
	return dst, err
}

type streamDecompressor struct {
	dst       []byte
	src       []byte
	srcOffset int

	zr *Reader
}

type srcReader streamDecompressor

func (sr *srcReader) Read(p []byte) (int, error) {
	sd := (*streamDecompressor)(sr)
	n := copy(p, sd.src[sd.srcOffset:])
	sd.srcOffset += n
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (sd *streamDecompressor) Write(p []byte) (int, error) {
	sd.dst = append(sd.dst, p...)
	return len(p), nil
}

func getStreamDecompressor(dd *DDict) (*streamDecompressor, error) {
	v := streamDecompressorPool.Get()
	if v == nil {
		zr, err := NewReader(nil)
		if err != nil {
			return nil, err
		}
		v = &streamDecompressor{zr: zr}
	}
	sd := v.(*streamDecompressor)
	if err := sd.zr.Reset((*srcReader)(sd), dd); err != nil {
		streamDecompressorPool.Put(sd)
		return nil, err
	}
	return sd, nil
}

func putStreamDecompressor(sd *streamDecompressor) {
	sd.dst = nil
	sd.src = nil
	sd.srcOffset = 0
	streamDecompressorPool.Put(sd)
}

var streamDecompressorPool sync.Pool

// DecompressLimited appends decompressed src to dst, refusing to produce
// more than maxSize bytes. It protects against decompression bombs when
// the input comes from an untrusted source. The limit applies to the bytes
// appended, not to len(dst).
func DecompressLimited(dst, src []byte, maxSize int) ([]byte, error) {
	ctx := ErrorContext{InputSize: len(src), OutputSize: maxSize}

	contentSize, err := frameContentSize(src)
	if err != nil {
		return dst, err
	}
	if contentSize >= 0 && contentSize > maxSize {
		return dst, newZstdError(ErrDstSizeTooSmall, "decompression",
			"declared content size exceeds the configured limit", ctx)
	}

	zctx, err := NewDCtx()
	if err != nil {
		return dst, err
	}
	defer zctx.Release()

	dstLen := len(dst)
	in := NewInBuffer(src)
	chunk := make([]byte, DStreamOutSize())
	for {
		out := NewOutBuffer(chunk)
		res, err := zctx.DecompressStream(in, out)
		if err != nil {
			return dst[:dstLen], err
		}
		if len(dst)-dstLen+out.Pos() > maxSize {
			return dst[:dstLen], newZstdError(ErrDstSizeTooSmall, "decompression",
				"decompressed size exceeds the configured limit", ctx)
		}
		dst = append(dst, out.Bytes()...)
		if res.FrameComplete && in.Exhausted() {
			return dst, nil
		}
		if in.Exhausted() && out.Pos() == 0 {
			return dst[:dstLen], newZstdError(ErrSrcSizeWrong, "decompression",
				"input ends inside a frame", ctx)
		}
	}
}
