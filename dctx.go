package zstdsafe

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#include <zstd.h>

static size_t ZSTD_DCtx_loadDictionary_wrapper(void *dctx, void *dict, size_t dictSize) {
    return ZSTD_DCtx_loadDictionary((ZSTD_DCtx*)dctx, (const void*)dict, dictSize);
}
*/
import "C"

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// DCtx owns one opaque native decompression state. The same ownership and
// lifecycle rules as CCtx apply: one operation in flight at a time, one
// Release exactly, panics on use after release.
type DCtx struct {
	dctx     *C.ZSTD_DCtx
	released int32

	// streaming is set while a frame is partially decoded and cleared on
	// frame completion or session reset.
	streaming bool

	// ddict pins a referenced digested dictionary.
	ddict *DDict

	paramsMu sync.RWMutex
	params   map[DParameter]int
}

// NewDCtx allocates a fresh decompression context. Allocation failure is
// recoverable and reported as a MemoryError.
func NewDCtx() (*DCtx, error) {
	dctx := C.ZSTD_createDCtx()
	if dctx == nil {
		return nil, newZstdError(ErrMemoryAllocation, "create decompression context",
			"cannot allocate ZSTD_DCtx", ErrorContext{})
	}
	ctx := &DCtx{
		dctx:   dctx,
		params: make(map[DParameter]int),
	}
	metricContextCreated()
	runtime.SetFinalizer(ctx, finalizeDCtx)
	return ctx, nil
}

func finalizeDCtx(ctx *DCtx) {
	if atomic.CompareAndSwapInt32(&ctx.released, 0, 1) {
		C.ZSTD_freeDCtx(ctx.dctx)
		ctx.dctx = nil
		metricContextReleased()
	}
}

func (ctx *DCtx) handle() *C.ZSTD_DCtx {
	if atomic.LoadInt32(&ctx.released) != 0 {
		panic("BUG: DCtx used after Release")
	}
	return ctx.dctx
}

// Release frees the native state. It must be called exactly once.
func (ctx *DCtx) Release() {
	if !atomic.CompareAndSwapInt32(&ctx.released, 0, 1) {
		panic("BUG: DCtx released twice")
	}
	runtime.SetFinalizer(ctx, nil)
	C.ZSTD_freeDCtx(ctx.dctx)
	ctx.dctx = nil
	ctx.ddict = nil
	metricContextReleased()
}

// Reset re-primes the context for a new frame without reallocating.
func (ctx *DCtx) Reset(directive ResetDirective) error {
	result := C.ZSTD_DCtx_reset(ctx.handle(), C.ZSTD_ResetDirective(directive))
	if err := mapZstdError(result, "reset decompression context", ErrorContext{}); err != nil {
		return err
	}
	if directive == ZSTD_reset_session_only || directive == ZSTD_reset_session_and_parameters {
		ctx.streaming = false
	}
	if directive == ZSTD_reset_parameters || directive == ZSTD_reset_session_and_parameters {
		ctx.paramsMu.Lock()
		ctx.params = make(map[DParameter]int)
		ctx.paramsMu.Unlock()
		ctx.ddict = nil
	}
	return nil
}

// SetParameter applies one decompression parameter, validated against the
// native bounds before the native state is touched. Mid-session sets are
// rejected.
func (ctx *DCtx) SetParameter(param DParameter, value int) error {
	h := ctx.handle()
	if ctx.streaming {
		return newZstdError(ErrStageWrong, "set parameter",
			"parameters must be applied before streaming begins", ErrorContext{})
	}
	lower, upper, err := DParamBounds(param)
	if err != nil {
		return err
	}
	if value < lower || value > upper {
		return newZstdError(ErrParameterOutOfBound, "set parameter",
			fmt.Sprintf("parameter %d value %d outside valid range [%d, %d]", param, value, lower, upper),
			ErrorContext{})
	}

	ctx.paramsMu.Lock()
	defer ctx.paramsMu.Unlock()
	result := C.ZSTD_DCtx_setParameter(h, C.ZSTD_dParameter(param), C.int(value))
	if err := mapZstdError(result, "set parameter", ErrorContext{}); err != nil {
		return err
	}
	ctx.params[param] = value
	return nil
}

// GetParameter returns the last value applied for param on this context.
func (ctx *DCtx) GetParameter(param DParameter) (int, bool) {
	ctx.handle()
	ctx.paramsMu.RLock()
	defer ctx.paramsMu.RUnlock()
	value, ok := ctx.params[param]
	return value, ok
}

// LoadDictionary loads raw dictionary content for the frames that follow.
// The bytes are copied by the native layer at load time. An empty dict
// returns the context to no-dictionary mode.
func (ctx *DCtx) LoadDictionary(dict []byte) error {
	h := ctx.handle()
	if ctx.streaming {
		return newZstdError(ErrStageWrong, "load dictionary",
			"dictionary must be loaded before streaming begins", ErrorContext{})
	}
	dictHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dict))
	result := C.ZSTD_DCtx_loadDictionary_wrapper(
		unsafe.Pointer(h),
		unsafe.Pointer(dictHdr.Data),
		C.size_t(len(dict)))
	runtime.KeepAlive(dict)
	if err := mapZstdError(result, "load dictionary", ErrorContext{InputSize: len(dict)}); err != nil {
		return err
	}
	ctx.ddict = nil
	return nil
}

// RefDDict references a digested dictionary for the frames that follow.
// The same DDict may be referenced by many contexts concurrently. The
// caller must not Release dd while any context references it.
func (ctx *DCtx) RefDDict(dd *DDict) error {
	h := ctx.handle()
	if ctx.streaming {
		return newZstdError(ErrStageWrong, "reference dictionary",
			"dictionary must be referenced before streaming begins", ErrorContext{})
	}
	var p *C.ZSTD_DDict
	if dd != nil {
		if !dd.acquireRef() {
			return newZstdError(ErrDictionaryWrong, "reference dictionary",
				"digested dictionary already released", ErrorContext{})
		}
		defer dd.releaseRef()
		p = dd.p
	}
	result := C.ZSTD_DCtx_refDDict(h, p)
	if err := mapZstdError(result, "reference dictionary", ErrorContext{}); err != nil {
		return err
	}
	ctx.ddict = dd
	return nil
}

// Decompress performs a one-shot decompression of exactly one frame into
// dst, honoring the parameters and dictionary applied to the context. dst
// must be large enough for the whole frame content; a too-small dst is
// reported as a BufferError.
func (ctx *DCtx) Decompress(dst, src []byte) (int, error) {
	h := ctx.handle()
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	result := C.ZSTD_decompressDCtx(h,
		unsafe.Pointer(dstHdr.Data), C.size_t(len(dst)),
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	if err := mapZstdError(result, "decompression", ErrorContext{
		InputSize:  len(src),
		OutputSize: len(dst),
	}); err != nil {
		return 0, err
	}
	return int(result), nil
}

// InSession reports whether a frame is partially decoded on the context.
func (ctx *DCtx) InSession() bool {
	ctx.handle()
	return ctx.streaming
}
