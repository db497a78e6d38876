package zstdsafe

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#include <zstd.h>

// Wrapper avoids allocating cgo argument frames for hot calls.
// See https://github.com/golang/go/issues/24450 .
static size_t ZSTD_CCtx_loadDictionary_wrapper(void *cctx, void *dict, size_t dictSize) {
    return ZSTD_CCtx_loadDictionary((ZSTD_CCtx*)cctx, (const void*)dict, dictSize);
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

// CCtx owns one opaque native compression state. All stateful compression
// operations go through it. A CCtx is not reentrant: the caller must never
// have two operations in flight on the same context, though independent
// contexts are fully independent.
//
// Every CCtx must be released exactly once with Release. Using a context
// after Release, or releasing it twice, is a use-after-free class bug and
// panics rather than surfacing as a recoverable error.
type CCtx struct {
	cctx     *C.ZSTD_CCtx
	released int32

	// streaming is set by the first stream call of a session and cleared
	// when the frame completes or the session is reset. Parameters and
	// dictionaries are rejected while it is set because the native layer
	// leaves mid-session reconfiguration undefined.
	streaming bool

	// cdict pins a referenced digested dictionary for as long as the
	// native state may point at it.
	cdict *CDict

	paramsMu sync.RWMutex
	params   map[CParameter]int
}

// NewCCtx allocates a fresh compression context. Allocation failure is
// recoverable and reported as a MemoryError.
func NewCCtx() (*CCtx, error) {
	cctx := C.ZSTD_createCCtx()
	if cctx == nil {
		return nil, newZstdError(ErrMemoryAllocation, "create compression context",
			"cannot allocate ZSTD_CCtx", ErrorContext{})
	}
	ctx := &CCtx{
		cctx:   cctx,
		params: make(map[CParameter]int),
	}
	metricContextCreated()
	runtime.SetFinalizer(ctx, finalizeCCtx)
	return ctx, nil
}

// finalizeCCtx reclaims the native state of contexts the caller leaked.
// Explicitly released contexts clear their finalizer first.
func finalizeCCtx(ctx *CCtx) {
	if atomic.CompareAndSwapInt32(&ctx.released, 0, 1) {
		C.ZSTD_freeCCtx(ctx.cctx)
		ctx.cctx = nil
		metricContextReleased()
	}
}

// handle returns the native pointer, enforcing the no-use-after-release
// invariant. It is called at the top of every operation.
func (ctx *CCtx) handle() *C.ZSTD_CCtx {
	if atomic.LoadInt32(&ctx.released) != 0 {
		panic("BUG: CCtx used after Release")
	}
	return ctx.cctx
}

// Release frees the native state. It must be called exactly once, after
// all operations referencing the context have completed.
func (ctx *CCtx) Release() {
	if !atomic.CompareAndSwapInt32(&ctx.released, 0, 1) {
		panic("BUG: CCtx released twice")
	}
	runtime.SetFinalizer(ctx, nil)
	C.ZSTD_freeCCtx(ctx.cctx)
	ctx.cctx = nil
	ctx.cdict = nil
	metricContextReleased()
}

// Reset re-primes the context for a new frame without reallocating the
// native state. ZSTD_reset_session_only abandons the current session and
// keeps parameters; ZSTD_reset_parameters returns parameters to defaults
// and may not be used mid-session; ZSTD_reset_session_and_parameters does
// both.
func (ctx *CCtx) Reset(directive ResetDirective) error {
	result := C.ZSTD_CCtx_reset(ctx.handle(), C.ZSTD_ResetDirective(directive))
	if err := mapZstdError(result, "reset compression context", ErrorContext{}); err != nil {
		return err
	}
	if directive == ZSTD_reset_session_only || directive == ZSTD_reset_session_and_parameters {
		ctx.streaming = false
	}
	if directive == ZSTD_reset_parameters || directive == ZSTD_reset_session_and_parameters {
		ctx.paramsMu.Lock()
		ctx.params = make(map[CParameter]int)
		ctx.paramsMu.Unlock()
		ctx.cdict = nil
	}
	return nil
}

// SetParameter applies one compression parameter. The value is validated
// against the bounds the native layer advertises for the identifier, and
// against cross-parameter constraints, before the native state is touched:
// a rejected set leaves all previously applied parameters unchanged.
//
// Parameters must be fully applied before the first streaming call of a
// session; a mid-session set is rejected with a StreamStateError.
func (ctx *CCtx) SetParameter(param CParameter, value int) error {
	h := ctx.handle()
	if ctx.streaming {
		return newZstdError(ErrStageWrong, "set parameter",
			"parameters must be applied before streaming begins", ErrorContext{})
	}
	if err := checkCParamValue(param, value); err != nil {
		return err
	}

	ctx.paramsMu.Lock()
	defer ctx.paramsMu.Unlock()

	pending := make(map[CParameter]int, len(ctx.params)+1)
	for k, v := range ctx.params {
		pending[k] = v
	}
	pending[param] = value
	if err := checkParamDependencies(pending); err != nil {
		return err
	}

	result := C.ZSTD_CCtx_setParameter(h, C.ZSTD_cParameter(param), C.int(value))
	if err := mapZstdError(result, "set parameter", ErrorContext{CompressionLevel: value}); err != nil {
		return err
	}
	ctx.params[param] = value
	return nil
}

// GetParameter returns the last value applied for param on this context,
// if any. It reads the wrapper-side parameter table; parameters returned
// to defaults by Reset are absent.
func (ctx *CCtx) GetParameter(param CParameter) (int, bool) {
	ctx.handle()
	ctx.paramsMu.RLock()
	defer ctx.paramsMu.RUnlock()
	value, ok := ctx.params[param]
	return value, ok
}

// SetPledgedSrcSize declares the total input size of the next frame. The
// value is written into the frame header and verified at end of frame.
// It is valid for one frame only and is discarded when the frame ends.
func (ctx *CCtx) SetPledgedSrcSize(srcSize uint64) error {
	h := ctx.handle()
	if ctx.streaming {
		return newZstdError(ErrStageWrong, "set pledged source size",
			"pledged size must be set before streaming begins", ErrorContext{})
	}
	result := C.ZSTD_CCtx_setPledgedSrcSize(h, C.ulonglong(srcSize))
	return mapZstdError(result, "set pledged source size", ErrorContext{InputSize: int(srcSize)})
}

// LoadDictionary loads raw dictionary content for the frames that follow.
// The bytes are copied by the native layer at load time, so dict does not
// need to outlive the call. An empty dict returns the context to
// no-dictionary mode. The dictionary must be loaded before the first
// streaming call of a session and persists across frames until replaced
// or the parameters are reset.
func (ctx *CCtx) LoadDictionary(dict []byte) error {
	h := ctx.handle()
	if ctx.streaming {
		return newZstdError(ErrStageWrong, "load dictionary",
			"dictionary must be loaded before streaming begins", ErrorContext{})
	}
	dictHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dict))
	result := C.ZSTD_CCtx_loadDictionary_wrapper(
		unsafe.Pointer(h),
		unsafe.Pointer(dictHdr.Data),
		C.size_t(len(dict)))
	runtime.KeepAlive(dict)
	if err := mapZstdError(result, "load dictionary", ErrorContext{InputSize: len(dict)}); err != nil {
		return err
	}
	ctx.cdict = nil
	return nil
}

// RefCDict references a digested dictionary for the frames that follow.
// Unlike LoadDictionary no processing happens per context: the same CDict
// may be referenced by many contexts concurrently. The context pins cd
// until the reference is replaced or the parameters are reset, but the
// caller must still not Release cd while any context references it.
func (ctx *CCtx) RefCDict(cd *CDict) error {
	h := ctx.handle()
	if ctx.streaming {
		return newZstdError(ErrStageWrong, "reference dictionary",
			"dictionary must be referenced before streaming begins", ErrorContext{})
	}
	var p *C.ZSTD_CDict
	if cd != nil {
		if !cd.acquireRef() {
			return newZstdError(ErrDictionaryWrong, "reference dictionary",
				"digested dictionary already released", ErrorContext{})
		}
		defer cd.releaseRef()
		p = cd.p
	}
	result := C.ZSTD_CCtx_refCDict(h, p)
	if err := mapZstdError(result, "reference dictionary", ErrorContext{}); err != nil {
		return err
	}
	ctx.cdict = cd
	return nil
}

// Compress performs a one-shot compression of src into a frame appended to
// dst, honoring all parameters applied to the context.
func (ctx *CCtx) Compress(dst, src []byte) ([]byte, error) {
	return compress2(ctx.handle(), dst, src)
}

// InSession reports whether a streaming session is currently open on the
// context, i.e. a frame has been started and not yet completed or reset.
func (ctx *CCtx) InSession() bool {
	ctx.handle()
	return ctx.streaming
}

// String describes the context state for diagnostics.
func (ctx *CCtx) String() string {
	if atomic.LoadInt32(&ctx.released) != 0 {
		return "CCtx(released)"
	}
	ctx.paramsMu.RLock()
	n := len(ctx.params)
	ctx.paramsMu.RUnlock()
	return fmt.Sprintf("CCtx(params=%d, streaming=%v)", n, ctx.streaming)
}
