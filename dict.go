package zstdsafe

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#include <zstd.h>
#include <zdict.h>

// See https://github.com/golang/go/issues/24450 for why these shims exist.

static ZSTD_CDict* ZSTD_createCDict_wrapper(void *dictBuffer, size_t dictSize, int compressionLevel) {
    return ZSTD_createCDict((const void*)dictBuffer, dictSize, compressionLevel);
}

static ZSTD_DDict* ZSTD_createDDict_wrapper(void *dictBuffer, size_t dictSize) {
    return ZSTD_createDDict((const void*)dictBuffer, dictSize);
}

static ZSTD_CDict* ZSTD_createCDict_byReference_wrapper(void *dictBuffer, size_t dictSize, int compressionLevel) {
    return ZSTD_createCDict_byReference((const void*)dictBuffer, dictSize, compressionLevel);
}

static ZSTD_DDict* ZSTD_createDDict_byReference_wrapper(void *dictBuffer, size_t dictSize) {
    return ZSTD_createDDict_byReference((const void*)dictBuffer, dictSize);
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// minDictLen is ZDICT_DICTSIZE_MIN: the smallest dictionary the trainer
// will produce.
const minDictLen = 256

// minSamplesLen is ZDICT_CONTENTSIZE_MIN: the least sample content the
// trainer accepts.
const minSamplesLen = 128

// BuildDict trains a dictionary from the given samples. The result size is
// close to desiredDictLen. It returns nil when the samples carry too
// little content to train from.
//
// The returned bytes may be passed to NewCDict*, NewDDict* and the
// contexts' LoadDictionary.
func BuildDict(samples [][]byte, desiredDictLen int) []byte {
	if desiredDictLen < minDictLen {
		desiredDictLen = minDictLen
	}
	dict := make([]byte, desiredDictLen)

	samplesBufLen := 0
	for _, sample := range samples {
		samplesBufLen += len(sample)
	}
	samplesBuf := make([]byte, 0, samplesBufLen)
	samplesSizes := make([]C.size_t, 0, len(samples))
	for _, sample := range samples {
		if len(sample) == 0 {
			continue
		}
		samplesBuf = append(samplesBuf, sample...)
		samplesSizes = append(samplesSizes, C.size_t(len(sample)))
	}
	if len(samplesBuf) < minSamplesLen || len(samplesSizes) == 0 {
		return nil
	}

	// ZDICT_trainFromBuffer crashes under concurrent use, so serialize it.
	buildDictLock.Lock()
	result := C.ZDICT_trainFromBuffer(
		unsafe.Pointer(&dict[0]),
		C.size_t(len(dict)),
		unsafe.Pointer(&samplesBuf[0]),
		&samplesSizes[0],
		C.unsigned(len(samplesSizes)))
	buildDictLock.Unlock()
	if C.ZDICT_isError(result) != 0 {
		return nil
	}
	return dict[:int(result)]
}

var buildDictLock sync.Mutex

// CDict is a digested compression dictionary: dictionary bytes
// pre-processed once by the native layer so many contexts can reference it
// without repeating that work. A CDict is immutable after creation and
// safe to share across goroutines.
//
// A CDict owns native memory with its own lifecycle: call Release when no
// context references it anymore. References taken by in-flight operations
// are counted, so a Release that races an operation defers the actual free
// until the operation returns.
type CDict struct {
	p                *C.ZSTD_CDict
	compressionLevel int
	refCount         int64
	released         int64
}

// NewCDict digests dict at the default compression level. The dict bytes
// are copied by the native layer; the slice does not need to outlive the
// CDict.
func NewCDict(dict []byte) (*CDict, error) {
	return NewCDictLevel(dict, DefaultCompressionLevel)
}

// NewCDictLevel digests dict for compression at the given level. The level
// is baked into the digested form and supersedes the level of any context
// that references it.
func NewCDictLevel(dict []byte, compressionLevel int) (*CDict, error) {
	if len(dict) == 0 {
		return nil, fmt.Errorf("dict cannot be empty")
	}
	p := C.ZSTD_createCDict_wrapper(
		unsafe.Pointer(&dict[0]),
		C.size_t(len(dict)),
		C.int(compressionLevel))
	runtime.KeepAlive(dict)
	if p == nil {
		return nil, newZstdError(ErrDictionaryCreationFailed, "create digested dictionary",
			"cannot digest compression dictionary", ErrorContext{InputSize: len(dict)})
	}
	cd := &CDict{p: p, compressionLevel: compressionLevel, refCount: 1}
	metricDictCreated()
	runtime.SetFinalizer(cd, freeCDict)
	return cd, nil
}

// NewCDictByRef digests dict without copying its bytes. The caller must
// keep dict valid and unchanged for the whole lifetime of the CDict; this
// is the retained-reference optimization, not the default.
func NewCDictByRef(dict []byte) (*CDict, error) {
	return NewCDictByRefLevel(dict, DefaultCompressionLevel)
}

// NewCDictByRefLevel is NewCDictByRef with an explicit compression level.
func NewCDictByRefLevel(dict []byte, compressionLevel int) (*CDict, error) {
	if len(dict) == 0 {
		return nil, fmt.Errorf("dict cannot be empty")
	}
	p := C.ZSTD_createCDict_byReference_wrapper(
		unsafe.Pointer(&dict[0]),
		C.size_t(len(dict)),
		C.int(compressionLevel))
	runtime.KeepAlive(dict)
	if p == nil {
		return nil, newZstdError(ErrDictionaryCreationFailed, "create digested dictionary",
			"cannot digest compression dictionary", ErrorContext{InputSize: len(dict)})
	}
	cd := &CDict{p: p, compressionLevel: compressionLevel, refCount: 1}
	metricDictCreated()
	runtime.SetFinalizer(cd, freeCDict)
	return cd, nil
}

// acquireRef takes a counted reference for the duration of one native
// call. It fails when the dictionary has already been released.
func (cd *CDict) acquireRef() bool {
	for {
		if atomic.LoadInt64(&cd.released) != 0 {
			return false
		}
		old := atomic.LoadInt64(&cd.refCount)
		if old <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&cd.refCount, old, old+1) {
			if atomic.LoadInt64(&cd.released) != 0 {
				// Release won the race; drop the ref properly so the
				// last one out still frees the native struct.
				cd.releaseRef()
				return false
			}
			return true
		}
	}
}

func (cd *CDict) releaseRef() {
	n := atomic.AddInt64(&cd.refCount, -1)
	if n == 0 {
		result := C.ZSTD_freeCDict(cd.p)
		ensureNoError("ZSTD_freeCDict", result)
		cd.p = nil
		metricDictReleased()
	} else if n < 0 {
		panic("BUG: CDict reference count went negative")
	}
}

// Release drops the caller's ownership of cd. The native memory is freed
// once no in-flight operation references it. cd must not be used after
// Release. Release is safe to call at most once per owner; repeated calls
// are ignored.
func (cd *CDict) Release() {
	if cd == nil {
		return
	}
	if !atomic.CompareAndSwapInt64(&cd.released, 0, 1) {
		return
	}
	cd.releaseRef()
}

func freeCDict(cd *CDict) {
	cd.Release()
}

// DDict is a digested decompression dictionary, shareable across many
// decompression contexts. The same ownership rules as CDict apply.
type DDict struct {
	p        *C.ZSTD_DDict
	refCount int64
	released int64
}

// NewDDict digests dict for decompression, copying its bytes.
func NewDDict(dict []byte) (*DDict, error) {
	if len(dict) == 0 {
		return nil, fmt.Errorf("dict cannot be empty")
	}
	p := C.ZSTD_createDDict_wrapper(
		unsafe.Pointer(&dict[0]),
		C.size_t(len(dict)))
	runtime.KeepAlive(dict)
	if p == nil {
		return nil, newZstdError(ErrDictionaryCreationFailed, "create digested dictionary",
			"cannot digest decompression dictionary", ErrorContext{InputSize: len(dict)})
	}
	dd := &DDict{p: p, refCount: 1}
	metricDictCreated()
	runtime.SetFinalizer(dd, freeDDict)
	return dd, nil
}

// NewDDictByRef digests dict without copying its bytes. The caller must
// keep dict valid and unchanged for the whole lifetime of the DDict.
func NewDDictByRef(dict []byte) (*DDict, error) {
	if len(dict) == 0 {
		return nil, fmt.Errorf("dict cannot be empty")
	}
	p := C.ZSTD_createDDict_byReference_wrapper(
		unsafe.Pointer(&dict[0]),
		C.size_t(len(dict)))
	runtime.KeepAlive(dict)
	if p == nil {
		return nil, newZstdError(ErrDictionaryCreationFailed, "create digested dictionary",
			"cannot digest decompression dictionary", ErrorContext{InputSize: len(dict)})
	}
	dd := &DDict{p: p, refCount: 1}
	metricDictCreated()
	runtime.SetFinalizer(dd, freeDDict)
	return dd, nil
}

func (dd *DDict) acquireRef() bool {
	for {
		if atomic.LoadInt64(&dd.released) != 0 {
			return false
		}
		old := atomic.LoadInt64(&dd.refCount)
		if old <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&dd.refCount, old, old+1) {
			if atomic.LoadInt64(&dd.released) != 0 {
				dd.releaseRef()
				return false
			}
			return true
		}
	}
}

func (dd *DDict) releaseRef() {
	n := atomic.AddInt64(&dd.refCount, -1)
	if n == 0 {
		result := C.ZSTD_freeDDict(dd.p)
		ensureNoError("ZSTD_freeDDict", result)
		dd.p = nil
		metricDictReleased()
	} else if n < 0 {
		panic("BUG: DDict reference count went negative")
	}
}

// Release drops the caller's ownership of dd; see CDict.Release.
func (dd *DDict) Release() {
	if dd == nil {
		return
	}
	if !atomic.CompareAndSwapInt64(&dd.released, 0, 1) {
		return
	}
	dd.releaseRef()
}

func freeDDict(dd *DDict) {
	dd.Release()
}
