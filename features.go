package zstdsafe

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#include <zstd.h>
*/
import "C"

import "sync"

// VersionNumber returns the linked libzstd version as MAJOR*10000 +
// MINOR*100 + PATCH.
func VersionNumber() int {
	return int(C.ZSTD_versionNumber())
}

// VersionString returns the linked libzstd version as "MAJOR.MINOR.PATCH".
func VersionString() string {
	return C.GoString(C.ZSTD_versionString())
}

var (
	mtOnce      sync.Once
	mtSupported bool
)

// HasMultithreading reports whether the linked libzstd was built with
// multithreaded compression. Builds without it reject ZSTD_c_nbWorkers
// values above zero with a parameter error; this probes that once on a
// scratch context and caches the answer.
func HasMultithreading() bool {
	mtOnce.Do(func() {
		cctx := C.ZSTD_createCCtx()
		if cctx == nil {
			return
		}
		defer C.ZSTD_freeCCtx(cctx)
		result := C.ZSTD_CCtx_setParameter(cctx, C.ZSTD_c_nbWorkers, 1)
		mtSupported = C.ZSTD_isError(result) == 0
	})
	return mtSupported
}
