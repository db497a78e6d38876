package zstdsafe

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#include <zstd.h>
#include <zstd_errors.h>

// getBounds helpers flatten ZSTD_bounds into out-params so the Go side
// deals with plain ints.

static int ZSTD_cParam_getBounds_wrapper(int param, int *lower, int *upper) {
    ZSTD_bounds b = ZSTD_cParam_getBounds((ZSTD_cParameter)param);
    if (ZSTD_isError(b.error)) {
        return (int)ZSTD_getErrorCode(b.error);
    }
    *lower = b.lowerBound;
    *upper = b.upperBound;
    return 0;
}

static int ZSTD_dParam_getBounds_wrapper(int param, int *lower, int *upper) {
    ZSTD_bounds b = ZSTD_dParam_getBounds((ZSTD_dParameter)param);
    if (ZSTD_isError(b.error)) {
        return (int)ZSTD_getErrorCode(b.error);
    }
    *lower = b.lowerBound;
    *upper = b.upperBound;
    return 0;
}
*/
import "C"

import "fmt"

// CParameter identifies a compression parameter. The values match the
// ZSTD_cParameter enum; they are fixed by the zstd format interface and
// cannot be imported through cgo because cgo does not expose C enums as
// typed Go constants.
type CParameter int

const (
	// Pre-defined compression level table selector. Value 0 means the
	// default level (ZSTD_CLEVEL_DEFAULT == 3). Negative values trade ratio
	// for speed. Setting a level resets the advanced parameters below to
	// the defaults of that level.
	ZSTD_c_compressionLevel CParameter = 100

	// Maximum back-reference distance as a power of 2. Sets the memory
	// budget for streaming decompression on the other side.
	ZSTD_c_windowLog CParameter = 101

	// Initial probe table size as a power of 2; memory is 2^(hashLog+2).
	ZSTD_c_hashLog CParameter = 102

	// Multi-probe search table size as a power of 2; unused by the fast
	// strategy.
	ZSTD_c_chainLog CParameter = 103

	// Number of search attempts as a power of 2.
	ZSTD_c_searchLog CParameter = 104

	// Minimum searched match length; effective range depends on strategy.
	ZSTD_c_minMatch CParameter = 105

	// Strategy-dependent optimization target: "good enough" match length
	// for btopt+ strategies, sampling distance for the fast strategy.
	ZSTD_c_targetLength CParameter = 106

	// Match-finder strategy, ZSTD_fast through ZSTD_btultra2.
	ZSTD_c_strategy CParameter = 107

	// Target compressed block size; the encoder tries to fit blocks around
	// it. 0 disables. Stable since libzstd 1.5.6.
	ZSTD_c_targetCBlockSize CParameter = 130

	// Long-distance matching. Enabling it raises the default windowLog.
	ZSTD_c_enableLongDistanceMatching CParameter = 160
	ZSTD_c_ldmHashLog                 CParameter = 161
	ZSTD_c_ldmMinMatch                CParameter = 162
	ZSTD_c_ldmBucketSizeLog           CParameter = 163
	ZSTD_c_ldmHashRateLog             CParameter = 164

	// Frame parameters.
	ZSTD_c_contentSizeFlag CParameter = 200 // write content size into frame header when known (default 1)
	ZSTD_c_checksumFlag    CParameter = 201 // append a 32-bit content checksum (default 0)
	ZSTD_c_dictIDFlag      CParameter = 202 // write dictionary ID into frame header (default 1)

	// Multi-threading parameters. They are rejected with a parameter error
	// by libzstd builds compiled without ZSTD_MULTITHREAD; see
	// HasMultithreading.
	ZSTD_c_nbWorkers  CParameter = 400
	ZSTD_c_jobSize    CParameter = 401
	ZSTD_c_overlapLog CParameter = 402
)

// DParameter identifies a decompression parameter, matching ZSTD_dParameter.
type DParameter int

const (
	// Maximum window size the decoder will accept, as a power of 2.
	// Protects the decoder against frames requiring unreasonable memory.
	ZSTD_d_windowLogMax DParameter = 100
)

// ResetDirective selects what a context reset clears, matching
// ZSTD_ResetDirective.
type ResetDirective int

const (
	ZSTD_reset_session_only           ResetDirective = 1
	ZSTD_reset_parameters             ResetDirective = 2
	ZSTD_reset_session_and_parameters ResetDirective = 3
)

// Compression strategies, from fastest to strongest.
const (
	ZSTD_fast     = 1
	ZSTD_dfast    = 2
	ZSTD_greedy   = 3
	ZSTD_lazy     = 4
	ZSTD_lazy2    = 5
	ZSTD_btlazy2  = 6
	ZSTD_btopt    = 7
	ZSTD_btultra  = 8
	ZSTD_btultra2 = 9
)

// CParamBounds queries the native layer for the legal range of a
// compression parameter. Unsupported identifiers yield a ParameterError.
func CParamBounds(param CParameter) (lower, upper int, err error) {
	var lo, hi C.int
	code := C.ZSTD_cParam_getBounds_wrapper(C.int(param), &lo, &hi)
	if code != 0 {
		return 0, 0, newZstdError(ErrorCode(code), "query parameter bounds",
			fmt.Sprintf("compression parameter %d is not supported", param), ErrorContext{})
	}
	return int(lo), int(hi), nil
}

// DParamBounds queries the native layer for the legal range of a
// decompression parameter.
func DParamBounds(param DParameter) (lower, upper int, err error) {
	var lo, hi C.int
	code := C.ZSTD_dParam_getBounds_wrapper(C.int(param), &lo, &hi)
	if code != 0 {
		return 0, 0, newZstdError(ErrorCode(code), "query parameter bounds",
			fmt.Sprintf("decompression parameter %d is not supported", param), ErrorContext{})
	}
	return int(lo), int(hi), nil
}

// checkCParamValue validates value against the advertised native bounds
// before any state is touched. Out-of-bound values are rejected with the
// same code the native layer would use.
func checkCParamValue(param CParameter, value int) error {
	lower, upper, err := CParamBounds(param)
	if err != nil {
		return err
	}
	if value < lower || value > upper {
		return newZstdError(ErrParameterOutOfBound, "set parameter",
			fmt.Sprintf("parameter %d value %d outside valid range [%d, %d]", param, value, lower, upper),
			ErrorContext{CompressionLevel: value})
	}
	return nil
}

// checkParamDependencies rejects parameter combinations the native layer
// accepts individually but cannot honor together. params holds the full
// pending parameter set including the value being applied.
func checkParamDependencies(params map[CParameter]int) error {
	if enable, ok := params[ZSTD_c_enableLongDistanceMatching]; ok && enable == 1 {
		ldmHashLog, hasLDMHash := params[ZSTD_c_ldmHashLog]
		windowLog, hasWindow := params[ZSTD_c_windowLog]
		if hasLDMHash && hasWindow && ldmHashLog > windowLog {
			return newZstdError(ErrParameterCombination, "set parameter",
				fmt.Sprintf("ldmHashLog (%d) cannot exceed windowLog (%d)", ldmHashLog, windowLog),
				ErrorContext{})
		}
	}
	if strategy, ok := params[ZSTD_c_strategy]; ok {
		if minMatch, ok := params[ZSTD_c_minMatch]; ok {
			if strategy == ZSTD_fast && minMatch < 4 {
				// The fast strategy silently clamps to 4; reject instead of
				// letting the caller believe the value took effect.
				return newZstdError(ErrParameterCombination, "set parameter",
					fmt.Sprintf("minMatch %d is below the effective minimum 4 for the fast strategy", minMatch),
					ErrorContext{})
			}
		}
	}
	return nil
}
