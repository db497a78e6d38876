package zstdsafe

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#include <zstd.h>
#include <zstd_errors.h>
*/
import "C"

import (
	"errors"
	"fmt"
)

// ErrorCode is the native zstd error discriminant extracted from a failed
// size_t result. The values are stable across libzstd releases.
type ErrorCode int

const (
	ErrGeneric                   ErrorCode = 1
	ErrPrefixUnknown             ErrorCode = 10
	ErrVersionUnsupported        ErrorCode = 12
	ErrFrameParameterUnsupported ErrorCode = 14
	ErrFrameParameterWindowBig   ErrorCode = 16
	ErrCorruptionDetected        ErrorCode = 20
	ErrChecksumWrong             ErrorCode = 22
	ErrDictionaryCorrupted       ErrorCode = 30
	ErrDictionaryWrong           ErrorCode = 32
	ErrDictionaryCreationFailed  ErrorCode = 34
	ErrParameterUnsupported      ErrorCode = 40
	ErrParameterCombination      ErrorCode = 41
	ErrParameterOutOfBound       ErrorCode = 42
	ErrTableLogTooLarge          ErrorCode = 44
	ErrStageWrong                ErrorCode = 60
	ErrInitMissing               ErrorCode = 62
	ErrMemoryAllocation          ErrorCode = 64
	ErrWorkSpaceTooSmall         ErrorCode = 66
	ErrDstSizeTooSmall           ErrorCode = 70
	ErrSrcSizeWrong              ErrorCode = 72
	ErrDstBufferNull             ErrorCode = 74
	ErrNoProgressDestFull        ErrorCode = 80
	ErrNoProgressInputEmpty      ErrorCode = 82
)

// ErrorContext carries the sizes and settings in effect when a native call
// failed. It exists purely for diagnostics.
type ErrorContext struct {
	InputSize        int
	OutputSize       int
	CompressionLevel int
	DictionaryID     uint32
}

// ZstdError is the base error for every failure reported by the native
// layer. Raw size_t results never cross a component boundary: they are
// translated into a ZstdError (wrapped in one of the category types below)
// at the call site and consumed only in that form.
type ZstdError struct {
	Code      ErrorCode
	Operation string
	Message   string
	Context   ErrorContext
}

func (e *ZstdError) Error() string {
	return fmt.Sprintf("zstd %s error: %s (code %d)", e.Operation, e.Message, e.Code)
}

// Recoverable reports whether the caller can reasonably retry the operation
// with adjusted inputs. Corruption, version and generic failures are not
// recoverable; parameter, buffer and stream-state failures are.
func (e *ZstdError) Recoverable() bool {
	switch e.Code {
	case ErrParameterUnsupported, ErrParameterCombination, ErrParameterOutOfBound,
		ErrTableLogTooLarge, ErrDstSizeTooSmall, ErrDstBufferNull,
		ErrWorkSpaceTooSmall, ErrStageWrong, ErrInitMissing,
		ErrNoProgressDestFull, ErrNoProgressInputEmpty, ErrDictionaryWrong:
		return true
	}
	return false
}

// Category types. Each wraps *ZstdError so the code, operation and native
// message stay reachable through errors.As.
type (
	// ParameterError reports an invalid parameter identifier, value, or
	// combination, rejected either by the bounds check or the native layer.
	ParameterError struct{ *ZstdError }

	// DictionaryError reports a corrupt, mismatched or unloadable dictionary.
	DictionaryError struct{ *ZstdError }

	// MemoryError reports a failed native allocation.
	MemoryError struct{ *ZstdError }

	// BufferError reports destination or source buffer problems from
	// one-shot calls. Streaming calls never surface DstSizeTooSmall: a full
	// output view is normal operation there.
	BufferError struct{ *ZstdError }

	// CorruptionError reports corrupted input or a failed content checksum.
	CorruptionError struct{ *ZstdError }

	// FrameError reports input that is not a valid zstd frame.
	FrameError struct{ *ZstdError }

	// StreamStateError reports an operation issued in the wrong session
	// stage, such as loading a dictionary after streaming began.
	StreamStateError struct{ *ZstdError }

	// VersionError reports a frame produced by an unsupported format version.
	VersionError struct{ *ZstdError }
)

// zstdIsError reports whether a raw native result encodes an error.
func zstdIsError(result C.size_t) bool {
	if int(result) >= 0 {
		// Fast path: non-negative results are always byte counts or hints.
		return false
	}
	return C.ZSTD_isError(result) != 0
}

// mapZstdError is the single point where a raw native result becomes a
// discriminated Go error. It returns nil when result is a byte count or
// hint. The human-readable message comes from the native lookup table.
func mapZstdError(result C.size_t, operation string, ctx ErrorContext) error {
	if !zstdIsError(result) {
		return nil
	}
	code := ErrorCode(C.ZSTD_getErrorCode(result))
	return newZstdError(code, operation, C.GoString(C.ZSTD_getErrorString(C.ZSTD_ErrorCode(code))), ctx)
}

// newZstdError wraps a known error code in its category type. It is also
// used for errors detected Go-side before any native call, with the same
// codes the native layer would have produced.
func newZstdError(code ErrorCode, operation, message string, ctx ErrorContext) error {
	base := &ZstdError{
		Code:      code,
		Operation: operation,
		Message:   message,
		Context:   ctx,
	}
	switch code {
	case ErrParameterUnsupported, ErrParameterCombination, ErrParameterOutOfBound, ErrTableLogTooLarge:
		return &ParameterError{base}
	case ErrDictionaryCorrupted, ErrDictionaryWrong, ErrDictionaryCreationFailed:
		return &DictionaryError{base}
	case ErrMemoryAllocation, ErrWorkSpaceTooSmall:
		return &MemoryError{base}
	case ErrDstSizeTooSmall, ErrSrcSizeWrong, ErrDstBufferNull:
		return &BufferError{base}
	case ErrCorruptionDetected, ErrChecksumWrong:
		return &CorruptionError{base}
	case ErrPrefixUnknown, ErrFrameParameterUnsupported, ErrFrameParameterWindowBig:
		return &FrameError{base}
	case ErrStageWrong, ErrInitMissing, ErrNoProgressDestFull, ErrNoProgressInputEmpty:
		return &StreamStateError{base}
	case ErrVersionUnsupported:
		return &VersionError{base}
	}
	return base
}

// ensureNoError panics on native results that cannot legally fail. A failure
// here indicates a wrapper bug, not a caller error.
func ensureNoError(funcName string, result C.size_t) {
	if zstdIsError(result) {
		err := mapZstdError(result, funcName, ErrorContext{})
		panic(fmt.Errorf("BUG: unexpected error in %s: %w", funcName, err))
	}
}

// Category predicates. They follow wrapped chains via errors.As.

func IsParameterError(err error) bool   { var t *ParameterError; return errors.As(err, &t) }
func IsDictionaryError(err error) bool  { var t *DictionaryError; return errors.As(err, &t) }
func IsMemoryError(err error) bool      { var t *MemoryError; return errors.As(err, &t) }
func IsBufferError(err error) bool      { var t *BufferError; return errors.As(err, &t) }
func IsCorruptionError(err error) bool  { var t *CorruptionError; return errors.As(err, &t) }
func IsFrameError(err error) bool       { var t *FrameError; return errors.As(err, &t) }
func IsStreamStateError(err error) bool { var t *StreamStateError; return errors.As(err, &t) }
func IsVersionError(err error) bool     { var t *VersionError; return errors.As(err, &t) }
