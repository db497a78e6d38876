package zstdsafe

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#include <zstd.h>

static unsigned long long ZSTD_frameContentSize_wrapper(void *src, size_t srcSize) {
    return ZSTD_getFrameContentSize((const void*)src, srcSize);
}

static size_t ZSTD_findFrameCompressedSize_wrapper(void *src, size_t srcSize) {
    return ZSTD_findFrameCompressedSize((const void*)src, srcSize);
}

static unsigned ZSTD_getDictID_fromFrame_wrapper(void *src, size_t srcSize) {
    return ZSTD_getDictID_fromFrame((const void*)src, srcSize);
}
*/
import "C"

import (
	"encoding/binary"
	"reflect"
	"runtime"
	"unsafe"
)

const (
	frameMagic = 0xFD2FB528

	// Skippable frames use magics 0x184D2A50 through 0x184D2A5F.
	skippableFrameMagicBase = 0x184D2A50
	skippableFrameMagicMask = 0xFFFFFFF0
)

// FrameInfo describes one frame without decoding its payload.
type FrameInfo struct {
	// ContentSize is the declared uncompressed size. Valid only when
	// HasContentSize is set; frames written without a pledged size omit it.
	ContentSize    uint64
	HasContentSize bool

	// CompressedSize is the exact byte length of the frame in the input,
	// found by scanning block headers.
	CompressedSize uint64

	// HasChecksum reports whether a 32-bit content checksum follows the
	// last block.
	HasChecksum bool

	// DictionaryID is the ID recorded in the frame header, 0 when the
	// frame was written without a dictionary or with dictID suppressed.
	DictionaryID uint32
}

// GetFrameContentSize reads the declared content size of the first frame
// in src. known is false when the frame is valid but does not declare its
// size. A malformed header is reported as a FrameError.
func GetFrameContentSize(src []byte) (size uint64, known bool, err error) {
	if len(src) < 4 {
		return 0, false, newZstdError(ErrSrcSizeWrong, "inspect frame",
			"input too small for a frame header", ErrorContext{InputSize: len(src)})
	}
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	result := C.ZSTD_frameContentSize_wrapper(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	runtime.KeepAlive(src)

	switch result {
	case C.ZSTD_CONTENTSIZE_ERROR:
		return 0, false, newZstdError(ErrPrefixUnknown, "inspect frame",
			"input does not begin with a valid frame header", ErrorContext{InputSize: len(src)})
	case C.ZSTD_CONTENTSIZE_UNKNOWN:
		return 0, false, nil
	}
	return uint64(result), true, nil
}

// GetFrameCompressedSize scans the first frame in src and returns its
// exact compressed length, so concatenated frames can be split without
// decoding.
func GetFrameCompressedSize(src []byte) (uint64, error) {
	if len(src) < 4 {
		return 0, newZstdError(ErrSrcSizeWrong, "inspect frame",
			"input too small for a frame header", ErrorContext{InputSize: len(src)})
	}
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	result := C.ZSTD_findFrameCompressedSize_wrapper(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	runtime.KeepAlive(src)

	if err := mapZstdError(result, "inspect frame", ErrorContext{InputSize: len(src)}); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// GetFrameDictID returns the dictionary ID declared by the first frame in
// src, or 0 when none is declared.
func GetFrameDictID(src []byte) uint32 {
	if len(src) == 0 {
		return 0
	}
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	id := C.ZSTD_getDictID_fromFrame_wrapper(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	runtime.KeepAlive(src)
	return uint32(id)
}

// IsZstdFrame reports whether src starts with a zstd frame magic. It is a
// cheap header check, not a validation of the frame body.
func IsZstdFrame(src []byte) bool {
	if len(src) < 4 {
		return false
	}
	return binary.LittleEndian.Uint32(src) == frameMagic
}

// IsSkippableFrame reports whether src starts with a skippable frame, the
// application-metadata container defined by the frame format.
func IsSkippableFrame(src []byte) bool {
	if len(src) < 4 {
		return false
	}
	return binary.LittleEndian.Uint32(src)&skippableFrameMagicMask == skippableFrameMagicBase
}

// GetFrameInfo collects the header metadata of the first frame in src.
func GetFrameInfo(src []byte) (*FrameInfo, error) {
	if !IsZstdFrame(src) {
		return nil, newZstdError(ErrPrefixUnknown, "inspect frame",
			"input does not begin with the frame magic", ErrorContext{InputSize: len(src)})
	}

	info := &FrameInfo{}
	size, known, err := GetFrameContentSize(src)
	if err != nil {
		return nil, err
	}
	info.ContentSize = size
	info.HasContentSize = known

	compressedSize, err := GetFrameCompressedSize(src)
	if err != nil {
		return nil, err
	}
	info.CompressedSize = compressedSize

	if len(src) >= 5 {
		// Bit 2 of the frame header descriptor is the checksum flag.
		info.HasChecksum = src[4]&0x04 != 0
	}
	info.DictionaryID = GetFrameDictID(src)
	return info, nil
}
