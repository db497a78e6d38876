package zstdsafe

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
)

// Checksum envelope. The checksum travels in a skippable frame ahead of
// the data frame, so enveloped output is still a valid stream for any
// decoder; decoders without this package simply skip it.

// ChecksumType selects the digest carried by the envelope.
type ChecksumType uint8

const (
	ChecksumXXH64 ChecksumType = 1
	ChecksumCRC32 ChecksumType = 2
)

const (
	envelopeMagic     = 0x4B435A53 // "SZCK" little-endian
	envelopeHeaderLen = 4 + 4      // skippable magic + frame size
)

func checksumLen(t ChecksumType) int {
	if t == ChecksumCRC32 {
		return 4
	}
	return 8
}

// CompressWithChecksum compresses src at the default level and prefixes
// the result with an XXH64 digest of the compressed bytes.
func CompressWithChecksum(dst, src []byte) ([]byte, error) {
	return CompressWithChecksumType(dst, src, ChecksumXXH64)
}

// CompressWithChecksumType is CompressWithChecksum with an explicit digest
// choice.
func CompressWithChecksumType(dst, src []byte, t ChecksumType) ([]byte, error) {
	if t != ChecksumXXH64 && t != ChecksumCRC32 {
		return dst, newZstdError(ErrParameterUnsupported, "checksum envelope",
			"unknown checksum type", ErrorContext{})
	}

	compressed, err := Compress(nil, src)
	if err != nil {
		return dst, err
	}

	payloadLen := 4 + 1 + checksumLen(t)
	header := make([]byte, envelopeHeaderLen+payloadLen)
	binary.LittleEndian.PutUint32(header[0:], skippableFrameMagicBase)
	binary.LittleEndian.PutUint32(header[4:], uint32(payloadLen))
	binary.LittleEndian.PutUint32(header[8:], envelopeMagic)
	header[12] = byte(t)
	switch t {
	case ChecksumXXH64:
		binary.LittleEndian.PutUint64(header[13:], xxhash.Sum64(compressed))
	case ChecksumCRC32:
		binary.LittleEndian.PutUint32(header[13:], crc32.ChecksumIEEE(compressed))
	}

	dst = append(dst, header...)
	return append(dst, compressed...), nil
}

// DecompressWithChecksum verifies the envelope digest and decompresses the
// payload appended to dst. Input without an envelope is decompressed
// directly, matching plain Decompress. A digest mismatch is reported as a
// CorruptionError before any decompression work happens.
func DecompressWithChecksum(dst, src []byte) ([]byte, error) {
	t, sum, payload, ok := parseEnvelope(src)
	if !ok {
		return Decompress(dst, src)
	}

	var actual uint64
	switch t {
	case ChecksumXXH64:
		actual = xxhash.Sum64(payload)
	case ChecksumCRC32:
		actual = uint64(crc32.ChecksumIEEE(payload))
	default:
		return dst, newZstdError(ErrParameterUnsupported, "checksum envelope",
			"unknown checksum type in envelope", ErrorContext{InputSize: len(src)})
	}
	if actual != sum {
		return dst, newZstdError(ErrChecksumWrong, "checksum envelope",
			"envelope checksum does not match the compressed payload", ErrorContext{InputSize: len(src)})
	}
	return Decompress(dst, payload)
}

// HasChecksumEnvelope reports whether src starts with a checksum envelope.
func HasChecksumEnvelope(src []byte) bool {
	_, _, _, ok := parseEnvelope(src)
	return ok
}

func parseEnvelope(src []byte) (t ChecksumType, sum uint64, payload []byte, ok bool) {
	if len(src) < envelopeHeaderLen+5 || !IsSkippableFrame(src) {
		return 0, 0, nil, false
	}
	payloadLen := int(binary.LittleEndian.Uint32(src[4:]))
	if payloadLen < 5 || len(src) < envelopeHeaderLen+payloadLen {
		return 0, 0, nil, false
	}
	body := src[envelopeHeaderLen : envelopeHeaderLen+payloadLen]
	if binary.LittleEndian.Uint32(body) != envelopeMagic {
		return 0, 0, nil, false
	}
	t = ChecksumType(body[4])
	digest := body[5:]
	switch t {
	case ChecksumXXH64:
		if len(digest) != 8 {
			return 0, 0, nil, false
		}
		sum = binary.LittleEndian.Uint64(digest)
	case ChecksumCRC32:
		if len(digest) != 4 {
			return 0, 0, nil, false
		}
		sum = uint64(binary.LittleEndian.Uint32(digest))
	default:
		return 0, 0, nil, false
	}
	return t, sum, src[envelopeHeaderLen+payloadLen:], true
}
