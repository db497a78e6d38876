package main

import (
	"bytes"
	"fmt"
	"log"

	"github.com/zcodec/zstdsafe"
)

func main() {
	data := bytes.Repeat([]byte("Advanced parameter control over the compression context. "), 500)

	ctx, err := zstdsafe.NewCCtx()
	if err != nil {
		log.Fatalf("NewCCtx failed: %v", err)
	}
	defer ctx.Release()

	// Query bounds before setting anything.
	lo, hi, err := zstdsafe.CParamBounds(zstdsafe.ZSTD_c_compressionLevel)
	if err != nil {
		log.Fatalf("CParamBounds failed: %v", err)
	}
	fmt.Printf("Compression level range: [%d, %d]\n", lo, hi)

	if err := ctx.SetParameter(zstdsafe.ZSTD_c_compressionLevel, 19); err != nil {
		log.Fatalf("SetParameter failed: %v", err)
	}
	if err := ctx.SetParameter(zstdsafe.ZSTD_c_windowLog, 20); err != nil {
		log.Fatalf("SetParameter failed: %v", err)
	}
	if err := ctx.SetParameter(zstdsafe.ZSTD_c_checksumFlag, 1); err != nil {
		log.Fatalf("SetParameter failed: %v", err)
	}

	// Out-of-bound values are rejected and leave prior parameters intact.
	if err := ctx.SetParameter(zstdsafe.ZSTD_c_windowLog, 99); err != nil {
		fmt.Printf("Rejected as expected: %v\n", err)
		fmt.Printf("Is parameter error: %v\n", zstdsafe.IsParameterError(err))
	}

	// Pledging the source size writes it into the frame header.
	if err := ctx.SetPledgedSrcSize(uint64(len(data))); err != nil {
		log.Fatalf("SetPledgedSrcSize failed: %v", err)
	}

	compressed, err := ctx.Compress(nil, data)
	if err != nil {
		log.Fatalf("Compress failed: %v", err)
	}
	fmt.Printf("Compressed %d -> %d bytes\n", len(data), len(compressed))

	info, err := zstdsafe.GetFrameInfo(compressed)
	if err != nil {
		log.Fatalf("GetFrameInfo failed: %v", err)
	}
	fmt.Printf("Frame: content=%d checksum=%v\n", info.ContentSize, info.HasChecksum)

	decompressed, err := zstdsafe.Decompress(nil, compressed)
	if err != nil {
		log.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(data, decompressed) {
		log.Fatal("Decompressed data does not match original")
	}

	// The context can be reset and reused for another frame.
	if err := ctx.Reset(zstdsafe.ZSTD_reset_session_and_parameters); err != nil {
		log.Fatalf("Reset failed: %v", err)
	}
	fmt.Println("Advanced round trip successful")
}
