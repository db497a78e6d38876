package main

import (
	"bytes"
	"fmt"
	"log"

	"github.com/zcodec/zstdsafe"
)

func main() {
	data := []byte("Hello, this is a test of zstd compression. " +
		"Repeated text compresses well. Repeated text compresses well.")
	fmt.Printf("Original size: %d bytes\n", len(data))

	compressed, err := zstdsafe.Compress(nil, data)
	if err != nil {
		log.Fatalf("Compression failed: %v", err)
	}
	fmt.Printf("Compressed size: %d bytes\n", len(compressed))

	decompressed, err := zstdsafe.Decompress(nil, compressed)
	if err != nil {
		log.Fatalf("Decompression failed: %v", err)
	}

	if !bytes.Equal(data, decompressed) {
		log.Fatal("Decompressed data does not match original")
	}
	fmt.Println("Round trip successful")

	// Higher levels trade speed for ratio.
	for _, level := range []int{1, 3, 9, 19} {
		compressed, err := zstdsafe.CompressLevel(nil, data, level)
		if err != nil {
			log.Fatalf("Compression at level %d failed: %v", level, err)
		}
		fmt.Printf("Level %2d: %d bytes\n", level, len(compressed))
	}
}
