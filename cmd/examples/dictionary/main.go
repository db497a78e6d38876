package main

import (
	"bytes"
	"fmt"
	"log"

	"github.com/zcodec/zstdsafe"
)

func main() {
	// Small similar records are where dictionaries shine.
	var samples [][]byte
	for i := 0; i < 1000; i++ {
		sample := fmt.Sprintf(`{"id":%d,"user":"user%d","action":"login","timestamp":1700000%03d}`, i, i, i)
		samples = append(samples, []byte(sample))
	}

	dict := zstdsafe.BuildDict(samples, 16*1024)
	if dict == nil {
		log.Fatal("Dictionary training failed")
	}
	fmt.Printf("Trained dictionary: %d bytes\n", len(dict))

	cd, err := zstdsafe.NewCDict(dict)
	if err != nil {
		log.Fatalf("NewCDict failed: %v", err)
	}
	defer cd.Release()

	dd, err := zstdsafe.NewDDict(dict)
	if err != nil {
		log.Fatalf("NewDDict failed: %v", err)
	}
	defer dd.Release()

	record := []byte(`{"id":12345,"user":"user12345","action":"login","timestamp":1700000999}`)

	plain, err := zstdsafe.Compress(nil, record)
	if err != nil {
		log.Fatalf("Compression failed: %v", err)
	}
	withDict, err := zstdsafe.CompressDict(nil, record, cd)
	if err != nil {
		log.Fatalf("Dictionary compression failed: %v", err)
	}
	fmt.Printf("Without dictionary: %d bytes\n", len(plain))
	fmt.Printf("With dictionary:    %d bytes\n", len(withDict))

	decompressed, err := zstdsafe.DecompressDict(nil, withDict, dd)
	if err != nil {
		log.Fatalf("Dictionary decompression failed: %v", err)
	}
	if !bytes.Equal(record, decompressed) {
		log.Fatal("Decompressed data does not match original")
	}
	fmt.Println("Dictionary round trip successful")
}
