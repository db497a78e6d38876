package main

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/zcodec/zstdsafe"
)

func main() {
	data := bytes.Repeat([]byte("This is a test of streaming compression. "), 1000)
	fmt.Printf("Original size: %d bytes\n", len(data))

	var compressed bytes.Buffer
	writer, err := zstdsafe.NewWriter(&compressed)
	if err != nil {
		log.Fatalf("NewWriter failed: %v", err)
	}
	defer writer.Release()

	chunkSize := 1024
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := writer.Write(data[i:end]); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		log.Fatalf("Close failed: %v", err)
	}

	fmt.Printf("Compressed size: %d bytes\n", compressed.Len())
	fmt.Printf("Compression ratio: %.2fx\n", float64(len(data))/float64(compressed.Len()))

	reader, err := zstdsafe.NewReader(&compressed)
	if err != nil {
		log.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Release()

	var decompressed bytes.Buffer
	buf := make([]byte, 1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			decompressed.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Read failed: %v", err)
		}
	}

	if !bytes.Equal(data, decompressed.Bytes()) {
		log.Fatal("Decompressed data does not match original")
	}
	fmt.Println("Streaming round trip successful")
}
