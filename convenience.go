package zstdsafe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// CompressFile compresses srcPath into dstPath at the default level.
func CompressFile(srcPath, dstPath string) error {
	return CompressFileLevel(srcPath, dstPath, DefaultCompressionLevel)
}

// CompressFileLevel compresses srcPath into dstPath at the given level.
// The whole file is read into memory; use StreamCompressFile for inputs
// that should not be.
func CompressFileLevel(srcPath, dstPath string, level int) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}
	compressed, err := CompressLevel(nil, data, level)
	if err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := os.WriteFile(dstPath, compressed, 0o644); err != nil {
		return fmt.Errorf("failed to write compressed file: %w", err)
	}
	return nil
}

// DecompressFile decompresses srcPath into dstPath.
func DecompressFile(srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read compressed file: %w", err)
	}
	decompressed, err := Decompress(nil, data)
	if err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := os.WriteFile(dstPath, decompressed, 0o644); err != nil {
		return fmt.Errorf("failed to write decompressed file: %w", err)
	}
	return nil
}

// StreamCompressFile compresses srcPath into dstPath through the streaming
// core, keeping memory bounded by the recommended chunk sizes.
func StreamCompressFile(srcPath, dstPath string, level int) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	if err := StreamCompressLevel(dst, src, level); err != nil {
		dst.Close()
		return fmt.Errorf("compression failed: %w", err)
	}
	return dst.Close()
}

// StreamDecompressFile decompresses srcPath into dstPath through the
// streaming core.
func StreamDecompressFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open compressed file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	if err := StreamDecompress(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("decompression failed: %w", err)
	}
	return dst.Close()
}

// BatchCompress compresses every input independently, one goroutine per
// CPU. Results keep the input order. The first failure cancels the batch.
func BatchCompress(ctx context.Context, inputs [][]byte, level int) ([][]byte, error) {
	outputs := make([][]byte, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := CompressLevel(nil, input, level)
			if err != nil {
				return fmt.Errorf("failed to compress item %d: %w", i, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// BatchDecompress decompresses every input independently, one goroutine
// per CPU. Results keep the input order. The first failure cancels the
// batch.
func BatchDecompress(ctx context.Context, inputs [][]byte) ([][]byte, error) {
	outputs := make([][]byte, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := Decompress(nil, input)
			if err != nil {
				return fmt.Errorf("failed to decompress item %d: %w", i, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}
