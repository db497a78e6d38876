// Command zst compresses, decompresses, inspects and trains dictionaries
// for zstd frames.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zcodec/zstdsafe"
)

var logger *zap.Logger

var (
	flagLevel       int
	flagWindowLog   int
	flagWorkers     int
	flagChecksum    bool
	flagDict        string
	flagOutput      string
	flagProfilePath string
	flagProfile     string
	flagVerbose     bool
)

func main() {
	root := &cobra.Command{
		Use:           "zst",
		Short:         "zstd compression toolbox",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if flagVerbose {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().StringVar(&flagProfilePath, "profiles", "", "path to a YAML profile file")
	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "profile name to apply")

	root.AddCommand(compressCmd(), decompressCmd(), inspectCmd(), trainCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func effectiveProfile() (Profile, error) {
	p := Profile{Level: zstdsafe.DefaultCompressionLevel}
	if flagProfilePath != "" && flagProfile != "" {
		loaded, err := loadProfile(flagProfilePath, flagProfile)
		if err != nil {
			return Profile{}, err
		}
		p = loaded
		if p.Level == 0 {
			p.Level = zstdsafe.DefaultCompressionLevel
		}
	}
	if flagLevel != 0 {
		p.Level = flagLevel
	}
	if flagWindowLog != 0 {
		p.WindowLog = flagWindowLog
	}
	if flagWorkers != 0 {
		p.Workers = flagWorkers
	}
	if flagChecksum {
		p.Checksum = true
	}
	if flagDict != "" {
		p.Dict = flagDict
	}
	return p, nil
}

func compressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress <file>",
		Short: "Compress a file into a zstd frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := effectiveProfile()
			if err != nil {
				return err
			}
			srcPath := args[0]
			dstPath := flagOutput
			if dstPath == "" {
				dstPath = srcPath + ".zst"
			}

			params := zstdsafe.WriterParams{
				CompressionLevel: p.Level,
				WindowLog:        p.WindowLog,
				NbWorkers:        p.Workers,
				Checksum:         p.Checksum,
			}
			if p.Workers > 0 && !zstdsafe.HasMultithreading() {
				logger.Warn("libzstd built without multithreading, compressing single-threaded")
				params.NbWorkers = 0
			}
			if p.Dict != "" {
				dictBytes, err := os.ReadFile(p.Dict)
				if err != nil {
					return fmt.Errorf("failed to read dictionary: %w", err)
				}
				cd, err := zstdsafe.NewCDictLevel(dictBytes, p.Level)
				if err != nil {
					return err
				}
				defer cd.Release()
				params.Dict = cd
			}

			src, err := os.Open(srcPath)
			if err != nil {
				return err
			}
			defer src.Close()
			dst, err := os.Create(dstPath)
			if err != nil {
				return err
			}

			zw, err := zstdsafe.NewWriterParams(dst, params)
			if err != nil {
				dst.Close()
				return err
			}
			defer zw.Release()

			buf := make([]byte, zstdsafe.CStreamInSize())
			for {
				n, rerr := src.Read(buf)
				if n > 0 {
					if _, werr := zw.Write(buf[:n]); werr != nil {
						dst.Close()
						return werr
					}
				}
				if rerr != nil {
					break
				}
			}
			if err := zw.Close(); err != nil {
				dst.Close()
				return err
			}
			if err := dst.Close(); err != nil {
				return err
			}

			logger.Info("compressed",
				zap.String("src", srcPath),
				zap.String("dst", dstPath),
				zap.Int("level", p.Level))
			return nil
		},
	}
	cmd.Flags().IntVarP(&flagLevel, "level", "l", 0, "compression level")
	cmd.Flags().IntVar(&flagWindowLog, "window-log", 0, "window size as a power of 2")
	cmd.Flags().IntVarP(&flagWorkers, "workers", "T", 0, "compression worker threads")
	cmd.Flags().BoolVar(&flagChecksum, "checksum", false, "append a content checksum")
	cmd.Flags().StringVarP(&flagDict, "dict", "D", "", "dictionary file")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output path (default <file>.zst)")
	return cmd
}

func decompressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decompress <file.zst>",
		Aliases: []string{"d"},
		Short:   "Decompress a zstd frame",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := effectiveProfile()
			if err != nil {
				return err
			}
			srcPath := args[0]
			dstPath := flagOutput
			if dstPath == "" {
				dstPath = strings.TrimSuffix(srcPath, ".zst")
				if dstPath == srcPath {
					return fmt.Errorf("cannot derive output path from %q, use --output", srcPath)
				}
			}

			src, err := os.Open(srcPath)
			if err != nil {
				return err
			}
			defer src.Close()
			dst, err := os.Create(dstPath)
			if err != nil {
				return err
			}

			var dd *zstdsafe.DDict
			if p.Dict != "" {
				dictBytes, err := os.ReadFile(p.Dict)
				if err != nil {
					dst.Close()
					return fmt.Errorf("failed to read dictionary: %w", err)
				}
				dd, err = zstdsafe.NewDDict(dictBytes)
				if err != nil {
					dst.Close()
					return err
				}
				defer dd.Release()
			}

			zr, err := zstdsafe.NewReaderDict(src, dd)
			if err != nil {
				dst.Close()
				return err
			}
			defer zr.Release()
			if _, err := zr.WriteTo(dst); err != nil {
				dst.Close()
				return err
			}
			if err := dst.Close(); err != nil {
				return err
			}

			logger.Info("decompressed",
				zap.String("src", srcPath),
				zap.String("dst", dstPath))
			return nil
		},
	}
	cmd.Flags().StringVarP(&flagDict, "dict", "D", "", "dictionary file")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output path (default strips .zst)")
	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.zst>",
		Short: "Print frame metadata without decompressing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if zstdsafe.HasChecksumEnvelope(data) {
				fmt.Println("checksum envelope: present")
			}
			frameNo := 0
			for len(data) > 0 {
				if zstdsafe.IsSkippableFrame(data) {
					size, err := zstdsafe.GetFrameCompressedSize(data)
					if err != nil {
						return err
					}
					fmt.Printf("frame %d: skippable, %d bytes\n", frameNo, size)
					data = data[size:]
					frameNo++
					continue
				}
				info, err := zstdsafe.GetFrameInfo(data)
				if err != nil {
					return err
				}
				content := "unknown"
				if info.HasContentSize {
					content = fmt.Sprintf("%d", info.ContentSize)
				}
				fmt.Printf("frame %d: compressed=%d content=%s checksum=%v dictID=%d\n",
					frameNo, info.CompressedSize, content, info.HasChecksum, info.DictionaryID)
				data = data[info.CompressedSize:]
				frameNo++
			}
			return nil
		},
	}
}

func trainCmd() *cobra.Command {
	var dictSize int
	cmd := &cobra.Command{
		Use:   "train <sample-dir>",
		Short: "Train a dictionary from sample files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(args[0])
			if err != nil {
				return err
			}
			var samples [][]byte
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				data, err := os.ReadFile(filepath.Join(args[0], e.Name()))
				if err != nil {
					return err
				}
				samples = append(samples, data)
			}
			dict := zstdsafe.BuildDict(samples, dictSize)
			if dict == nil {
				return fmt.Errorf("not enough sample content to train a dictionary")
			}
			out := flagOutput
			if out == "" {
				out = "dictionary.zstd"
			}
			if err := os.WriteFile(out, dict, 0o644); err != nil {
				return err
			}
			logger.Info("trained dictionary",
				zap.String("path", out),
				zap.Int("samples", len(samples)),
				zap.Int("size", len(dict)))
			return nil
		},
	}
	cmd.Flags().IntVar(&dictSize, "size", 112640, "target dictionary size in bytes")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output path")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the linked libzstd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("libzstd %s (multithreading: %v)\n",
				zstdsafe.VersionString(), zstdsafe.HasMultithreading())
		},
	}
}
