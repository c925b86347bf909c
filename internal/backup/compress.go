package backup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedSuffix is appended to every file compressed by CompressZstd.
const CompressedSuffix = ".zst"

// CompressZstd writes inputPath+".zst" and removes the original file.
func CompressZstd(inputPath string) (_ string, err error) {
	outputPath := inputPath + CompressedSuffix

	inFile, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to open input file: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		err = errors.Join(err, outFile.Close())
		if err != nil {
			_ = os.Remove(outputPath)
		}
	}()

	writer, err := zstd.NewWriter(outFile)
	if err != nil {
		return "", fmt.Errorf("failed to create Zstandard writer: %w", err)
	}
	if _, err := io.Copy(writer, inFile); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to compress file: %w", err)
	}
	// Close flushes the final frame; the output is incomplete without it.
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish compressed file: %w", err)
	}

	if err := os.Remove(inputPath); err != nil {
		return "", fmt.Errorf("failed to remove original file: %w", err)
	}
	return outputPath, nil
}

// compressTree compresses every regular file under root that is not
// already compressed.
func compressTree(root string) error {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && !strings.HasSuffix(path, CompressedSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, path := range paths {
		if _, err := CompressZstd(path); err != nil {
			return fmt.Errorf("compress %s: %w", path, err)
		}
	}
	return nil
}
