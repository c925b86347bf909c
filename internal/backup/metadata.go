package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash"
)

const MetadataFilename = "metadata.json"

// Reasons recorded in Metadata.Reason.
const (
	ReasonDeploy = "deploy"
	ReasonManual = "manual"
)

// Metadata describes what a single backup captured.
type Metadata struct {
	Name           string    `json:"name"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
	DurationMs     int64     `json:"duration_ms"`
	ConfigFile     string    `json:"config_file,omitempty"`
	ConfigChecksum string    `json:"config_checksum,omitempty"`
	HasData        bool      `json:"has_data"`
	HasLogs        bool      `json:"has_logs"`
	LogsCompressed bool      `json:"logs_compressed,omitempty"`
	SizeBytes      int64     `json:"size_bytes"`
}

// Load reads the metadata file inside dirPath.
func (m *Metadata) Load(dirPath string) error {
	filePath := filepath.Join(dirPath, MetadataFilename)

	jsonFile, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("couldn't open metadata file %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	decoder := json.NewDecoder(jsonFile)
	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("decode metadata JSON: %w", err)
	}
	return nil
}

// Write metadata file
func (m *Metadata) Write(dirPath string) error {
	filePath := filepath.Join(dirPath, MetadataFilename)

	if err := EnsureDirectoryExist(dirPath); err != nil {
		return fmt.Errorf("ensure metadata directory %q: %w", dirPath, err)
	}

	jsonFile, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create metadata file %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	encoder := json.NewEncoder(jsonFile)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("encode metadata JSON: %w", err)
	}
	return jsonFile.Sync()
}

// fileChecksum returns the xxhash64 of the file at path as hex.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}
