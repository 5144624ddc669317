package filesystem

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/minio/highwayhash"
)

// hashKey is fixed so hashes stay comparable across runs.
var hashKey = []byte("docrag-content-fingerprint-key32")

// HashFile returns the hex HighwayHash-64 of the file's bytes. It matches
// services.ContentHasher.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
