package utils

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
)

// FileHash calculates the MD5 hash of a file's contents. This is a change
// detector, not a security primitive.
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
