package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// secureFilename derives an unguessable on-disk name from a client-supplied
// one, keeping only the extension.
func secureFilename(originalName string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	random := hex.EncodeToString(buf)
	timestamp := time.Now().Unix()

	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		return fmt.Sprintf("%d_%s", timestamp, random)
	}
	return fmt.Sprintf("%d_%s%s", timestamp, random, ext)
}

// fileExtension returns the lower-cased extension without the dot.
func fileExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	return strings.TrimPrefix(ext, ".")
}
