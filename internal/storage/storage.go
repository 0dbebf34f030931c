// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a key holds no object.
var ErrNotFound = errors.New("stored file not found")

// FileStore is opaque byte storage for uploaded PDFs.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewKey derives a unique storage key for an uploaded file name:
// <UTC timestamp>_<short id>_<base name>.
func NewKey(filename string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload.pdf"
	}
	id := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s_%s_%s", now.UTC().Format("20060102150405"), id, base)
}
