// Package storage keeps spreadsheet imports and exported reports on the
// device.
package storage

import (
	"errors"
	"io"
	"time"
)

var (
	ErrBadKey   = errors.New("storage: invalid key")
	ErrNotFound = errors.New("storage: not found")
)

// Object describes one stored blob.
type Object struct {
	Key      string    `json:"key"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	List(prefix string) ([]Object, error)
	URL(key string) (string, error)
}
