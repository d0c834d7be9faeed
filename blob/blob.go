// Package blob stores uploaded bytes and hands back a URL they can be
// fetched from.
package blob

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/lithammer/shortuuid/v4"
)

// Prefix is the key namespace every upload lives under.
const Prefix = "uploads/"

type Store interface {
	// Put writes r under key and returns a retrievable download URL.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// NewKey derives a unique object key from a client supplied file name.
func NewKey(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		name = "file"
	}
	return Prefix + shortuuid.New() + "_" + name
}
