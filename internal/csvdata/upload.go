package csvdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidFileFormat is returned for uploads that are neither text/csv
	// nor named *.csv.
	ErrInvalidFileFormat = errors.New("invalid file format: only CSV files are accepted")

	// ErrFileReadFailure wraps I/O errors hit while reading an upload.
	ErrFileReadFailure = errors.New("file read failure")
)

// CheckUpload accepts a file whose content type is text/csv or whose name has
// a .csv extension. Any other file yields ErrInvalidFileFormat.
func CheckUpload(fileName, contentType string) error {
	if strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return nil
	}
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "text/csv" {
			return nil
		}
	}
	return fmt.Errorf("%w (got %q)", ErrInvalidFileFormat, fileName)
}

// Read consumes r and parses it into a Dataset named fileName. The content
// passes through WrapForUpload first. Read and context errors are reported
// as ErrFileReadFailure; the parse itself never fails.
func Read(ctx context.Context, r io.Reader, size int64, fileName string) (Dataset, error) {
	cr := WrapForUpload(&contextReader{ctx: ctx, r: r}, size)

	data, err := io.ReadAll(cr)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: %s: %w", ErrFileReadFailure, fileName, err)
	}

	return Parse(string(data), fileName), nil
}

// contextReader stops a read loop once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
