package validator

import (
	"errors"
	"regexp"
)

var (
	ErrMissingFile     = errors.New("missing file")
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidFilename = errors.New("invalid filename")
)

// MaxUploadBytes bounds a single statement upload. Larger files should go
// through an asynchronous channel outside this service.
const MaxUploadBytes = 10 << 20

var filenameRegex = regexp.MustCompile(`^[^/\\]{1,255}$`)

func ValidateUpload(filename string, size int64) error {
	if size <= 0 {
		return ErrMissingFile
	}
	if size > MaxUploadBytes {
		return ErrFileTooLarge
	}
	if !filenameRegex.MatchString(filename) {
		return ErrInvalidFilename
	}
	return nil
}
