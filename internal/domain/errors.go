package domain

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrImageTooLarge     = errors.New("image too large")
	ErrNotFound          = errors.New("not found")
	ErrStorageDisabled   = errors.New("object storage disabled")
	ErrInvalidParameters = errors.New("invalid parameters")
)
