package chunk

import "errors"

var (
	// ErrUnknownContentType is returned for content types outside the closed set.
	ErrUnknownContentType = errors.New("unknown content type")

	// ErrDataMismatch is returned when structured data does not fit the content type.
	ErrDataMismatch = errors.New("structured data does not match content type")

	// ErrMissingTenant is returned for chunks or payloads without a tenant_id.
	ErrMissingTenant = errors.New("chunk has no tenant_id")

	// ErrInvalidPayload is returned when a stored payload cannot be decoded.
	ErrInvalidPayload = errors.New("invalid chunk payload")
)
