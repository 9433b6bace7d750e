package models

import "errors"

// Error categories shared across the pipeline. Producers wrap these with
// fmt.Errorf("%w: ...") so callers can branch with errors.Is.
var (
	ErrFetch           = errors.New("fetch error")
	ErrParse           = errors.New("parse error")
	ErrMalformedRecord = errors.New("malformed record")
	ErrImageDecode     = errors.New("image decode error")
	ErrUpload          = errors.New("upload error")
	ErrPublish         = errors.New("publish error")
	ErrPersistence     = errors.New("persistence error")
	ErrRunInProgress   = errors.New("run already in progress")
)
