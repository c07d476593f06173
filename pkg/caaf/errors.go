package caaf

import "errors"

var (
	ErrNotContainer         = errors.New("caaf: not a valid container")
	ErrCorrupt              = errors.New("caaf: corrupt container")
	ErrMissingStringTable   = errors.New("caaf: string table is not the first section")
	ErrDuplicateStringTable = errors.New("caaf: duplicated string table")
	ErrCountMismatch        = errors.New("caaf: mesh and pipeline sections have different lengths")
	ErrDecompress           = errors.New("caaf: decompression failed")
	ErrTooLarge             = errors.New("caaf: stream exceeds memory limit")
)
