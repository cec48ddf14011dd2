package domain

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrParse          = errors.New("parse failed")
	ErrReconstruction = errors.New("reconstruction failed")
	ErrExport         = errors.New("export failed")
	ErrNotFound       = errors.New("not found")
)
