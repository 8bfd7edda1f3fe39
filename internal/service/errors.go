package service

import "errors"

// Sentinel errors mapped to HTTP error codes by the handlers.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrForbidden           = errors.New("resource belongs to another user")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrNotExtracted        = errors.New("document has not finished extraction")
	ErrEmptySelection      = errors.New("no questions selected")
	ErrUnknownQuestion     = errors.New("unknown question index")
)
