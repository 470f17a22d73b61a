package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrTransport  = errors.New("transport error")
	ErrParse      = errors.New("parse error")
	ErrConflict   = errors.New("conflict")
)

var (
	ErrEmptyTitle    = fmt.Errorf("%w: title must not be empty", ErrValidation)
	ErrInvalidStatus = fmt.Errorf("%w: unknown status", ErrValidation)
	ErrEmptyPatch    = fmt.Errorf("%w: nothing to update", ErrValidation)
)
