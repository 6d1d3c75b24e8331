package record

import (
	"errors"
	"fmt"
)

var (
	ErrCorruptPage     = errors.New("corrupt page")
	ErrCorruptRecord   = errors.New("corrupt record")
	ErrUnsupportedType = errors.New("unsupported record type")
	ErrChecksum        = errors.New("checksum mismatch")
	ErrInvalidTime     = errors.New("invalid record time")
	ErrPageNumber      = errors.New("unexpected page number")
)

// PageError - страница не прошла проверку заголовка, её записи не декодируются
type PageError struct {
	Type Type
	Page uint32
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("corrupt page %d (%s): %v", e.Page, e.Type, e.Err)
}

func (e *PageError) Unwrap() []error {
	return []error{ErrCorruptPage, e.Err}
}

// RecordError - отдельная запись отброшена, остальные записи страницы декодируются
type RecordError struct {
	Type         Type
	Page         uint32
	RecordNumber uint32
	Err          error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("corrupt record %d on page %d (%s): %v", e.RecordNumber, e.Page, e.Type, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{ErrCorruptRecord, e.Err}
}
