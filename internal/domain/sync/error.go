package sync

import (
	"errors"
	"fmt"

	"bloodsheltie/internal/domain/record"
)

var (
	ErrTransport        = errors.New("transport failure")
	ErrDeviceReset      = errors.New("device reset detected")
	ErrTimeout          = errors.New("sync session timed out")
	ErrCancelled        = errors.New("sync session cancelled")
	ErrSyncTagNotFound  = errors.New("sync tag not found")
	ErrSessionUsed      = errors.New("sync session already used")
	ErrInvalidDirectory = errors.New("invalid page directory")
	ErrDeviceNotFound   = errors.New("device not found")
)

// TransportError - сбой канала связи с приёмником. Повтор выполняет вызывающий код.
type TransportError struct {
	// Range запрос, на котором произошёл сбой; nil для служебных запросов
	Range *PageRange
	Err   error
}

func (e *TransportError) Error() string {
	if e.Range == nil {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport: read %s: %v", e.Range, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// DeviceResetError - журнал приёмника больше не содержит страницу из метки синхронизации
type DeviceResetError struct {
	Type       record.Type
	TagPage    uint32
	NewestPage uint32
}

func (e *DeviceResetError) Error() string {
	if e.NewestPage == EmptyPage {
		return fmt.Sprintf("device reset detected for %s: tag at page %d, device has no pages", e.Type, e.TagPage)
	}
	return fmt.Sprintf("device reset detected for %s: tag at page %d, newest page %d", e.Type, e.TagPage, e.NewestPage)
}

func (e *DeviceResetError) Unwrap() error {
	return ErrDeviceReset
}
