package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodsheltie/internal/domain/record"
)

// TagStore хранилище меток синхронизации
type TagStore interface {
	// LoadSyncTag возвращает ErrSyncTagNotFound для приёмника без метки
	LoadSyncTag(ctx context.Context, serial string) (*SyncTag, error)
	SaveSyncTag(ctx context.Context, tag SyncTag) error
	DeleteSyncTag(ctx context.Context, serial string) error
}

// RecordStore хранилище записей. Повторное сохранение записи с тем же
// (серийный номер, категория, номер) не создаёт дубликата.
type RecordStore interface {
	SaveRecords(ctx context.Context, records []*StoredRecord) error
}

// Persistence то, что нужно сервису синхронизации
type Persistence interface {
	TagStore
	RecordStore
}

// RunRecorder журнал сессий, необязателен
type RunRecorder interface {
	RecordSyncRun(ctx context.Context, run *SyncRun) error
}

// Repository интерфейс для работы с синхронизацией
type Repository interface {
	Persistence
	RunRecorder

	ListRecords(ctx context.Context, filter RecordFilter) ([]*StoredRecord, error)
	ListDevices(ctx context.Context) ([]*DeviceInfo, error)
	ListSyncRuns(ctx context.Context, serial string, limit int) ([]*SyncRun, error)
}

// StoredRecord запись на границе хранения
type StoredRecord struct {
	SerialNumber string          `json:"serial_number"`
	Type         record.Type     `json:"type"`
	RecordNumber uint32          `json:"record_number"`
	PageNumber   uint32          `json:"page_number"`
	InternalTime time.Time       `json:"internal_time"`
	UserTime     time.Time       `json:"user_time"`
	Timezone     string          `json:"timezone"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at,omitzero" required:"false"`
}

// NewStoredRecord упаковывает декодированную запись приёмника serial
func NewStoredRecord(serial string, rec record.Record) (*StoredRecord, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s record: %w", rec.Type(), err)
	}

	g := rec.Generic()
	return &StoredRecord{
		SerialNumber: serial,
		Type:         rec.Type(),
		RecordNumber: g.RecordNumber,
		PageNumber:   g.PageNumber,
		InternalTime: g.Time.InternalTime,
		UserTime:     g.Time.UserTime,
		Timezone:     g.Time.Timezone,
		Payload:      payload,
	}, nil
}

// Record восстанавливает декодированную запись
func (r *StoredRecord) Record() (record.Record, error) {
	return record.Unmarshal(r.Type, r.Payload)
}

// RecordFilter параметры выборки записей; нулевые поля не ограничивают выборку
type RecordFilter struct {
	SerialNumber string
	Type         *record.Type
	Since        time.Time
	Limit        int
	Offset       int
}

// DeviceInfo информация о приёмнике
type DeviceInfo struct {
	SerialNumber string    `json:"serial_number"`
	LastSyncTime time.Time `json:"last_sync_time"`
	RecordCount  int       `json:"record_count"`
}

// SyncRun запись журнала сессий
type SyncRun struct {
	ID           uuid.UUID `json:"id"`
	SerialNumber string    `json:"serial_number"`
	State        State     `json:"state"`
	RecordCount  int       `json:"record_count"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// NewSyncRun строит запись журнала по итогу сессии
func NewSyncRun(res *Result, err error) *SyncRun {
	run := &SyncRun{
		ID:           res.ID,
		SerialNumber: res.SerialNumber,
		State:        res.State,
		RecordCount:  len(res.Records),
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
	}
	if err != nil {
		run.Error = err.Error()
	}
	return run
}
