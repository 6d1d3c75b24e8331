package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bloodsheltie/internal/domain/record"
)

// RecordSyncTag последняя синхронизированная запись одной категории
type RecordSyncTag struct {
	RecordNumber uint32    `json:"record_number"`
	PageNumber   uint32    `json:"page_number"`
	InternalTime time.Time `json:"internal_time"`
}

// TagOf строит метку по записи
func TagOf(rec record.Record) *RecordSyncTag {
	g := rec.Generic()
	return &RecordSyncTag{
		RecordNumber: g.RecordNumber,
		PageNumber:   g.PageNumber,
		InternalTime: g.Time.InternalTime,
	}
}

// SyncTag метка синхронизации приёмника, по одной RecordSyncTag на отслеживаемую категорию.
// Заменяется целиком в конце успешной сессии.
type SyncTag struct {
	SerialNumber        string         `json:"serial_number"`
	LastGlucoseRead     *RecordSyncTag `json:"last_glucose_read,omitempty"`
	LastUserEvent       *RecordSyncTag `json:"last_user_event,omitempty"`
	LastCalibrationRead *RecordSyncTag `json:"last_calibration_read,omitempty"`
	UpdatedAt           time.Time      `json:"updated_at" required:"false"`
}

// NewSyncTag пустая метка для первой синхронизации приёмника
func NewSyncTag(serial string) SyncTag {
	return SyncTag{SerialNumber: serial}
}

// ForType возвращает метку категории или nil
func (t SyncTag) ForType(rt record.Type) *RecordSyncTag {
	switch rt {
	case record.TypeEGVData:
		return t.LastGlucoseRead
	case record.TypeMeterData:
		return t.LastCalibrationRead
	case record.TypeUserEventData:
		return t.LastUserEvent
	}
	return nil
}

// WithType возвращает копию метки с заменённой категорией. Исходная метка не меняется.
func (t SyncTag) WithType(rt record.Type, tag *RecordSyncTag) SyncTag {
	if tag != nil {
		c := *tag
		tag = &c
	}

	switch rt {
	case record.TypeEGVData:
		t.LastGlucoseRead = tag
	case record.TypeMeterData:
		t.LastCalibrationRead = tag
	case record.TypeUserEventData:
		t.LastUserEvent = tag
	}
	return t
}

// IsEmpty - ни одна категория ещё не синхронизирована
func (t SyncTag) IsEmpty() bool {
	return t.LastGlucoseRead == nil && t.LastUserEvent == nil && t.LastCalibrationRead == nil
}

// EmptyPage номер страницы, которым приёмник отмечает отсутствие страниц категории
const EmptyPage uint32 = 0xFFFFFFFF

// PageInfo диапазон страниц одной категории на приёмнике
type PageInfo struct {
	RecordType record.Type `json:"record_type"`
	FirstPage  uint32      `json:"first_page"`
	LastPage   uint32      `json:"last_page"`
	PageSize   uint32      `json:"page_size"`
}

// IsEmpty - у категории нет ни одной страницы
func (p PageInfo) IsEmpty() bool {
	return p.FirstPage == EmptyPage || p.LastPage == EmptyPage
}

// Directory каталог страниц приёмника
type Directory []PageInfo

// Lookup ищет категорию в каталоге
func (d Directory) Lookup(t record.Type) (PageInfo, bool) {
	for _, p := range d {
		if p.RecordType == t {
			return p, true
		}
	}
	return PageInfo{}, false
}

// PageRange - единица запроса к транспорту, границы включительно
type PageRange struct {
	FirstPage  uint32      `json:"first_page"`
	LastPage   uint32      `json:"last_page"`
	RecordType record.Type `json:"record_type"`
}

// Pages номера страниц диапазона по возрастанию
func (r PageRange) Pages() []uint32 {
	if r.LastPage < r.FirstPage {
		return nil
	}
	pages := make([]uint32, 0, r.LastPage-r.FirstPage+1)
	for p := r.FirstPage; ; p++ {
		pages = append(pages, p)
		if p == r.LastPage {
			break
		}
	}
	return pages
}

func (r PageRange) String() string {
	return fmt.Sprintf("%s[%d..%d]", r.RecordType, r.FirstPage, r.LastPage)
}

// State состояние сессии синхронизации
type State int32

const (
	StateIdle State = iota
	StateRequestingPages
	StateDecodingPages
	StateReconciling
	StateCommitted
	StateAborted
)

var stateNames = []string{"idle", "requesting_pages", "decoding_pages", "reconciling", "committed", "aborted"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal - из состояния нет переходов
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAborted
}

// ParseState разбирает имя состояния
func ParseState(s string) (State, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("неверное состояние сессии: %q", s)
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	parsed, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SyncData накопленные данные одной сессии. Принадлежит сессии до её завершения.
type SyncData struct {
	SerialNumber string                `json:"serial_number"`
	Ranges       []PageRange           `json:"ranges"`
	Records      []record.Record       `json:"-"`
	RecordErrors []*record.RecordError `json:"-"`
	PageErrors   []*record.PageError   `json:"-"`
}

// CountByType число записей каждой категории
func (d *SyncData) CountByType() map[record.Type]int {
	counts := make(map[record.Type]int, len(record.Tracked()))
	for _, rec := range d.Records {
		counts[rec.Type()]++
	}
	return counts
}

// Result итог сессии синхронизации.
// Tag равен PreviousTag во всех случаях, кроме StateCommitted.
type Result struct {
	SyncData
	ID          uuid.UUID `json:"id"`
	State       State     `json:"state"`
	Tag         SyncTag   `json:"tag"`
	PreviousTag SyncTag   `json:"previous_tag"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Committed - сессия завершилась успешно и метка продвинута
func (r *Result) Committed() bool {
	return r != nil && r.State == StateCommitted
}
