package dump

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	stdsync "sync"

	"bloodsheltie/internal/domain/record"
	"bloodsheltie/internal/domain/sync"
)

const deviceFile = "device.json"

var ErrClosed = errors.New("transport closed")

// Device содержимое device.json
type Device struct {
	SerialNumber string         `json:"serial_number"`
	Directory    sync.Directory `json:"directory"`
}

// Transport читает выгрузку приёмника из каталога:
// device.json и страницы <категория>/<номер>.bin
type Transport struct {
	dir    string
	device Device

	mu     stdsync.Mutex
	closed bool
}

var _ sync.Transport = (*Transport)(nil)

// Open открывает выгрузку
func Open(dir string) (*Transport, error) {
	raw, err := os.ReadFile(filepath.Join(dir, deviceFile))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения выгрузки: %w", err)
	}

	var dev Device
	if err := json.Unmarshal(raw, &dev); err != nil {
		return nil, fmt.Errorf("ошибка парсинга %s: %w", deviceFile, err)
	}
	if err := sync.ValidateSerial(dev.SerialNumber); err != nil {
		return nil, fmt.Errorf("%s: %w", deviceFile, err)
	}

	return &Transport{dir: dir, device: dev}, nil
}

// Opener открывает выгрузку по пути id
func Opener(_ context.Context, id string) (sync.Transport, error) {
	return Open(id)
}

func (t *Transport) SerialNumber(ctx context.Context) (string, error) {
	if err := t.check(ctx); err != nil {
		return "", err
	}
	return t.device.SerialNumber, nil
}

func (t *Transport) PageDirectory(ctx context.Context) (sync.Directory, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(t.device.Directory), nil
}

// ReadPages читает страницы диапазона; при ошибке возвращает уже прочитанные
func (t *Transport) ReadPages(ctx context.Context, r sync.PageRange) ([][]byte, error) {
	var pages [][]byte
	for _, p := range r.Pages() {
		if err := t.check(ctx); err != nil {
			return pages, err
		}

		data, err := os.ReadFile(PagePath(t.dir, r.RecordType, p))
		if err != nil {
			return pages, fmt.Errorf("ошибка чтения страницы %d: %w", p, err)
		}
		pages = append(pages, data)
	}
	return pages, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *Transport) check(ctx context.Context) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return ErrClosed
	}
	return ctx.Err()
}

// PagePath путь к файлу страницы
func PagePath(dir string, t record.Type, page uint32) string {
	return filepath.Join(dir, t.String(), strconv.FormatUint(uint64(page), 10)+".bin")
}

// Writer собирает выгрузку в каталоге
type Writer struct {
	dir    string
	device Device
}

// NewWriter создает каталог выгрузки
func NewWriter(dir, serial string) (*Writer, error) {
	if err := sync.ValidateSerial(serial); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога: %w", err)
	}
	return &Writer{dir: dir, device: Device{SerialNumber: serial}}, nil
}

// AddPage записывает страницу; номер и категория берутся из заголовка
func (w *Writer) AddPage(page []byte) error {
	h, err := record.ParseHeader(page)
	if err != nil {
		return fmt.Errorf("ошибка заголовка страницы: %w", err)
	}

	path := PagePath(w.dir, h.RecordType, h.PageNumber)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ошибка создания каталога: %w", err)
	}
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return fmt.Errorf("ошибка записи страницы: %w", err)
	}

	for i, info := range w.device.Directory {
		if info.RecordType == h.RecordType {
			w.device.Directory[i].FirstPage = min(info.FirstPage, h.PageNumber)
			w.device.Directory[i].LastPage = max(info.LastPage, h.PageNumber)
			return nil
		}
	}
	w.device.Directory = append(w.device.Directory, sync.PageInfo{
		RecordType: h.RecordType,
		FirstPage:  h.PageNumber,
		LastPage:   h.PageNumber,
		PageSize:   uint32(len(page)),
	})
	return nil
}

// AddEmpty отмечает категорию без страниц
func (w *Writer) AddEmpty(t record.Type) {
	w.device.Directory = append(w.device.Directory, sync.PageInfo{
		RecordType: t,
		FirstPage:  sync.EmptyPage,
		LastPage:   sync.EmptyPage,
		PageSize:   record.PageSize,
	})
}

// Close записывает device.json
func (w *Writer) Close() error {
	slices.SortFunc(w.device.Directory, func(a, b sync.PageInfo) int {
		return int(a.RecordType) - int(b.RecordType)
	})

	raw, err := json.MarshalIndent(w.device, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации %s: %w", deviceFile, err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, deviceFile), raw, 0o644); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", deviceFile, err)
	}
	return nil
}
