package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"bloodsheltie/internal/domain/record"
	"bloodsheltie/internal/domain/sync"
)

const schema = `
	CREATE TABLE IF NOT EXISTS sync_tags (
		serial_number TEXT PRIMARY KEY,
		tag TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		serial_number TEXT NOT NULL,
		type INTEGER NOT NULL,
		record_number INTEGER NOT NULL,
		page_number INTEGER NOT NULL,
		internal_time INTEGER NOT NULL,
		user_time TEXT NOT NULL,
		timezone TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (serial_number, type, record_number)
	);

	CREATE INDEX IF NOT EXISTS idx_records_internal_time ON records(serial_number, internal_time);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL,
		state TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sync_runs_serial ON sync_runs(serial_number, started_at);
`

// Storage локальное хранилище меток и записей
type Storage struct {
	db  *sql.DB
	log *slog.Logger
}

var _ sync.Repository = (*Storage)(nil)

// New открывает (или создаёт) базу по пути path
func New(path string, log *slog.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return &Storage{
		db:  db,
		log: log.With("component", "sqlite_storage"),
	}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// LoadSyncTag возвращает метку приёмника
func (s *Storage) LoadSyncTag(ctx context.Context, serial string) (*sync.SyncTag, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT tag FROM sync_tags WHERE serial_number = ?`, serial).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sync.ErrSyncTagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения метки: %w", err)
	}

	var tag sync.SyncTag
	if err := json.Unmarshal([]byte(raw), &tag); err != nil {
		return nil, fmt.Errorf("ошибка парсинга метки: %w", err)
	}
	return &tag, nil
}

// SaveSyncTag заменяет метку целиком
func (s *Storage) SaveSyncTag(ctx context.Context, tag sync.SyncTag) error {
	raw, err := json.Marshal(tag)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метки: %w", err)
	}

	updated := tag.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_tags (serial_number, tag, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (serial_number) DO UPDATE SET
			tag = excluded.tag,
			updated_at = excluded.updated_at
	`, tag.SerialNumber, string(raw), updated.UnixNano())
	if err != nil {
		return fmt.Errorf("ошибка сохранения метки: %w", err)
	}

	s.log.Debug("sync tag saved", "serial", tag.SerialNumber)
	return nil
}

// DeleteSyncTag удаляет метку; отсутствие метки ошибкой не считается
func (s *Storage) DeleteSyncTag(ctx context.Context, serial string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_tags WHERE serial_number = ?`, serial); err != nil {
		return fmt.Errorf("ошибка удаления метки: %w", err)
	}
	return nil
}

// SaveRecords сохраняет записи одной транзакцией, повторная запись обновляет существующую
func (s *Storage) SaveRecords(ctx context.Context, records []*sync.StoredRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (serial_number, type, record_number, page_number,
		                     internal_time, user_time, timezone, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (serial_number, type, record_number) DO UPDATE SET
			page_number = excluded.page_number,
			internal_time = excluded.internal_time,
			user_time = excluded.user_time,
			timezone = excluded.timezone,
			payload = excluded.payload
	`)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, rec := range records {
		if _, err = stmt.ExecContext(ctx,
			rec.SerialNumber, int(rec.Type), rec.RecordNumber, rec.PageNumber,
			rec.InternalTime.Unix(), rec.UserTime.Format(time.RFC3339Nano), rec.Timezone,
			string(rec.Payload), now,
		); err != nil {
			return fmt.Errorf("ошибка сохранения записи %d: %w", rec.RecordNumber, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	s.log.Debug("records saved", "count", len(records))
	return nil
}

// ListRecords возвращает записи по фильтру, упорядоченные по (категория, номер)
func (s *Storage) ListRecords(ctx context.Context, filter sync.RecordFilter) ([]*sync.StoredRecord, error) {
	query := `SELECT serial_number, type, record_number, page_number, internal_time,
	                 user_time, timezone, payload, created_at
	          FROM records WHERE 1=1`
	args := []interface{}{}

	if filter.SerialNumber != "" {
		query += " AND serial_number = ?"
		args = append(args, filter.SerialNumber)
	}
	if filter.Type != nil {
		query += " AND type = ?"
		args = append(args, int(*filter.Type))
	}
	if !filter.Since.IsZero() {
		query += " AND internal_time >= ?"
		args = append(args, filter.Since.Unix())
	}

	query += " ORDER BY serial_number, type, record_number"

	// в sqlite OFFSET допустим только после LIMIT, -1 снимает ограничение
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var records []*sync.StoredRecord
	for rows.Next() {
		var (
			rec       sync.StoredRecord
			typ       int
			internal  int64
			userTime  string
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&rec.SerialNumber, &typ, &rec.RecordNumber, &rec.PageNumber,
			&internal, &userTime, &rec.Timezone, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}

		rec.Type = record.Type(typ)
		rec.InternalTime = time.Unix(internal, 0).UTC()
		rec.UserTime, err = time.Parse(time.RFC3339Nano, userTime)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга времени записи %d: %w", rec.RecordNumber, err)
		}
		rec.Payload = json.RawMessage(payload)
		rec.CreatedAt = time.Unix(0, createdAt)

		records = append(records, &rec)
	}

	return records, rows.Err()
}

// ListDevices возвращает приёмники, для которых есть метка
func (s *Storage) ListDevices(ctx context.Context) ([]*sync.DeviceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.serial_number, t.updated_at,
		       (SELECT COUNT(*) FROM records r WHERE r.serial_number = t.serial_number)
		FROM sync_tags t
		ORDER BY t.serial_number
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения устройств: %w", err)
	}
	defer rows.Close()

	var devices []*sync.DeviceInfo
	for rows.Next() {
		var (
			d       sync.DeviceInfo
			updated int64
		)
		if err := rows.Scan(&d.SerialNumber, &updated, &d.RecordCount); err != nil {
			return nil, fmt.Errorf("ошибка сканирования устройства: %w", err)
		}
		d.LastSyncTime = time.Unix(0, updated)
		devices = append(devices, &d)
	}

	return devices, rows.Err()
}

// RecordSyncRun пишет итог сессии в журнал; повтор с тем же id игнорируется
func (s *Storage) RecordSyncRun(ctx context.Context, run *sync.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sync_runs (id, serial_number, state, record_count, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID.String(), run.SerialNumber, run.State.String(), run.RecordCount, run.Error,
		run.StartedAt.UnixNano(), run.FinishedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	return nil
}

// ListSyncRuns последние сессии приёмника, новые первыми
func (s *Storage) ListSyncRuns(ctx context.Context, serial string, limit int) ([]*sync.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, serial_number, state, record_count, error, started_at, finished_at
		FROM sync_runs
		WHERE serial_number = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, serial, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сессий: %w", err)
	}
	defer rows.Close()

	var runs []*sync.SyncRun
	for rows.Next() {
		var (
			run               sync.SyncRun
			id, state         string
			started, finished int64
		)
		if err := rows.Scan(&id, &run.SerialNumber, &state, &run.RecordCount, &run.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сессии: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("ошибка парсинга id сессии: %w", err)
		}
		if run.State, err = sync.ParseState(state); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(0, started)
		run.FinishedAt = time.Unix(0, finished)
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}
