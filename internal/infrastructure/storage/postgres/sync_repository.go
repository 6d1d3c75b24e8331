package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"bloodsheltie/internal/domain/record"
	"bloodsheltie/internal/domain/sync"
)

// SyncRepository реализация репозитория синхронизации для PostgreSQL
type SyncRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ sync.Repository = (*SyncRepository)(nil)

// NewSyncRepository создает новый репозиторий синхронизации
func NewSyncRepository(pool *pgxpool.Pool, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		pool: pool,
		log:  log.With("component", "sync_repository"),
	}
}

// LoadSyncTag возвращает метку приёмника
func (r *SyncRepository) LoadSyncTag(ctx context.Context, serial string) (*sync.SyncTag, error) {
	const query = `SELECT tag FROM sync_tags WHERE serial_number = $1`

	var raw []byte
	err := r.pool.QueryRow(ctx, query, serial).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrSyncTagNotFound
		}
		r.log.Error("failed to load sync tag", "serial", serial, "error", err)
		return nil, fmt.Errorf("load sync tag: %w", err)
	}

	var tag sync.SyncTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("parse sync tag: %w", err)
	}
	return &tag, nil
}

// SaveSyncTag заменяет метку целиком
func (r *SyncRepository) SaveSyncTag(ctx context.Context, tag sync.SyncTag) error {
	const query = `
		INSERT INTO sync_tags (serial_number, tag, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (serial_number) DO UPDATE SET
			tag = EXCLUDED.tag,
			updated_at = EXCLUDED.updated_at`

	raw, err := json.Marshal(tag)
	if err != nil {
		return fmt.Errorf("marshal sync tag: %w", err)
	}

	updated := tag.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	if _, err := r.pool.Exec(ctx, query, tag.SerialNumber, string(raw), updated); err != nil {
		r.log.Error("failed to save sync tag", "serial", tag.SerialNumber, "error", err)
		return fmt.Errorf("save sync tag: %w", err)
	}
	return nil
}

// DeleteSyncTag удаляет метку
func (r *SyncRepository) DeleteSyncTag(ctx context.Context, serial string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sync_tags WHERE serial_number = $1`, serial); err != nil {
		return fmt.Errorf("delete sync tag: %w", err)
	}
	return nil
}

// SaveRecords сохраняет записи пакетом в одной транзакции
func (r *SyncRepository) SaveRecords(ctx context.Context, records []*sync.StoredRecord) error {
	const query = `
		INSERT INTO records (serial_number, type, record_number, page_number,
		                     internal_time, user_time, timezone, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (serial_number, type, record_number) DO UPDATE SET
			page_number = EXCLUDED.page_number,
			internal_time = EXCLUDED.internal_time,
			user_time = EXCLUDED.user_time,
			timezone = EXCLUDED.timezone,
			payload = EXCLUDED.payload`

	if len(records) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(query,
				rec.SerialNumber, int16(rec.Type), int64(rec.RecordNumber), int64(rec.PageNumber),
				rec.InternalTime, rec.UserTime, rec.Timezone, string(rec.Payload),
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			r.log.Error("failed to save records", "count", len(records), "error", err)
			return fmt.Errorf("save records: %w", err)
		}
		return nil
	})
}

// ListRecords возвращает записи по фильтру
func (r *SyncRepository) ListRecords(ctx context.Context, filter sync.RecordFilter) ([]*sync.StoredRecord, error) {
	query := `
		SELECT serial_number, type, record_number, page_number, internal_time,
		       user_time, timezone, payload, created_at
		FROM records
		WHERE ($1 = '' OR serial_number = $1)
		  AND ($2::smallint IS NULL OR type = $2)
		  AND ($3::timestamptz IS NULL OR internal_time >= $3)
		ORDER BY serial_number, type, record_number`

	var typ *int16
	if filter.Type != nil {
		v := int16(*filter.Type)
		typ = &v
	}
	var since *time.Time
	if !filter.Since.IsZero() {
		since = &filter.Since
	}

	args := []any{filter.SerialNumber, typ, since}
	switch {
	case filter.Limit > 0:
		query += ` LIMIT $4 OFFSET $5`
		args = append(args, filter.Limit, filter.Offset)
	case filter.Offset > 0:
		query += ` OFFSET $4`
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list records", "serial", filter.SerialNumber, "error", err)
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*sync.StoredRecord
	for rows.Next() {
		var (
			rec          sync.StoredRecord
			typ          int16
			number, page int64
			payload      []byte
		)
		if err := rows.Scan(&rec.SerialNumber, &typ, &number, &page, &rec.InternalTime,
			&rec.UserTime, &rec.Timezone, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Type = record.Type(typ)
		rec.RecordNumber = uint32(number)
		rec.PageNumber = uint32(page)
		rec.Payload = json.RawMessage(payload)
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// ListDevices возвращает приёмники, для которых есть метка
func (r *SyncRepository) ListDevices(ctx context.Context) ([]*sync.DeviceInfo, error) {
	const query = `
		SELECT t.serial_number, t.updated_at, COUNT(r.record_number)
		FROM sync_tags t
		LEFT JOIN records r ON r.serial_number = t.serial_number
		GROUP BY t.serial_number, t.updated_at
		ORDER BY t.serial_number`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*sync.DeviceInfo
	for rows.Next() {
		var d sync.DeviceInfo
		var count int64
		if err := rows.Scan(&d.SerialNumber, &d.LastSyncTime, &count); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		d.RecordCount = int(count)
		devices = append(devices, &d)
	}

	return devices, rows.Err()
}

// RecordSyncRun пишет итог сессии в журнал
func (r *SyncRepository) RecordSyncRun(ctx context.Context, run *sync.SyncRun) error {
	const query = `
		INSERT INTO sync_runs (id, serial_number, state, record_count, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.SerialNumber, run.State.String(), run.RecordCount, run.Error, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("record sync run: %w", err)
	}
	return nil
}

// ListSyncRuns последние сессии приёмника, новые первыми
func (r *SyncRepository) ListSyncRuns(ctx context.Context, serial string, limit int) ([]*sync.SyncRun, error) {
	const query = `
		SELECT id, serial_number, state, record_count, error, started_at, finished_at
		FROM sync_runs
		WHERE serial_number = $1
		ORDER BY started_at DESC
		LIMIT $2`

	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, query, serial, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*sync.SyncRun
	for rows.Next() {
		var run sync.SyncRun
		var state string
		if err := rows.Scan(&run.ID, &run.SerialNumber, &state, &run.RecordCount, &run.Error,
			&run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		if run.State, err = sync.ParseState(state); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}
