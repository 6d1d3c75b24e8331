package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"bloodsheltie/internal/domain/record"
)

// ResetPolicy поведение при обнаружении сброса приёмника
type ResetPolicy string

const (
	// ResetAbort - сессия прерывается, метка остаётся прежней
	ResetAbort ResetPolicy = "abort"
	// ResetResync - сессия повторяется один раз с пустой метки
	ResetResync ResetPolicy = "resync"
)

// ParseResetPolicy разбирает значение из конфигурации
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch p := ResetPolicy(s); p {
	case ResetAbort, ResetResync:
		return p, nil
	case "":
		return ResetAbort, nil
	}
	return "", fmt.Errorf("неверная политика сброса: %q", s)
}

// ServiceConfig конфигурация сервиса синхронизации
type ServiceConfig struct {
	SessionTimeout time.Duration
	Workers        int
	Timezone       *time.Location
	ResetPolicy    ResetPolicy
}

// Servicer интерфейс сервиса синхронизации
type Servicer interface {
	// Sync синхронизирует приёмник за открытым транспортом и закрывает транспорт
	Sync(ctx context.Context, t Transport) (*Result, error)

	// Status возвращает текущую метку приёмника
	Status(ctx context.Context, serial string) (*SyncTag, error)

	// ResetTag удаляет метку, следующая синхронизация будет полной
	ResetTag(ctx context.Context, serial string) error
}

// Service реализация сервиса синхронизации
type Service struct {
	store  Persistence
	log    *slog.Logger
	config *ServiceConfig
}

// NewService создает новый сервис синхронизации
func NewService(store Persistence, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{
			SessionTimeout: time.Minute,
			Workers:        DefaultWorkers,
			ResetPolicy:    ResetAbort,
		}
	}
	if config.Timezone == nil {
		config.Timezone = time.Local
	}

	return &Service{
		store:  store,
		log:    log.With("component", "sync_service"),
		config: config,
	}
}

// Sync выполняет одну синхронизацию. Записи сохраняются до метки; если сохранение
// записей не удалось, метка не меняется.
func (s *Service) Sync(ctx context.Context, t Transport) (*Result, error) {
	defer func() {
		if err := t.Close(); err != nil {
			s.log.Warn("Failed to close transport", "error", err)
		}
	}()

	serial, err := t.SerialNumber(ctx)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	tag, err := s.loadTag(ctx, serial)
	if err != nil {
		return nil, err
	}

	res, err := s.newSession(t).Run(ctx, tag)
	if errors.Is(err, ErrDeviceReset) && s.config.ResetPolicy == ResetResync {
		s.log.Warn("Device reset detected, resyncing from scratch", "serial", serial, "error", err)
		res, err = s.newSession(t).Run(ctx, NewSyncTag(serial))
		res.PreviousTag = tag
		if !res.Committed() {
			res.Tag = tag
		}
	}

	if err == nil {
		if err = s.commit(ctx, res); err != nil {
			res.State = StateAborted
			res.Tag = res.PreviousTag
		}
	}

	s.recordRun(ctx, res, err)

	return res, err
}

// Status возвращает текущую метку приёмника
func (s *Service) Status(ctx context.Context, serial string) (*SyncTag, error) {
	tag, err := s.store.LoadSyncTag(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync tag: %w", err)
	}
	return tag, nil
}

// ResetTag удаляет метку приёмника
func (s *Service) ResetTag(ctx context.Context, serial string) error {
	if err := s.store.DeleteSyncTag(ctx, serial); err != nil {
		return fmt.Errorf("failed to delete sync tag: %w", err)
	}
	s.log.Info("Sync tag reset", "serial", serial)
	return nil
}

func (s *Service) newSession(t Transport) *Session {
	return NewSession(t, record.NewDecoder(s.config.Timezone), s.log, SessionConfig{
		Timeout: s.config.SessionTimeout,
		Workers: s.config.Workers,
	})
}

func (s *Service) loadTag(ctx context.Context, serial string) (SyncTag, error) {
	tag, err := s.store.LoadSyncTag(ctx, serial)
	if errors.Is(err, ErrSyncTagNotFound) {
		s.log.Info("No sync tag, full sync", "serial", serial)
		return NewSyncTag(serial), nil
	}
	if err != nil {
		return SyncTag{}, fmt.Errorf("failed to load sync tag: %w", err)
	}
	return *tag, nil
}

func (s *Service) commit(ctx context.Context, res *Result) error {
	stored := make([]*StoredRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		sr, err := NewStoredRecord(res.SerialNumber, rec)
		if err != nil {
			return err
		}
		stored = append(stored, sr)
	}

	if len(stored) > 0 {
		if err := s.store.SaveRecords(ctx, stored); err != nil {
			return fmt.Errorf("failed to save records: %w", err)
		}
	}

	if err := s.store.SaveSyncTag(ctx, res.Tag); err != nil {
		return fmt.Errorf("failed to save sync tag: %w", err)
	}

	return nil
}

func (s *Service) recordRun(ctx context.Context, res *Result, err error) {
	rec, ok := s.store.(RunRecorder)
	if !ok || res == nil {
		return
	}
	// журнал пишется и после отмены, поэтому без контекста вызывающего
	if rerr := rec.RecordSyncRun(context.WithoutCancel(ctx), NewSyncRun(res, err)); rerr != nil {
		s.log.Warn("Failed to record sync run", "error", rerr)
	}
}
