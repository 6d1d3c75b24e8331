package client

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/slog"

	"bloodsheltie/internal/app/client/config"
	"bloodsheltie/internal/domain/sync"
	"bloodsheltie/internal/infrastructure/storage/sqlite"
	"bloodsheltie/internal/infrastructure/transport/dump"
)

// App клиентское приложение: локальное хранилище, сервис синхронизации
// и, если настроен сервер, удалённое хранилище
type App struct {
	config  *config.Config
	log     *slog.Logger
	storage *sqlite.Storage
	service *sync.Service
	open    sync.Opener
	remote  *RemoteStore
}

// PushResult итог отправки на сервер
type PushResult struct {
	Devices int
	Records int
	Tags    int
	Runs    int
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	syncCfg, err := cfg.SyncConfig()
	if err != nil {
		return nil, err
	}

	storage, err := sqlite.New(cfg.DataPath, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}

	app := &App{
		config:  cfg,
		log:     log.With("component", "client_app"),
		storage: storage,
		service: sync.NewService(storage, log, syncCfg),
		open:    dump.Opener,
	}

	if cfg.HasServer() {
		app.remote, err = NewRemoteStore(cfg, log)
		if err != nil {
			_ = storage.Close()
			return nil, err
		}
	}

	return app, nil
}

func (a *App) Close() error {
	return a.storage.Close()
}

func (a *App) Config() *config.Config {
	return a.config
}

// Sync синхронизирует выгрузку из dir в локальное хранилище;
// пустой dir означает DUMP_DIR из конфигурации
func (a *App) Sync(ctx context.Context, dir string) (*sync.Result, error) {
	return a.syncWith(ctx, a.service, dir)
}

// SyncRemote синхронизирует выгрузку сразу в хранилище сервера
func (a *App) SyncRemote(ctx context.Context, dir string) (*sync.Result, error) {
	if a.remote == nil {
		return nil, errors.New("сервер не настроен (SERVER_ADDRESS)")
	}
	syncCfg, err := a.config.SyncConfig()
	if err != nil {
		return nil, err
	}
	return a.syncWith(ctx, sync.NewService(a.remote, a.log, syncCfg), dir)
}

func (a *App) syncWith(ctx context.Context, svc sync.Servicer, dir string) (*sync.Result, error) {
	if dir == "" {
		dir = a.config.DumpDir
	}

	t, err := a.open(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия приёмника %s: %w", dir, err)
	}

	a.log.Debug("Синхронизация", "source", dir)
	return svc.Sync(ctx, t)
}

// Status метка приёмника; nil без ошибки, если приёмник ещё не синхронизировался
func (a *App) Status(ctx context.Context, serial string) (*sync.SyncTag, error) {
	tag, err := a.service.Status(ctx, serial)
	if errors.Is(err, sync.ErrSyncTagNotFound) {
		return nil, nil
	}
	return tag, err
}

func (a *App) ResetTag(ctx context.Context, serial string) error {
	return a.service.ResetTag(ctx, serial)
}

func (a *App) Devices(ctx context.Context) ([]*sync.DeviceInfo, error) {
	return a.storage.ListDevices(ctx)
}

func (a *App) SyncRuns(ctx context.Context, serial string, limit int) ([]*sync.SyncRun, error) {
	return a.storage.ListSyncRuns(ctx, serial, limit)
}

func (a *App) ListRecords(ctx context.Context, filter sync.RecordFilter) ([]*sync.StoredRecord, error) {
	return a.storage.ListRecords(ctx, filter)
}

// WriteFixture пишет синтетическую выгрузку приёмника
func (a *App) WriteFixture(dir string, opts dump.FixtureOptions) error {
	if err := dump.WriteFixture(dir, opts); err != nil {
		return fmt.Errorf("ошибка записи выгрузки: %w", err)
	}
	a.log.Info("Выгрузка записана", "dir", dir, "serial", opts.SerialNumber)
	return nil
}

// Push отправляет на сервер записи, метку и журнал приёмника serial
// или всех известных приёмников. Метка уходит после записей.
func (a *App) Push(ctx context.Context, serial string) (*PushResult, error) {
	if a.remote == nil {
		return nil, errors.New("сервер не настроен (SERVER_ADDRESS)")
	}
	if err := a.remote.HealthCheck(ctx); err != nil {
		return nil, err
	}

	serials := []string{serial}
	if serial == "" {
		devices, err := a.storage.ListDevices(ctx)
		if err != nil {
			return nil, err
		}
		serials = serials[:0]
		for _, d := range devices {
			serials = append(serials, d.SerialNumber)
		}
	}

	res := &PushResult{}
	for _, s := range serials {
		if err := a.pushDevice(ctx, s, res); err != nil {
			return res, fmt.Errorf("push %s: %w", s, err)
		}
		res.Devices++
	}

	a.log.Info("Push завершён", "devices", res.Devices, "records", res.Records)
	return res, nil
}

func (a *App) pushDevice(ctx context.Context, serial string, res *PushResult) error {
	for offset := 0; ; offset += pushBatch {
		records, err := a.storage.ListRecords(ctx, sync.RecordFilter{
			SerialNumber: serial,
			Limit:        pushBatch,
			Offset:       offset,
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			break
		}
		if err := a.remote.SaveRecords(ctx, records); err != nil {
			return err
		}
		res.Records += len(records)
		if len(records) < pushBatch {
			break
		}
	}

	tag, err := a.storage.LoadSyncTag(ctx, serial)
	switch {
	case errors.Is(err, sync.ErrSyncTagNotFound):
	case err != nil:
		return err
	default:
		if err := a.remote.SaveSyncTag(ctx, *tag); err != nil {
			return err
		}
		res.Tags++
	}

	runs, err := a.storage.ListSyncRuns(ctx, serial, 0)
	if err != nil {
		return err
	}
	for _, run := range runs {
		if err := a.remote.RecordSyncRun(ctx, run); err != nil {
			return err
		}
		res.Runs++
	}
	return nil
}
