// Сервер принимает результаты синхронизации приёмников от клиентов:
// хранит метки синхронизации, декодированные записи и журнал сессий.

// GET    /api/health                        # Состояние сервиса (публичный)
// GET    /api/devices                       # Список приёмников (auth)
// GET    /api/devices/{serial}/sync-tag     # Метка синхронизации (auth)
// PUT    /api/devices/{serial}/sync-tag     # Сохранить метку (auth)
// DELETE /api/devices/{serial}/sync-tag     # Сбросить метку (auth)
// GET    /api/devices/{serial}/records      # Записи приёмника (auth)
// POST   /api/devices/{serial}/records      # Сохранить записи (auth)
// GET    /api/devices/{serial}/sync-runs    # Журнал сессий (auth)
// POST   /api/devices/{serial}/sync-runs    # Записать сессию (auth)

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	deviceAPI "bloodsheltie/internal/app/server/api/http/device"
	healthAPI "bloodsheltie/internal/app/server/api/http/health"
	"bloodsheltie/internal/app/server/api/http/middleware/auth"
	"bloodsheltie/internal/app/server/api/http/middleware/logger"
	"bloodsheltie/internal/domain/sync"
)

type Handlers struct {
	Health *healthAPI.Handler
	Device *deviceAPI.Handler
}

// New создает *chi.Mux с ВСЕМИ операциями через huma.Register.
// db может быть nil, тогда health не проверяет хранилище.
func New(repo sync.Repository, db healthAPI.Pinger, apiKeyHash string, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)

	config := huma.DefaultConfig("Bloodsheltie API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(repo, db, apiKeyHash, log)
	h.Health.SetupRoutes(API)
	h.Device.SetupRoutes(API)

	return mux
}

func handlers(repo sync.Repository, db healthAPI.Pinger, apiKeyHash string, log *slog.Logger) *Handlers {
	authMW := auth.New(apiKeyHash, log)
	loggerMW := logger.New(log)
	if !authMW.Enabled() {
		log.Warn("API_KEY_HASH is empty, device endpoints are not protected")
	}

	healthHandler := healthAPI.NewHandler(db, log, huma.Middlewares{
		loggerMW.Middleware(),
	})

	deviceHandler := deviceAPI.NewHandler(repo, log, huma.Middlewares{
		loggerMW.Middleware(),
		authMW.Middleware(),
	})

	return &Handlers{
		Health: healthHandler,
		Device: deviceHandler,
	}
}
