package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

const bearerPrefix = "Bearer "

// Auth проверяет API-ключ клиента по bcrypt-хешу
type Auth struct {
	keyHash []byte
	log     *slog.Logger
}

// New пустой хеш отключает проверку
func New(keyHash string, log *slog.Logger) *Auth {
	return &Auth{
		keyHash: []byte(keyHash),
		log:     log.With(slog.String("component", "auth_middleware")),
	}
}

// HashKey готовит значение для API_KEY_HASH
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Enabled включена ли проверка ключа
func (a *Auth) Enabled() bool {
	return len(a.keyHash) > 0
}

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context))
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !a.Enabled() {
			next(ctx)
			return
		}

		token := ctx.Header("Authorization")
		if !strings.HasPrefix(token, bearerPrefix) {
			a.log.Warn("missing bearer token", slog.String("path", ctx.URL().Path))
			a.unauthorized(ctx)
			return
		}

		err := bcrypt.CompareHashAndPassword(a.keyHash, []byte(strings.TrimPrefix(token, bearerPrefix)))
		if err != nil {
			a.log.Warn("invalid api key", slog.String("path", ctx.URL().Path))
			a.unauthorized(ctx)
			return
		}

		next(ctx)
	}
}

func (a *Auth) unauthorized(ctx huma.Context) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusUnauthorized)

	err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
		"error": "Unauthorized",
	})
	if err != nil {
		a.log.Error("json encode", slog.Any("error", err))
	}
}
