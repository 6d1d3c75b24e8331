package client

import (
	"context"
	"errors"
)

type appKey struct{}

// ErrNoApp команда запущена без инициализированного приложения
var ErrNoApp = errors.New("приложение не инициализировано")

// WithApp кладёт приложение в контекст команды
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// FromContext достаёт приложение из контекста команды
func FromContext(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey{}).(*App)
	if !ok || app == nil {
		return nil, ErrNoApp
	}
	return app, nil
}
