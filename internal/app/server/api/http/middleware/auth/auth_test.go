package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

type pingOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func setupAPI(t *testing.T, a *Auth) humatest.TestAPI {
	t.Helper()

	_, api := humatest.New(t)
	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Middlewares: huma.Middlewares{a.Middleware()},
	}, func(_ context.Context, _ *struct{}) (*pingOutput, error) {
		out := &pingOutput{}
		out.Body.Status = "OK"
		return out, nil
	})

	return api
}

func TestAuth_Middleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name           string
		keyHash        string
		headers        []any
		expectedStatus int
	}{
		{
			name:           "auth disabled",
			keyHash:        "",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid key",
			keyHash:        string(hash),
			headers:        []any{"Authorization: Bearer secret-key"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing header",
			keyHash:        string(hash),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong scheme",
			keyHash:        string(hash),
			headers:        []any{"Authorization: Basic secret-key"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong key",
			keyHash:        string(hash),
			headers:        []any{"Authorization: Bearer other-key"},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			api := setupAPI(t, New(tt.keyHash, slog.Default()))

			// Act
			resp := api.Get("/ping", tt.headers...)

			// Assert
			assert.Equal(t, tt.expectedStatus, resp.Code)
			if tt.expectedStatus == http.StatusUnauthorized {
				assert.Contains(t, resp.Body.String(), "Unauthorized")
			}
		})
	}
}

func TestHashKey(t *testing.T) {
	// Act
	hash, err := HashKey("secret-key")

	// Assert
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret-key")))
	assert.True(t, New(hash, slog.Default()).Enabled())
	assert.False(t, New("", slog.Default()).Enabled())
}
