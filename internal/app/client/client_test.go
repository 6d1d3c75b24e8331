package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"bloodsheltie/internal/app/client/config"
	"bloodsheltie/internal/app/server/api"
	"bloodsheltie/internal/app/server/api/http/middleware/auth"
	"bloodsheltie/internal/domain/record"
	"bloodsheltie/internal/domain/sync"
	"bloodsheltie/internal/infrastructure/storage/sqlite"
	"bloodsheltie/internal/infrastructure/transport/dump"
)

const (
	testSerial = "SM12345678"
	testAPIKey = "secret-key"
)

type testServer struct {
	storage *sqlite.Storage
	address string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	storage, err := sqlite.New(filepath.Join(t.TempDir(), "server.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	hash, err := auth.HashKey(testAPIKey)
	require.NoError(t, err)

	srv := httptest.NewServer(api.New(storage, nil, hash, slog.Default()))
	t.Cleanup(srv.Close)

	return &testServer{
		storage: storage,
		address: strings.TrimPrefix(srv.URL, "http://"),
	}
}

func testConfig(t *testing.T, serverAddress string) *config.Config {
	t.Helper()

	dir := t.TempDir()
	return &config.Config{
		Env:            "local",
		ConfigDir:      dir,
		DataPath:       filepath.Join(dir, "client.db"),
		DumpDir:        filepath.Join(dir, "dump"),
		Timezone:       "UTC",
		SessionTimeout: 10,
		DecodeWorkers:  2,
		ResetPolicy:    string(sync.ResetAbort),
		ServerAddress:  serverAddress,
		APIKey:         testAPIKey,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()

	app, err := New(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func writeDump(t *testing.T, app *App, dir string, readings int) {
	t.Helper()

	require.NoError(t, app.WriteFixture(dir, dump.FixtureOptions{
		SerialNumber: testSerial,
		Start:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Readings:     readings,
		Calibrations: 3,
		Events:       2,
		Seed:         42,
	}))
}

func TestApp_SyncLocal(t *testing.T) {
	// Arrange
	app := newTestApp(t, testConfig(t, ""))
	writeDump(t, app, app.Config().DumpDir, 50)
	ctx := context.Background()

	// Act
	first, firstErr := app.Sync(ctx, "")
	second, secondErr := app.Sync(ctx, "")

	// Assert
	require.NoError(t, firstErr)
	assert.Equal(t, sync.StateCommitted, first.State)
	assert.Len(t, first.Records, 55)
	assert.Equal(t, uint32(49), first.Tag.LastGlucoseRead.RecordNumber)

	require.NoError(t, secondErr)
	assert.Empty(t, second.Records)
	assert.Equal(t, first.Tag.LastGlucoseRead.RecordNumber, second.Tag.LastGlucoseRead.RecordNumber)
	assert.True(t, first.Tag.LastGlucoseRead.InternalTime.Equal(second.Tag.LastGlucoseRead.InternalTime))

	tag, err := app.Status(ctx, testSerial)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tag.LastCalibrationRead.RecordNumber)

	runs, err := app.SyncRuns(ctx, testSerial, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	egv := record.TypeEGVData
	stored, err := app.ListRecords(ctx, sync.RecordFilter{SerialNumber: testSerial, Type: &egv})
	require.NoError(t, err)
	assert.Len(t, stored, 50)
}

func TestApp_StatusUnknownDevice(t *testing.T) {
	// Arrange
	app := newTestApp(t, testConfig(t, ""))

	// Act
	tag, err := app.Status(context.Background(), "SM00000000")

	// Assert
	assert.NoError(t, err)
	assert.Nil(t, tag)
}

func TestApp_ResetTag(t *testing.T) {
	// Arrange
	app := newTestApp(t, testConfig(t, ""))
	writeDump(t, app, app.Config().DumpDir, 10)
	ctx := context.Background()
	_, err := app.Sync(ctx, "")
	require.NoError(t, err)

	// Act
	require.NoError(t, app.ResetTag(ctx, testSerial))
	res, err := app.Sync(ctx, "")

	// Assert
	require.NoError(t, err)
	assert.Len(t, res.Records, 15)
	assert.True(t, res.PreviousTag.IsEmpty())
}

func TestApp_RemoteNotConfigured(t *testing.T) {
	// Arrange
	app := newTestApp(t, testConfig(t, ""))

	// Act
	_, pushErr := app.Push(context.Background(), "")
	_, syncErr := app.SyncRemote(context.Background(), "")

	// Assert
	assert.Error(t, pushErr)
	assert.Error(t, syncErr)
}

func TestApp_Push(t *testing.T) {
	// Arrange
	server := newTestServer(t)
	app := newTestApp(t, testConfig(t, server.address))
	writeDump(t, app, app.Config().DumpDir, 40)
	ctx := context.Background()
	_, err := app.Sync(ctx, "")
	require.NoError(t, err)

	// Act
	first, firstErr := app.Push(ctx, "")
	second, secondErr := app.Push(ctx, testSerial)

	// Assert
	require.NoError(t, firstErr)
	assert.Equal(t, &PushResult{Devices: 1, Records: 45, Tags: 1, Runs: 1}, first)

	require.NoError(t, secondErr)
	assert.Equal(t, 45, second.Records)

	stored, err := server.storage.ListRecords(ctx, sync.RecordFilter{SerialNumber: testSerial})
	require.NoError(t, err)
	assert.Len(t, stored, 45)

	tag, err := server.storage.LoadSyncTag(ctx, testSerial)
	require.NoError(t, err)
	assert.Equal(t, uint32(39), tag.LastGlucoseRead.RecordNumber)

	runs, err := server.storage.ListSyncRuns(ctx, testSerial, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestApp_SyncRemote(t *testing.T) {
	// Arrange
	server := newTestServer(t)
	app := newTestApp(t, testConfig(t, server.address))
	writeDump(t, app, app.Config().DumpDir, 20)
	ctx := context.Background()

	// Act
	res, err := app.SyncRemote(ctx, "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, sync.StateCommitted, res.State)
	assert.Len(t, res.Records, 25)

	tag, err := server.storage.LoadSyncTag(ctx, testSerial)
	require.NoError(t, err)
	assert.Equal(t, uint32(19), tag.LastGlucoseRead.RecordNumber)

	local, err := app.Status(ctx, testSerial)
	require.NoError(t, err)
	assert.Nil(t, local)
}
