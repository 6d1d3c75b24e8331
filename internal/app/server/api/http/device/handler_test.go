package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"bloodsheltie/internal/domain/record"
	"bloodsheltie/internal/domain/sync"
)

const testSerial = "SM12345678"

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) LoadSyncTag(ctx context.Context, serial string) (*sync.SyncTag, error) {
	args := m.Called(ctx, serial)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.SyncTag), args.Error(1)
}

func (m *MockRepository) SaveSyncTag(ctx context.Context, tag sync.SyncTag) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *MockRepository) DeleteSyncTag(ctx context.Context, serial string) error {
	args := m.Called(ctx, serial)
	return args.Error(0)
}

func (m *MockRepository) SaveRecords(ctx context.Context, records []*sync.StoredRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockRepository) RecordSyncRun(ctx context.Context, run *sync.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRepository) ListRecords(ctx context.Context, filter sync.RecordFilter) ([]*sync.StoredRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sync.StoredRecord), args.Error(1)
}

func (m *MockRepository) ListDevices(ctx context.Context) ([]*sync.DeviceInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sync.DeviceInfo), args.Error(1)
}

func (m *MockRepository) ListSyncRuns(ctx context.Context, serial string, limit int) ([]*sync.SyncRun, error) {
	args := m.Called(ctx, serial, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sync.SyncRun), args.Error(1)
}

func newHandler(repo *MockRepository) *Handler {
	return NewHandler(repo, slog.Default(), huma.Middlewares{})
}

func glucoseRecord(t *testing.T, number uint32) *sync.StoredRecord {
	t.Helper()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(number) * 5 * time.Minute)
	rec := record.GlucoseReadRecord{
		GenericRecord: record.GenericRecord{
			RecordNumber: number,
			Time:         record.TimestampedValue{InternalTime: at, UserTime: at, Timezone: "UTC"},
		},
		GlucoseValue:       110,
		TrendArrowAndNoise: 0x14,
	}
	stored, err := sync.NewStoredRecord("", rec)
	require.NoError(t, err)
	return stored
}

func statusOf(t *testing.T, err error) int {
	t.Helper()

	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	return se.GetStatus()
}

func TestHandler_getSyncTag(t *testing.T) {
	stored := sync.NewSyncTag(testSerial).WithType(record.TypeEGVData, &sync.RecordSyncTag{RecordNumber: 41, PageNumber: 3})

	tests := []struct {
		name           string
		tag            *sync.SyncTag
		repoErr        error
		expectedStatus int
	}{
		{
			name: "found",
			tag:  &stored,
		},
		{
			name:           "not found",
			repoErr:        sync.ErrSyncTagNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "storage failure",
			repoErr:        errors.New("connection reset"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			repo := new(MockRepository)
			repo.On("LoadSyncTag", mock.Anything, testSerial).Return(tt.tag, tt.repoErr)
			handler := newHandler(repo)

			// Act
			out, err := handler.getSyncTag(context.Background(), &GetSyncTagInput{Serial: testSerial})

			// Assert
			if tt.expectedStatus != 0 {
				assert.Equal(t, tt.expectedStatus, statusOf(t, err))
				assert.Nil(t, out)
			} else {
				require.NoError(t, err)
				assert.Equal(t, uint32(41), out.Body.LastGlucoseRead.RecordNumber)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestHandler_putSyncTag(t *testing.T) {
	tests := []struct {
		name           string
		bodySerial     string
		repoErr        error
		expectedStatus int
		expectSave     bool
	}{
		{
			name:       "serial taken from path",
			bodySerial: "",
			expectSave: true,
		},
		{
			name:       "matching serial",
			bodySerial: testSerial,
			expectSave: true,
		},
		{
			name:           "mismatched serial",
			bodySerial:     "SM00000000",
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "storage failure",
			bodySerial:     testSerial,
			repoErr:        errors.New("disk full"),
			expectedStatus: http.StatusInternalServerError,
			expectSave:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			repo := new(MockRepository)
			body := sync.NewSyncTag(tt.bodySerial).WithType(record.TypeMeterData, &sync.RecordSyncTag{RecordNumber: 7})
			if tt.expectSave {
				repo.On("SaveSyncTag", mock.Anything, mock.MatchedBy(func(tag sync.SyncTag) bool {
					return tag.SerialNumber == testSerial && tag.LastCalibrationRead.RecordNumber == 7
				})).Return(tt.repoErr)
			}
			handler := newHandler(repo)

			// Act
			out, err := handler.putSyncTag(context.Background(), &PutSyncTagInput{Serial: testSerial, Body: body})

			// Assert
			if tt.expectedStatus != 0 {
				assert.Equal(t, tt.expectedStatus, statusOf(t, err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, statusOk, out.Body.Status)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestHandler_deleteSyncTag(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	repo.On("DeleteSyncTag", mock.Anything, testSerial).Return(nil)
	handler := newHandler(repo)

	// Act
	out, err := handler.deleteSyncTag(context.Background(), &DeleteSyncTagInput{Serial: testSerial})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, statusOk, out.Body.Status)
	repo.AssertExpectations(t)
}

func TestHandler_listRecords(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	egv := record.TypeEGVData

	tests := []struct {
		name           string
		input          ListRecordsInput
		expectedFilter *sync.RecordFilter
		expectedStatus int
	}{
		{
			name:  "all records",
			input: ListRecordsInput{Serial: testSerial, Limit: 1000},
			expectedFilter: &sync.RecordFilter{
				SerialNumber: testSerial,
				Limit:        1000,
			},
		},
		{
			name:  "filtered by type and time",
			input: ListRecordsInput{Serial: testSerial, Type: "glucose_read", Since: since, Limit: 10, Offset: 5},
			expectedFilter: &sync.RecordFilter{
				SerialNumber: testSerial,
				Type:         &egv,
				Since:        since,
				Limit:        10,
				Offset:       5,
			},
		},
		{
			name:           "unknown type",
			input:          ListRecordsInput{Serial: testSerial, Type: "insulin"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			repo := new(MockRepository)
			records := []*sync.StoredRecord{glucoseRecord(t, 1)}
			if tt.expectedFilter != nil {
				repo.On("ListRecords", mock.Anything, *tt.expectedFilter).Return(records, nil)
			}
			handler := newHandler(repo)

			// Act
			out, err := handler.listRecords(context.Background(), &tt.input)

			// Assert
			if tt.expectedStatus != 0 {
				assert.Equal(t, tt.expectedStatus, statusOf(t, err))
			} else {
				require.NoError(t, err)
				assert.Len(t, out.Body.Records, 1)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestHandler_saveRecords(t *testing.T) {
	tests := []struct {
		name           string
		mutate         func(r *sync.StoredRecord)
		expectedStatus int
	}{
		{
			name:   "valid record",
			mutate: func(*sync.StoredRecord) {},
		},
		{
			name:           "foreign serial",
			mutate:         func(r *sync.StoredRecord) { r.SerialNumber = "SM00000000" },
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "untracked type",
			mutate:         func(r *sync.StoredRecord) { r.Type = record.TypeSensorData },
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "broken payload",
			mutate:         func(r *sync.StoredRecord) { r.Payload = json.RawMessage(`"oops"`) },
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "record number mismatch",
			mutate:         func(r *sync.StoredRecord) { r.RecordNumber = 99 },
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			repo := new(MockRepository)
			rec := glucoseRecord(t, 3)
			tt.mutate(rec)
			if tt.expectedStatus == 0 {
				repo.On("SaveRecords", mock.Anything, mock.MatchedBy(func(rs []*sync.StoredRecord) bool {
					return len(rs) == 1 && rs[0].SerialNumber == testSerial
				})).Return(nil)
			}
			handler := newHandler(repo)
			input := &SaveRecordsInput{Serial: testSerial}
			input.Body.Records = []*sync.StoredRecord{rec}

			// Act
			out, err := handler.saveRecords(context.Background(), input)

			// Assert
			if tt.expectedStatus != 0 {
				assert.Equal(t, tt.expectedStatus, statusOf(t, err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "1 records saved", out.Body.Message)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestHandler_syncRuns(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	run := sync.SyncRun{
		ID:          uuid.New(),
		State:       sync.StateCommitted,
		RecordCount: 12,
		StartedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2024, 3, 1, 12, 0, 3, 0, time.UTC),
	}
	repo.On("RecordSyncRun", mock.Anything, mock.MatchedBy(func(r *sync.SyncRun) bool {
		return r.ID == run.ID && r.SerialNumber == testSerial
	})).Return(nil)
	repo.On("ListSyncRuns", mock.Anything, testSerial, 20).Return([]*sync.SyncRun{&run}, nil)
	handler := newHandler(repo)

	// Act
	_, recordErr := handler.recordSyncRun(context.Background(), &RecordSyncRunInput{Serial: testSerial, Body: run})
	out, listErr := handler.listSyncRuns(context.Background(), &ListSyncRunsInput{Serial: testSerial, Limit: 20})

	// Assert
	require.NoError(t, recordErr)
	require.NoError(t, listErr)
	require.Len(t, out.Body.Runs, 1)
	assert.Equal(t, run.ID, out.Body.Runs[0].ID)
	repo.AssertExpectations(t)
}

func TestHandler_listDevices(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	repo.On("ListDevices", mock.Anything).Return(nil, errors.New("timeout"))
	handler := newHandler(repo)

	// Act
	_, err := handler.listDevices(context.Background(), &ListDevicesInput{})

	// Assert
	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	repo.AssertExpectations(t)
}

func TestHandler_SetupRoutes(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	repo.On("LoadSyncTag", mock.Anything, testSerial).Return(nil, sync.ErrSyncTagNotFound)
	repo.On("ListDevices", mock.Anything).Return([]*sync.DeviceInfo{{SerialNumber: testSerial, RecordCount: 3}}, nil)
	_, api := humatest.New(t)
	newHandler(repo).SetupRoutes(api)

	// Act
	tagResp := api.Get("/api/devices/" + testSerial + "/sync-tag")
	devicesResp := api.Get("/api/devices")

	// Assert
	assert.Equal(t, http.StatusNotFound, tagResp.Code)
	assert.Equal(t, http.StatusOK, devicesResp.Code)
	assert.Contains(t, devicesResp.Body.String(), testSerial)
	repo.AssertExpectations(t)
}

func TestHandler_invalidSerial(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	handler := newHandler(repo)

	// Act
	_, tagErr := handler.getSyncTag(context.Background(), &GetSyncTagInput{Serial: "SM/../x"})
	_, runsErr := handler.listSyncRuns(context.Background(), &ListSyncRunsInput{Serial: "SM"})

	// Assert
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, tagErr))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, runsErr))
	repo.AssertNotCalled(t, "LoadSyncTag", mock.Anything, mock.Anything)
}
