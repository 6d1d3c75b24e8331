package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"bloodsheltie/internal/domain/record"
	"bloodsheltie/internal/domain/sync"
)

const statusOk = "Ok"

type Handler struct {
	repo       sync.Repository
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(repo sync.Repository, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		repo:       repo,
		log:        log.With(slog.String("component", "device_handler")),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listDevicesOp(), h.listDevices)
	huma.Register(api, h.getSyncTagOp(), h.getSyncTag)
	huma.Register(api, h.putSyncTagOp(), h.putSyncTag)
	huma.Register(api, h.deleteSyncTagOp(), h.deleteSyncTag)
	huma.Register(api, h.listRecordsOp(), h.listRecords)
	huma.Register(api, h.saveRecordsOp(), h.saveRecords)
	huma.Register(api, h.listSyncRunsOp(), h.listSyncRuns)
	huma.Register(api, h.recordSyncRunOp(), h.recordSyncRun)
}

func (h *Handler) listDevices(ctx context.Context, _ *ListDevicesInput) (*ListDevicesOutput, error) {
	devices, err := h.repo.ListDevices(ctx)
	if err != nil {
		h.log.Error("failed to list devices", slog.Any("error", err))
		return nil, huma.Error500InternalServerError("failed to list devices")
	}

	out := &ListDevicesOutput{}
	out.Body.Devices = devices
	return out, nil
}

func (h *Handler) getSyncTag(ctx context.Context, input *GetSyncTagInput) (*GetSyncTagOutput, error) {
	if err := checkSerial(input.Serial); err != nil {
		return nil, err
	}

	tag, err := h.repo.LoadSyncTag(ctx, input.Serial)
	if err != nil {
		if errors.Is(err, sync.ErrSyncTagNotFound) {
			return nil, huma.Error404NotFound(err.Error())
		}
		h.log.Error("failed to load sync tag", slog.String("serial", input.Serial), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("failed to load sync tag")
	}

	return &GetSyncTagOutput{Body: *tag}, nil
}

func (h *Handler) putSyncTag(ctx context.Context, input *PutSyncTagInput) (*StatusOutput, error) {
	if err := checkSerial(input.Serial); err != nil {
		return nil, err
	}

	tag := input.Body
	if tag.SerialNumber != "" && tag.SerialNumber != input.Serial {
		return nil, huma.Error422UnprocessableEntity(
			fmt.Sprintf("tag serial %q does not match path serial %q", tag.SerialNumber, input.Serial))
	}
	tag.SerialNumber = input.Serial

	if err := h.repo.SaveSyncTag(ctx, tag); err != nil {
		h.log.Error("failed to save sync tag", slog.String("serial", input.Serial), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("failed to save sync tag")
	}

	h.log.Debug("sync tag saved", slog.String("serial", input.Serial))
	return &StatusOutput{Body: Response{Status: statusOk, Message: "Sync tag saved"}}, nil
}

func (h *Handler) deleteSyncTag(ctx context.Context, input *DeleteSyncTagInput) (*StatusOutput, error) {
	if err := checkSerial(input.Serial); err != nil {
		return nil, err
	}

	if err := h.repo.DeleteSyncTag(ctx, input.Serial); err != nil {
		h.log.Error("failed to delete sync tag", slog.String("serial", input.Serial), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("failed to delete sync tag")
	}

	h.log.Info("sync tag reset", slog.String("serial", input.Serial))
	return &StatusOutput{Body: Response{Status: statusOk, Message: "Sync tag deleted"}}, nil
}

func (h *Handler) listRecords(ctx context.Context, input *ListRecordsInput) (*ListRecordsOutput, error) {
	if err := checkSerial(input.Serial); err != nil {
		return nil, err
	}

	filter := sync.RecordFilter{
		SerialNumber: input.Serial,
		Since:        input.Since,
		Limit:        input.Limit,
		Offset:       input.Offset,
	}
	if input.Type != "" {
		t, err := record.ParseType(input.Type)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		filter.Type = &t
	}

	records, err := h.repo.ListRecords(ctx, filter)
	if err != nil {
		h.log.Error("failed to list records", slog.String("serial", input.Serial), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("failed to list records")
	}

	out := &ListRecordsOutput{}
	out.Body.Records = records
	return out, nil
}

func (h *Handler) saveRecords(ctx context.Context, input *SaveRecordsInput) (*StatusOutput, error) {
	if err := checkSerial(input.Serial); err != nil {
		return nil, err
	}

	records := input.Body.Records
	for i, r := range records {
		if err := validateRecord(input.Serial, r); err != nil {
			return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("records[%d]: %s", i, err))
		}
		r.SerialNumber = input.Serial
	}

	if err := h.repo.SaveRecords(ctx, records); err != nil {
		h.log.Error("failed to save records", slog.String("serial", input.Serial), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("failed to save records")
	}

	h.log.Debug("records saved", slog.String("serial", input.Serial), slog.Int("count", len(records)))
	return &StatusOutput{Body: Response{
		Status:  statusOk,
		Message: fmt.Sprintf("%d records saved", len(records)),
	}}, nil
}

func (h *Handler) listSyncRuns(ctx context.Context, input *ListSyncRunsInput) (*ListSyncRunsOutput, error) {
	if err := checkSerial(input.Serial); err != nil {
		return nil, err
	}

	runs, err := h.repo.ListSyncRuns(ctx, input.Serial, input.Limit)
	if err != nil {
		h.log.Error("failed to list sync runs", slog.String("serial", input.Serial), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("failed to list sync runs")
	}

	out := &ListSyncRunsOutput{}
	out.Body.Runs = runs
	return out, nil
}

func (h *Handler) recordSyncRun(ctx context.Context, input *RecordSyncRunInput) (*StatusOutput, error) {
	if err := checkSerial(input.Serial); err != nil {
		return nil, err
	}

	run := input.Body
	if run.SerialNumber != "" && run.SerialNumber != input.Serial {
		return nil, huma.Error422UnprocessableEntity(
			fmt.Sprintf("run serial %q does not match path serial %q", run.SerialNumber, input.Serial))
	}
	run.SerialNumber = input.Serial

	if err := h.repo.RecordSyncRun(ctx, &run); err != nil {
		h.log.Error("failed to record sync run", slog.String("serial", input.Serial), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("failed to record sync run")
	}

	return &StatusOutput{Body: Response{Status: statusOk, Message: "Sync run recorded"}}, nil
}

// checkSerial серийный номер из пути
func checkSerial(serial string) error {
	if err := sync.ValidateSerial(serial); err != nil {
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return nil
}

// validateRecord запись должна относиться к приёмнику из пути, отслеживаемой
// категории и содержать декодируемую нагрузку с тем же номером
func validateRecord(serial string, r *sync.StoredRecord) error {
	if r == nil {
		return errors.New("record is null")
	}
	if r.SerialNumber != "" && r.SerialNumber != serial {
		return fmt.Errorf("serial %q does not match path serial %q", r.SerialNumber, serial)
	}
	if !r.Type.IsTracked() {
		return fmt.Errorf("record type %s is not tracked", r.Type)
	}

	rec, err := r.Record()
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if n := rec.Generic().RecordNumber; n != r.RecordNumber {
		return fmt.Errorf("payload record number %d does not match %d", n, r.RecordNumber)
	}
	return nil
}
