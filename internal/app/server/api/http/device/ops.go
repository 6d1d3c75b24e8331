package device

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var security = []map[string][]string{{"bearer": {}}}

func (h *Handler) listDevicesOp() huma.Operation {
	return huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List devices",
		Description: "Returns every receiver with stored records or a sync tag",
		Tags:        []string{"devices"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) getSyncTagOp() huma.Operation {
	return huma.Operation{
		OperationID: "get-sync-tag",
		Method:      http.MethodGet,
		Path:        "/api/devices/{serial}/sync-tag",
		Summary:     "Get sync tag",
		Description: "Returns the last committed sync tag of the receiver",
		Tags:        []string{"sync"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) putSyncTagOp() huma.Operation {
	return huma.Operation{
		OperationID:   "put-sync-tag",
		Method:        http.MethodPut,
		Path:          "/api/devices/{serial}/sync-tag",
		Summary:       "Save sync tag",
		Description:   "Replaces the sync tag of the receiver as a whole",
		Tags:          []string{"sync"},
		Security:      security,
		DefaultStatus: http.StatusOK,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) deleteSyncTagOp() huma.Operation {
	return huma.Operation{
		OperationID: "delete-sync-tag",
		Method:      http.MethodDelete,
		Path:        "/api/devices/{serial}/sync-tag",
		Summary:     "Reset sync tag",
		Description: "Deletes the sync tag so the next sync starts from the first page",
		Tags:        []string{"sync"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) listRecordsOp() huma.Operation {
	return huma.Operation{
		OperationID: "list-records",
		Method:      http.MethodGet,
		Path:        "/api/devices/{serial}/records",
		Summary:     "List records",
		Description: "Returns stored records of the receiver ordered by internal time",
		Tags:        []string{"records"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) saveRecordsOp() huma.Operation {
	return huma.Operation{
		OperationID:   "save-records",
		Method:        http.MethodPost,
		Path:          "/api/devices/{serial}/records",
		Summary:       "Save records",
		Description:   "Stores decoded records; records already stored are left unchanged",
		Tags:          []string{"records"},
		Security:      security,
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) listSyncRunsOp() huma.Operation {
	return huma.Operation{
		OperationID: "list-sync-runs",
		Method:      http.MethodGet,
		Path:        "/api/devices/{serial}/sync-runs",
		Summary:     "List sync runs",
		Description: "Returns the sync session journal of the receiver",
		Tags:        []string{"sync"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) recordSyncRunOp() huma.Operation {
	return huma.Operation{
		OperationID:   "record-sync-run",
		Method:        http.MethodPost,
		Path:          "/api/devices/{serial}/sync-runs",
		Summary:       "Record sync run",
		Description:   "Appends a finished sync session to the journal",
		Tags:          []string{"sync"},
		Security:      security,
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}
