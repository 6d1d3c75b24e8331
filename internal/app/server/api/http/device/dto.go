package device

import (
	"time"

	"bloodsheltie/internal/domain/sync"
)

// Response общий ответ на запросы изменения
type Response struct {
	Status  string `json:"status" example:"Ok" doc:"Статус ответа"`
	Message string `json:"message,omitempty" example:"Sync tag saved" doc:"Сообщение"`
}

// StatusOutput ответ с общим статусом
type StatusOutput struct {
	Body Response
}

type ListDevicesInput struct{}

type ListDevicesOutput struct {
	Body struct {
		Devices []*sync.DeviceInfo `json:"devices" doc:"Известные приёмники"`
	}
}

type GetSyncTagInput struct {
	Serial string `path:"serial" minLength:"1" maxLength:"64" example:"SM12345678" doc:"Серийный номер приёмника"`
}

type GetSyncTagOutput struct {
	Body sync.SyncTag
}

type PutSyncTagInput struct {
	Serial string `path:"serial" minLength:"1" maxLength:"64" example:"SM12345678" doc:"Серийный номер приёмника"`
	Body   sync.SyncTag
}

type DeleteSyncTagInput struct {
	Serial string `path:"serial" minLength:"1" maxLength:"64" example:"SM12345678" doc:"Серийный номер приёмника"`
}

type ListRecordsInput struct {
	Serial string    `path:"serial" minLength:"1" maxLength:"64" example:"SM12345678" doc:"Серийный номер приёмника"`
	Type   string    `query:"type" example:"glucose_read" doc:"Категория записей: glucose_read, calibration_read, user_event"`
	Since  time.Time `query:"since" doc:"Только записи не раньше этого момента (внутреннее время приёмника)"`
	Limit  int       `query:"limit" minimum:"0" maximum:"10000" default:"1000" doc:"Максимум записей"`
	Offset int       `query:"offset" minimum:"0" doc:"Смещение"`
}

type ListRecordsOutput struct {
	Body struct {
		Records []*sync.StoredRecord `json:"records" doc:"Записи в порядке внутреннего времени"`
	}
}

type SaveRecordsInput struct {
	Serial string `path:"serial" minLength:"1" maxLength:"64" example:"SM12345678" doc:"Серийный номер приёмника"`
	Body   struct {
		Records []*sync.StoredRecord `json:"records" minItems:"1" maxItems:"10000" doc:"Записи для сохранения"`
	}
}

type ListSyncRunsInput struct {
	Serial string `path:"serial" minLength:"1" maxLength:"64" example:"SM12345678" doc:"Серийный номер приёмника"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"20" doc:"Максимум записей журнала"`
}

type ListSyncRunsOutput struct {
	Body struct {
		Runs []*sync.SyncRun `json:"runs" doc:"Сессии синхронизации, новые первыми"`
	}
}

type RecordSyncRunInput struct {
	Serial string `path:"serial" minLength:"1" maxLength:"64" example:"SM12345678" doc:"Серийный номер приёмника"`
	Body   sync.SyncRun
}
