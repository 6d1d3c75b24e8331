package record

import (
	"time"
)

// Record - декодированная запись журнала. Реализации: GlucoseReadRecord,
// MeterReadRecord, UserEventRecord.
type Record interface {
	Type() Type
	Generic() GenericRecord
}

// GenericRecord - поля, общие для всех записей журнала
type GenericRecord struct {
	RecordNumber             uint32           `json:"record_number"`
	PageNumber               uint32           `json:"page_number"`
	RawInternalTimeInSeconds uint32           `json:"raw_internal_time_in_seconds"`
	RawDisplayTimeInSeconds  uint32           `json:"raw_display_time_in_seconds"`
	DexcomOffsetInSeconds    int32            `json:"dexcom_offset_in_seconds"`
	Time                     TimestampedValue `json:"time"`
}

// Generic позволяет любой записи с встроенным GenericRecord удовлетворять Record
func (g GenericRecord) Generic() GenericRecord {
	return g
}

// TimestampedValue - время записи на стороне хоста.
// Для упорядочивания и сравнения с меткой синхронизации используется только InternalTime.
type TimestampedValue struct {
	InternalTime time.Time `json:"internal_time"`
	UserTime     time.Time `json:"user_time"`
	Timezone     string    `json:"timezone"`
}

// GlucoseReadRecord запись сенсора (EGV)
type GlucoseReadRecord struct {
	GenericRecord
	GlucoseValue       uint16 `json:"glucose_value"`
	DisplayOnly        bool   `json:"display_only"`
	TrendArrowAndNoise byte   `json:"trend_arrow_and_noise"`
}

func (GlucoseReadRecord) Type() Type { return TypeEGVData }

// Trend - направление тренда из младшего полубайта
func (r GlucoseReadRecord) Trend() TrendArrow {
	trend, _ := UnpackTrendArrowAndNoise(r.TrendArrowAndNoise)
	return trend
}

// Noise - уровень шума из старшего полубайта
func (r GlucoseReadRecord) Noise() NoiseLevel {
	_, noise := UnpackTrendArrowAndNoise(r.TrendArrowAndNoise)
	return noise
}

// IsSpecialValue сообщает, что значение - служебный код приёмника, а не концентрация
func (r GlucoseReadRecord) IsSpecialValue() bool {
	return r.GlucoseValue <= maxSpecialGlucoseValue
}

// GlucoseRead переводит запись в значение хоста
func (r GlucoseReadRecord) GlucoseRead() GlucoseRead {
	return GlucoseRead{
		TimestampedValue: r.Time,
		Value:            int(r.GlucoseValue),
		Unit:             UnitMgDL,
		Trend:            r.Trend(),
		Noise:            r.Noise(),
		DisplayOnly:      r.DisplayOnly,
		Special:          r.IsSpecialValue(),
	}
}

// MeterReadRecord калибровочное измерение глюкометра
type MeterReadRecord struct {
	GenericRecord
	MeterGlucose          uint16 `json:"meter_glucose"`
	RawMeterTimeInSeconds uint32 `json:"raw_meter_time_in_seconds"`
}

func (MeterReadRecord) Type() Type { return TypeMeterData }

// UserEventRecord событие, введённое пользователем
type UserEventRecord struct {
	GenericRecord
	EventType             byte   `json:"event_type"`
	EventSubType          byte   `json:"event_sub_type"`
	RawEventTimeInSeconds uint32 `json:"raw_event_time_in_seconds"`
	EventValue            uint32 `json:"event_value"`
}

func (UserEventRecord) Type() Type { return TypeUserEventData }
