package record

import (
	"fmt"
	"time"

	"bloodsheltie/internal/domain/timestamp"
)

// GlucoseMeasurementUnit единица измерения концентрации
type GlucoseMeasurementUnit string

const (
	UnitMgDL  GlucoseMeasurementUnit = "mg/dL"
	UnitMmolL GlucoseMeasurementUnit = "mmol/L"
)

const mgdlPerMmol = 18.0182

// TrendArrow направление изменения глюкозы
type TrendArrow uint8

const (
	TrendNone TrendArrow = iota
	TrendDoubleUp
	TrendSingleUp
	TrendFortyFiveUp
	TrendFlat
	TrendFortyFiveDown
	TrendSingleDown
	TrendDoubleDown
	TrendNotComputable
	TrendRateOutOfRange
)

var trendNames = []string{
	"None", "DoubleUp", "SingleUp", "FortyFiveUp", "Flat",
	"FortyFiveDown", "SingleDown", "DoubleDown", "NotComputable", "RateOutOfRange",
}

func (t TrendArrow) String() string {
	if int(t) < len(trendNames) {
		return trendNames[t]
	}
	return fmt.Sprintf("Trend(%d)", uint8(t))
}

// NoiseLevel уровень шума сигнала сенсора
type NoiseLevel uint8

const (
	NoiseNone NoiseLevel = iota
	NoiseClean
	NoiseLight
	NoiseMedium
	NoiseHeavy
	NoiseNotComputed
	NoiseMax
)

var noiseNames = []string{"None", "Clean", "Light", "Medium", "Heavy", "NotComputed", "Max"}

func (n NoiseLevel) String() string {
	if int(n) < len(noiseNames) {
		return noiseNames[n]
	}
	return fmt.Sprintf("Noise(%d)", uint8(n))
}

// UnpackTrendArrowAndNoise: младший полубайт - тренд, старший - шум.
func UnpackTrendArrowAndNoise(b byte) (TrendArrow, NoiseLevel) {
	return TrendArrow(b & 0x0F), NoiseLevel(b >> 4)
}

// PackTrendArrowAndNoise обратная операция, лишние биты отбрасываются
func PackTrendArrowAndNoise(trend TrendArrow, noise NoiseLevel) byte {
	return byte(noise&0x0F)<<4 | byte(trend&0x0F)
}

// значения до 12 включительно приёмник использует как служебные коды
const maxSpecialGlucoseValue = 12

// GlucoseRead показание сенсора на стороне хоста
type GlucoseRead struct {
	TimestampedValue
	Value       int                    `json:"value"`
	Unit        GlucoseMeasurementUnit `json:"unit"`
	Trend       TrendArrow             `json:"trend"`
	Noise       NoiseLevel             `json:"noise"`
	DisplayOnly bool                   `json:"display_only"`
	Special     bool                   `json:"special"`
}

// MeterRead измерение глюкометра, использованное для калибровки
type MeterRead struct {
	TimestampedValue
	MeterTime              time.Time              `json:"meter_time"`
	MeterRead              float32                `json:"meter_read"`
	GlucoseMeasurementUnit GlucoseMeasurementUnit `json:"glucose_measurement_unit"`
}

// In возвращает значение в указанной единице. Хранимое значение не меняется.
func (m MeterRead) In(unit GlucoseMeasurementUnit) float32 {
	switch {
	case unit == m.GlucoseMeasurementUnit:
		return m.MeterRead
	case unit == UnitMmolL && m.GlucoseMeasurementUnit == UnitMgDL:
		return float32(float64(m.MeterRead) / mgdlPerMmol)
	case unit == UnitMgDL && m.GlucoseMeasurementUnit == UnitMmolL:
		return float32(float64(m.MeterRead) * mgdlPerMmol)
	}
	return m.MeterRead
}

// MeterRead переводит запись в значение хоста, прибор хранит mg/dL
func (r MeterReadRecord) MeterRead() MeterRead {
	return MeterRead{
		TimestampedValue:       r.Time,
		MeterTime:              timestamp.FromDeviceSeconds(r.RawMeterTimeInSeconds),
		MeterRead:              float32(r.MeterGlucose),
		GlucoseMeasurementUnit: UnitMgDL,
	}
}

// Коды пользовательских событий
const (
	EventCarbs    byte = 1
	EventInsulin  byte = 2
	EventHealth   byte = 3
	EventExercise byte = 4
)

var healthSubTypes = map[byte]string{
	1: "Illness",
	2: "Stress",
	3: "HighSymptoms",
	4: "LowSymptoms",
	5: "Cycle",
	6: "Alcohol",
}

var exerciseSubTypes = map[byte]string{
	1: "Light",
	2: "Medium",
	3: "Heavy",
}

// HealthEvent событие пользователя на стороне хоста.
// EventTime - момент, к которому относится событие, он может быть раньше InternalTime.
type HealthEvent struct {
	TimestampedValue
	EventTime time.Time `json:"event_time"`
	Type      string    `json:"type"`
	Details   string    `json:"details"`
}

// HealthEvent переводит запись в значение хоста
func (r UserEventRecord) HealthEvent() HealthEvent {
	ev := HealthEvent{
		TimestampedValue: r.Time,
		EventTime:        timestamp.FromDeviceSeconds(r.RawEventTimeInSeconds),
	}

	switch r.EventType {
	case EventCarbs:
		ev.Type = "Carbs"
		ev.Details = fmt.Sprintf("%d grams", r.EventValue)
	case EventInsulin:
		ev.Type = "Insulin"
		ev.Details = fmt.Sprintf("%.2f units", float64(r.EventValue)/100)
	case EventHealth:
		ev.Type = "Health"
		ev.Details = subTypeName(healthSubTypes, r.EventSubType)
	case EventExercise:
		ev.Type = "Exercise"
		ev.Details = fmt.Sprintf("%d minutes (%s)", r.EventValue, subTypeName(exerciseSubTypes, r.EventSubType))
	default:
		ev.Type = fmt.Sprintf("Unknown(%d)", r.EventType)
		ev.Details = fmt.Sprintf("subtype=%d value=%d", r.EventSubType, r.EventValue)
	}

	return ev
}

func subTypeName(names map[byte]string, sub byte) string {
	if name, ok := names[sub]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", sub)
}
