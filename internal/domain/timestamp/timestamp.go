// Package timestamp переводит относительное время приёмника в абсолютное время хоста.
package timestamp

import "time"

// DeviceEpoch - точка отсчёта часов приёмника
var DeviceEpoch = time.Date(2009, time.January, 1, 0, 0, 0, 0, time.UTC)

// Calibrated результат сопоставления часов приёмника с часами хоста
type Calibrated struct {
	InternalTime time.Time
	UserTime     time.Time
	Timezone     *time.Location
}

// ToCalibratedTime вычисляет внутреннее и пользовательское время.
// InternalTime не зависит от часового пояса, tz влияет только на отображение UserTime.
func ToCalibratedTime(rawSeconds uint32, offsetSeconds int32, tz *time.Location) Calibrated {
	if tz == nil {
		tz = time.UTC
	}

	internal := FromDeviceSeconds(rawSeconds)
	user := internal.Add(time.Duration(offsetSeconds) * time.Second).In(tz)

	return Calibrated{
		InternalTime: internal,
		UserTime:     user,
		Timezone:     tz,
	}
}

// FromDeviceSeconds возвращает момент DeviceEpoch + rawSeconds в UTC
func FromDeviceSeconds(rawSeconds uint32) time.Time {
	return DeviceEpoch.Add(time.Duration(rawSeconds) * time.Second)
}

// ToDeviceSeconds обратное преобразование, моменты до DeviceEpoch дают 0
func ToDeviceSeconds(t time.Time) uint32 {
	d := t.Sub(DeviceEpoch)
	if d < 0 {
		return 0
	}
	return uint32(d / time.Second)
}
