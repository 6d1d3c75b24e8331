package record

import (
	"fmt"
	"strings"
)

// Type - категория записи журнала приёмника, код совпадает с кодом типа страницы
type Type uint8

const (
	TypeManufacturingData     Type = 0
	TypeFirmwareParameterData Type = 1
	TypePCSoftwareParameter   Type = 2
	TypeSensorData            Type = 3
	TypeEGVData               Type = 4
	TypeCalSet                Type = 5
	TypeDeviation             Type = 6
	TypeInsertionTime         Type = 7
	TypeReceiverLogData       Type = 8
	TypeReceiverErrorData     Type = 9
	TypeMeterData             Type = 10
	TypeUserEventData         Type = 11
	TypeUserSettingData       Type = 12
)

var typeNames = map[Type]string{
	TypeManufacturingData:     "manufacturing_data",
	TypeFirmwareParameterData: "firmware_parameter_data",
	TypePCSoftwareParameter:   "pc_software_parameter",
	TypeSensorData:            "sensor_data",
	TypeEGVData:               "glucose_read",
	TypeCalSet:                "cal_set",
	TypeDeviation:             "deviation",
	TypeInsertionTime:         "insertion_time",
	TypeReceiverLogData:       "receiver_log_data",
	TypeReceiverErrorData:     "receiver_error_data",
	TypeMeterData:             "calibration_read",
	TypeUserEventData:         "user_event",
	TypeUserSettingData:       "user_setting_data",
}

// Tracked возвращает категории, для которых ведётся метка синхронизации.
// Порядок задаёт порядок запросов страниц и порядок записей в результате.
func Tracked() []Type {
	return []Type{TypeEGVData, TypeMeterData, TypeUserEventData}
}

// IsTracked проверяет, синхронизируется ли категория
func (t Type) IsTracked() bool {
	switch t {
	case TypeEGVData, TypeMeterData, TypeUserEventData:
		return true
	}
	return false
}

// Validate проверяет, что код известен
func (t Type) Validate() error {
	if _, ok := typeNames[t]; !ok {
		return fmt.Errorf("неверный тип записи: %d", uint8(t))
	}
	return nil
}

// String возвращает строковое представление типа.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// ParseType разбирает имя типа
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("неверный тип записи: %q", s)
}

func (t Type) MarshalText() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
