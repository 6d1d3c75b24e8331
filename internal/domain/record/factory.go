package record

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// layout описывает расположение полей записи одной категории на странице
type layout struct {
	// size полный размер записи вместе с CRC
	size   int
	decode func(b []byte, g GenericRecord) Record
	encode func(r Record, b []byte) error
}

// общий префикс: системное время u32, отображаемое время u32
const genericPrefixSize = 8

var layouts = map[Type]layout{
	TypeEGVData: {
		size: 13,
		decode: func(b []byte, g GenericRecord) Record {
			raw := binary.LittleEndian.Uint16(b[8:10])
			return GlucoseReadRecord{
				GenericRecord:      g,
				GlucoseValue:       raw & 0x03FF,
				DisplayOnly:        raw&0x8000 != 0,
				TrendArrowAndNoise: b[10],
			}
		},
		encode: func(r Record, b []byte) error {
			egv, ok := r.(GlucoseReadRecord)
			if !ok {
				return fmt.Errorf("%w: %T is not a glucose read", ErrUnsupportedType, r)
			}
			if egv.GlucoseValue > 0x03FF {
				return fmt.Errorf("glucose value %d does not fit in 10 bits", egv.GlucoseValue)
			}
			raw := egv.GlucoseValue
			if egv.DisplayOnly {
				raw |= 0x8000
			}
			binary.LittleEndian.PutUint16(b[8:10], raw)
			b[10] = egv.TrendArrowAndNoise
			return nil
		},
	},
	TypeMeterData: {
		size: 16,
		decode: func(b []byte, g GenericRecord) Record {
			return MeterReadRecord{
				GenericRecord:         g,
				MeterGlucose:          binary.LittleEndian.Uint16(b[8:10]),
				RawMeterTimeInSeconds: binary.LittleEndian.Uint32(b[10:14]),
			}
		},
		encode: func(r Record, b []byte) error {
			m, ok := r.(MeterReadRecord)
			if !ok {
				return fmt.Errorf("%w: %T is not a meter read", ErrUnsupportedType, r)
			}
			binary.LittleEndian.PutUint16(b[8:10], m.MeterGlucose)
			binary.LittleEndian.PutUint32(b[10:14], m.RawMeterTimeInSeconds)
			return nil
		},
	},
	TypeUserEventData: {
		size: 20,
		decode: func(b []byte, g GenericRecord) Record {
			return UserEventRecord{
				GenericRecord:         g,
				EventType:             b[8],
				EventSubType:          b[9],
				RawEventTimeInSeconds: binary.LittleEndian.Uint32(b[10:14]),
				EventValue:            binary.LittleEndian.Uint32(b[14:18]),
			}
		},
		encode: func(r Record, b []byte) error {
			ev, ok := r.(UserEventRecord)
			if !ok {
				return fmt.Errorf("%w: %T is not a user event", ErrUnsupportedType, r)
			}
			b[8] = ev.EventType
			b[9] = ev.EventSubType
			binary.LittleEndian.PutUint32(b[10:14], ev.RawEventTimeInSeconds)
			binary.LittleEndian.PutUint32(b[14:18], ev.EventValue)
			return nil
		},
	},
}

// RecordSize возвращает размер записи категории вместе с CRC
func RecordSize(t Type) (int, error) {
	l, ok := layouts[t]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return l.size, nil
}

// RecordsPerPage сколько записей категории помещается на странице стандартного размера
func RecordsPerPage(t Type) (int, error) {
	size, err := RecordSize(t)
	if err != nil {
		return 0, err
	}
	return (PageSize - HeaderSize) / size, nil
}

// Unmarshal восстанавливает запись категории t из JSON, полученного через границу хранения
func Unmarshal(t Type, data []byte) (Record, error) {
	switch t {
	case TypeEGVData:
		var r GlucoseReadRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", t, err)
		}
		return r, nil
	case TypeMeterData:
		var r MeterReadRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", t, err)
		}
		return r, nil
	case TypeUserEventData:
		var r UserEventRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", t, err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}
