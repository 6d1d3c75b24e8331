package record

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"time"

	"bloodsheltie/internal/domain/timestamp"
)

const (
	// PageSize размер страницы базы приёмника
	PageSize = 528
	// HeaderSize размер заголовка страницы, включая CRC
	HeaderSize = 28

	headerCRCOffset = 26
	erasedTime      = math.MaxUint32
)

// PageHeader заголовок страницы журнала
type PageHeader struct {
	FirstRecordIndex uint32 `json:"first_record_index"`
	NumberOfRecords  uint32 `json:"number_of_records"`
	RecordType       Type   `json:"record_type"`
	Revision         uint8  `json:"revision"`
	PageNumber       uint32 `json:"page_number"`
}

// ParseHeader разбирает и проверяет заголовок страницы
func ParseHeader(page []byte) (PageHeader, error) {
	if len(page) < HeaderSize {
		return PageHeader{}, fmt.Errorf("page is %d bytes, header needs %d", len(page), HeaderSize)
	}

	h := PageHeader{
		FirstRecordIndex: binary.LittleEndian.Uint32(page[0:4]),
		NumberOfRecords:  binary.LittleEndian.Uint32(page[4:8]),
		RecordType:       Type(page[8]),
		Revision:         page[9],
		PageNumber:       binary.LittleEndian.Uint32(page[10:14]),
	}

	want := binary.LittleEndian.Uint16(page[headerCRCOffset:HeaderSize])
	if got := Checksum(page[:headerCRCOffset]); got != want {
		return h, fmt.Errorf("header %w: got %#04x, want %#04x", ErrChecksum, got, want)
	}

	return h, nil
}

// Decoder декодирует страницы журнала. Не хранит изменяемого состояния,
// один экземпляр можно использовать из нескольких горутин.
type Decoder struct {
	tz *time.Location
}

// NewDecoder создает декодер; tz - часовой пояс пользователя на момент синхронизации
func NewDecoder(tz *time.Location) *Decoder {
	if tz == nil {
		tz = time.UTC
	}
	return &Decoder{tz: tz}
}

// Timezone часовой пояс, которым аннотируется пользовательское время
func (d *Decoder) Timezone() *time.Location {
	return d.tz
}

// Records лениво перебирает записи страницы в порядке записи на приёмнике.
// Повреждённая запись выдаётся как (nil, *RecordError) и перебор продолжается.
// Ошибка заголовка выдаётся как (nil, *PageError) и перебор завершается.
func (d *Decoder) Records(page []byte, t Type) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		h, l, err := d.checkPage(page, t)
		if err != nil {
			yield(nil, err)
			return
		}

		for i := 0; i < int(h.NumberOfRecords); i++ {
			off := HeaderSize + i*l.size
			rec, err := d.decodeRecord(page[off:off+l.size], l, t, h.FirstRecordIndex+uint32(i), h.PageNumber)
			if !yield(rec, err) {
				return
			}
		}
	}
}

// DecodedPage результат декодирования одной страницы
type DecodedPage struct {
	Header       PageHeader
	Records      []Record
	RecordErrors []*RecordError
}

// DecodePage декодирует страницу целиком. Возвращает *PageError, если заголовок негоден;
// повреждённые записи собираются в RecordErrors.
func (d *Decoder) DecodePage(page []byte, t Type) (*DecodedPage, error) {
	h, _, err := d.checkPage(page, t)
	if err != nil {
		return nil, err
	}

	out := &DecodedPage{Header: h}
	for rec, err := range d.Records(page, t) {
		if err != nil {
			recErr, ok := err.(*RecordError)
			if !ok {
				return nil, err
			}
			out.RecordErrors = append(out.RecordErrors, recErr)
			continue
		}
		out.Records = append(out.Records, rec)
	}

	return out, nil
}

// DecodePageAt декодирует страницу, запрошенную под номером number.
// Страница с другим номером в заголовке считается повреждённой.
func (d *Decoder) DecodePageAt(page []byte, t Type, number uint32) (*DecodedPage, error) {
	h, _, err := d.checkPage(page, t)
	if err != nil {
		return nil, err
	}
	if h.PageNumber != number {
		return nil, &PageError{
			Type: t,
			Page: number,
			Err:  fmt.Errorf("%w: header holds page %d", ErrPageNumber, h.PageNumber),
		}
	}

	return d.DecodePage(page, t)
}

func (d *Decoder) checkPage(page []byte, t Type) (PageHeader, layout, error) {
	h, err := ParseHeader(page)
	if err != nil {
		return h, layout{}, &PageError{Type: t, Page: h.PageNumber, Err: err}
	}

	if h.RecordType != t {
		return h, layout{}, &PageError{
			Type: t,
			Page: h.PageNumber,
			Err:  fmt.Errorf("page holds %s records", h.RecordType),
		}
	}

	l, ok := layouts[t]
	if !ok {
		return h, layout{}, &PageError{Type: t, Page: h.PageNumber, Err: ErrUnsupportedType}
	}

	if need := uint64(HeaderSize) + uint64(h.NumberOfRecords)*uint64(l.size); need > uint64(len(page)) {
		return h, layout{}, &PageError{
			Type: t,
			Page: h.PageNumber,
			Err:  fmt.Errorf("%d records need %d bytes, page has %d", h.NumberOfRecords, need, len(page)),
		}
	}

	return h, l, nil
}

func (d *Decoder) decodeRecord(b []byte, l layout, t Type, number, page uint32) (Record, error) {
	body := b[:l.size-2]
	want := binary.LittleEndian.Uint16(b[l.size-2:])
	if got := Checksum(body); got != want {
		return nil, &RecordError{Type: t, Page: page, RecordNumber: number, Err: ErrChecksum}
	}

	rawInternal := binary.LittleEndian.Uint32(body[0:4])
	rawDisplay := binary.LittleEndian.Uint32(body[4:8])
	if rawInternal == erasedTime || rawDisplay == erasedTime {
		return nil, &RecordError{Type: t, Page: page, RecordNumber: number, Err: fmt.Errorf("%w: erased clock", ErrInvalidTime)}
	}

	offset := int64(rawDisplay) - int64(rawInternal)
	if offset > math.MaxInt32 || offset < math.MinInt32 {
		return nil, &RecordError{Type: t, Page: page, RecordNumber: number, Err: fmt.Errorf("%w: offset %ds", ErrInvalidTime, offset)}
	}

	c := timestamp.ToCalibratedTime(rawInternal, int32(offset), d.tz)
	g := GenericRecord{
		RecordNumber:             number,
		PageNumber:               page,
		RawInternalTimeInSeconds: rawInternal,
		RawDisplayTimeInSeconds:  rawDisplay,
		DexcomOffsetInSeconds:    int32(offset),
		Time: TimestampedValue{
			InternalTime: c.InternalTime,
			UserTime:     c.UserTime,
			Timezone:     c.Timezone.String(),
		},
	}

	return l.decode(body, g), nil
}
