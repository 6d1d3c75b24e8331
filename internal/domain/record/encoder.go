package record

import (
	"encoding/binary"
	"fmt"
)

// EncodePage собирает страницу в формате приёмника. Используется для фикстур
// и выгрузок; DecodePage(EncodePage(h, recs)) восстанавливает сырые поля записей.
// NumberOfRecords берётся из len(records), номера записей должны идти подряд
// начиная с h.FirstRecordIndex.
func EncodePage(h PageHeader, records []Record) ([]byte, error) {
	l, ok := layouts[h.RecordType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, h.RecordType)
	}

	if need := HeaderSize + len(records)*l.size; need > PageSize {
		return nil, fmt.Errorf("%d %s records do not fit in one page", len(records), h.RecordType)
	}

	page := make([]byte, PageSize)
	for i := range page {
		page[i] = 0xFF
	}

	h.NumberOfRecords = uint32(len(records))
	binary.LittleEndian.PutUint32(page[0:4], h.FirstRecordIndex)
	binary.LittleEndian.PutUint32(page[4:8], h.NumberOfRecords)
	page[8] = byte(h.RecordType)
	page[9] = h.Revision
	binary.LittleEndian.PutUint32(page[10:14], h.PageNumber)
	for i := 14; i < headerCRCOffset; i++ {
		page[i] = 0
	}
	binary.LittleEndian.PutUint16(page[headerCRCOffset:HeaderSize], Checksum(page[:headerCRCOffset]))

	for i, rec := range records {
		if rec.Type() != h.RecordType {
			return nil, fmt.Errorf("record %d is %s, page is %s", i, rec.Type(), h.RecordType)
		}
		g := rec.Generic()
		if want := h.FirstRecordIndex + uint32(i); g.RecordNumber != want {
			return nil, fmt.Errorf("record number %d at slot %d, want %d", g.RecordNumber, i, want)
		}

		b := page[HeaderSize+i*l.size : HeaderSize+(i+1)*l.size]
		binary.LittleEndian.PutUint32(b[0:4], g.RawInternalTimeInSeconds)
		binary.LittleEndian.PutUint32(b[4:8], g.RawDisplayTimeInSeconds)
		if err := l.encode(rec, b); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", g.RecordNumber, err)
		}
		binary.LittleEndian.PutUint16(b[l.size-2:], Checksum(b[:l.size-2]))
	}

	return page, nil
}
