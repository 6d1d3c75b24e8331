package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"bloodsheltie/internal/domain/record"
)

const testSerial = "SM12345678"

func rawTime(number uint32) uint32 {
	return 300000000 + number*300
}

func egvPage(t *testing.T, page, first uint32, n int) []byte {
	t.Helper()
	recs := make([]record.Record, 0, n)
	for i := 0; i < n; i++ {
		num := first + uint32(i)
		recs = append(recs, record.GlucoseReadRecord{
			GenericRecord: record.GenericRecord{
				RecordNumber:             num,
				RawInternalTimeInSeconds: rawTime(num),
				RawDisplayTimeInSeconds:  rawTime(num) + 3600,
			},
			GlucoseValue:       uint16(90 + i),
			TrendArrowAndNoise: 0x14,
		})
	}
	data, err := record.EncodePage(record.PageHeader{FirstRecordIndex: first, RecordType: record.TypeEGVData, PageNumber: page}, recs)
	require.NoError(t, err)
	return data
}

func meterPage(t *testing.T, page, first uint32, n int) []byte {
	t.Helper()
	recs := make([]record.Record, 0, n)
	for i := 0; i < n; i++ {
		num := first + uint32(i)
		recs = append(recs, record.MeterReadRecord{
			GenericRecord: record.GenericRecord{
				RecordNumber:             num,
				RawInternalTimeInSeconds: rawTime(num),
				RawDisplayTimeInSeconds:  rawTime(num),
			},
			MeterGlucose:          120,
			RawMeterTimeInSeconds: rawTime(num) - 60,
		})
	}
	data, err := record.EncodePage(record.PageHeader{FirstRecordIndex: first, RecordType: record.TypeMeterData, PageNumber: page}, recs)
	require.NoError(t, err)
	return data
}

func corruptHeader(page []byte) []byte {
	out := append([]byte(nil), page...)
	out[0] ^= 0xFF
	return out
}

func corruptRecord(page []byte, rt record.Type, slot int) []byte {
	size, _ := record.RecordSize(rt)
	out := append([]byte(nil), page...)
	out[record.HeaderSize+slot*size+8] ^= 0xFF
	return out
}

// fakeTransport отдаёт заранее собранные страницы
type fakeTransport struct {
	serial  string
	dir     Directory
	dirErr  error
	pages   map[record.Type]map[uint32][]byte
	readErr map[record.Type]error
	block   bool
	reads   []PageRange
	closed  int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		serial:  testSerial,
		pages:   make(map[record.Type]map[uint32][]byte),
		readErr: make(map[record.Type]error),
	}
}

func (f *fakeTransport) addPage(rt record.Type, page uint32, data []byte) {
	if f.pages[rt] == nil {
		f.pages[rt] = make(map[uint32][]byte)
	}
	f.pages[rt][page] = data

	for i, info := range f.dir {
		if info.RecordType == rt {
			f.dir[i].FirstPage = min(info.FirstPage, page)
			f.dir[i].LastPage = max(info.LastPage, page)
			return
		}
	}
	f.dir = append(f.dir, PageInfo{RecordType: rt, FirstPage: page, LastPage: page, PageSize: record.PageSize})
}

func (f *fakeTransport) SerialNumber(ctx context.Context) (string, error) {
	return f.serial, nil
}

func (f *fakeTransport) PageDirectory(ctx context.Context) (Directory, error) {
	if f.dirErr != nil {
		return nil, f.dirErr
	}
	return f.dir, nil
}

func (f *fakeTransport) ReadPages(ctx context.Context, r PageRange) ([][]byte, error) {
	f.reads = append(f.reads, r)

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	var out [][]byte
	for _, p := range r.Pages() {
		data, ok := f.pages[r.RecordType][p]
		if !ok {
			return out, errors.New("page not found")
		}
		out = append(out, data)
	}

	if err := f.readErr[r.RecordType]; err != nil {
		if len(out) > 0 {
			out = out[:len(out)-1]
		}
		return out, err
	}

	return out, nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

func recordNumbers(recs []record.Record, rt record.Type) []uint32 {
	var out []uint32
	for _, rec := range recs {
		if rec.Type() == rt {
			out = append(out, rec.Generic().RecordNumber)
		}
	}
	return out
}

func seq(from, to uint32) []uint32 {
	var out []uint32
	for n := from; n <= to; n++ {
		out = append(out, n)
	}
	return out
}
