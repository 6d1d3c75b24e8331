package dump

import (
	"fmt"
	"math/rand/v2"
	"time"

	"bloodsheltie/internal/domain/record"
	"bloodsheltie/internal/domain/timestamp"
)

// FixtureOptions параметры синтетической выгрузки
type FixtureOptions struct {
	SerialNumber string
	// Start время первой записи сенсора
	Start time.Time
	// Readings число показаний сенсора (по одному в 5 минут)
	Readings int
	// Calibrations и Events число калибровок и событий пользователя
	Calibrations int
	Events       int
	// DisplayOffset разница между отображаемым и системным временем приёмника
	DisplayOffset time.Duration
	Seed          uint64
}

// WriteFixture пишет в dir синтетическую выгрузку приёмника
func WriteFixture(dir string, opts FixtureOptions) error {
	w, err := NewWriter(dir, opts.SerialNumber)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x5eed))
	start := timestamp.ToDeviceSeconds(opts.Start)
	offset := uint32(int64(opts.DisplayOffset / time.Second))

	egv := make([]record.Record, 0, opts.Readings)
	glucose := 120
	for i := 0; i < opts.Readings; i++ {
		glucose = min(max(glucose+rng.IntN(15)-7, 40), 400)
		sys := start + uint32(i)*300
		egv = append(egv, record.GlucoseReadRecord{
			GenericRecord: record.GenericRecord{
				RecordNumber:             uint32(i),
				RawInternalTimeInSeconds: sys,
				RawDisplayTimeInSeconds:  sys + offset,
			},
			GlucoseValue:       uint16(glucose),
			TrendArrowAndNoise: record.PackTrendArrowAndNoise(record.TrendArrow(1+rng.IntN(7)), record.NoiseClean),
		})
	}

	meter := make([]record.Record, 0, opts.Calibrations)
	for i := 0; i < opts.Calibrations; i++ {
		sys := start + uint32(i)*12*3600
		meter = append(meter, record.MeterReadRecord{
			GenericRecord: record.GenericRecord{
				RecordNumber:             uint32(i),
				RawInternalTimeInSeconds: sys,
				RawDisplayTimeInSeconds:  sys + offset,
			},
			MeterGlucose:          uint16(80 + rng.IntN(80)),
			RawMeterTimeInSeconds: sys - 120,
		})
	}

	events := make([]record.Record, 0, opts.Events)
	for i := 0; i < opts.Events; i++ {
		sys := start + uint32(i)*4*3600
		ev := record.UserEventRecord{
			GenericRecord: record.GenericRecord{
				RecordNumber:             uint32(i),
				RawInternalTimeInSeconds: sys,
				RawDisplayTimeInSeconds:  sys + offset,
			},
			EventType:             byte(1 + i%4),
			RawEventTimeInSeconds: sys - 600,
		}
		switch ev.EventType {
		case record.EventCarbs:
			ev.EventValue = uint32(10 + rng.IntN(80))
		case record.EventInsulin:
			ev.EventValue = uint32(100 + rng.IntN(900))
		case record.EventHealth:
			ev.EventSubType = byte(1 + rng.IntN(6))
		case record.EventExercise:
			ev.EventSubType = byte(1 + rng.IntN(3))
			ev.EventValue = uint32(15 + rng.IntN(60))
		}
		events = append(events, ev)
	}

	for _, batch := range []struct {
		t    record.Type
		recs []record.Record
	}{
		{record.TypeEGVData, egv},
		{record.TypeMeterData, meter},
		{record.TypeUserEventData, events},
	} {
		if err := writePages(w, batch.t, batch.recs); err != nil {
			return err
		}
	}

	return w.Close()
}

func writePages(w *Writer, t record.Type, recs []record.Record) error {
	if len(recs) == 0 {
		w.AddEmpty(t)
		return nil
	}

	perPage, err := record.RecordsPerPage(t)
	if err != nil {
		return err
	}

	for page := 0; page*perPage < len(recs); page++ {
		chunk := recs[page*perPage : min((page+1)*perPage, len(recs))]
		data, err := record.EncodePage(record.PageHeader{
			FirstRecordIndex: chunk[0].Generic().RecordNumber,
			RecordType:       t,
			PageNumber:       uint32(page),
		}, chunk)
		if err != nil {
			return fmt.Errorf("ошибка сборки страницы %d (%s): %w", page, t, err)
		}
		if err := w.AddPage(data); err != nil {
			return err
		}
	}
	return nil
}
