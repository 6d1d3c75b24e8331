// Package output печать результатов команд sheltie
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"bloodsheltie/internal/domain/record"
	"bloodsheltie/internal/domain/sync"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	ok   = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	fail = color.New(color.FgRed).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

// JSON печатает v с отступами
func JSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Result итог синхронизации
func Result(w io.Writer, res *sync.Result, err error) {
	switch {
	case res.Committed():
		fmt.Fprintf(w, "%s Синхронизация %s завершена\n", ok("✓"), bold(res.SerialNumber))
	default:
		fmt.Fprintf(w, "%s Синхронизация %s прервана: %v\n", fail("✗"), bold(res.SerialNumber), err)
	}

	fmt.Fprintf(w, "Состояние: %s, время: %v\n", res.State, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "Новых записей: %d\n", len(res.Records))

	counts := res.CountByType()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, t := range record.Tracked() {
		fmt.Fprintf(tw, "  %s\t%d\n", t, counts[t])
	}
	tw.Flush()

	if n := len(res.RecordErrors); n > 0 {
		fmt.Fprintf(w, "%s пропущено повреждённых записей: %d\n", warn("!"), n)
	}
	for _, pe := range res.PageErrors {
		fmt.Fprintf(w, "%s %v\n", warn("!"), pe)
	}
}

// Tag метка синхронизации; nil - приёмник ещё не синхронизировался
func Tag(w io.Writer, serial string, tag *sync.SyncTag) {
	if tag == nil || tag.IsEmpty() {
		fmt.Fprintf(w, "%s: метки нет, следующая синхронизация будет полной\n", bold(serial))
		return
	}

	fmt.Fprintf(w, "%s: обновлена %s\n", bold(serial), formatTime(tag.UpdatedAt))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Категория\tЗапись\tСтраница\tВремя\t\n")
	for _, t := range record.Tracked() {
		rt := tag.ForType(t)
		if rt == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t\n", t)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t\n", t, rt.RecordNumber, rt.PageNumber, formatTime(rt.InternalTime))
	}
	tw.Flush()
}

// Runs журнал сессий
func Runs(w io.Writer, runs []*sync.SyncRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "Сессий ещё не было")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Начало\tСостояние\tЗаписей\tОшибка\t\n")
	for _, run := range runs {
		state := ok(run.State.String())
		if run.State != sync.StateCommitted {
			state = fail(run.State.String())
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t\n", formatTime(run.StartedAt), state, run.RecordCount, run.Error)
	}
	tw.Flush()
}

// Devices известные приёмники
func Devices(w io.Writer, devices []*sync.DeviceInfo) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "Приёмники не найдены")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Серийный номер\tЗаписей\tПоследняя синхронизация\t\n")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%d\t%s\t\n", d.SerialNumber, d.RecordCount, formatTime(d.LastSyncTime))
	}
	tw.Flush()
}

// Records записи приёмника в виде таблицы
func Records(w io.Writer, records []*sync.StoredRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "Записи не найдены")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Категория\tНомер\tВремя\tЗначение\t\n")
	for _, r := range records {
		rec, err := r.Record()
		if err != nil {
			return fmt.Errorf("запись %s #%d: %w", r.Type, r.RecordNumber, err)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", r.Type, r.RecordNumber, formatTime(r.UserTime), Value(rec))
	}
	tw.Flush()

	fmt.Fprintf(w, "\nВсего записей: %d\n", len(records))
	return nil
}

// Value краткое описание значения записи
func Value(rec record.Record) string {
	switch r := rec.(type) {
	case record.GlucoseReadRecord:
		if r.IsSpecialValue() {
			return fmt.Sprintf("special(%d)", r.GlucoseValue)
		}
		return fmt.Sprintf("%d mg/dL %s", r.GlucoseValue, r.Trend())
	case record.MeterReadRecord:
		m := r.MeterRead()
		return fmt.Sprintf("%.0f mg/dL (%.1f mmol/L)", m.MeterRead, m.In(record.UnitMmolL))
	case record.UserEventRecord:
		ev := r.HealthEvent()
		return ev.Type + ": " + ev.Details
	}
	return "-"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}
