package sync

import (
	"bloodsheltie/internal/domain/record"
)

// IsNew сообщает, что запись ещё не синхронизирована. Без метки новыми считаются все записи.
func IsNew(rec record.Record, tag *RecordSyncTag) bool {
	if tag == nil {
		return true
	}
	return rec.Generic().RecordNumber > tag.RecordNumber
}

// Advance возвращает метку с максимальным номером записи среди tag и records.
// Пустой records возвращает tag без изменений. При совпадении номеров побеждает
// более позднее InternalTime.
func Advance(tag *RecordSyncTag, records []record.Record) *RecordSyncTag {
	best := tag
	for _, rec := range records {
		cand := TagOf(rec)
		if best == nil || after(cand, best) {
			best = cand
		}
	}
	return best
}

func after(a, b *RecordSyncTag) bool {
	if a.RecordNumber != b.RecordNumber {
		return a.RecordNumber > b.RecordNumber
	}
	return a.InternalTime.After(b.InternalTime)
}
