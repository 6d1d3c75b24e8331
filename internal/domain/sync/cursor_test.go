package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodsheltie/internal/domain/record"
)

func glucose(number uint32, internal time.Time) record.Record {
	return record.GlucoseReadRecord{
		GenericRecord: record.GenericRecord{
			RecordNumber: number,
			PageNumber:   number / 10,
			Time:         record.TimestampedValue{InternalTime: internal},
		},
	}
}

func TestIsNew(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tag := &RecordSyncTag{RecordNumber: 100, PageNumber: 10, InternalTime: base}

	tests := []struct {
		name   string
		number uint32
		tag    *RecordSyncTag
		want   bool
	}{
		{name: "no tag", number: 0, tag: nil, want: true},
		{name: "older", number: 99, tag: tag, want: false},
		{name: "same number", number: 100, tag: tag, want: false},
		{name: "newer", number: 101, tag: tag, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNew(glucose(tt.number, base), tt.tag))
		})
	}
}

func TestAdvance(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty records keep tag", func(t *testing.T) {
		tag := &RecordSyncTag{RecordNumber: 5, PageNumber: 1, InternalTime: base}
		assert.Same(t, tag, Advance(tag, nil))
		assert.Nil(t, Advance(nil, nil))
	})

	t.Run("maximum record number", func(t *testing.T) {
		recs := []record.Record{glucose(11, base), glucose(12, base.Add(time.Minute)), glucose(13, base.Add(2*time.Minute))}

		got := Advance(nil, recs)

		require.NotNil(t, got)
		assert.Equal(t, uint32(13), got.RecordNumber)
		assert.Equal(t, uint32(1), got.PageNumber)
		assert.True(t, got.InternalTime.Equal(base.Add(2*time.Minute)))
	})

	t.Run("unordered input", func(t *testing.T) {
		recs := []record.Record{glucose(40, base), glucose(7, base), glucose(22, base)}
		assert.Equal(t, uint32(40), Advance(nil, recs).RecordNumber)
	})

	t.Run("never regresses", func(t *testing.T) {
		tag := &RecordSyncTag{RecordNumber: 50, PageNumber: 5, InternalTime: base}
		assert.Equal(t, tag, Advance(tag, []record.Record{glucose(10, base)}))
	})

	t.Run("tie prefers later internal time", func(t *testing.T) {
		later := base.Add(time.Hour)
		recs := []record.Record{glucose(8, later), glucose(8, base)}

		got := Advance(nil, recs)

		assert.Equal(t, uint32(8), got.RecordNumber)
		assert.True(t, got.InternalTime.Equal(later))
	})
}

func TestSyncTag_WithType(t *testing.T) {
	tag := NewSyncTag(testSerial)
	assert.True(t, tag.IsEmpty())

	rt := &RecordSyncTag{RecordNumber: 3}
	next := tag.WithType(record.TypeMeterData, rt)
	rt.RecordNumber = 99

	assert.True(t, tag.IsEmpty())
	assert.False(t, next.IsEmpty())
	assert.Equal(t, uint32(3), next.ForType(record.TypeMeterData).RecordNumber)
	assert.Equal(t, uint32(3), next.LastCalibrationRead.RecordNumber)
	assert.Nil(t, next.ForType(record.TypeEGVData))
	assert.Nil(t, next.ForType(record.TypeSensorData))
	assert.Equal(t, next, next.WithType(record.TypeSensorData, rt))
}
