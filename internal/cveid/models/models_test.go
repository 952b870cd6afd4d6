package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatID(t *testing.T) {
	tests := []struct {
		year   int
		number int64
		want   string
	}{
		{2030, 1, "CVE-2030-0001"},
		{2030, 9999, "CVE-2030-9999"},
		{2024, 20001, "CVE-2024-20001"},
		{2024, 50000000, "CVE-2024-50000000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatID(tt.year, tt.number))
		})
	}
}

func TestParseID(t *testing.T) {
	t.Run("round trips formatted tokens", func(t *testing.T) {
		year, number, err := ParseID(FormatID(2031, 42))
		require.NoError(t, err)
		assert.Equal(t, 2031, year)
		assert.Equal(t, int64(42), number)
	})

	for _, bad := range []string{"", "CVE-20-0001", "CVE-2030-1", "cve-2030-0001", "CVE-2030-00a1"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, _, err := ParseID(bad)
			assert.Error(t, err)
		})
	}
}

func TestNewAvailable(t *testing.T) {
	staged := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	id := NewAvailable(2030, 7, staged)

	assert.Equal(t, "CVE-2030-0007", id.ID)
	assert.Equal(t, StateAvailable, id.State)
	assert.Equal(t, NotApplicable, id.OwningOrg)
	assert.Equal(t, RequestedBy{Org: NotApplicable, User: NotApplicable}, id.RequestedBy)
	assert.Equal(t, staged, id.ReservedAt)
}

func TestNewYearRange(t *testing.T) {
	t.Run("nothing is staged initially", func(t *testing.T) {
		yr, err := NewYearRange(2030, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(0), yr.General.TopID)
		assert.Equal(t, int64(5), yr.General.Remaining())
	})

	t.Run("rejects non four digit year", func(t *testing.T) {
		_, err := NewYearRange(20111, 1, 5)
		assert.Error(t, err)
	})

	t.Run("rejects inverted bounds", func(t *testing.T) {
		_, err := NewYearRange(2030, 10, 5)
		assert.Error(t, err)
	})

	t.Run("default bounds", func(t *testing.T) {
		yr, err := DefaultYearRange(2030)
		require.NoError(t, err)
		assert.Equal(t, DefaultGeneralStart, yr.General.Start)
		assert.Equal(t, DefaultGeneralEnd, yr.General.End)
	})
}

func TestRangeValidate(t *testing.T) {
	assert.NoError(t, Range{Start: 1, End: 5, TopID: 0}.Validate())
	assert.NoError(t, Range{Start: 1, End: 5, TopID: 5}.Validate())
	assert.Error(t, Range{Start: 1, End: 5, TopID: 6}.Validate())
	assert.Error(t, Range{Start: 1, End: 5, TopID: -1}.Validate())
}

func TestQuotaSnapshot(t *testing.T) {
	q := NewQuotaSnapshot(10, 4)
	assert.Equal(t, 6, q.Available)
}
