package grade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

func validRow() RawRow {
	return RawRow{
		"id":                 "ABC123",
		"caption":            "Písemná práce <br>",
		"nazev":              "Matematika",
		"vaha":               "2",
		"poznamkakzobrazeni": "",
		"udel_datum":         "15.3.2024",
		"MarkText":           "3-",
	}
}

func TestParseRow(t *testing.T) {
	r, err := ParseRow(validRow())
	require.NoError(t, err)

	assert.Equal(t, "ABC123", r.ID())
	assert.Equal(t, Subject("M"), r.Subject())
	assert.Equal(t, 2, r.Weight())
	assert.Equal(t, 3.5, r.Grade())
	assert.Equal(t, Date{Year: 2024, Month: 3, Day: 15}, r.Date())

	caption, ok := r.Caption()
	assert.True(t, ok)
	assert.Equal(t, "Písemná práce", caption)

	_, ok = r.Note()
	assert.False(t, ok)
}

func TestParseRow_Variants(t *testing.T) {
	t.Run("whole grade", func(t *testing.T) {
		row := validRow()
		row["MarkText"] = "4"
		r, err := ParseRow(row)
		require.NoError(t, err)
		assert.Equal(t, 4.0, r.Grade())
	})

	t.Run("empty caption is absent", func(t *testing.T) {
		row := validRow()
		row["caption"] = ""
		r, err := ParseRow(row)
		require.NoError(t, err)
		_, ok := r.Caption()
		assert.False(t, ok)
	})

	t.Run("line break only caption is absent", func(t *testing.T) {
		row := validRow()
		row["caption"] = " <br>"
		r, err := ParseRow(row)
		require.NoError(t, err)
		_, ok := r.Caption()
		assert.False(t, ok)
	})

	t.Run("note line break is stripped", func(t *testing.T) {
		row := validRow()
		row["poznamkakzobrazeni"] = "Opravná písemka <br>"
		r, err := ParseRow(row)
		require.NoError(t, err)
		note, ok := r.Note()
		assert.True(t, ok)
		assert.Equal(t, "Opravná písemka", note)
	})

	t.Run("line break only note is absent", func(t *testing.T) {
		row := validRow()
		row["poznamkakzobrazeni"] = " <br>"
		r, err := ParseRow(row)
		require.NoError(t, err)
		_, ok := r.Note()
		assert.False(t, ok)
	})

	t.Run("numeric weight", func(t *testing.T) {
		row := validRow()
		row["vaha"] = float64(3)
		r, err := ParseRow(row)
		require.NoError(t, err)
		assert.Equal(t, 3, r.Weight())
	})

	t.Run("json number weight", func(t *testing.T) {
		row := validRow()
		row["vaha"] = json.Number("5")
		r, err := ParseRow(row)
		require.NoError(t, err)
		assert.Equal(t, 5, r.Weight())
	})

	t.Run("numeric id", func(t *testing.T) {
		row := validRow()
		row["id"] = float64(991)
		r, err := ParseRow(row)
		require.NoError(t, err)
		assert.Equal(t, "991", r.ID())
	})
}

func TestParseRow_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		kind  error
	}{
		{"unknown subject", "nazev", "Astrologie", shared.ErrUnknownSubject},
		{"bad weight", "vaha", "dva", shared.ErrInvalidFormat},
		{"bad date", "udel_datum", "15-3-2024", shared.ErrInvalidFormat},
		{"impossible date", "udel_datum", "31.2.2024", shared.ErrInvalidFormat},
		{"bad mark", "MarkText", "N", shared.ErrInvalidFormat},
		{"missing id", "id", nil, shared.ErrEmptyValue},
		{"fractional weight", "vaha", 1.5, shared.ErrInvalidFormat},
		{"bool mark", "MarkText", true, shared.ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validRow()
			row[tt.key] = tt.value
			_, err := ParseRow(row)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestParseRows_FailFast(t *testing.T) {
	bad := validRow()
	bad["nazev"] = "Astrologie"

	good := validRow()
	good["id"] = "second"

	c, err := ParseRows([]RawRow{validRow(), bad, good})
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "row 1")
	assert.ErrorIs(t, err, shared.ErrUnknownSubject)
}

func TestParseRows(t *testing.T) {
	second := validRow()
	second["id"] = "second"
	second["MarkText"] = "1"

	c, err := ParseRows([]RawRow{validRow(), second})
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC123", "second"}, c.IDs())
}

func TestParseMark(t *testing.T) {
	v, err := ParseMark("3-")
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = ParseMark("4")
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("15.3.2024")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: 3, Day: 15}, d)
}
