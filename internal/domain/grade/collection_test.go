package grade

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

func TestRoundAverage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"3.0", "3"},
		{"3.456", "3.45"},
		{"2.999999", "2.99"},
		{"1.5", "1.5"},
		{"4.1", "4.1"},
		{"1.009", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundAverage(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestRoundAverageFloat(t *testing.T) {
	assert.Equal(t, "3.45", RoundAverageFloat(3.456).String())
}

func TestCollection_Average(t *testing.T) {
	c := NewCollection(
		mustRecord(t, "1", "M", 1, 1),
		mustRecord(t, "2", "M", 3, 2.5),
		mustRecord(t, "3", "Čj", 2, 4),
	)

	avg, err := c.BySubject("M").Average()
	require.NoError(t, err)
	// (1*1 + 2.5*3) / 4 = 2.125
	assert.True(t, decimal.RequireFromString("2.125").Equal(avg), avg.String())

	rounded, err := c.BySubject("M").RoundedAverage()
	require.NoError(t, err)
	assert.Equal(t, "2.12", rounded.String())
}

func TestCollection_AverageEmpty(t *testing.T) {
	_, err := NewCollection().Average()
	assert.ErrorIs(t, err, shared.ErrEmptyCollection)

	var nilCollection *Collection
	_, err = nilCollection.Average()
	assert.ErrorIs(t, err, shared.ErrEmptyCollection)
}

func TestCollection_BySubjectKeepsOrder(t *testing.T) {
	c := NewCollection(
		mustRecord(t, "1", "M", 1, 1),
		mustRecord(t, "2", "Aj", 1, 2),
		mustRecord(t, "3", "M", 1, 3),
	)

	m := c.BySubject("M")
	assert.Equal(t, []string{"1", "3"}, m.IDs())
	assert.Equal(t, 3, c.Len(), "receiver untouched")
	assert.Equal(t, []Subject{"M", "Aj"}, c.Subjects())
}

func TestCollection_FutureAverageDoesNotMutate(t *testing.T) {
	c := NewCollection(
		mustRecord(t, "1", "M", 1, 2),
		mustRecord(t, "2", "M", 1, 4),
	)
	before := c.Records()

	candidate, err := Candidate("M", 2, 1)
	require.NoError(t, err)

	future, err := c.FutureAverage(candidate)
	require.NoError(t, err)
	// (2 + 4 + 1*2) / 4 = 2
	assert.Equal(t, "2", future.String())

	assert.Equal(t, 2, c.Len())
	after := c.Records()
	for i := range before {
		assert.True(t, before[i].Equal(after[i]))
	}
}

func TestCollection_AppendAndClone(t *testing.T) {
	c := NewCollection(mustRecord(t, "1", "M", 1, 2))
	appended := c.Append(mustRecord(t, "2", "M", 1, 3))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"1", "2"}, appended.IDs())

	clone := c.Clone()
	assert.Equal(t, c.IDs(), clone.IDs())

	records := c.Records()
	records[0] = mustRecord(t, "x", "M", 1, 5)
	assert.Equal(t, "1", c.Records()[0].ID(), "Records returns a copy")
}
