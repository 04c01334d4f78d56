package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

func TestPredict(t *testing.T) {
	c := NewCollection(
		mustRecord(t, "1", "M", 1, 2),
		mustRecord(t, "2", "M", 1, 2),
		mustRecord(t, "3", "Aj", 1, 5),
	)

	p, err := Predict(c, "M", []int{1, 2})
	require.NoError(t, err)

	assert.True(t, p.HasCurrent)
	assert.Equal(t, "2", p.Current.String())
	assert.Len(t, p.Rows, len(PredictionGrades))

	first := p.Rows[0]
	assert.Equal(t, "1", first.Label)
	// (2+2+1)/3 = 1.666.. and (2+2+2)/4 = 1.5
	assert.Equal(t, "1.66", first.Averages[0].String())
	assert.Equal(t, "1.5", first.Averages[1].String())

	assert.Equal(t, "1-", p.Rows[1].Label)
	assert.Equal(t, 3, c.Len())
}

func TestPredict_NoGradesYet(t *testing.T) {
	p, err := Predict(NewCollection(), "Fy", nil)
	require.NoError(t, err)

	assert.False(t, p.HasCurrent)
	assert.Equal(t, DefaultPredictionWeights, p.Weights)
	assert.Equal(t, "5", p.Rows[len(p.Rows)-1].Averages[0].String())
}

func TestPredict_UnknownSubject(t *testing.T) {
	_, err := Predict(NewCollection(), "Xx", nil)
	assert.ErrorIs(t, err, shared.ErrUnknownSubject)
}
