package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID())
	}
	return out
}

func TestNewGrades(t *testing.T) {
	a := mustRecord(t, "A", "M", 1, 1)
	b := mustRecord(t, "B", "M", 1, 2)
	c := mustRecord(t, "C", "Aj", 1, 3)

	previous := NewCollection(a)
	current := NewCollection(a, b, c)

	assert.Equal(t, []string{"B", "C"}, ids(NewGrades(previous, current)))
	assert.Empty(t, NewGrades(current, current))
}

func TestNewGrades_EdgeCases(t *testing.T) {
	a := mustRecord(t, "A", "M", 1, 1)
	b := mustRecord(t, "B", "M", 1, 2)

	t.Run("empty previous reports everything", func(t *testing.T) {
		assert.Equal(t, []string{"A", "B"}, ids(NewGrades(NewCollection(), NewCollection(a, b))))
	})

	t.Run("removals are not reported", func(t *testing.T) {
		assert.Empty(t, NewGrades(NewCollection(a, b), NewCollection(b)))
	})

	t.Run("field drift on known id is not new", func(t *testing.T) {
		edited := mustRecord(t, "A", "M", 3, 5)
		assert.Empty(t, NewGrades(NewCollection(a), NewCollection(edited)))
	})
}

func TestDrifted(t *testing.T) {
	a := mustRecord(t, "A", "M", 1, 1)
	b := mustRecord(t, "B", "M", 1, 2)
	edited := mustRecord(t, "A", "M", 2, 1)

	assert.Equal(t, []string{"A"}, Drifted(NewCollection(a, b), NewCollection(edited, b)))
	assert.Empty(t, Drifted(NewCollection(a, b), NewCollection(a, b)))
}
