package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

func TestMarshal_Format(t *testing.T) {
	r, err := NewRecord("A", nil, "M", 2, strPtr("opraveno"), Date{2024, 3, 15}, 3.5)
	require.NoError(t, err)

	text, err := Marshal(NewCollection(r))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"grades":[{"id":"A","caption":null,"subject":"M","weight":2,"note":"opraveno","date":[2024,3,15],"grade":3.5}]}`,
		text)
}

func TestMarshal_Empty(t *testing.T) {
	text, err := Marshal(NewCollection())
	require.NoError(t, err)
	assert.Equal(t, `{"grades":[]}`, text)

	c, err := Unmarshal(text)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestRoundTrip(t *testing.T) {
	a, _ := NewRecord("A", strPtr("Test"), "Čj", 1, nil, Date{2024, 1, 9}, 1)
	b, _ := NewRecord("B", nil, "Inf", 5, strPtr("projekt"), Date{2023, 12, 31}, 4.5)
	original := NewCollection(a, b)

	text, err := Marshal(original)
	require.NoError(t, err)

	restored, err := Unmarshal(text)
	require.NoError(t, err)
	require.Equal(t, original.Len(), restored.Len())
	for i, r := range original.Records() {
		assert.True(t, r.Equal(restored.Records()[i]), "record %d differs", i)
	}
}

func TestUnmarshal_ValidatesRecords(t *testing.T) {
	_, err := Unmarshal(`{"grades":[{"id":"A","caption":null,"subject":"Xx","weight":1,"note":null,"date":[2024,3,15],"grade":2}]}`)
	assert.ErrorIs(t, err, shared.ErrUnknownSubject)

	_, err = Unmarshal(`{"grades":[{"id":"A","caption":null,"subject":"M","weight":0,"note":null,"date":[2024,3,15],"grade":2}]}`)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = Unmarshal(`not json`)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestUnmarshal_RejectsMissingGrades(t *testing.T) {
	blobs := map[string]string{
		"empty object":  `{}`,
		"null":          `null`,
		"null grades":   `{"grades":null}`,
		"misnamed list": `{"grade":[{"id":"A"}]}`,
	}

	for name, blob := range blobs {
		t.Run(name, func(t *testing.T) {
			c, err := Unmarshal(blob)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, shared.ErrInvalidFormat)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestUnmarshal_RejectsDateShape(t *testing.T) {
	dates := map[string]string{
		"too long":  `[2024,1,1,99]`,
		"too short": `[2024,1]`,
		"missing":   `null`,
	}

	for name, date := range dates {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(`{"grades":[{"id":"A","caption":null,"subject":"M","weight":1,"note":null,"date":` + date + `,"grade":2}]}`)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidFormat)
		})
	}
}
