package grade

import (
	"encoding/json"
	"fmt"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

// snapshotDTO - сохраняемая форма коллекции. Только поля записи, ничего вычисляемого.
// Grades - указатель: отсутствующий или null список отличается от пустого.
type snapshotDTO struct {
	Grades *[]recordDTO `json:"grades"`
}

type recordDTO struct {
	ID      string  `json:"id"`
	Caption *string `json:"caption"`
	Subject string  `json:"subject"`
	Weight  int     `json:"weight"`
	Note    *string `json:"note"`
	Date    []int   `json:"date"`
	Grade   float64 `json:"grade"`
}

// Marshal сериализует коллекцию в документ {"grades":[...]}.
func Marshal(c *Collection) (string, error) {
	grades := make([]recordDTO, 0, c.Len())
	for _, r := range c.Records() {
		grades = append(grades, recordDTO{
			ID:      r.id,
			Caption: r.caption,
			Subject: string(r.subject),
			Weight:  r.weight,
			Note:    r.note,
			Date:    []int{r.date.Year, r.date.Month, r.date.Day},
			Grade:   r.grade,
		})
	}
	dto := snapshotDTO{Grades: &grades}

	data, err := json.Marshal(dto)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

// Unmarshal восстанавливает коллекцию. Каждая запись проходит через NewRecord:
// сохранённые данные проверяются так же строго, как данные с портала.
func Unmarshal(text string) (*Collection, error) {
	var dto snapshotDTO
	if err := json.Unmarshal([]byte(text), &dto); err != nil {
		return nil, shared.WrapError("grade", "Unmarshal", shared.ErrInvalidFormat, "snapshot is not valid JSON", err)
	}

	if dto.Grades == nil {
		return nil, shared.NewDomainError("grade", "Unmarshal", shared.ErrInvalidFormat, "snapshot has no grades list")
	}

	records := make([]Record, 0, len(*dto.Grades))
	for i, g := range *dto.Grades {
		if len(g.Date) != 3 {
			return nil, shared.NewDomainError("grade", "Unmarshal", shared.ErrInvalidFormat,
				fmt.Sprintf("snapshot record %d: date must have 3 parts, got %d", i, len(g.Date)))
		}
		r, err := NewRecord(g.ID, g.Caption, Subject(g.Subject), g.Weight, g.Note,
			Date{Year: g.Date[0], Month: g.Date[1], Day: g.Date[2]}, g.Grade)
		if err != nil {
			return nil, fmt.Errorf("snapshot record %d: %w", i, err)
		}
		records = append(records, r)
	}
	return NewCollection(records...), nil
}
