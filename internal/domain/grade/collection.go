package grade

import (
	"github.com/shopspring/decimal"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLECTION
// ══════════════════════════════════════════════════════════════════════════════

// Collection - упорядоченный набор оценок в порядке поступления
// (не обязательно по дате). Уникальность id структурно не проверяется.
type Collection struct {
	records []Record
}

// NewCollection создаёт коллекцию из записей. Срез копируется.
func NewCollection(records ...Record) *Collection {
	c := &Collection{records: make([]Record, len(records))}
	copy(c.records, records)
	return c
}

// Len возвращает количество оценок.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// IsEmpty возвращает true, если оценок нет.
func (c *Collection) IsEmpty() bool {
	return c.Len() == 0
}

// Records возвращает копию записей.
func (c *Collection) Records() []Record {
	if c == nil {
		return nil
	}
	result := make([]Record, len(c.records))
	copy(result, c.records)
	return result
}

// IDs возвращает идентификаторы в порядке коллекции.
func (c *Collection) IDs() []string {
	ids := make([]string, 0, c.Len())
	for _, r := range c.Records() {
		ids = append(ids, r.ID())
	}
	return ids
}

// Subjects возвращает различные предметы в порядке первого появления.
func (c *Collection) Subjects() []Subject {
	seen := make(map[Subject]struct{})
	result := make([]Subject, 0)
	for _, r := range c.Records() {
		if _, ok := seen[r.Subject()]; ok {
			continue
		}
		seen[r.Subject()] = struct{}{}
		result = append(result, r.Subject())
	}
	return result
}

// Clone возвращает независимую копию коллекции.
// Записи неизменяемы, поэтому достаточно скопировать срез.
func (c *Collection) Clone() *Collection {
	return NewCollection(c.Records()...)
}

// Append возвращает новую коллекцию с добавленными записями. Получатель не меняется.
func (c *Collection) Append(records ...Record) *Collection {
	clone := c.Clone()
	clone.records = append(clone.records, records...)
	return clone
}

// BySubject возвращает новую коллекцию только с оценками по предмету.
func (c *Collection) BySubject(subject Subject) *Collection {
	result := &Collection{records: make([]Record, 0)}
	for _, r := range c.Records() {
		if r.Subject() == subject {
			result.records = append(result.records, r)
		}
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// AVERAGES
// ══════════════════════════════════════════════════════════════════════════════

// Average возвращает взвешенное среднее sum(grade*weight)/sum(weight) без округления.
// Для пустой коллекции возвращает shared.ErrEmptyCollection - это сигнал
// "среднего нет", а не авария.
func (c *Collection) Average() (decimal.Decimal, error) {
	totalWeight := decimal.Zero
	weighted := decimal.Zero

	for _, r := range c.Records() {
		w := decimal.NewFromInt(int64(r.Weight()))
		totalWeight = totalWeight.Add(w)
		weighted = weighted.Add(decimal.NewFromFloat(r.Grade()).Mul(w))
	}

	if totalWeight.IsZero() {
		return decimal.Zero, shared.NewDomainError("grade", "Average", shared.ErrEmptyCollection, "no grades to average")
	}

	return weighted.Div(totalWeight), nil
}

// RoundedAverage возвращает среднее, округлённое по RoundAverage.
func (c *Collection) RoundedAverage() (decimal.Decimal, error) {
	avg, err := c.Average()
	if err != nil {
		return decimal.Zero, err
	}
	return RoundAverage(avg), nil
}

// FutureAverage возвращает среднее, которое получится, если добавить candidate.
// Считается на независимой копии: получатель не меняется.
func (c *Collection) FutureAverage(candidate Record) (decimal.Decimal, error) {
	return c.Append(candidate).Average()
}

// RoundAverage округляет среднее для показа.
//
// Целое значение возвращается без дробной части, всё остальное обрезается
// (не округляется) до двух знаков: 2.999 -> 2.99.
func RoundAverage(value decimal.Decimal) decimal.Decimal {
	if value.Equal(value.Truncate(0)) {
		return value.Truncate(0)
	}
	return value.Truncate(2)
}

// RoundAverageFloat - то же, что RoundAverage, для значений float64.
func RoundAverageFloat(value float64) decimal.Decimal {
	return RoundAverage(decimal.NewFromFloat(value))
}
