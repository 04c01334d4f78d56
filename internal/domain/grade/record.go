// Package grade содержит доменную модель оценок: запись об оценке, коллекцию
// с взвешенным средним, парсер строк портала, сериализацию снапшота
// и детектор новых оценок между двумя снапшотами.
//
// Весь пакет чистый: никакого I/O, никаких блокировок.
package grade

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DATE
// ══════════════════════════════════════════════════════════════════════════════

// Date - календарная дата без времени.
type Date struct {
	Year  int
	Month int
	Day   int
}

// NewDate создаёт дату и проверяет, что такой день существует.
func NewDate(year, month, day int) (Date, error) {
	d := Date{Year: year, Month: month, Day: day}
	if !d.IsValid() {
		return Date{}, shared.NewDomainError("grade", "NewDate", shared.ErrInvalidFormat,
			fmt.Sprintf("invalid date %d-%d-%d", year, month, day))
	}
	return d, nil
}

// IsValid проверяет, что дата реальна (нет 31 февраля и т.п.).
func (d Date) IsValid() bool {
	if d.Year < 1 || d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	t := d.Time()
	return t.Year() == d.Year && int(t.Month()) == d.Month && t.Day() == d.Day
}

// Time возвращает дату как полночь UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// String форматирует дату так, как её показывает портал: "15. 3. 2024".
func (d Date) String() string {
	return fmt.Sprintf("%d. %d. %d", d.Day, d.Month, d.Year)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record - одна оценка. Значение неизменяемое: поля закрыты, есть только геттеры.
type Record struct {
	id      string
	caption *string
	subject Subject
	weight  int
	note    *string
	date    Date
	grade   float64
}

// NewRecord создаёт проверенную запись об оценке.
// Пустые caption/note приводятся к отсутствующему значению.
func NewRecord(id string, caption *string, subject Subject, weight int, note *string, date Date, grade float64) (Record, error) {
	const op = "NewRecord"

	if id == "" {
		return Record{}, shared.ValidationError(op, "id cannot be empty")
	}
	if !subject.IsValid() {
		return Record{}, shared.UnknownSubjectError(op, string(subject))
	}
	if weight < 1 {
		return Record{}, shared.ValidationError(op, fmt.Sprintf("weight must be >= 1, got %d", weight))
	}
	if math.IsNaN(grade) || math.IsInf(grade, 0) || grade <= 0 {
		return Record{}, shared.ValidationError(op, fmt.Sprintf("grade must be > 0, got %v", grade))
	}
	if grade*2 != math.Trunc(grade*2) {
		return Record{}, shared.ValidationError(op, fmt.Sprintf("grade must be whole or half, got %v", grade))
	}
	if !date.IsValid() {
		return Record{}, shared.ValidationError(op, fmt.Sprintf("invalid date %d-%d-%d", date.Year, date.Month, date.Day))
	}

	return Record{
		id:      id,
		caption: optional(caption),
		subject: subject,
		weight:  weight,
		note:    optional(note),
		date:    date,
		grade:   grade,
	}, nil
}

// Candidate создаёт гипотетическую оценку для прогноза среднего.
// Запись не попадает в снапшот, поэтому id служебный.
func Candidate(subject Subject, weight int, grade float64) (Record, error) {
	now := time.Now().UTC()
	return NewRecord("candidate", nil, subject, weight, nil, Date{Year: now.Year(), Month: int(now.Month()), Day: now.Day()}, grade)
}

func optional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

// ID возвращает идентификатор портала.
func (r Record) ID() string { return r.id }

// Caption возвращает название работы, если оно есть.
func (r Record) Caption() (string, bool) {
	if r.caption == nil {
		return "", false
	}
	return *r.caption, true
}

// Subject возвращает код предмета.
func (r Record) Subject() Subject { return r.subject }

// Weight возвращает вес оценки.
func (r Record) Weight() int { return r.weight }

// Note возвращает примечание, если оно есть.
func (r Record) Note() (string, bool) {
	if r.note == nil {
		return "", false
	}
	return *r.note, true
}

// Date возвращает дату выставления.
func (r Record) Date() Date { return r.date }

// Grade возвращает числовое значение оценки (полуоценка = целое + 0.5).
func (r Record) Grade() float64 { return r.grade }

// GradeString отображает оценку в нотации портала: 3 -> "3", 3.5 -> "3-".
func (r Record) GradeString() string {
	whole := math.Floor(r.grade)
	if r.grade != whole {
		return strconv.Itoa(int(whole)) + "-"
	}
	return strconv.Itoa(int(whole))
}

// Equal сравнивает все поля записи.
func (r Record) Equal(other Record) bool {
	return r.id == other.id &&
		equalOptional(r.caption, other.caption) &&
		r.subject == other.subject &&
		r.weight == other.weight &&
		equalOptional(r.note, other.note) &&
		r.date == other.date &&
		r.grade == other.grade
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// String возвращает строковое представление для логирования.
func (r Record) String() string {
	return fmt.Sprintf("Grade{ID: %s, Subject: %s, Grade: %s, Weight: %d, Date: %s}",
		r.id, r.subject, r.GradeString(), r.weight, r.date)
}
