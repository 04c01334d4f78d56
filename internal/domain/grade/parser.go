package grade

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

// RawRow - одна строка данных из скрипта страницы портала.
// Значения приходят строками или JSON-числами, типам портала не доверяем.
type RawRow map[string]any

// Ключи строки портала.
const (
	FieldID       = "id"
	FieldCaption  = "caption"
	FieldSubject  = "nazev"
	FieldWeight   = "vaha"
	FieldNote     = "poznamkakzobrazeni"
	FieldDate     = "udel_datum"
	FieldMarkText = "MarkText"
)

// Артефакт кодировки страницы в текстах caption/note.
const lineBreakArtifact = " <br>"

// Маркер полуоценки в нотации портала.
const halfGradeMarker = "-"

// ParseRows разбирает все строки. Первая же плохая строка прерывает разбор:
// частичный снапшот сломал бы детектор новых оценок.
func ParseRows(rows []RawRow) (*Collection, error) {
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		r, err := ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		records = append(records, r)
	}
	return NewCollection(records...), nil
}

// ParseRow превращает одну строку портала в проверенную запись.
func ParseRow(row RawRow) (Record, error) {
	const op = "ParseRow"

	id, err := stringField(row, FieldID)
	if err != nil {
		return Record{}, err
	}

	caption, err := textField(row, FieldCaption)
	if err != nil {
		return Record{}, err
	}

	subjectName, err := stringField(row, FieldSubject)
	if err != nil {
		return Record{}, err
	}
	subject, ok := SubjectByName(subjectName)
	if !ok {
		return Record{}, shared.UnknownSubjectError(op, subjectName)
	}

	weightText, err := stringField(row, FieldWeight)
	if err != nil {
		return Record{}, err
	}
	weight, err := strconv.Atoi(strings.TrimSpace(weightText))
	if err != nil {
		return Record{}, shared.WrapError("grade", op, shared.ErrInvalidFormat,
			fmt.Sprintf("weight %q is not an integer", weightText), err)
	}

	note, err := textField(row, FieldNote)
	if err != nil {
		return Record{}, err
	}

	dateText, err := stringField(row, FieldDate)
	if err != nil {
		return Record{}, err
	}
	date, err := ParseDate(dateText)
	if err != nil {
		return Record{}, err
	}

	markText, err := stringField(row, FieldMarkText)
	if err != nil {
		return Record{}, err
	}
	value, err := ParseMark(markText)
	if err != nil {
		return Record{}, err
	}

	return NewRecord(id, caption, subject, weight, note, date, value)
}

// ParseDate разбирает дату портала "d.m.yyyy".
func ParseDate(text string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(text), ".")
	if len(parts) != 3 {
		return Date{}, shared.NewDomainError("grade", "ParseDate", shared.ErrInvalidFormat,
			fmt.Sprintf("date %q is not d.m.yyyy", text))
	}

	// Портал пишет день.месяц.год, храним год, месяц, день.
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Date{}, shared.WrapError("grade", "ParseDate", shared.ErrInvalidFormat,
				fmt.Sprintf("date %q has a non-numeric part", text), err)
		}
		nums[len(parts)-1-i] = n
	}

	return NewDate(nums[0], nums[1], nums[2])
}

// ParseMark разбирает оценку: "3" -> 3, "3-" -> 3.5.
func ParseMark(text string) (float64, error) {
	text = strings.TrimSpace(text)
	half := strings.Contains(text, halfGradeMarker)
	digits := strings.ReplaceAll(text, halfGradeMarker, "")

	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, shared.WrapError("grade", "ParseMark", shared.ErrInvalidFormat,
			fmt.Sprintf("mark %q is not a grade", text), err)
	}

	value := float64(n)
	if half {
		value += 0.5
	}
	return value, nil
}

// stringField достаёт обязательное поле как строку.
func stringField(row RawRow, key string) (string, error) {
	raw, ok := row[key]
	if !ok || raw == nil {
		return "", shared.NewDomainError("grade", "ParseRow", shared.ErrEmptyValue,
			fmt.Sprintf("field %q is missing", key))
	}
	return toString(key, raw)
}

// textField достаёт необязательный текст. Пустая строка означает отсутствие.
func textField(row RawRow, key string) (*string, error) {
	raw, ok := row[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, err := toString(key, raw)
	if err != nil {
		return nil, err
	}
	s = strings.ReplaceAll(s, lineBreakArtifact, "")
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func toString(key string, raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return "", shared.NewDomainError("grade", "ParseRow", shared.ErrInvalidFormat,
				fmt.Sprintf("field %q has non-integer number %v", key, v))
		}
		return strconv.FormatInt(int64(v), 10), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", shared.NewDomainError("grade", "ParseRow", shared.ErrInvalidFormat,
			fmt.Sprintf("field %q has unsupported type %T", key, raw))
	}
}
