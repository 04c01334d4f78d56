package grade

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

// DefaultPredictionWeights - веса, для которых строится прогноз по умолчанию.
var DefaultPredictionWeights = []int{1, 2, 3, 4, 5}

// PredictionGrades - оценки в прогнозе: 1, 1-, 2, ... 5.
var PredictionGrades = []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5}

// PredictionRow - будущие средние для одной гипотетической оценки,
// по одному значению на каждый вес прогноза.
type PredictionRow struct {
	Grade    float64
	Label    string
	Averages []decimal.Decimal
}

// Prediction - таблица "что будет, если" по одному предмету.
type Prediction struct {
	Subject Subject
	Weights []int
	Rows    []PredictionRow

	// Current - текущее округлённое среднее. HasCurrent=false, если оценок ещё нет.
	Current    decimal.Decimal
	HasCurrent bool
}

// Predict строит прогноз для предмета по всем оценкам коллекции.
// Коллекция не меняется. Пустой weights означает DefaultPredictionWeights.
func Predict(c *Collection, subject Subject, weights []int) (Prediction, error) {
	if !subject.IsValid() {
		return Prediction{}, shared.UnknownSubjectError("Predict", string(subject))
	}
	if len(weights) == 0 {
		weights = DefaultPredictionWeights
	}

	bySubject := c.BySubject(subject)
	p := Prediction{
		Subject: subject,
		Weights: append([]int(nil), weights...),
		Rows:    make([]PredictionRow, 0, len(PredictionGrades)),
	}

	current, err := bySubject.RoundedAverage()
	switch {
	case err == nil:
		p.Current, p.HasCurrent = current, true
	case !errors.Is(err, shared.ErrEmptyCollection):
		return Prediction{}, err
	}

	for _, g := range PredictionGrades {
		row := PredictionRow{Grade: g, Averages: make([]decimal.Decimal, 0, len(weights))}
		for _, w := range weights {
			candidate, err := Candidate(subject, w, g)
			if err != nil {
				return Prediction{}, fmt.Errorf("prediction candidate: %w", err)
			}
			row.Label = candidate.GradeString()

			avg, err := bySubject.FutureAverage(candidate)
			if err != nil {
				return Prediction{}, err
			}
			row.Averages = append(row.Averages, RoundAverage(avg))
		}
		p.Rows = append(p.Rows, row)
	}

	return p, nil
}
