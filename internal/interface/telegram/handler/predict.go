package handler

import (
	"context"
	"strings"

	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREDICT HANDLER
// /predikce <kód> - таблица прогноза среднего по предмету.
// Тот же расчёт использует кнопка 📊 под уведомлением.
// ══════════════════════════════════════════════════════════════════════════════

// PredictHandler handles the /predikce command.
type PredictHandler struct {
	grades    GradeSource
	presenter *presenter.PredictionPresenter
}

// NewPredictHandler creates a new PredictHandler with dependencies.
func NewPredictHandler(grades GradeSource, p *presenter.PredictionPresenter) *PredictHandler {
	return &PredictHandler{grades: grades, presenter: p}
}

// Handle processes the /predikce command. Args is the subject code.
func (h *PredictHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	code := strings.TrimSpace(req.Args)
	if fields := strings.Fields(code); len(fields) > 0 {
		code = fields[0]
	}

	subject, ok := grade.SubjectByCode(code)
	if !ok {
		return &Response{Text: presenter.FormatUnknownSubject(code), IsError: true}, nil
	}
	return h.Predict(ctx, subject)
}

// Predict builds the prediction table for subject.
func (h *PredictHandler) Predict(ctx context.Context, subject grade.Subject) (*Response, error) {
	c, _, err := h.grades.Load(ctx)
	if err != nil {
		return nil, err
	}

	pr, err := grade.Predict(c, subject, nil)
	if err != nil {
		return nil, err
	}
	return &Response{Text: h.presenter.FormatPrediction(pr)}, nil
}
