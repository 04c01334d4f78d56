package handler

import (
	"context"

	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// AVERAGES HANDLER
// /prumer - средние по всем предметам из последнего снапшота.
// ══════════════════════════════════════════════════════════════════════════════

// AveragesHandler handles the /prumer command.
type AveragesHandler struct {
	grades    GradeSource
	presenter *presenter.PredictionPresenter
}

// NewAveragesHandler creates a new AveragesHandler with dependencies.
func NewAveragesHandler(grades GradeSource, p *presenter.PredictionPresenter) *AveragesHandler {
	return &AveragesHandler{grades: grades, presenter: p}
}

// Handle processes the /prumer command.
func (h *AveragesHandler) Handle(ctx context.Context, _ Request) (*Response, error) {
	c, found, err := h.grades.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Response{Text: presenter.FormatNoData()}, nil
	}
	return &Response{Text: h.presenter.FormatAverages(c)}, nil
}
