package presenter

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREDICTION PRESENTER
// Таблица "что будет, если": строки - гипотетические оценки, столбцы - веса.
// Моноширинный блок <pre>, чтобы столбцы совпадали в любом клиенте.
// ══════════════════════════════════════════════════════════════════════════════

// PredictionPresenter форматирует прогнозы и средние.
type PredictionPresenter struct{}

// NewPredictionPresenter создаёт новый презентер прогноза.
func NewPredictionPresenter() *PredictionPresenter {
	return &PredictionPresenter{}
}

// cellWidth - ширина столбца таблицы, "4.75" плюс пробел.
const cellWidth = 6

// FormatPrediction форматирует прогноз по предмету.
func (p *PredictionPresenter) FormatPrediction(pr grade.Prediction) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("📊 <b>Predikce: %s (%s)</b>\n", escapeHTML(pr.Subject.Name()), pr.Subject))
	if pr.HasCurrent {
		sb.WriteString(fmt.Sprintf("Aktuální průměr: <b>%s</b>\n", pr.Current.String()))
	} else {
		sb.WriteString("Zatím bez známek.\n")
	}

	sb.WriteString("<pre>")

	// Заголовок: веса
	sb.WriteString(pad("Zn.", 4))
	sb.WriteString("│")
	for _, w := range pr.Weights {
		sb.WriteString(pad(fmt.Sprintf("v%d", w), cellWidth))
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", 4) + "┼" + strings.Repeat("─", cellWidth*len(pr.Weights)))
	sb.WriteString("\n")

	for _, row := range pr.Rows {
		sb.WriteString(pad(row.Label, 4))
		sb.WriteString("│")
		for _, avg := range row.Averages {
			sb.WriteString(pad(avg.String(), cellWidth))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("</pre>")

	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AVERAGES
// ─────────────────────────────────────────────────────────────────────────────

// SubjectAverage - строка сводки /prumer.
type SubjectAverage struct {
	Subject grade.Subject
	Average decimal.Decimal
	Count   int
}

// Averages считает округлённые средние по всем предметам коллекции
// в порядке первого появления предмета.
func (p *PredictionPresenter) Averages(c *grade.Collection) []SubjectAverage {
	subjects := c.Subjects()
	out := make([]SubjectAverage, 0, len(subjects))
	for _, s := range subjects {
		bySubject := c.BySubject(s)
		avg, err := bySubject.RoundedAverage()
		if err != nil {
			continue
		}
		out = append(out, SubjectAverage{Subject: s, Average: avg, Count: bySubject.Len()})
	}
	return out
}

// FormatAverages форматирует сводку средних (команда /prumer).
func (p *PredictionPresenter) FormatAverages(c *grade.Collection) string {
	averages := p.Averages(c)
	if len(averages) == 0 {
		return "📈 Zatím žádné známky."
	}

	var sb strings.Builder
	sb.WriteString("📈 <b>Průměry</b>\n<pre>")
	for _, a := range averages {
		sb.WriteString(fmt.Sprintf("%s%s%s\n", pad(a.Subject.String(), 4), pad(a.Average.String(), cellWidth), countLabel(a.Count)))
	}
	sb.WriteString("</pre>")
	return sb.String()
}

// countLabel склоняет "známka" по числу.
func countLabel(n int) string {
	switch {
	case n == 1:
		return "(1 známka)"
	case n >= 2 && n <= 4:
		return fmt.Sprintf("(%d známky)", n)
	default:
		return fmt.Sprintf("(%d známek)", n)
	}
}

// pad дополняет строку пробелами до ширины в символах.
func pad(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
