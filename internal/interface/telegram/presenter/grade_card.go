package presenter

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
	"github.com/bakalari-hub/grade-notifier/internal/domain/notification"
	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE CARD PRESENTER
// Форматирует сообщение о новой оценке: предмет, оценка с цветной меткой,
// вес, подпись и примечание, текущее среднее по предмету, дата.
// ══════════════════════════════════════════════════════════════════════════════

// GradeCardPresenter форматирует карточку оценки.
type GradeCardPresenter struct {
	keyboardBuilder *KeyboardBuilder
}

// NewGradeCardPresenter создаёт новый презентер карточки оценки.
func NewGradeCardPresenter() *GradeCardPresenter {
	return &GradeCardPresenter{
		keyboardBuilder: NewKeyboardBuilder(),
	}
}

// GradeCardView содержит отформатированную карточку.
type GradeCardView struct {
	// Text - текст сообщения (с HTML-разметкой).
	Text string

	// Subject - предмет, для кнопки прогноза.
	Subject grade.Subject
}

// FormatNewGrade форматирует новую оценку. all - вся текущая коллекция,
// из неё считается среднее по предмету.
func (p *GradeCardPresenter) FormatNewGrade(r grade.Record, all *grade.Collection) *GradeCardView {
	var sb strings.Builder

	// Предмет
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n", GradeMarker(r.Grade()), escapeHTML(r.Subject().Name())))

	// Оценка
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", r.GradeString()))

	// Вес, подпись и примечание
	sb.WriteString(fmt.Sprintf("Váha: %d", r.Weight()))
	if caption, ok := r.Caption(); ok {
		sb.WriteString("\n" + escapeHTML(caption))
	}
	if note, ok := r.Note(); ok {
		sb.WriteString("\n" + escapeHTML(note))
	}
	sb.WriteString("\n\n")

	// Среднее по предмету
	sb.WriteString(fmt.Sprintf("Průměr z %s: <b>%s</b>\n", r.Subject(), formatAverage(all.BySubject(r.Subject()))))

	// Дата
	sb.WriteString(fmt.Sprintf("<i>%s</i>", r.Date()))

	return &GradeCardView{
		Text:    sb.String(),
		Subject: r.Subject(),
	}
}

// PredictionButton - кнопка прогноза для карточки.
func (p *GradeCardPresenter) PredictionButton(view *GradeCardView) notification.InlineButton {
	return p.keyboardBuilder.PredictionButton(view.Subject)
}

// ─────────────────────────────────────────────────────────────────────────────
// COLOUR MARKER
// ─────────────────────────────────────────────────────────────────────────────

// GradeColor возвращает красную и зелёную составляющие цвета оценки:
// 1 - чисто зелёный, 5 - чисто красный.
func GradeColor(value float64) (red, green int) {
	red = clampByte(int(255.0 / 4 * (value - 1)))
	green = clampByte(int(255 - 255.0/4*(value-1)))
	return red, green
}

// GradeMarker переводит цвет оценки в эмодзи-метку.
func GradeMarker(value float64) string {
	red, _ := GradeColor(value)
	switch {
	case red < 64:
		return "🟢"
	case red < 128:
		return "🟡"
	case red < 192:
		return "🟠"
	default:
		return "🔴"
	}
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

// formatAverage возвращает округлённое среднее или "–" для пустой коллекции.
func formatAverage(c *grade.Collection) string {
	avg, err := c.RoundedAverage()
	if err != nil {
		if errors.Is(err, shared.ErrEmptyCollection) {
			return "–"
		}
		return "?"
	}
	return avg.String()
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
