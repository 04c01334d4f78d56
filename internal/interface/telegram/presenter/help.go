package presenter

import (
	"fmt"
	"strings"

	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
)

// FormatStart - ответ на /start.
func FormatStart() string {
	var sb strings.Builder
	sb.WriteString("👋 <b>Bakaláři notifikace</b>\n\n")
	sb.WriteString("Každou novou známku pošlu sem. Tlačítkem 📊 pod známkou zobrazíte predikci průměru.\n\n")
	sb.WriteString("/prumer - průměry ze všech předmětů\n")
	sb.WriteString("/predikce &lt;kód&gt; - predikce pro předmět, např. /predikce M\n\n")
	sb.WriteString("Kódy předmětů: ")

	codes := make([]string, 0, len(grade.AllSubjects()))
	for _, s := range grade.AllSubjects() {
		codes = append(codes, s.String())
	}
	sb.WriteString(strings.Join(codes, ", "))
	return sb.String()
}

// FormatUnknownSubject - ответ на /predikce с неизвестным кодом.
func FormatUnknownSubject(code string) string {
	if code == "" {
		return "Použití: /predikce &lt;kód&gt;, např. /predikce M"
	}
	return fmt.Sprintf("Neznámý předmět <b>%s</b>. Seznam kódů: /start", escapeHTML(code))
}

// FormatNoData - ответ, когда снимок оценок ещё не сохранён.
func FormatNoData() string {
	return "Známky zatím nebyly načteny, zkuste to za chvíli."
}

// maxAlertText: даже после экранирования текст влезает в одно сообщение.
const maxAlertText = 700

// FormatAlert - сообщение администратору о сбое цикла.
func FormatAlert(text string) string {
	if r := []rune(text); len(r) > maxAlertText {
		text = string(r[:maxAlertText]) + "…"
	}
	return "⚠️ <b>Chyba notifikátoru</b>\n<pre>" + escapeHTML(text) + "</pre>"
}
