package bakalari

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAGE EXTRACTION
// ══════════════════════════════════════════════════════════════════════════════

// gradesContainer holds the inline script with the chronological grade list.
const gradesContainer = "div#cphmain_DivByTime"

// rowsStart opens the first JSON array of objects in the script.
const rowsStart = "[{"

// ErrSessionExpired means the portal answered with its login form.
var ErrSessionExpired = errors.New("bakalari session expired")

// ExtractRows pulls the raw grade rows out of the chronological grades page.
// A page without the grades container but with a login form yields
// ErrSessionExpired; any other layout mismatch is an ErrInvalidFormat.
func ExtractRows(page []byte) ([]grade.RawRow, error) {
	const op = "ExtractRows"

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, shared.WrapError("bakalari", op, shared.ErrInvalidFormat, "parse html", err)
	}

	container := doc.Find(gradesContainer).First()
	if container.Length() == 0 {
		if isLoginPage(doc) {
			return nil, ErrSessionExpired
		}
		return nil, shared.NewDomainError("bakalari", op, shared.ErrInvalidFormat,
			"grades container "+gradesContainer+" not found")
	}

	script := strings.TrimSpace(container.Find("script").First().Text())
	if script == "" {
		return nil, shared.NewDomainError("bakalari", op, shared.ErrInvalidFormat, "grades script is empty")
	}

	start := strings.Index(script, rowsStart)
	if start < 0 {
		// A student without any grade yet has no array literal at all.
		if strings.Contains(script, "[]") {
			return []grade.RawRow{}, nil
		}
		return nil, shared.NewDomainError("bakalari", op, shared.ErrInvalidFormat, "grades array not found in script")
	}

	// Decode stops after the array; the rest of the statement is never read.
	rows, err := decodeRows(strings.NewReader(script[start:]))
	if err != nil {
		return nil, shared.WrapError("bakalari", op, shared.ErrInvalidFormat, "decode grades array", err)
	}
	return rows, nil
}

// decodeRows keeps numbers as json.Number so the parser sees "2" and 2 alike.
func decodeRows(r io.Reader) ([]grade.RawRow, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows []grade.RawRow
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return rows, nil
}

func isLoginPage(doc *goquery.Document) bool {
	return doc.Find(`input[name="username"]`).Length() > 0 &&
		doc.Find(`input[type="password"]`).Length() > 0
}
