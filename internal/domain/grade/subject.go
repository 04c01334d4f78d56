package grade

import (
	"sort"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT VOCABULARY
// ══════════════════════════════════════════════════════════════════════════════

// Subject - короткий код предмета ("M", "Čj", "Inf").
type Subject string

// String возвращает код предмета.
func (s Subject) String() string {
	return string(s)
}

// Name возвращает полное название предмета, как его пишет портал.
// Для неизвестного кода возвращает пустую строку.
func (s Subject) Name() string {
	return subjectNames[s]
}

// IsValid проверяет, что код есть в словаре.
func (s Subject) IsValid() bool {
	_, ok := subjectNames[s]
	return ok
}

// Словарь заполняется один раз при инициализации пакета и больше не меняется.
// Наружу отдаются только функции чтения.
var (
	subjectNames = map[Subject]string{
		"Inf": "Informatika a výpočetní technika",
		"EvV": "Estetická výchova - výtvarná",
		"EvH": "Estetická výchova - hudební",
		"Zsv": "Základy společenských věd",
		"Čj":  "Český jazyk a literatura",
		"Fj":  "Jazyk francouzský",
		"Tv":  "Tělesná výchova",
		"Aj":  "Jazyk anglický",
		"M":   "Matematika",
		"Bi":  "Biologie",
		"Fy":  "Fyzika",
		"Ch":  "Chemie",
		"D":   "Dějepis",
		"Z":   "Zeměpis",
	}

	subjectsByName  = make(map[string]Subject, len(subjectNames))
	subjectsByLower = make(map[string]Subject, len(subjectNames))
)

func init() {
	for code, name := range subjectNames {
		subjectsByName[name] = code
		subjectsByLower[strings.ToLower(string(code))] = code
	}
}

// SubjectByName находит код предмета по полному названию с портала.
func SubjectByName(name string) (Subject, bool) {
	code, ok := subjectsByName[name]
	return code, ok
}

// SubjectByCode находит код предмета без учёта регистра ("čj" -> "Čj").
// Используется командами чата.
func SubjectByCode(code string) (Subject, bool) {
	s, ok := subjectsByLower[strings.ToLower(strings.TrimSpace(code))]
	return s, ok
}

// AllSubjects возвращает все коды предметов, отсортированные по алфавиту.
func AllSubjects() []Subject {
	result := make([]Subject, 0, len(subjectNames))
	for code := range subjectNames {
		result = append(result, code)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
