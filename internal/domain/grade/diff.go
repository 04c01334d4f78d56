package grade

// NewGrades возвращает записи current, id которых нет в previous,
// в порядке их появления в current.
//
// Идентичность - только id: запись с известным id никогда не считается новой,
// даже если у неё поменялись поля. Удаления не сообщаются.
func NewGrades(previous, current *Collection) []Record {
	known := make(map[string]struct{}, previous.Len())
	for _, r := range previous.Records() {
		known[r.ID()] = struct{}{}
	}

	fresh := make([]Record, 0)
	for _, r := range current.Records() {
		if _, ok := known[r.ID()]; !ok {
			fresh = append(fresh, r)
		}
	}
	return fresh
}

// Drifted возвращает id, которые есть в обоих снапшотах, но с разными полями.
// Только для диагностики: правки оценок не уведомляются.
func Drifted(previous, current *Collection) []string {
	known := make(map[string]Record, previous.Len())
	for _, r := range previous.Records() {
		known[r.ID()] = r
	}

	ids := make([]string, 0)
	for _, r := range current.Records() {
		old, ok := known[r.ID()]
		if ok && !old.Equal(r) {
			ids = append(ids, r.ID())
		}
	}
	return ids
}
