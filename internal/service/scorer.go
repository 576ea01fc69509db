package service

import "math"

// MinComplementarity минимальная приемлемая комплементарность пары
const MinComplementarity = 0.30

// Complementarity считает насколько противоположен опыт двух студентов
// по набору концептов: среднее |a - b|, отсутствующая запись = 0.0.
// Для пустого набора возвращает 0.0.
func Complementarity(a, b map[string]float64, conceptIDs []string) float64 {
	if len(conceptIDs) == 0 {
		return 0.0
	}

	total := 0.0
	for _, id := range conceptIDs {
		total += math.Abs(a[id] - b[id])
	}

	return total / float64(len(conceptIDs))
}

// intersect возвращает общие концепты в порядке выбора инициатора
func intersect(mine, theirs []string) []string {
	set := make(map[string]struct{}, len(theirs))
	for _, id := range theirs {
		set[id] = struct{}{}
	}

	var shared []string
	for _, id := range mine {
		if _, ok := set[id]; ok {
			shared = append(shared, id)
			delete(set, id)
		}
	}
	return shared
}

// head возвращает первые n элементов (копию)
func head(ids []string, n int) []string {
	if len(ids) < n {
		n = len(ids)
	}
	return append([]string(nil), ids[:n]...)
}
