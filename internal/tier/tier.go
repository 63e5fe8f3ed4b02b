// Package tier содержит политику уровней скидки совместной покупки.
package tier

// Step задаёт порог суммарного количества и соответствующую скидку в процентах.
type Step struct {
	MinQuantity int `json:"minQuantity"`
	Percent     int `json:"percent"`
}

// steps упорядочены по убыванию порога.
var steps = []Step{
	{MinQuantity: 50, Percent: 20},
	{MinQuantity: 20, Percent: 15},
	{MinQuantity: 10, Percent: 10},
	{MinQuantity: 5, Percent: 5},
}

// Max задаёт максимальный уровень скидки.
const Max = 20

// For возвращает процент скидки для суммарного количества.
// Количество, равное порогу, относится к этому уровню.
func For(totalQuantity int) int {
	for _, s := range steps {
		if totalQuantity >= s.MinQuantity {
			return s.Percent
		}
	}
	return 0
}

// Next возвращает следующий уровень выше текущего количества и признак его наличия.
func Next(totalQuantity int) (Step, bool) {
	for i := len(steps) - 1; i >= 0; i-- {
		if totalQuantity < steps[i].MinQuantity {
			return steps[i], true
		}
	}
	return Step{}, false
}

// Steps возвращает копию таблицы уровней по возрастанию порога.
func Steps() []Step {
	out := make([]Step, 0, len(steps))
	for i := len(steps) - 1; i >= 0; i-- {
		out = append(out, steps[i])
	}
	return out
}
