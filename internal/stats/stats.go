// Package stats считает сводную статистику по строкам коллекции за один проход.
// Агрегатор чистый: время передается снаружи и фиксируется на весь расчет.
package stats

import (
	"encoding/json"
	"math"
	"time"

	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

// Dimension: группировка по категориальному полю.
// Labels != nil, закрытое перечисление: все корзины присутствуют с нулем.
// Labels == nil: открытое измерение (город, владелец): корзина появляется при первой встрече.
type Dimension struct {
	Name   string
	Field  string
	Labels []string
}

// Presence считает строки, где поле заполнено.
type Presence struct {
	Name  string
	Field string
}

// Window считает строки, у которых Field попадает в [now+From, now+To].
// OpenFrom снимает нижнюю границу. Exclude отбрасывает строки по меткам других полей.
type Window struct {
	Name     string
	Field    string
	From     time.Duration
	To       time.Duration
	OpenFrom bool
	Exclude  map[string][]string
}

// Average: среднее по строкам с числовым значением, округляется до целого.
type Average struct {
	Name  string
	Field string
}

// Spec: набор метрик одной коллекции.
type Spec struct {
	Dimensions []Dimension
	Presence   []Presence
	Windows    []Window
	Averages   []Average
}

// Fields возвращает узкую проекцию, только колонки, нужные для снапшота.
func (s Spec) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, d := range s.Dimensions {
		add(d.Field)
	}
	for _, p := range s.Presence {
		add(p.Field)
	}
	for _, w := range s.Windows {
		add(w.Field)
		for f := range w.Exclude {
			add(f)
		}
	}
	for _, a := range s.Averages {
		add(a.Field)
	}
	return out
}

// Snapshot: результат агрегации. В JSON разворачивается в плоский объект.
type Snapshot struct {
	Total    int
	Groups   map[string]map[string]int
	Counts   map[string]int
	Averages map[string]int64
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 1+len(s.Groups)+len(s.Counts)+len(s.Averages))
	out["total"] = s.Total
	for k, v := range s.Groups {
		out[k] = v
	}
	for k, v := range s.Counts {
		out[k] = v
	}
	for k, v := range s.Averages {
		out[k] = v
	}
	return json.Marshal(out)
}

type window struct {
	Window
	from, to time.Time
	exclude  map[string]map[string]bool
}

type average struct {
	sum float64
	n   int
}

// Aggregate проходит строки один раз.
func Aggregate(spec Spec, rows []store.Record, now time.Time) Snapshot {
	snap := Snapshot{
		Total:    len(rows),
		Groups:   make(map[string]map[string]int, len(spec.Dimensions)),
		Counts:   make(map[string]int, len(spec.Presence)+len(spec.Windows)),
		Averages: make(map[string]int64, len(spec.Averages)),
	}

	closed := make([]map[string]bool, len(spec.Dimensions))
	for i, d := range spec.Dimensions {
		buckets := make(map[string]int, len(d.Labels))
		if d.Labels != nil {
			closed[i] = make(map[string]bool, len(d.Labels))
			for _, l := range d.Labels {
				buckets[l] = 0
				closed[i][l] = true
			}
		}
		snap.Groups[d.Name] = buckets
	}
	for _, p := range spec.Presence {
		snap.Counts[p.Name] = 0
	}

	// границы окон считаются один раз на весь снапшот
	windows := make([]window, len(spec.Windows))
	for i, w := range spec.Windows {
		windows[i] = window{Window: w, from: now.Add(w.From), to: now.Add(w.To)}
		if len(w.Exclude) > 0 {
			windows[i].exclude = make(map[string]map[string]bool, len(w.Exclude))
			for f, labels := range w.Exclude {
				set := make(map[string]bool, len(labels))
				for _, l := range labels {
					set[l] = true
				}
				windows[i].exclude[f] = set
			}
		}
		snap.Counts[w.Name] = 0
	}
	avgs := make([]average, len(spec.Averages))

	for _, row := range rows {
		for i, d := range spec.Dimensions {
			label, ok := row.String(d.Field)
			if !ok {
				continue
			}
			// метка вне закрытого перечисления не должна ломать инвариант суммы
			if closed[i] != nil && !closed[i][label] {
				continue
			}
			snap.Groups[d.Name][label]++
		}
		for _, p := range spec.Presence {
			if _, ok := row.String(p.Field); ok {
				snap.Counts[p.Name]++
			}
		}
		for _, w := range windows {
			if w.matches(row) {
				snap.Counts[w.Name]++
			}
		}
		for i, a := range spec.Averages {
			if v, ok := row.Float(a.Field); ok {
				avgs[i].sum += v
				avgs[i].n++
			}
		}
	}

	for i, a := range spec.Averages {
		var v int64
		if avgs[i].n > 0 {
			v = int64(math.Round(avgs[i].sum / float64(avgs[i].n)))
		}
		snap.Averages[a.Name] = v
	}
	return snap
}

func (w window) matches(row store.Record) bool {
	t, ok := row.Time(w.Field)
	if !ok {
		return false
	}
	if !w.OpenFrom && t.Before(w.from) {
		return false
	}
	if t.After(w.to) {
		return false
	}
	for f, labels := range w.exclude {
		if label, ok := row.String(f); ok && labels[label] {
			return false
		}
	}
	return true
}
