package engine

import (
	"context"
	"time"

	"github.com/xela07ax/spaceai-crm-gateway/internal/stats"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
	"go.uber.org/zap"
)

// Clock: источник «сейчас». Значение берется один раз на чтение ресурса или вызов инструмента.
type Clock func() time.Time

// Domain: описание одного доменного сервера (задачи, лиды, контакты).
// Шлюз реализован один раз и параметризуется этим описанием.
type Domain struct {
	// Scheme: схема URI ресурсов, "tasks" -> tasks://pending
	Scheme string
	// Module: имя модуля в матрице прав ("Tasks")
	Module string
	// Singular: "task" для tasks://task/{id}. Plural: "tasks", ключ коллекции в ответе
	Singular string
	Plural   string

	ServerName    string
	ServerVersion string
	Instructions  string

	Schema  store.Schema
	Views   []View
	Stats   stats.Spec
	Tools   []Tool
	Prompts []Prompt
}

// Collection: имя таблицы во внешнем хранилище.
func (d *Domain) Collection() string { return d.Schema.Collection }

// View: именованное представление коллекции: фильтр и порядок.
type View struct {
	Name        string
	Title       string
	Description string
	// Query строит выборку; now общий для всего запроса.
	Query func(now time.Time) store.Query
}

// StatisticsView: зарезервированное имя представления со сводкой.
const StatisticsView = "statistics"

// RecentWindow: окно представления recent.
const RecentWindow = 30 * 24 * time.Hour

// RecentView: записи, созданные за последние 30 дней, свежие первыми.
func RecentView(title, description string) View {
	return View{
		Name:        "recent",
		Title:       title,
		Description: description,
		Query: func(now time.Time) store.Query {
			return store.Query{}.
				And(store.Where(store.ColumnCreatedAt, store.OpGte, now.Add(-RecentWindow))).
				OrderBy(store.NewestFirst)
		},
	}
}

// Runtime: то, с чем работает обработчик инструмента или промпта в рамках одного вызова.
type Runtime struct {
	Domain *Domain
	Store  store.Store
	Now    time.Time
	Logger *zap.Logger
}

// Select: выборка из коллекции домена.
func (rt *Runtime) Select(ctx context.Context, q store.Query) ([]store.Record, error) {
	return rt.Store.Select(ctx, rt.Domain.Collection(), q)
}

func (rt *Runtime) Get(ctx context.Context, id string) (store.Record, error) {
	return rt.Store.Get(ctx, rt.Domain.Collection(), id)
}

func (rt *Runtime) Insert(ctx context.Context, values store.Record) (store.Record, error) {
	return rt.Store.Insert(ctx, rt.Domain.Collection(), values)
}

func (rt *Runtime) Update(ctx context.Context, id string, values store.Record) (store.Record, error) {
	return rt.Store.Update(ctx, rt.Domain.Collection(), id, values)
}

func (rt *Runtime) Delete(ctx context.Context, id string) error {
	return rt.Store.Delete(ctx, rt.Domain.Collection(), id)
}

// Statistics считает снапшот по узкой проекции коллекции.
func (rt *Runtime) Statistics(ctx context.Context) (stats.Snapshot, error) {
	rows, err := rt.Select(ctx, store.Query{Fields: rt.Domain.Stats.Fields()})
	if err != nil {
		return stats.Snapshot{}, err
	}
	return stats.Aggregate(rt.Domain.Stats, rows, rt.Now), nil
}

// Collection оборачивает строки в форму ответа {"<plural>": [...], "count": n}.
func (rt *Runtime) Collection(rows []store.Record) map[string]any {
	return map[string]any{
		rt.Domain.Plural: rows,
		"count":          len(rows),
	}
}

// Prompt: шаблон сообщения для агента.
type Prompt struct {
	Name        string
	Description string
	Arguments   []PromptArgument
	Render      func(ctx context.Context, rt *Runtime, args map[string]string) (string, error)
}

type PromptArgument struct {
	Name        string
	Description string
	Required    bool
}
