// Package leads описывает воронку продаж: лиды, их статусы, интерес и скоринг.
package leads

import (
	"time"

	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/stats"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

const (
	Module     = "Leads"
	Collection = "leads"
)

var (
	Statuses  = []string{"New", "Contacted", "Qualified", "Proposal", "Negotiation", "Won", "Lost"}
	Interests = []string{"Hot", "Warm", "Cold"}
)

// Значения по умолчанию для create_lead.
const (
	DefaultStatus   = "New"
	DefaultInterest = "Warm"
	DefaultScore    = 0
)

var Schema = store.NewSchema(Collection,
	store.Column{Name: "name", Type: store.TypeText, NotNull: true},
	store.Column{Name: "email", Type: store.TypeText},
	store.Column{Name: "phone", Type: store.TypeText},
	store.Column{Name: "company", Type: store.TypeText},
	store.Column{Name: "source", Type: store.TypeText},
	store.Column{Name: "status", Type: store.TypeText},
	store.Column{Name: "interest", Type: store.TypeText},
	store.Column{Name: "score", Type: store.TypeInteger},
	store.Column{Name: "city", Type: store.TypeText},
	store.Column{Name: "owner", Type: store.TypeText},
	store.Column{Name: "notes", Type: store.TypeText},
).WithIndex("status").WithIndex("interest")

func Domain() *engine.Domain {
	return &engine.Domain{
		Scheme:        "leads",
		Module:        Module,
		Singular:      "lead",
		Plural:        "leads",
		ServerName:    "CRM Leads MCP Server",
		ServerVersion: "1.0.0",
		Instructions:  "Sales leads of the CRM. Resources under leads:// are read-only views; use the tools to search and change leads.",
		Schema:        Schema,
		Views: []engine.View{
			{Name: "all", Title: "All Leads", Description: "Every lead, newest first", Query: newest()},
			byField("new", "New Leads", "status", "New"),
			byField("qualified", "Qualified Leads", "status", "Qualified"),
			{
				Name:        "hot",
				Title:       "Hot Leads",
				Description: "Hot leads, highest score first",
				Query: func(time.Time) store.Query {
					return store.Query{}.
						And(store.Where("interest", store.OpEq, "Hot")).
						OrderBy(store.Desc("score"), store.NewestFirst)
				},
			},
			byField("warm", "Warm Leads", "interest", "Warm"),
			byField("cold", "Cold Leads", "interest", "Cold"),
			engine.RecentView("Recent Leads", "Leads created in the last 30 days"),
		},
		Stats: stats.Spec{
			Dimensions: []stats.Dimension{
				{Name: "by_status", Field: "status", Labels: Statuses},
				{Name: "by_interest", Field: "interest", Labels: Interests},
				{Name: "by_source", Field: "source"},
				{Name: "by_city", Field: "city"},
				{Name: "by_owner", Field: "owner"},
			},
			Presence: []stats.Presence{
				{Name: "with_email", Field: "email"},
				{Name: "with_phone", Field: "phone"},
			},
			Windows: []stats.Window{
				{Name: "created_last_7_days", Field: store.ColumnCreatedAt, From: -7 * 24 * time.Hour},
				{Name: "created_last_30_days", Field: store.ColumnCreatedAt, From: -30 * 24 * time.Hour},
			},
			Averages: []stats.Average{{Name: "average_score", Field: "score"}},
		},
		Tools:   tools(),
		Prompts: prompts(),
	}
}

func newest() func(time.Time) store.Query {
	return func(time.Time) store.Query { return store.Query{}.OrderBy(store.NewestFirst) }
}

func byField(name, title, field, value string) engine.View {
	return engine.View{
		Name:        name,
		Title:       title,
		Description: "Leads with " + field + " " + value,
		Query: func(time.Time) store.Query {
			return store.Query{}.And(store.Where(field, store.OpEq, value)).OrderBy(store.NewestFirst)
		},
	}
}
