// Package contacts описывает справочник контактов: клиенты, потенциальные клиенты, партнеры и поставщики.
package contacts

import (
	"time"

	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/stats"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

const (
	Module     = "Contacts"
	Collection = "contacts"
)

const (
	TypeClient   = "Client"
	TypeProspect = "Prospect"
	TypePartner  = "Partner"
	TypeVendor   = "Vendor"
	TypeOther    = "Other"

	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

var (
	Types    = []string{TypeClient, TypeProspect, TypePartner, TypeVendor, TypeOther}
	Statuses = []string{StatusActive, StatusInactive}
)

var Schema = store.NewSchema(Collection,
	store.Column{Name: "name", Type: store.TypeText, NotNull: true},
	store.Column{Name: "email", Type: store.TypeText},
	store.Column{Name: "phone", Type: store.TypeText},
	store.Column{Name: "company", Type: store.TypeText},
	store.Column{Name: "position", Type: store.TypeText},
	store.Column{Name: "contact_type", Type: store.TypeText},
	store.Column{Name: "status", Type: store.TypeText},
	store.Column{Name: "city", Type: store.TypeText},
	store.Column{Name: "source", Type: store.TypeText},
	store.Column{Name: "notes", Type: store.TypeText},
).WithIndex("contact_type")

func Domain() *engine.Domain {
	return &engine.Domain{
		Scheme:        "contacts",
		Module:        Module,
		Singular:      "contact",
		Plural:        "contacts",
		ServerName:    "CRM Contacts MCP Server",
		ServerVersion: "1.0.0",
		Instructions:  "Contact directory of the CRM. contacts:// resources are read-only; changes require Contacts permissions.",
		Schema:        Schema,
		Views: []engine.View{
			view("all", "All Contacts", "Every contact, newest first", nil),
			view("clients", "Clients", "Contacts of type Client", store.Where("contact_type", store.OpEq, TypeClient)),
			view("prospects", "Prospects", "Contacts of type Prospect", store.Where("contact_type", store.OpEq, TypeProspect)),
			view("partners", "Partners", "Contacts of type Partner", store.Where("contact_type", store.OpEq, TypePartner)),
			view("active", "Active Contacts", "Contacts with status Active", store.Where("status", store.OpEq, StatusActive)),
			engine.RecentView("Recent Contacts", "Contacts added in the last 30 days"),
		},
		Stats: stats.Spec{
			Dimensions: []stats.Dimension{
				{Name: "by_type", Field: "contact_type", Labels: Types},
				{Name: "by_status", Field: "status", Labels: Statuses},
				{Name: "by_city", Field: "city"},
				{Name: "by_company", Field: "company"},
			},
			Presence: []stats.Presence{
				{Name: "with_email", Field: "email"},
				{Name: "with_phone", Field: "phone"},
			},
			Windows: []stats.Window{
				{Name: "created_last_7_days", Field: store.ColumnCreatedAt, From: -7 * 24 * time.Hour},
				{Name: "created_last_30_days", Field: store.ColumnCreatedAt, From: -30 * 24 * time.Hour},
			},
		},
		Tools: tools(),
		Prompts: []engine.Prompt{{
			Name:        "contact_summary",
			Description: "Summarize a contact and suggest how to engage with them",
			Arguments:   []engine.PromptArgument{{Name: "contact_id", Description: "Contact id", Required: true}},
			Render:      contactSummary,
		}},
	}
}

func view(name, title, description string, cond store.Condition) engine.View {
	return engine.View{
		Name:        name,
		Title:       title,
		Description: description,
		Query: func(time.Time) store.Query {
			return store.Query{}.And(cond).OrderBy(store.NewestFirst)
		},
	}
}
