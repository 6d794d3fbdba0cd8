package leads

import (
	"context"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

type getLeadsArgs struct {
	engine.Caller
	engine.Page
	Status   *string  `json:"status,omitempty" jsonschema:"enum=New,enum=Contacted,enum=Qualified,enum=Proposal,enum=Negotiation,enum=Won,enum=Lost"`
	Interest *string  `json:"interest,omitempty" jsonschema:"enum=Hot,enum=Warm,enum=Cold"`
	Source   *string  `json:"source,omitempty" jsonschema:"description=Lead source (website or referral etc.)"`
	City     *string  `json:"city,omitempty"`
	Owner    *string  `json:"owner,omitempty" jsonschema:"description=Sales owner"`
	MinScore *float64 `json:"min_score,omitempty" jsonschema:"description=Minimum score (inclusive),minimum=0,maximum=100"`
	MaxScore *float64 `json:"max_score,omitempty" jsonschema:"description=Maximum score (inclusive),minimum=0,maximum=100"`
	Search   *string  `json:"search,omitempty" jsonschema:"description=Case-insensitive search in name and email and company and notes"`
}

func (a *getLeadsArgs) Validate() error {
	if a.MinScore != nil && a.MaxScore != nil && *a.MinScore > *a.MaxScore {
		return domain.Validation("min_score must not exceed max_score")
	}
	return nil
}

type leadArgs struct {
	engine.Caller
	ID string `json:"id" jsonschema:"required,description=Lead id"`
}

type createLeadArgs struct {
	engine.Caller
	Name     string  `json:"name" jsonschema:"required,description=Lead name"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Company  *string `json:"company,omitempty"`
	Source   *string `json:"source,omitempty"`
	Status   *string `json:"status,omitempty" jsonschema:"description=Default New,enum=New,enum=Contacted,enum=Qualified,enum=Proposal,enum=Negotiation,enum=Won,enum=Lost"`
	Interest *string `json:"interest,omitempty" jsonschema:"description=Default Warm,enum=Hot,enum=Warm,enum=Cold"`
	Score    *int    `json:"score,omitempty" jsonschema:"description=Lead score (default 0),minimum=0,maximum=100"`
	City     *string `json:"city,omitempty"`
	Owner    *string `json:"owner,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

type updateLeadArgs struct {
	engine.Caller
	ID       string  `json:"id" jsonschema:"required,description=Lead id"`
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Company  *string `json:"company,omitempty"`
	Source   *string `json:"source,omitempty"`
	Status   *string `json:"status,omitempty" jsonschema:"enum=New,enum=Contacted,enum=Qualified,enum=Proposal,enum=Negotiation,enum=Won,enum=Lost"`
	Interest *string `json:"interest,omitempty" jsonschema:"enum=Hot,enum=Warm,enum=Cold"`
	Score    *int    `json:"score,omitempty" jsonschema:"minimum=0,maximum=100"`
	City     *string `json:"city,omitempty"`
	Owner    *string `json:"owner,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

func tools() []engine.Tool {
	return []engine.Tool{
		engine.NewTool("get_leads", "Search leads by status, interest, source, city, owner, score range or free text", domain.ActionView, getLeads),
		engine.NewTool("get_lead", "Get one lead by id", domain.ActionView,
			func(ctx context.Context, rt *engine.Runtime, a *leadArgs) (any, error) {
				return rt.Get(ctx, a.ID)
			}),
		engine.NewTool("create_lead", "Create a lead (status New, interest Warm and score 0 unless given)", domain.ActionCreate, createLead),
		engine.NewTool("update_lead", "Change the given fields of a lead", domain.ActionEdit,
			func(ctx context.Context, rt *engine.Runtime, a *updateLeadArgs) (any, error) {
				rec, err := engine.Patch(Schema, a, "id")
				if err != nil {
					return nil, err
				}
				return rt.Update(ctx, a.ID, rec)
			}),
		engine.NewTool("delete_lead", "Delete a lead", domain.ActionDelete,
			func(ctx context.Context, rt *engine.Runtime, a *leadArgs) (any, error) {
				if err := rt.Delete(ctx, a.ID); err != nil {
					return nil, err
				}
				return map[string]any{"id": a.ID, "deleted": true}, nil
			}),
		engine.NewTool("get_lead_statistics", "Lead funnel statistics", domain.ActionView,
			func(ctx context.Context, rt *engine.Runtime, _ *struct{ engine.Caller }) (any, error) {
				return rt.Statistics(ctx)
			}),
	}
}

func getLeads(ctx context.Context, rt *engine.Runtime, a *getLeadsArgs) (any, error) {
	q := store.Query{}.And(
		engine.Eq("status", a.Status),
		engine.Eq("interest", a.Interest),
		engine.Eq("source", a.Source),
		engine.Eq("city", a.City),
		engine.Eq("owner", a.Owner),
		engine.Search(a.Search, "name", "email", "company", "notes"),
	)
	q = q.And(engine.Between("score", a.MinScore, a.MaxScore)...)

	rows, err := rt.Select(ctx, a.Page.Apply(q.OrderBy(store.NewestFirst)))
	if err != nil {
		return nil, err
	}
	return rt.Collection(rows), nil
}

func createLead(ctx context.Context, rt *engine.Runtime, a *createLeadArgs) (any, error) {
	rec, err := engine.Patch(Schema, a)
	if err != nil {
		return nil, err
	}
	defaults := store.Record{"status": DefaultStatus, "interest": DefaultInterest, "score": DefaultScore}
	for k, v := range defaults {
		if _, ok := rec[k]; !ok {
			rec[k] = v
		}
	}
	return rt.Insert(ctx, rec)
}
