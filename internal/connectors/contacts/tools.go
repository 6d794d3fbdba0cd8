package contacts

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

type getContactsArgs struct {
	engine.Caller
	engine.Page
	ContactType *string `json:"contact_type,omitempty" jsonschema:"enum=Client,enum=Prospect,enum=Partner,enum=Vendor,enum=Other"`
	Status      *string `json:"status,omitempty" jsonschema:"enum=Active,enum=Inactive"`
	City        *string `json:"city,omitempty"`
	Company     *string `json:"company,omitempty"`
	Search      *string `json:"search,omitempty" jsonschema:"description=Case-insensitive search in name and email and company and position and notes"`
}

type contactIDArgs struct {
	engine.Caller
	ID string `json:"id" jsonschema:"required"`
}

type createContactArgs struct {
	engine.Caller
	Name        string  `json:"name" jsonschema:"required,description=Full name"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Company     *string `json:"company,omitempty"`
	Position    *string `json:"position,omitempty" jsonschema:"description=Job title"`
	ContactType *string `json:"contact_type,omitempty" jsonschema:"description=Default Prospect,enum=Client,enum=Prospect,enum=Partner,enum=Vendor,enum=Other"`
	Status      *string `json:"status,omitempty" jsonschema:"description=Default Active,enum=Active,enum=Inactive"`
	City        *string `json:"city,omitempty"`
	Source      *string `json:"source,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

type updateContactArgs struct {
	engine.Caller
	ID          string  `json:"id" jsonschema:"required"`
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Company     *string `json:"company,omitempty"`
	Position    *string `json:"position,omitempty"`
	ContactType *string `json:"contact_type,omitempty" jsonschema:"enum=Client,enum=Prospect,enum=Partner,enum=Vendor,enum=Other"`
	Status      *string `json:"status,omitempty" jsonschema:"enum=Active,enum=Inactive"`
	City        *string `json:"city,omitempty"`
	Source      *string `json:"source,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

func tools() []engine.Tool {
	return []engine.Tool{
		engine.NewTool("get_contacts", "List contacts filtered by type, status, city, company or free text", domain.ActionView, getContacts),
		engine.NewTool("get_contact", "Get a contact by id", domain.ActionView, getContact),
		engine.NewTool("create_contact", "Add a contact (Prospect and Active by default)", domain.ActionCreate, createContact),
		engine.NewTool("update_contact", "Update the passed fields of a contact", domain.ActionEdit, updateContact),
		engine.NewTool("delete_contact", "Remove a contact", domain.ActionDelete, deleteContact),
		engine.NewTool("get_contact_statistics", "Contact directory statistics", domain.ActionView, statistics),
	}
}

func getContacts(ctx context.Context, rt *engine.Runtime, a *getContactsArgs) (any, error) {
	q := store.Query{}.And(
		engine.Eq("contact_type", a.ContactType),
		engine.Eq("status", a.Status),
		engine.Eq("city", a.City),
		engine.Eq("company", a.Company),
		engine.Search(a.Search, "name", "email", "company", "position", "notes"),
	).OrderBy(store.NewestFirst)

	rows, err := rt.Select(ctx, a.Page.Apply(q))
	if err != nil {
		return nil, err
	}
	return rt.Collection(rows), nil
}

func getContact(ctx context.Context, rt *engine.Runtime, a *contactIDArgs) (any, error) {
	return rt.Get(ctx, a.ID)
}

func createContact(ctx context.Context, rt *engine.Runtime, a *createContactArgs) (any, error) {
	if a.ContactType == nil {
		t := TypeProspect
		a.ContactType = &t
	}
	if a.Status == nil {
		s := StatusActive
		a.Status = &s
	}
	rec, err := engine.Patch(Schema, a)
	if err != nil {
		return nil, err
	}
	return rt.Insert(ctx, rec)
}

func updateContact(ctx context.Context, rt *engine.Runtime, a *updateContactArgs) (any, error) {
	rec, err := engine.Patch(Schema, a, "id")
	if err != nil {
		return nil, err
	}
	return rt.Update(ctx, a.ID, rec)
}

func deleteContact(ctx context.Context, rt *engine.Runtime, a *contactIDArgs) (any, error) {
	if err := rt.Delete(ctx, a.ID); err != nil {
		return nil, err
	}
	return map[string]any{"id": a.ID, "deleted": true}, nil
}

func statistics(ctx context.Context, rt *engine.Runtime, _ *struct{ engine.Caller }) (any, error) {
	return rt.Statistics(ctx)
}

func contactSummary(ctx context.Context, rt *engine.Runtime, args map[string]string) (string, error) {
	c, err := rt.Get(ctx, args["contact_id"])
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Summarize this contact in three sentences and suggest the next way to engage with them.\n\n")
	for _, f := range []string{"name", "position", "company", "contact_type", "status", "email", "phone", "city", "source", "notes"} {
		if v, ok := c.String(f); ok {
			fmt.Fprintf(&b, "%s: %s\n", f, v)
		}
	}
	return b.String(), nil
}
