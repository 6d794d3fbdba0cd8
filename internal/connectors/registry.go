// Package connectors: реестр доменов шлюза.
package connectors

import (
	"fmt"
	"sort"

	"github.com/xela07ax/spaceai-crm-gateway/internal/connectors/contacts"
	"github.com/xela07ax/spaceai-crm-gateway/internal/connectors/leads"
	"github.com/xela07ax/spaceai-crm-gateway/internal/connectors/tasks"
	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

var registry = map[string]func() *engine.Domain{
	"tasks":    tasks.Domain,
	"leads":    leads.Domain,
	"contacts": contacts.Domain,
}

// Names: все известные схемы доменов.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Domains строит описания по списку из конфига. Пустой список означает все домены.
func Domains(names []string) ([]*engine.Domain, error) {
	if len(names) == 0 {
		names = Names()
	}
	seen := make(map[string]bool, len(names))
	out := make([]*engine.Domain, 0, len(names))
	for _, name := range names {
		build, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("connectors: unknown domain %q (known: %v)", name, Names())
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, build())
	}
	return out, nil
}

// Modules: имена модулей для матрицы прав.
func Modules(domains []*engine.Domain) []string {
	out := make([]string, len(domains))
	for i, d := range domains {
		out[i] = d.Module
	}
	return out
}

// Schemas: схемы коллекций доменов для store.Open и миграций.
func Schemas(domains []*engine.Domain) []store.Schema {
	out := make([]store.Schema, len(domains))
	for i, d := range domains {
		out[i] = d.Schema
	}
	return out
}
