package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
	"go.uber.org/zap"
)

// Deps: общие для всех доменов зависимости. Store создается один раз в точке сборки.
type Deps struct {
	Store      store.Store
	Authorizer Authorizer
	Blocker    Blocker
	Audit      audit.Recorder
	Fallback   domain.Identity
	Clock      Clock
	Metrics    *Metrics
	Logger     *zap.Logger
}

// Gateway: один доменный сервер: резолвер ресурсов и диспетчер инструментов.
type Gateway struct {
	Domain     *Domain
	Resolver   *Resolver
	Dispatcher *Dispatcher
	logger     *zap.Logger
}

func New(d *Domain, deps Deps) (*Gateway, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Authorizer == nil || deps.Audit == nil {
		return nil, errors.New("engine: store, authorizer and audit recorder are required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	logger := deps.Logger.Named(d.Scheme)

	tools := make(map[string]*Tool, len(d.Tools))
	for i := range d.Tools {
		tools[d.Tools[i].Name] = &d.Tools[i]
	}

	return &Gateway{
		Domain: d,
		Resolver: &Resolver{
			domain:  d,
			store:   deps.Store,
			clock:   deps.Clock,
			metrics: deps.Metrics,
			logger:  logger,
		},
		Dispatcher: &Dispatcher{
			domain:   d,
			tools:    tools,
			store:    deps.Store,
			authz:    deps.Authorizer,
			blocker:  deps.Blocker,
			audit:    deps.Audit,
			identity: IdentityResolver{Fallback: deps.Fallback},
			clock:    deps.Clock,
			metrics:  deps.Metrics,
			logger:   logger,
		},
		logger: logger,
	}, nil
}

// validate ловит ошибки описания домена при старте, а не на первом вызове.
func (d *Domain) validate() error {
	if d.Scheme == "" || d.Module == "" || d.Singular == "" || d.Plural == "" {
		return fmt.Errorf("engine: domain %q: scheme, module, singular and plural are required", d.Scheme)
	}
	if d.Schema.Collection == "" {
		return fmt.Errorf("engine: domain %q has no schema", d.Scheme)
	}

	views := map[string]bool{StatisticsView: true}
	for _, v := range d.Views {
		if views[v.Name] || v.Name == d.Singular {
			return fmt.Errorf("engine: domain %q: duplicate or reserved view %q", d.Scheme, v.Name)
		}
		if v.Query == nil {
			return fmt.Errorf("engine: domain %q: view %q has no query", d.Scheme, v.Name)
		}
		views[v.Name] = true
	}

	tools := map[string]bool{}
	for _, t := range d.Tools {
		if tools[t.Name] {
			return fmt.Errorf("engine: domain %q: duplicate tool %q", d.Scheme, t.Name)
		}
		if !t.Action.Valid() {
			return fmt.Errorf("engine: tool %q: invalid action %q", t.Name, t.Action)
		}
		tools[t.Name] = true
	}
	return nil
}
