package engine

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
	"go.uber.org/zap"
)

// MIMEType всех документов ресурсов.
const MIMEType = "application/json"

// Resource: дескриптор ресурса для листинга.
type Resource struct {
	URI         string
	Name        string
	Description string
}

// Document: ответ на чтение ресурса.
type Document struct {
	Contents []Content `json:"contents"`
}

type Content struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Resolver: путь чтения: URI -> выборка или сводка -> JSON. Права здесь не проверяются.
type Resolver struct {
	domain  *Domain
	store   store.Store
	clock   Clock
	metrics *Metrics
	logger  *zap.Logger
}

// Resources: фиксированный список представлений домена, statistics последним.
func (r *Resolver) Resources() []Resource {
	out := make([]Resource, 0, len(r.domain.Views)+1)
	for _, v := range r.domain.Views {
		out = append(out, Resource{
			URI:         r.domain.Scheme + "://" + v.Name,
			Name:        v.Title,
			Description: v.Description,
		})
	}
	out = append(out, Resource{
		URI:         r.domain.Scheme + "://" + StatisticsView,
		Name:        capitalize(r.domain.Singular) + " Statistics",
		Description: "Aggregated " + r.domain.Singular + " statistics",
	})
	return out
}

// Template: ресурс одной записи по id.
func (r *Resolver) Template() Resource {
	return Resource{
		URI:         r.domain.Scheme + "://" + r.domain.Singular + "/{id}",
		Name:        capitalize(r.domain.Singular) + " by ID",
		Description: "A single " + r.domain.Singular + " looked up by its id",
	}
}

// Resolve читает ресурс. Ошибки (UnknownResource, NotFound, DataStore) уходят транспорту как есть.
func (r *Resolver) Resolve(ctx context.Context, uri string) (Document, error) {
	view, payload, err := r.resolve(ctx, uri)
	result := "success"
	if err != nil {
		result = strings.ToLower(string(domain.KindOf(err)))
	}
	r.metrics.ResourceReads.WithLabelValues(r.domain.Scheme, view, result).Inc()
	if err != nil {
		return Document{}, err
	}

	text, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return Document{}, domain.NewError(domain.KindInternal, "encode %s: %v", uri, err)
	}
	return Document{Contents: []Content{{URI: uri, MIMEType: MIMEType, Text: string(text)}}}, nil
}

func (r *Resolver) resolve(ctx context.Context, uri string) (string, any, error) {
	rest, ok := strings.CutPrefix(uri, r.domain.Scheme+"://")
	if !ok {
		return "unknown", nil, domain.UnknownResource(uri)
	}

	// «сейчас» фиксируется один раз на чтение
	rt := &Runtime{Domain: r.domain, Store: r.store, Now: r.clock(), Logger: r.logger}

	if raw, ok := strings.CutPrefix(rest, r.domain.Singular+"/"); ok {
		id, err := url.PathUnescape(raw)
		if err != nil || id == "" || strings.Contains(id, "/") {
			return "unknown", nil, domain.UnknownResource(uri)
		}
		rec, err := rt.Get(ctx, id)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return "record", nil, domain.NotFound(r.domain.Singular, id)
			}
			return "record", nil, err
		}
		return "record", rec, nil
	}

	if rest == StatisticsView {
		snap, err := rt.Statistics(ctx)
		return StatisticsView, snap, err
	}

	for _, v := range r.domain.Views {
		if v.Name != rest {
			continue
		}
		rows, err := rt.Select(ctx, v.Query(rt.Now))
		if err != nil {
			return v.Name, nil, err
		}
		return v.Name, rt.Collection(rows), nil
	}
	return "unknown", nil, domain.UnknownResource(uri)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
