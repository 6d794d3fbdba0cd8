package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
)

// maxAuditPage: потолок выборки журнала за один запрос консоли.
const maxAuditPage = 1000

// AuditLogProvider: чтение журнала действий агентов (audit.StoreSink).
type AuditLogProvider interface {
	List(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

type AuditService struct {
	repo AuditLogProvider
}

func NewAuditService(repo AuditLogProvider) *AuditService {
	return &AuditService{repo: repo}
}

// FetchLogs запрашивает журнал с фильтрацией; пустые поля фильтра не ограничивают выборку.
func (s *AuditService) FetchLogs(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	switch f.Result {
	case "", audit.ResultSuccess, audit.ResultError:
	default:
		return nil, fmt.Errorf("audit_service: unknown result %q (expected Success or Error)", f.Result)
	}
	if f.Limit > maxAuditPage {
		f.Limit = maxAuditPage
	}

	logs, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("audit_service: failed to fetch logs: %w", err)
	}
	return logs, nil
}

// ModuleSummary: итоги выборки журнала по одному модулю.
type ModuleSummary struct {
	Module  string `json:"module"`
	Success int    `json:"success"`
	Error   int    `json:"error"`
}

// Summarize сворачивает записи в итоги по модулям, модули по алфавиту.
func Summarize(entries []audit.Entry) []ModuleSummary {
	byModule := make(map[string]*ModuleSummary)
	for _, e := range entries {
		m, ok := byModule[e.Module]
		if !ok {
			m = &ModuleSummary{Module: e.Module}
			byModule[e.Module] = m
		}
		if e.Result == audit.ResultSuccess {
			m.Success++
		} else {
			m.Error++
		}
	}

	out := make([]ModuleSummary, 0, len(byModule))
	for _, m := range byModule {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}
