package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/infra"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

// brokenJournal: таблица журнала отвергает вставки, бизнес-таблицы работают.
type brokenJournal struct {
	store.Store
}

func (brokenJournal) Select(context.Context, string, store.Query) ([]store.Record, error) {
	return []store.Record{{"id": "T1"}}, nil
}

func (brokenJournal) Insert(_ context.Context, collection string, v store.Record) (store.Record, error) {
	if collection == audit.Collection {
		return nil, domain.DataStore("insert "+collection, errors.New("disk full"))
	}
	return v, nil
}

func TestReliableStores_AuditFailuresDoNotTripDataBreaker(t *testing.T) {
	var opened []string
	data, journal := newReliableStores(brokenJournal{}, infra.EngineConfig{
		CBMaxFailures: 5,
		CBTimeout:     time.Minute,
		RetryAttempts: 1,
	}, func(name string, _, _ gobreaker.State) {
		opened = append(opened, name)
	})

	entries := make([]audit.Entry, 12)
	for i := range entries {
		entries[i] = audit.Entry{AgentID: "bot", Module: "Tasks", Action: "create_task", Result: audit.ResultSuccess}
	}
	err := audit.NewStoreSink(journal).WriteBatch(context.Background(), entries)
	require.Error(t, err)
	assert.Equal(t, []string{"audit-store"}, opened)

	rows, err := data.Select(context.Background(), "tasks", store.Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = data.Insert(context.Background(), "tasks", store.Record{"title": "still works"})
	assert.NoError(t, err)
}
