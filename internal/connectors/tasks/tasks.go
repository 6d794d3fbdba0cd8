// Package tasks описывает домен задач: схема таблицы tasks, представления, статистика, инструменты и промпты.
package tasks

import (
	"time"

	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/stats"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

const (
	Module     = "Tasks"
	Collection = "tasks"
)

// Статусы в порядке жизненного цикла, первый служит значением по умолчанию.
const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusInReview   = "In Review"
	StatusCompleted  = "Completed"
	StatusCancelled  = "Cancelled"
)

var Statuses = []string{StatusToDo, StatusInProgress, StatusInReview, StatusCompleted, StatusCancelled}

const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
	PriorityUrgent = "Urgent"
)

// Priorities упорядочены по возрастанию ранга.
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

const DefaultPriority = PriorityMedium

var done = []string{StatusCompleted, StatusCancelled}

var Schema = store.NewSchema(Collection,
	store.Column{Name: "title", Type: store.TypeText, NotNull: true},
	store.Column{Name: "description", Type: store.TypeText},
	store.Column{Name: "status", Type: store.TypeText},
	store.Column{Name: "priority", Type: store.TypeText},
	store.Column{Name: "due_date", Type: store.TypeTimestamp},
	store.Column{Name: "assigned_to", Type: store.TypeText},
	store.Column{Name: "project", Type: store.TypeText},
	store.Column{Name: "category", Type: store.TypeText},
	store.Column{Name: "estimated_hours", Type: store.TypeFloat},
).WithIndex("status").WithIndex("due_date")

var byPriority = store.Order{Field: "priority", Desc: true, Rank: Priorities}

// Domain собирает описание домена задач для engine.New.
func Domain() *engine.Domain {
	return &engine.Domain{
		Scheme:        "tasks",
		Module:        Module,
		Singular:      "task",
		Plural:        "tasks",
		ServerName:    "CRM Tasks MCP Server",
		ServerVersion: "1.0.0",
		Instructions:  "Tasks of the CRM. Read tasks:// resources freely; mutations go through tools and require Tasks permissions.",
		Schema:        Schema,
		Views:         views(),
		Stats:         statistics(),
		Tools:         tools(),
		Prompts:       prompts(),
	}
}

func views() []engine.View {
	statusView := func(name, title, status string) engine.View {
		return engine.View{
			Name:        name,
			Title:       title,
			Description: "Tasks with status " + status,
			Query: func(time.Time) store.Query {
				return store.Query{}.And(store.Where("status", store.OpEq, status)).OrderBy(store.NewestFirst)
			},
		}
	}

	return []engine.View{
		{
			Name:        "all",
			Title:       "All Tasks",
			Description: "Every task, newest first",
			Query: func(time.Time) store.Query {
				return store.Query{}.OrderBy(store.NewestFirst)
			},
		},
		{
			Name:        "pending",
			Title:       "Pending Tasks",
			Description: "To Do and In Progress tasks by priority, then due date",
			Query: func(time.Time) store.Query {
				return store.Query{}.
					And(store.Where("status", store.OpIn, []string{StatusToDo, StatusInProgress})).
					OrderBy(byPriority, store.Asc("due_date"), store.NewestFirst)
			},
		},
		statusView("in-progress", "In Progress Tasks", StatusInProgress),
		statusView("completed", "Completed Tasks", StatusCompleted),
		{
			Name:        "overdue",
			Title:       "Overdue Tasks",
			Description: "Open tasks whose due date has passed",
			Query: func(now time.Time) store.Query {
				return store.Query{}.
					And(
						store.Where("due_date", store.OpLt, now),
						store.Where("status", store.OpNotIn, done),
					).
					OrderBy(store.Asc("due_date"))
			},
		},
		{
			Name:        "high-priority",
			Title:       "High Priority Tasks",
			Description: "High and Urgent tasks",
			Query: func(time.Time) store.Query {
				return store.Query{}.
					And(store.Where("priority", store.OpIn, []string{PriorityHigh, PriorityUrgent})).
					OrderBy(byPriority, store.Asc("due_date"))
			},
		},
		engine.RecentView("Recent Tasks", "Tasks created in the last 30 days"),
	}
}

func statistics() stats.Spec {
	const day = 24 * time.Hour
	notDone := map[string][]string{"status": done}

	return stats.Spec{
		Dimensions: []stats.Dimension{
			{Name: "by_status", Field: "status", Labels: Statuses},
			{Name: "by_priority", Field: "priority", Labels: Priorities},
			{Name: "by_project", Field: "project"},
			{Name: "by_assignee", Field: "assigned_to"},
		},
		Windows: []stats.Window{
			{Name: "overdue", Field: "due_date", OpenFrom: true, Exclude: notDone},
			{Name: "due_this_week", Field: "due_date", To: 7 * day, Exclude: notDone},
			{Name: "created_last_7_days", Field: store.ColumnCreatedAt, From: -7 * day},
			{Name: "created_last_30_days", Field: store.ColumnCreatedAt, From: -30 * day},
		},
		Averages: []stats.Average{
			{Name: "average_estimated_hours", Field: "estimated_hours"},
		},
	}
}
