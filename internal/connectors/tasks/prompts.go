package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

func prompts() []engine.Prompt {
	return []engine.Prompt{
		{
			Name:        "daily_standup",
			Description: "Prepare a daily standup summary from open tasks",
			Arguments: []engine.PromptArgument{
				{Name: "assigned_to", Description: "Limit the standup to one assignee"},
			},
			Render: dailyStandup,
		},
		{
			Name:        "prioritize_tasks",
			Description: "Suggest an execution order for pending tasks",
			Arguments: []engine.PromptArgument{
				{Name: "project", Description: "Limit to one project"},
			},
			Render: prioritizeTasks,
		},
	}
}

func dailyStandup(ctx context.Context, rt *engine.Runtime, args map[string]string) (string, error) {
	q := store.Query{}.And(
		store.Where("status", store.OpNotIn, done),
		optional("assigned_to", args["assigned_to"]),
	).OrderBy(byPriority, store.Asc("due_date"))

	rows, err := rt.Select(ctx, q)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Prepare a daily standup")
	if who := args["assigned_to"]; who != "" {
		fmt.Fprintf(&b, " for %s", who)
	}
	b.WriteString(". Group the tasks into done yesterday, planned today and blockers. Call out anything overdue.\n\nOpen tasks:\n")
	writeTasks(&b, rows, rt)
	return b.String(), nil
}

func prioritizeTasks(ctx context.Context, rt *engine.Runtime, args map[string]string) (string, error) {
	q := store.Query{}.And(
		store.Where("status", store.OpIn, []string{StatusToDo, StatusInProgress}),
		optional("project", args["project"]),
	).OrderBy(byPriority, store.Asc("due_date"), store.NewestFirst)

	rows, err := rt.Select(ctx, q)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Suggest an execution order for the pending tasks below")
	if p := args["project"]; p != "" {
		fmt.Fprintf(&b, " in project %s", p)
	}
	b.WriteString(". Weigh priority against due date and explain each move.\n\nPending tasks:\n")
	writeTasks(&b, rows, rt)
	return b.String(), nil
}

func optional(field, value string) store.Condition {
	if value == "" {
		return nil
	}
	return store.Where(field, store.OpEq, value)
}

func writeTasks(b *strings.Builder, rows []store.Record, rt *engine.Runtime) {
	if len(rows) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for _, r := range rows {
		title, _ := r.String("title")
		status, _ := r.String("status")
		priority, _ := r.String("priority")
		fmt.Fprintf(b, "- [%s] %s (%s", priority, title, status)
		if due, ok := r.Time("due_date"); ok {
			fmt.Fprintf(b, ", due %s", due.Format("2006-01-02"))
			if due.Before(rt.Now) {
				b.WriteString(", OVERDUE")
			}
		}
		b.WriteString(")\n")
	}
}
