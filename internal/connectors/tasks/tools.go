package tasks

import (
	"context"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/engine"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

type getTasksArgs struct {
	engine.Caller
	engine.Page
	Status     *string `json:"status,omitempty" jsonschema:"description=Filter by status,enum=To Do,enum=In Progress,enum=In Review,enum=Completed,enum=Cancelled"`
	Priority   *string `json:"priority,omitempty" jsonschema:"description=Filter by priority,enum=Low,enum=Medium,enum=High,enum=Urgent"`
	AssignedTo *string `json:"assigned_to,omitempty" jsonschema:"description=Filter by assignee"`
	Project    *string `json:"project,omitempty" jsonschema:"description=Filter by project"`
	Category   *string `json:"category,omitempty" jsonschema:"description=Filter by category"`
	DueBefore  *string `json:"due_before,omitempty" jsonschema:"description=Only tasks due before this date (YYYY-MM-DD)"`
	DueAfter   *string `json:"due_after,omitempty" jsonschema:"description=Only tasks due after this date (YYYY-MM-DD)"`
	Search     *string `json:"search,omitempty" jsonschema:"description=Case-insensitive text search in title and description"`
}

type taskIDArgs struct {
	engine.Caller
	ID string `json:"id" jsonschema:"required,description=Task id"`
}

type createTaskArgs struct {
	engine.Caller
	Title          string   `json:"title" jsonschema:"required,description=Task title"`
	Description    *string  `json:"description,omitempty" jsonschema:"description=Task description"`
	Status         *string  `json:"status,omitempty" jsonschema:"description=Initial status (default To Do),enum=To Do,enum=In Progress,enum=In Review,enum=Completed,enum=Cancelled"`
	Priority       *string  `json:"priority,omitempty" jsonschema:"description=Priority (default Medium),enum=Low,enum=Medium,enum=High,enum=Urgent"`
	DueDate        *string  `json:"due_date,omitempty" jsonschema:"description=Due date (YYYY-MM-DD or RFC3339)"`
	AssignedTo     *string  `json:"assigned_to,omitempty" jsonschema:"description=Assignee"`
	Project        *string  `json:"project,omitempty" jsonschema:"description=Project name"`
	Category       *string  `json:"category,omitempty" jsonschema:"description=Category"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty" jsonschema:"description=Estimated effort in hours,minimum=0"`
}

type updateTaskArgs struct {
	engine.Caller
	ID             string   `json:"id" jsonschema:"required,description=Task id"`
	Title          *string  `json:"title,omitempty" jsonschema:"description=Task title"`
	Description    *string  `json:"description,omitempty" jsonschema:"description=Task description"`
	Status         *string  `json:"status,omitempty" jsonschema:"enum=To Do,enum=In Progress,enum=In Review,enum=Completed,enum=Cancelled"`
	Priority       *string  `json:"priority,omitempty" jsonschema:"enum=Low,enum=Medium,enum=High,enum=Urgent"`
	DueDate        *string  `json:"due_date,omitempty" jsonschema:"description=Due date (YYYY-MM-DD or RFC3339)"`
	AssignedTo     *string  `json:"assigned_to,omitempty"`
	Project        *string  `json:"project,omitempty"`
	Category       *string  `json:"category,omitempty"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty" jsonschema:"minimum=0"`
}

type statisticsArgs struct {
	engine.Caller
}

func tools() []engine.Tool {
	return []engine.Tool{
		engine.NewTool("get_tasks", "List tasks with optional filters, text search and pagination. Newest first.", domain.ActionView, getTasks),
		engine.NewTool("get_task", "Get a single task by id", domain.ActionView, getTask),
		engine.NewTool("create_task", "Create a task. Status defaults to To Do and priority to Medium.", domain.ActionCreate, createTask),
		engine.NewTool("update_task", "Update a task. Only the passed fields change.", domain.ActionEdit, updateTask),
		engine.NewTool("delete_task", "Delete a task by id", domain.ActionDelete, deleteTask),
		engine.NewTool("get_task_statistics", "Aggregated task statistics", domain.ActionView, getStatistics),
	}
}

func getTasks(ctx context.Context, rt *engine.Runtime, a *getTasksArgs) (any, error) {
	before, err := engine.TimeBound("due_date", store.OpLt, a.DueBefore)
	if err != nil {
		return nil, err
	}
	after, err := engine.TimeBound("due_date", store.OpGt, a.DueAfter)
	if err != nil {
		return nil, err
	}

	q := store.Query{}.And(
		engine.Eq("status", a.Status),
		engine.Eq("priority", a.Priority),
		engine.Eq("assigned_to", a.AssignedTo),
		engine.Eq("project", a.Project),
		engine.Eq("category", a.Category),
		before,
		after,
		engine.Search(a.Search, "title", "description"),
	).OrderBy(store.NewestFirst)

	rows, err := rt.Select(ctx, a.Page.Apply(q))
	if err != nil {
		return nil, err
	}
	return rt.Collection(rows), nil
}

func getTask(ctx context.Context, rt *engine.Runtime, a *taskIDArgs) (any, error) {
	return rt.Get(ctx, a.ID)
}

func createTask(ctx context.Context, rt *engine.Runtime, a *createTaskArgs) (any, error) {
	rec, err := engine.Patch(Schema, a)
	if err != nil {
		return nil, err
	}
	if _, ok := rec["status"]; !ok {
		rec["status"] = StatusToDo
	}
	if _, ok := rec["priority"]; !ok {
		rec["priority"] = DefaultPriority
	}
	return rt.Insert(ctx, rec)
}

func updateTask(ctx context.Context, rt *engine.Runtime, a *updateTaskArgs) (any, error) {
	rec, err := engine.Patch(Schema, a, "id")
	if err != nil {
		return nil, err
	}
	return rt.Update(ctx, a.ID, rec)
}

func deleteTask(ctx context.Context, rt *engine.Runtime, a *taskIDArgs) (any, error) {
	if err := rt.Delete(ctx, a.ID); err != nil {
		return nil, err
	}
	return map[string]any{"id": a.ID, "deleted": true}, nil
}

func getStatistics(ctx context.Context, rt *engine.Runtime, _ *statisticsArgs) (any, error) {
	return rt.Statistics(ctx)
}
