package domain

import "fmt"

// Action: фиксированная таксономия действий над модулем.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Valid проверяет, что действие входит в таксономию.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return true
	}
	return false
}

// ParseAction превращает строку из CLI/конфига в Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q (expected view, create, edit or delete)", s)
	}
	return a, nil
}

// PermissionFlags: права агента на один модуль.
// nil означает «значение отсутствует в хранилище» и трактуется как запрет.
type PermissionFlags struct {
	View   *bool `json:"view,omitempty" yaml:"view,omitempty"`
	Create *bool `json:"create,omitempty" yaml:"create,omitempty"`
	Edit   *bool `json:"edit,omitempty" yaml:"edit,omitempty"`
	Delete *bool `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// Allows: интерпретатор флагов. Разрешает только явный true (Default Deny).
func (f *PermissionFlags) Allows(a Action) bool {
	if f == nil {
		return false
	}

	var flag *bool
	switch a {
	case ActionView:
		flag = f.View
	case ActionCreate:
		flag = f.Create
	case ActionEdit:
		flag = f.Edit
	case ActionDelete:
		flag = f.Delete
	}
	return flag != nil && *flag
}

// Set выставляет флаг для действия. Используется консолью при выдаче прав.
func (f *PermissionFlags) Set(a Action, value bool) {
	v := value
	switch a {
	case ActionView:
		f.View = &v
	case ActionCreate:
		f.Create = &v
	case ActionEdit:
		f.Edit = &v
	case ActionDelete:
		f.Delete = &v
	}
}

// PermissionMatrix: права агента: имя модуля ("Tasks", "Leads", ...) -> флаги.
type PermissionMatrix map[string]PermissionFlags

// Allows возвращает false, если модуля нет в матрице (Zero Trust).
func (m PermissionMatrix) Allows(module string, a Action) bool {
	flags, ok := m[module]
	if !ok {
		return false
	}
	return flags.Allows(a)
}
