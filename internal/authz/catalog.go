package authz

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Module identifies a feature area subject to entitlement and permission.
type Module string

const (
	ModuleDashboard   Module = "dashboard"
	ModuleEmployees   Module = "employees"
	ModuleLeave       Module = "leave"
	ModuleAttendance  Module = "attendance"
	ModulePayroll     Module = "payroll"
	ModuleRecruitment Module = "recruitment"
	ModulePerformance Module = "performance"
	ModuleReports     Module = "reports"
	ModuleBilling     Module = "billing"
	ModuleSettings    Module = "settings"
)

// Action is an operation category evaluated per module.
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionExport  Action = "export"
)

var knownModules = map[Module]struct{}{
	ModuleDashboard:   {},
	ModuleEmployees:   {},
	ModuleLeave:       {},
	ModuleAttendance:  {},
	ModulePayroll:     {},
	ModuleRecruitment: {},
	ModulePerformance: {},
	ModuleReports:     {},
	ModuleBilling:     {},
	ModuleSettings:    {},
}

var knownActions = map[Action]struct{}{
	ActionRead:    {},
	ActionCreate:  {},
	ActionUpdate:  {},
	ActionDelete:  {},
	ActionApprove: {},
	ActionExport:  {},
}

// ParseModule validates a raw module identifier.
func ParseModule(raw string) (Module, error) {
	m := Module(raw)
	if _, ok := knownModules[m]; !ok {
		return "", fmt.Errorf("authz: unknown module %q", raw)
	}
	return m, nil
}

// ParseAction validates a raw action identifier.
func ParseAction(raw string) (Action, error) {
	a := Action(raw)
	if _, ok := knownActions[a]; !ok {
		return "", fmt.Errorf("authz: unknown action %q", raw)
	}
	return a, nil
}

// Modules lists the full module catalog in display order.
func Modules() []Module {
	return []Module{
		ModuleDashboard,
		ModuleEmployees,
		ModuleLeave,
		ModuleAttendance,
		ModulePayroll,
		ModuleRecruitment,
		ModulePerformance,
		ModuleReports,
		ModuleBilling,
		ModuleSettings,
	}
}

// Actions lists the full action catalog.
func Actions() []Action {
	return []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionExport}
}

// Catalog maps each module to the actions it supports. The effective
// catalog for a tenant is sourced from its stored role defaults so that
// company-specific action sets are respected; DefaultCatalog is the
// fallback when a tenant has no stored rows yet.
type Catalog map[Module][]Action

// DefaultCatalog returns the built-in module/action support table.
func DefaultCatalog() Catalog {
	return Catalog{
		ModuleDashboard:   {ActionRead, ActionExport},
		ModuleEmployees:   {ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionExport},
		ModuleLeave:       {ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionExport},
		ModuleAttendance:  {ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionExport},
		ModulePayroll:     {ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionExport},
		ModuleRecruitment: {ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove},
		ModulePerformance: {ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionExport},
		ModuleReports:     {ActionRead, ActionExport},
		ModuleBilling:     {ActionRead, ActionUpdate, ActionExport},
		ModuleSettings:    {ActionRead, ActionUpdate},
	}
}

// ActionsFor returns the supported actions for a module. A nil or empty
// catalog falls back to the built-in table; a populated catalog is
// authoritative, so a module without rows supports nothing.
func (c Catalog) ActionsFor(m Module) []Action {
	if len(c) == 0 {
		return DefaultCatalog()[m]
	}
	actions := c[m]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Supports reports whether the module/action pair exists in the catalog.
func (c Catalog) Supports(m Module, a Action) bool {
	for _, known := range c.ActionsFor(m) {
		if known == a {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.English)

// ModuleLabel renders a module identifier as a human display label.
func ModuleLabel(m Module) string {
	return titleCaser.String(strings.ReplaceAll(string(m), "_", " "))
}

// ActionLabel renders an action identifier as a human display label.
func ActionLabel(a Action) string {
	return titleCaser.String(string(a))
}
