package permissions

import "github.com/cadencehr/cadence/internal/authz"

// seedGrants is the built-in baseline written at tenant provisioning.
// Tenants overwrite cells through the matrix editor afterwards; rows are
// only ever overwritten, never deleted. super_admin has no rows because
// it short-circuits every check.
var seedGrants = map[authz.Role]map[authz.Module][]authz.Action{
	authz.RoleEmployee: {
		authz.ModuleDashboard:   {authz.ActionRead},
		authz.ModuleEmployees:   {authz.ActionRead},
		authz.ModuleLeave:       {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate},
		authz.ModuleAttendance:  {authz.ActionRead, authz.ActionCreate},
		authz.ModulePayroll:     {authz.ActionRead},
		authz.ModulePerformance: {authz.ActionRead, authz.ActionUpdate},
	},
	authz.RoleManager: {
		authz.ModuleDashboard:   {authz.ActionRead, authz.ActionExport},
		authz.ModuleEmployees:   {authz.ActionRead},
		authz.ModuleLeave:       {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionApprove},
		authz.ModuleAttendance:  {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionApprove},
		authz.ModulePayroll:     {authz.ActionRead},
		authz.ModuleRecruitment: {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate},
		authz.ModulePerformance: {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionApprove},
		authz.ModuleReports:     {authz.ActionRead, authz.ActionExport},
	},
	authz.RoleHRManager: {
		authz.ModuleDashboard:   {authz.ActionRead, authz.ActionExport},
		authz.ModuleEmployees:   {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionExport},
		authz.ModuleLeave:       {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionApprove, authz.ActionExport},
		authz.ModuleAttendance:  {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionApprove, authz.ActionExport},
		authz.ModulePayroll:     {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionApprove, authz.ActionExport},
		authz.ModuleRecruitment: {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionApprove},
		authz.ModulePerformance: {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionApprove, authz.ActionExport},
		authz.ModuleReports:     {authz.ActionRead, authz.ActionExport},
	},
	authz.RoleCompanyAdmin: {
		authz.ModuleDashboard:   {authz.ActionRead, authz.ActionExport},
		authz.ModuleEmployees:   {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionExport},
		authz.ModuleLeave:       {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionApprove, authz.ActionExport},
		authz.ModuleAttendance:  {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionApprove, authz.ActionExport},
		authz.ModulePayroll:     {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionApprove, authz.ActionExport},
		authz.ModuleRecruitment: {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionApprove},
		authz.ModulePerformance: {authz.ActionRead, authz.ActionCreate, authz.ActionUpdate, authz.ActionDelete, authz.ActionApprove, authz.ActionExport},
		authz.ModuleReports:     {authz.ActionRead, authz.ActionExport},
		authz.ModuleBilling:     {authz.ActionRead, authz.ActionUpdate, authz.ActionExport},
		authz.ModuleSettings:    {authz.ActionRead, authz.ActionUpdate},
	},
}

// SeedDefaults expands the built-in grant table into rows for one tenant.
// Every catalog cell gets a row; cells missing from seedGrants are false.
func SeedDefaults() []RoleDefault {
	catalog := authz.DefaultCatalog()
	var rows []RoleDefault
	for _, role := range authz.EditableRoles() {
		granted := seedGrants[role]
		for _, module := range authz.Modules() {
			allowed := make(map[authz.Action]struct{}, len(granted[module]))
			for _, a := range granted[module] {
				allowed[a] = struct{}{}
			}
			for _, action := range catalog.ActionsFor(module) {
				_, ok := allowed[action]
				rows = append(rows, RoleDefault{Role: role, Module: module, Action: action, Granted: ok})
			}
		}
	}
	return rows
}
