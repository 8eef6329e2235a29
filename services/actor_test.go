package services

import (
	"testing"

	"github.com/bimuz/bimuz-api/model"
)

func TestActorPolicies(t *testing.T) {
	tests := []struct {
		name              string
		actor             Actor
		canCancelStarted  bool
		canChangeGroup    bool
		canViewReports    bool
		canManagePayroll  bool
		canSettleInvoices bool
	}{
		{
			name:  "student",
			actor: StudentActor(7),
		},
		{
			name:              "administrator",
			actor:             EmployeeActor(model.RoleAdministrator),
			canCancelStarted:  true,
			canChangeGroup:    true,
			canViewReports:    true,
			canManagePayroll:  false,
			canSettleInvoices: false,
		},
		{
			name:             "mentor",
			actor:            EmployeeActor(model.RoleMentor),
			canCancelStarted: true,
			canChangeGroup:   true,
		},
		{
			name:              "director",
			actor:             EmployeeActor(model.RoleDirector),
			canViewReports:    true,
			canManagePayroll:  true,
			canSettleInvoices: true,
		},
		{
			name:              "accountant",
			actor:             EmployeeActor(model.RoleAccountant),
			canViewReports:    true,
			canManagePayroll:  true,
			canSettleInvoices: true,
		},
		{
			name:              "developer",
			actor:             EmployeeActor(model.RoleDeveloper),
			canCancelStarted:  true,
			canChangeGroup:    true,
			canViewReports:    true,
			canSettleInvoices: true,
		},
		{
			name:  "sales agent",
			actor: EmployeeActor(model.RoleSalesAgent),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.actor.CanCancelStartedBooking(); got != tt.canCancelStarted {
				t.Errorf("CanCancelStartedBooking() = %v, want %v", got, tt.canCancelStarted)
			}
			if got := tt.actor.CanChangeGroup(); got != tt.canChangeGroup {
				t.Errorf("CanChangeGroup() = %v, want %v", got, tt.canChangeGroup)
			}
			if got := tt.actor.CanViewReports(); got != tt.canViewReports {
				t.Errorf("CanViewReports() = %v, want %v", got, tt.canViewReports)
			}
			if got := tt.actor.CanManagePayroll(); got != tt.canManagePayroll {
				t.Errorf("CanManagePayroll() = %v, want %v", got, tt.canManagePayroll)
			}
			if got := tt.actor.CanSettleInvoices(); got != tt.canSettleInvoices {
				t.Errorf("CanSettleInvoices() = %v, want %v", got, tt.canSettleInvoices)
			}
		})
	}
}

func TestActorRoleIgnoredForStudents(t *testing.T) {
	// A student actor carrying a role string must never gain staff powers.
	a := Actor{Kind: ActorStudent, StudentID: 3, Role: model.RoleDirector}
	if a.CanManagePayroll() || a.CanChangeGroup() {
		t.Error("student actor must not pass employee role checks")
	}
}
