package services

import "github.com/bimuz/bimuz-api/model"

// ActorKind discriminates who is performing an operation.
type ActorKind int

const (
	ActorStudent ActorKind = iota
	ActorEmployee
)

// Actor identifies the caller of a privileged operation: either a student
// acting on their own booking or an employee with a role.
type Actor struct {
	Kind      ActorKind
	StudentID uint   // set when Kind == ActorStudent
	Role      string // set when Kind == ActorEmployee
}

// StudentActor builds an actor for a student acting on their own behalf.
func StudentActor(studentID uint) Actor {
	return Actor{Kind: ActorStudent, StudentID: studentID}
}

// EmployeeActor builds an actor for a staff member.
func EmployeeActor(role string) Actor {
	return Actor{Kind: ActorEmployee, Role: role}
}

// hasRole reports whether the actor is an employee holding one of the roles.
func (a Actor) hasRole(roles ...string) bool {
	if a.Kind != ActorEmployee {
		return false
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// CanCancelStartedBooking reports whether the actor may cancel a booking in
// a group that has already started. Students may self-cancel only before the
// start date; after that the operation is staff-only.
func (a Actor) CanCancelStartedBooking() bool {
	return a.hasRole(model.RoleAdministrator, model.RoleMentor, model.RoleDeveloper)
}

// CanChangeGroup reports whether the actor may move a student between groups.
func (a Actor) CanChangeGroup() bool {
	return a.hasRole(model.RoleAdministrator, model.RoleMentor, model.RoleDeveloper)
}

// CanViewReports reports whether the actor may read monthly settlement data.
func (a Actor) CanViewReports() bool {
	return a.hasRole(model.RoleDeveloper, model.RoleDirector, model.RoleAdministrator, model.RoleAccountant)
}

// CanManagePayroll reports whether the actor may upsert salaries and mark
// payouts paid.
func (a Actor) CanManagePayroll() bool {
	return a.hasRole(model.RoleDirector, model.RoleAccountant)
}

// CanSettleInvoices reports whether the actor may batch-mark invoices paid.
func (a Actor) CanSettleInvoices() bool {
	return a.hasRole(model.RoleAccountant, model.RoleDirector, model.RoleDeveloper)
}
