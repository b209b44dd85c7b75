package entity

// Principal is the caller identity resolved once at the authentication boundary.
// It is either an EmployeePrincipal or a StaffPrincipal.
type Principal interface {
	principal()
}

// EmployeePrincipal is an employee signed in with their RFC.
type EmployeePrincipal struct {
	EmployeeID int
	RFC        string
}

// StaffPrincipal is an administrative user.
type StaffPrincipal struct {
	UserID   int
	Username string
	Role     string
}

func (EmployeePrincipal) principal() {}
func (StaffPrincipal) principal()    {}
