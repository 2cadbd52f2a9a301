package enums

// UserRole is the system-wide role carried in access tokens.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = []UserRole{UserRoleCustomer, UserRoleAdmin}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool { return member(userRoles, r) }

func ParseUserRole(value string) (UserRole, error) {
	return parse("user role", value, userRoles)
}
