package acl

// AllPermissionsName is the text form of AllPermissions.
const AllPermissionsName = "ALL_PERMISSIONS"

// Permission is either a single named permission or the all-permissions sentinel.
type Permission struct {
	name string
	all  bool
}

// Named returns a permission matching exactly one action.
func Named(action string) Permission {
	return Permission{name: action}
}

// AllPermissions matches every action.
func AllPermissions() Permission {
	return Permission{all: true}
}

// IsAll reports whether p is the all-permissions sentinel.
func (p Permission) IsAll() bool { return p.all }

// Allows reports whether p covers action.
func (p Permission) Allows(action string) bool {
	if p.all {
		return true
	}
	return p.name != "" && p.name == action
}

func (p Permission) String() string {
	if p.all {
		return AllPermissionsName
	}
	return p.name
}

// MarshalText renders the permission for JSON output.
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(text []byte) error {
	if string(text) == AllPermissionsName {
		*p = AllPermissions()
		return nil
	}
	*p = Named(string(text))
	return nil
}

// ACE is one allow entry of an access-control list.
type ACE struct {
	Action     string     `json:"action"`
	Principal  string     `json:"principal"`
	Permission Permission `json:"permission"`
}

// Permits reports whether the entry grants action to any of principals.
func (e ACE) Permits(principals Principals, action string) bool {
	return principals.Has(e.Principal) && e.Permission.Allows(action)
}
