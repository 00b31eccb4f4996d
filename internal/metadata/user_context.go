package metadata

import "slices"

// RoleAdmin may edit reader configurations, reload metadata and manage files.
const RoleAdmin = "admin"

// UserContext is the user behind an authenticated admin request. Reader
// pages are public and carry none.
type UserContext struct {
	ID    string   `json:"id"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles"`
}

// CanManage reports whether the user may change reader metadata and files.
func (u *UserContext) CanManage() bool {
	return u != nil && slices.Contains(u.Roles, RoleAdmin)
}
