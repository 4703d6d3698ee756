package utils

import "slices"

// HasAnyRole reports whether at least one of memberRoles is in allowed.
func HasAnyRole(memberRoles []string, allowed []string) bool {
	return slices.ContainsFunc(memberRoles, func(role string) bool {
		return slices.Contains(allowed, role)
	})
}
