// Package authz checks caller roles before a use case runs. Authentication
// happens upstream; roles arrive here as plain data.
package authz

import (
	"errors"
	"fmt"
	"strings"
)

// Roles known to the platform.
const (
	RoleAdmin      = "ADMIN"
	RoleSegreteria = "SEGRETERIA"
	RoleIstruttore = "ISTRUTTORE"
	RoleAtleta     = "ATLETA"
)

var ErrForbidden = errors.New("forbidden")

// Require returns nil when roles holds at least one of required, and an
// error matching ErrForbidden otherwise. Comparison ignores case and
// surrounding spaces.
func Require(roles []string, required ...string) error {
	for _, want := range required {
		for _, have := range roles {
			if strings.EqualFold(strings.TrimSpace(have), want) {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: one of [%s] is required", ErrForbidden, strings.Join(required, ", "))
}

// ParseRoles splits a comma separated header value, dropping empty items.
func ParseRoles(header string) []string {
	var roles []string
	for _, r := range strings.Split(header, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, strings.ToUpper(r))
		}
	}
	return roles
}
