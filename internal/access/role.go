// Package access decides whether a role may perform an operation guarded by
// another role. It does not authenticate anyone: the requester's role is
// taken as already verified by the caller.
package access

import (
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	Customer   Role = "CUSTOMER"
	Manager    Role = "MANAGER"
	Admin      Role = "ADMIN"
	SuperAdmin Role = "SUPER_ADMIN"
)

var ErrUnknownRole = errors.New("unknown role")

var levels = map[Role]int{
	Customer:   0,
	Manager:    1,
	Admin:      2,
	SuperAdmin: 3,
}

// Level returns the ordinal of r in the hierarchy and false when r is not a
// known role.
func (r Role) Level() (int, bool) {
	l, ok := levels[r]
	return l, ok
}

func (r Role) Valid() bool {
	_, ok := levels[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// HasAccess reports whether requester is at or above required. Unknown roles
// on either side deny.
func HasAccess(requester, required Role) bool {
	have, ok := requester.Level()
	if !ok {
		return false
	}
	need, ok := required.Level()
	if !ok {
		return false
	}
	return have >= need
}

// ParseRole accepts role names in any case, with '-' or ' ' in place of '_'.
func ParseRole(s string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	r := Role(normalized)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// All returns the roles from lowest to highest.
func All() []Role {
	return []Role{Customer, Manager, Admin, SuperAdmin}
}
