package domain

import "strings"

type Role string

const (
	RoleGerenteProjeto Role = "GERENTE DE PROJETO"
	RoleAdjunto        Role = "ADJUNTO"
	RoleDiretor        Role = "DIRETOR"
	RoleAdmin          Role = "ADMIN"
)

var roleRank = map[Role]int{
	RoleGerenteProjeto: 1,
	RoleAdjunto:        2,
	RoleDiretor:        3,
	RoleAdmin:          4,
}

func AllRoles() []Role {
	return []Role{RoleAdmin, RoleDiretor, RoleAdjunto, RoleGerenteProjeto}
}

// ParseRole is case-insensitive and trims surrounding whitespace.
func ParseRole(value string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := roleRank[r]
	return r, ok
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// RoleAtLeast reports whether actual ranks at or above min. Unknown roles
// never qualify.
func RoleAtLeast(actual, min Role) bool {
	a, ok := roleRank[actual]
	if !ok {
		return false
	}
	m, ok := roleRank[min]
	if !ok {
		return false
	}
	return a >= m
}
