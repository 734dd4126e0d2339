package domain

import "time"

type ID string

type User struct {
	ID           ID
	Email        string
	Name         string
	PasswordHash string
	Role         string
	OrgUnit      string
	Regions      []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
