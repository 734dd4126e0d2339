package domain

import "time"

// Claims is the payload carried by a claim token. It is never persisted.
type Claims struct {
	Subject   string
	Role      Role
	OrgUnit   string
	Regions   []string
	Kind      string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
