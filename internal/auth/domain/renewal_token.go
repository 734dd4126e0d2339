package domain

import "time"

type DeviceInfo struct {
	UserAgent string
	IP        string
	Name      string
}

func (d DeviceInfo) IsEmpty() bool {
	return d.UserAgent == "" && d.IP == "" && d.Name == ""
}

// RenewalToken is a server-tracked credential. Token holds the raw value
// only right after issue; storage keeps TokenHash.
type RenewalToken struct {
	ID         string
	Token      string
	TokenHash  string
	SubjectID  string
	ExpiresAt  time.Time
	Revoked    bool
	Device     DeviceInfo
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func IsRenewalTokenValid(rec RenewalToken, now time.Time) bool {
	return !rec.Revoked && rec.ExpiresAt.After(now)
}

func IsRenewalTokenExpired(rec RenewalToken, now time.Time) bool {
	return !rec.ExpiresAt.After(now)
}
