package models

import "strings"

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Account is the stored account record. Only AuthorSummary leaves this core.
type Account struct {
	ID         int64   `json:"id"`
	Handle     string  `json:"username"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Avatar     string  `json:"avatar"`
	Reputation float64 `json:"rating"`
	Role       Role    `json:"role"`
}

func (a Account) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

func (a Account) Summary() AuthorSummary {
	return AuthorSummary{
		ID:         a.ID,
		Name:       a.DisplayName(),
		Handle:     a.Handle,
		Avatar:     a.Avatar,
		Reputation: a.Reputation,
	}
}

func (a Account) Identity() Identity {
	return Identity{
		ID:     a.ID,
		Handle: a.Handle,
		Role:   a.Role,
		Name:   a.DisplayName(),
		Avatar: a.Avatar,
	}
}

type AuthorSummary struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Handle     string  `json:"username"`
	Avatar     string  `json:"avatar"`
	Reputation float64 `json:"rating"`
}

// Identity is a verified account as returned by the authentication collaborator.
type Identity struct {
	ID     int64  `json:"id"`
	Handle string `json:"username"`
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

func (i Identity) Authenticated() bool {
	return i.ID > 0
}

func (i Identity) Elevated() bool {
	return i.Role == RoleAdmin || i.Role == RoleModerator
}
