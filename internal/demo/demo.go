// Package demo defines the Demo Management domain: demos, their membership,
// the validation rules applied to incoming payloads, and the Service that
// enforces the demo lifecycle on top of a Repository.
package demo

import (
	"context"
	"time"
)

// Status is the lifecycle state of a demo.
type Status string

const (
	StatusCreated  Status = "created"
	StatusUpdating Status = "updating"
	StatusUpdated  Status = "updated"
	StatusDeleting Status = "deleting"
	StatusDeleted  Status = "deleted"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusUpdating, StatusUpdated, StatusDeleting, StatusDeleted:
		return true
	}
	return false
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusCreated, StatusUpdating, StatusUpdated, StatusDeleting, StatusDeleted}
}

// Role is a member's role within a demo.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Demo is the managed resource. A demo whose Status is StatusDeleted has been
// soft-deleted and is hidden from every read path.
type Demo struct {
	DemoID           string     `json:"demo_id"`
	Name             string     `json:"name"`
	Logo             *string    `json:"logo"`
	Status           Status     `json:"status"`
	IsActive         bool       `json:"is_active"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	ErrorUserMessage *string    `json:"error_user_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at"`
	CreatedBy        string     `json:"created_by"`
	UpdatedBy        *string    `json:"updated_by,omitempty"`
	DeletedBy        *string    `json:"deleted_by"`
}

// Deleted reports whether the demo has been soft-deleted.
func (d Demo) Deleted() bool {
	return d.Status == StatusDeleted
}

// Member links a user to a demo.
type Member struct {
	DemoID    string    `json:"demo_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

// ListQuery selects a page of demos.
type ListQuery struct {
	Offset  int
	Limit   int
	OrderBy string
	Search  string
	Filters []Filter
}

// Page is one page of demos plus the total number of matching demos.
type Page struct {
	Items []Demo
	Total int
}

// MemberQuery selects a page of members of a single demo.
type MemberQuery struct {
	Offset  int
	Limit   int
	OrderBy string
}

// MemberPage is one page of members plus the total member count.
type MemberPage struct {
	Items []Member
	Total int
}

// Repository persists demos and memberships. GetDemo returns soft-deleted
// demos as stored; hiding them is the Service's job. ListDemos never returns
// soft-deleted demos.
type Repository interface {
	CreateDemo(ctx context.Context, d Demo) error
	GetDemo(ctx context.Context, id string) (Demo, error)
	UpdateDemo(ctx context.Context, d Demo) error
	ListDemos(ctx context.Context, q ListQuery) (Page, error)
	AddMember(ctx context.Context, m Member) error
	ListMembers(ctx context.Context, demoID string, q MemberQuery) (MemberPage, error)
}

// UserDirectory answers whether a user exists in the user-management service.
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}
