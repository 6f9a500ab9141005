// Package model defines domain entities for the application.
package model

import "time"

// Role is the access role resolved from identity provider metadata.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsAdmin reports whether the role grants admin access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// User is an account provisioned by the identity provider.
// The ID is the provider's opaque user identifier, stored verbatim.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	IsSubscribed     bool       `json:"isSubscribed"`
	SubscriptionEnds *time.Time `json:"subscriptionEnds"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// SubscriptionExpired reports whether the stored expiry lies before now.
func (u *User) SubscriptionExpired(now time.Time) bool {
	return u.SubscriptionEnds != nil && u.SubscriptionEnds.Before(now)
}

// UserSummary is a user row with aggregate todo counts for admin listings.
type UserSummary struct {
	User
	TodoCount      int64 `json:"todoCount"`
	CompletedCount int64 `json:"completedCount"`
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the caller has the admin role.
func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role.IsAdmin()
}
