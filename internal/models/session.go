// Package models contains the wire shapes exchanged with the portal backend
// and the error types produced when a call fails.
package models

import (
	"strings"
	"time"
)

// Role identifies which side of the portal an account belongs to.
type Role string

const (
	// RoleEmployee is an internal staff account.
	RoleEmployee Role = "EMPLOYEE"
	// RoleCustomer is an account owned by a customer organisation.
	RoleCustomer Role = "CUSTOMER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleCustomer
}

// Group names that unlock coarse permissions.
const (
	GroupOperations        = "operations"
	GroupCustomerRelations = "customer_relations"
)

// Session is the identity returned by GET /me/.
type Session struct {
	ID                      string   `json:"id"`
	Username                string   `json:"username"`
	Email                   string   `json:"email"`
	IsStaff                 bool     `json:"is_staff,omitempty"`
	AcknowledgedBundleHash  *string  `json:"acknowledged_bundle_hash"`
	CurrentBundleHash       string   `json:"current_bundle_hash"`
	GroupsDisplay           []string `json:"groups_display"`
	UserType                Role     `json:"user_type"`
	Customer                *string  `json:"customer"`
	CustomerProfileComplete *bool    `json:"customer_profile_complete,omitempty"`

	// CapturedAt is set locally when the record is fetched.
	CapturedAt time.Time `json:"-"`
}

// Clone returns a deep copy so callers cannot mutate cached state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.GroupsDisplay != nil {
		c.GroupsDisplay = append([]string(nil), s.GroupsDisplay...)
	}
	c.AcknowledgedBundleHash = cloneString(s.AcknowledgedBundleHash)
	c.Customer = cloneString(s.Customer)
	if s.CustomerProfileComplete != nil {
		v := *s.CustomerProfileComplete
		c.CustomerProfileComplete = &v
	}
	return &c
}

// IsEmployee reports whether the session belongs to an employee.
func (s *Session) IsEmployee() bool {
	return s != nil && s.UserType == RoleEmployee
}

// IsCustomer reports whether the session belongs to a customer user.
func (s *Session) IsCustomer() bool {
	return s != nil && s.UserType == RoleCustomer
}

// NeedsPolicyAcceptance is true when the user has not acknowledged the
// current policy bundle. A nil session never needs acceptance.
func (s *Session) NeedsPolicyAcceptance() bool {
	if s == nil {
		return false
	}
	if s.AcknowledgedBundleHash == nil || *s.AcknowledgedBundleHash == "" {
		return true
	}
	return *s.AcknowledgedBundleHash != s.CurrentBundleHash
}

// InGroup reports whether the session lists the named group, ignoring case.
func (s *Session) InGroup(name string) bool {
	if s == nil {
		return false
	}
	for _, g := range s.GroupsDisplay {
		if strings.EqualFold(g, name) {
			return true
		}
	}
	return false
}

// CanEditPolicies reports whether the user may create and edit policies.
func (s *Session) CanEditPolicies() bool {
	return s.InGroup(GroupOperations)
}

// CanEditProcedures reports whether the user may create and edit procedures.
func (s *Session) CanEditProcedures() bool {
	return s.InGroup(GroupOperations)
}

// CanSeeIntakeRequests reports whether the intake request inbox is visible.
func (s *Session) CanSeeIntakeRequests() bool {
	if s == nil {
		return false
	}
	return s.IsStaff || s.InGroup(GroupOperations) || s.InGroup(GroupCustomerRelations)
}

// SessionPatch carries optimistic updates applied after a profile edit.
// Nil fields are left untouched.
type SessionPatch struct {
	Username                *string
	Email                   *string
	IsStaff                 *bool
	AcknowledgedBundleHash  *string
	CurrentBundleHash       *string
	GroupsDisplay           []string
	Customer                *string
	CustomerProfileComplete *bool
}

// Apply merges the non-nil fields of p into s.
func (p SessionPatch) Apply(s *Session) {
	if s == nil {
		return
	}
	if p.Username != nil {
		s.Username = *p.Username
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.IsStaff != nil {
		s.IsStaff = *p.IsStaff
	}
	if p.AcknowledgedBundleHash != nil {
		s.AcknowledgedBundleHash = cloneString(p.AcknowledgedBundleHash)
	}
	if p.CurrentBundleHash != nil {
		s.CurrentBundleHash = *p.CurrentBundleHash
	}
	if p.GroupsDisplay != nil {
		s.GroupsDisplay = append([]string(nil), p.GroupsDisplay...)
	}
	if p.Customer != nil {
		s.Customer = cloneString(p.Customer)
	}
	if p.CustomerProfileComplete != nil {
		v := *p.CustomerProfileComplete
		s.CustomerProfileComplete = &v
	}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
