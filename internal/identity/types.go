// Package identity implements user deduplication and consolidation: two
// legacy collections (buyers and stylists) keyed by email are merged into a
// single stream of canonical identities for the target backend.
package identity

import (
	"time"

	"golang.org/x/text/cases"
)

// Role is the closed set of identity roles in the target system.
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleStylist Role = "stylist"
)

// Resolution describes how a duplicate email conflict is resolved.
type Resolution string

const (
	// ResolutionMergeToBuyer keeps the buyer record as the winner.
	ResolutionMergeToBuyer Resolution = "merge_to_primary_role"
	// ResolutionMergeToStylist keeps the stylist record as the winner.
	ResolutionMergeToStylist Resolution = "merge_to_secondary_role"
	// ResolutionCreateSeparate is accepted but not implemented; it is
	// downgraded to a stylist merge with a warning because synthesizing a
	// second unique email is deliberately avoided.
	ResolutionCreateSeparate Resolution = "create_separate"
	// ResolutionSkip leaves both records unmigrated.
	ResolutionSkip Resolution = "skip"
)

// SourceBuyer is a raw legacy buyer record. Immutable once extracted.
type SourceBuyer struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone,omitempty"`
	StripeCustomerID string     `json:"stripe_customer_id,omitempty"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// SourceStylist is a raw legacy stylist record. Immutable once extracted.
type SourceStylist struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone,omitempty"`
	Bio              string     `json:"bio,omitempty"`
	InstagramURL     string     `json:"instagram_url,omitempty"`
	FacebookURL      string     `json:"facebook_url,omitempty"`
	WebsiteURL       string     `json:"website_url,omitempty"`
	PayoutAccountID  string     `json:"payout_account_id,omitempty"`
	TravelsToClients bool       `json:"travels_to_clients,omitempty"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasBusinessData reports whether the stylist record carries meaningful
// business data: a bio, any social profile link, a payout account, or the
// travel-to-clients flag. Such records win conflicts regardless of activity.
func (s *SourceStylist) HasBusinessData() bool {
	return s.Bio != "" ||
		s.InstagramURL != "" ||
		s.FacebookURL != "" ||
		s.WebsiteURL != "" ||
		s.PayoutAccountID != "" ||
		s.TravelsToClients
}

// DuplicateConflict records one email present in both source collections
// with neither record soft-deleted. Computed once per run and never mutated.
type DuplicateConflict struct {
	Email      string         `json:"email"`
	Buyer      *SourceBuyer   `json:"buyer,omitempty"`
	Stylist    *SourceStylist `json:"stylist,omitempty"`
	Resolution Resolution     `json:"resolution"`
	Reason     string         `json:"reason"`
}

// StylistDetails is the role-specific detail block, present on a
// consolidated identity if and only if its role is stylist.
type StylistDetails struct {
	Bio              string `json:"bio,omitempty"`
	InstagramURL     string `json:"instagram_url,omitempty"`
	FacebookURL      string `json:"facebook_url,omitempty"`
	WebsiteURL       string `json:"website_url,omitempty"`
	PayoutAccountID  string `json:"payout_account_id,omitempty"`
	TravelsToClients bool   `json:"travels_to_clients"`
}

// Preferences holds the per-category notification flags every consolidated
// identity starts with.
type Preferences struct {
	EmailNotifications bool `json:"email_notifications"`
	SMSNotifications   bool `json:"sms_notifications"`
	MarketingEmails    bool `json:"marketing_emails"`
}

// DefaultPreferences are applied to every newly consolidated identity.
func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications: true,
		SMSNotifications:   true,
		MarketingEmails:    false,
	}
}

// ConsolidatedIdentity is the canonical post-migration identity. Created
// either by conflict resolution or by direct conversion of an unconflicted
// source record; never mutated after creation.
type ConsolidatedIdentity struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Role             Role            `json:"role"`
	StylistDetails   *StylistDetails `json:"stylist_details,omitempty"`
	Preferences      Preferences     `json:"preferences"`
	StripeCustomerID string          `json:"stripe_customer_id,omitempty"`
	SourceTable      string          `json:"source_table"`
	OriginalID       string          `json:"original_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NormalizeEmail case-folds an email for conflict detection and uniqueness
// checks. Folding rather than lowercasing keeps non-ASCII addresses stable.
// A cases.Caser carries transform state and is not safe for concurrent use,
// so a fresh one is built per call.
func NormalizeEmail(email string) string {
	return cases.Fold().String(email)
}

// lastActivity returns the best-known last activity timestamp for a record:
// last login when present, otherwise the update timestamp.
func lastActivity(lastLoginAt *time.Time, updatedAt time.Time) time.Time {
	if lastLoginAt != nil {
		return *lastLoginAt
	}
	return updatedAt
}
