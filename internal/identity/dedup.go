package identity

import (
	"fmt"
	"time"

	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
)

// Deduplicator finds identities present in both source collections and
// produces one consolidated identity stream. Resolution is deterministic:
// no randomness, same input, same output.
type Deduplicator struct {
	log       logger.Logger
	validator *Validator
}

// NewDeduplicator creates a Deduplicator. A nil logger discards output.
func NewDeduplicator(log logger.Logger) *Deduplicator {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	return &Deduplicator{
		log:       log.Module("dedup"),
		validator: NewValidator(),
	}
}

// ConsolidationResult is the output of one Consolidate run.
type ConsolidationResult struct {
	Identities []ConsolidatedIdentity `json:"identities"`
	Conflicts  []DuplicateConflict    `json:"conflicts"`
	Issues     []ValidationIssue      `json:"issues,omitempty"`
}

// FindConflicts builds a case-folded email index per collection and returns
// one resolved conflict for every email present in both. Soft-deleted
// records and records without an email never participate.
func (d *Deduplicator) FindConflicts(buyers []SourceBuyer, stylists []SourceStylist) []DuplicateConflict {
	buyerIndex := make(map[string]*SourceBuyer, len(buyers))
	for i := range buyers {
		b := &buyers[i]
		if b.DeletedAt != nil || b.Email == "" {
			continue
		}
		buyerIndex[NormalizeEmail(b.Email)] = b
	}

	var conflicts []DuplicateConflict
	for i := range stylists {
		s := &stylists[i]
		if s.DeletedAt != nil || s.Email == "" {
			continue
		}
		b, ok := buyerIndex[NormalizeEmail(s.Email)]
		if !ok {
			continue
		}

		conflict := DuplicateConflict{
			Email:   NormalizeEmail(s.Email),
			Buyer:   b,
			Stylist: s,
		}
		d.resolve(&conflict)
		conflicts = append(conflicts, conflict)
	}

	return conflicts
}

// resolve applies the resolution policy:
//  1. A stylist record with meaningful business data wins.
//  2. Otherwise the more recently active record wins, comparing last login
//     with the update timestamp as fallback.
//  3. Ties default to the stylist (business-account priority).
func (d *Deduplicator) resolve(c *DuplicateConflict) {
	if c.Stylist.HasBusinessData() {
		c.Resolution = ResolutionMergeToStylist
		c.Reason = "stylist record carries business data"
		return
	}

	buyerActivity := lastActivity(c.Buyer.LastLoginAt, c.Buyer.UpdatedAt)
	stylistActivity := lastActivity(c.Stylist.LastLoginAt, c.Stylist.UpdatedAt)

	switch {
	case buyerActivity.After(stylistActivity):
		c.Resolution = ResolutionMergeToBuyer
		c.Reason = fmt.Sprintf("buyer more recently active (%s > %s)",
			buyerActivity.Format(time.RFC3339), stylistActivity.Format(time.RFC3339))
	case stylistActivity.After(buyerActivity):
		c.Resolution = ResolutionMergeToStylist
		c.Reason = fmt.Sprintf("stylist more recently active (%s > %s)",
			stylistActivity.Format(time.RFC3339), buyerActivity.Format(time.RFC3339))
	default:
		c.Resolution = ResolutionMergeToStylist
		c.Reason = "no activity difference, business account takes priority"
	}
}

// Merge produces the consolidated identity for a resolved conflict.
//
// Field rules: id and name come from the winner (name falls back to the
// loser's), created_at is the min and updated_at the max across both
// records, and the Stripe customer id always comes from the buyer record
// because that linkage is buyer-specific.
func (d *Deduplicator) Merge(c *DuplicateConflict) (ConsolidatedIdentity, error) {
	if c.Buyer == nil || c.Stylist == nil {
		return ConsolidatedIdentity{}, errors.Newf("conflict for %s is missing a side", c.Email).
			Component("dedup").
			Category(errors.CategoryDedup).
			Build()
	}

	resolution := c.Resolution
	if resolution == ResolutionCreateSeparate {
		// Separate-account creation would require synthesizing a new unique
		// email; downgrade to the stylist merge instead.
		d.log.Warn("create_separate is not supported, merging to stylist",
			logger.String("email", c.Email))
		resolution = ResolutionMergeToStylist
	}

	createdAt := minTime(c.Buyer.CreatedAt, c.Stylist.CreatedAt)
	updatedAt := maxTime(c.Buyer.UpdatedAt, c.Stylist.UpdatedAt)

	switch resolution {
	case ResolutionMergeToBuyer:
		name := c.Buyer.Name
		if name == "" {
			name = c.Stylist.Name
		}
		return ConsolidatedIdentity{
			ID:               c.Buyer.ID,
			Name:             name,
			Email:            c.Buyer.Email,
			Role:             RoleBuyer,
			Preferences:      DefaultPreferences(),
			StripeCustomerID: c.Buyer.StripeCustomerID,
			SourceTable:      "buyers",
			OriginalID:       c.Buyer.ID,
			CreatedAt:        createdAt,
			UpdatedAt:        updatedAt,
		}, nil

	case ResolutionMergeToStylist:
		name := c.Stylist.Name
		if name == "" {
			name = c.Buyer.Name
		}
		return ConsolidatedIdentity{
			ID:    c.Stylist.ID,
			Name:  name,
			Email: c.Stylist.Email,
			Role:  RoleStylist,
			StylistDetails: &StylistDetails{
				Bio:              c.Stylist.Bio,
				InstagramURL:     c.Stylist.InstagramURL,
				FacebookURL:      c.Stylist.FacebookURL,
				WebsiteURL:       c.Stylist.WebsiteURL,
				PayoutAccountID:  c.Stylist.PayoutAccountID,
				TravelsToClients: c.Stylist.TravelsToClients,
			},
			Preferences:      DefaultPreferences(),
			StripeCustomerID: c.Buyer.StripeCustomerID,
			SourceTable:      "stylists",
			OriginalID:       c.Stylist.ID,
			CreatedAt:        createdAt,
			UpdatedAt:        updatedAt,
		}, nil

	default:
		return ConsolidatedIdentity{}, errors.Newf("unsupported resolution %q for %s", resolution, c.Email).
			Component("dedup").
			Category(errors.CategoryDedup).
			Build()
	}
}

// Consolidate processes all conflicts first, marking their emails consumed,
// then passes every remaining active record through as a direct conversion.
// The returned issues list carries warnings for records excluded because a
// conflict already consumed their email, plus any postcondition violation
// (duplicate id or email surviving consolidation); callers must treat
// error-severity issues as a failed step.
func (d *Deduplicator) Consolidate(buyers []SourceBuyer, stylists []SourceStylist) (*ConsolidationResult, error) {
	conflicts := d.FindConflicts(buyers, stylists)

	result := &ConsolidationResult{
		Identities: make([]ConsolidatedIdentity, 0, len(buyers)+len(stylists)),
		Conflicts:  conflicts,
	}

	consumed := make(map[string]bool, len(conflicts)*2)
	mergedBuyerID := make(map[string]string, len(conflicts))
	for i := range conflicts {
		c := &conflicts[i]
		merged, err := d.Merge(c)
		if err != nil {
			return nil, err
		}
		result.Identities = append(result.Identities, merged)
		key := NormalizeEmail(c.Email)
		consumed[key] = true
		mergedBuyerID[key] = c.Buyer.ID
	}

	for i := range buyers {
		b := &buyers[i]
		if b.DeletedAt != nil || b.Email == "" {
			continue
		}
		key := NormalizeEmail(b.Email)
		if consumed[key] {
			// A second buyer can share a conflict email when the source data
			// itself contains duplicates. Only one buyer record was merged;
			// the shadowed one is reported, never silently dropped.
			if b.ID != mergedBuyerID[key] {
				d.log.Warn("buyer shadowed by duplicate-email conflict, excluded",
					logger.String("buyer_id", b.ID),
					logger.String("email", key))
				result.Issues = append(result.Issues, ValidationIssue{
					RecordID: b.ID,
					Source:   "buyers",
					Field:    "email",
					Code:     CodeDuplicateEmail,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("email %q already merged via buyer %s, record excluded", b.Email, mergedBuyerID[key]),
				})
			}
			continue
		}
		result.Identities = append(result.Identities, convertBuyer(b))
	}
	for i := range stylists {
		s := &stylists[i]
		if s.DeletedAt != nil || s.Email == "" || consumed[NormalizeEmail(s.Email)] {
			continue
		}
		result.Identities = append(result.Identities, convertStylist(s))
	}

	result.Issues = append(result.Issues, d.validator.ValidateConsolidated(result.Identities)...)

	d.log.Info("consolidation complete",
		logger.Int("buyers", len(buyers)),
		logger.Int("stylists", len(stylists)),
		logger.Int("conflicts", len(conflicts)),
		logger.Int("identities", len(result.Identities)),
		logger.Int("issues", len(result.Issues)))

	return result, nil
}

// convertBuyer converts an unconflicted buyer record directly.
func convertBuyer(b *SourceBuyer) ConsolidatedIdentity {
	return ConsolidatedIdentity{
		ID:               b.ID,
		Name:             b.Name,
		Email:            b.Email,
		Role:             RoleBuyer,
		Preferences:      DefaultPreferences(),
		StripeCustomerID: b.StripeCustomerID,
		SourceTable:      "buyers",
		OriginalID:       b.ID,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

// convertStylist converts an unconflicted stylist record directly.
func convertStylist(s *SourceStylist) ConsolidatedIdentity {
	return ConsolidatedIdentity{
		ID:    s.ID,
		Name:  s.Name,
		Email: s.Email,
		Role:  RoleStylist,
		StylistDetails: &StylistDetails{
			Bio:              s.Bio,
			InstagramURL:     s.InstagramURL,
			FacebookURL:      s.FacebookURL,
			WebsiteURL:       s.WebsiteURL,
			PayoutAccountID:  s.PayoutAccountID,
			TravelsToClients: s.TravelsToClients,
		},
		Preferences: DefaultPreferences(),
		SourceTable: "stylists",
		OriginalID:  s.ID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
