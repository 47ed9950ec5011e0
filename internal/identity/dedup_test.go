package identity

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsPtr(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestFindConflicts(t *testing.T) {
	t.Parallel()

	buyers := []SourceBuyer{
		{ID: "b1", Email: "shared@example.com"},
		{ID: "b2", Email: "only-buyer@example.com"},
		{ID: "b3", Email: "deleted@example.com", DeletedAt: tsPtr("2024-01-01T00:00:00Z")},
		{ID: "b4", Email: ""},
	}
	stylists := []SourceStylist{
		{ID: "s1", Email: "SHARED@example.com"},
		{ID: "s2", Email: "only-stylist@example.com"},
		{ID: "s3", Email: "deleted@example.com"},
	}

	d := NewDeduplicator(nil)
	conflicts := d.FindConflicts(buyers, stylists)

	require.Len(t, conflicts, 1, "case-folded email match must produce exactly one conflict")
	assert.Equal(t, "shared@example.com", conflicts[0].Email)
	assert.Equal(t, "b1", conflicts[0].Buyer.ID)
	assert.Equal(t, "s1", conflicts[0].Stylist.ID)
	assert.NotEmpty(t, conflicts[0].Resolution)
}

func TestResolvePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		buyer   SourceBuyer
		stylist SourceStylist
		want    Resolution
	}{
		{
			name:    "stylist with business data wins regardless of activity",
			buyer:   SourceBuyer{ID: "b1", Email: "a@x.no", LastLoginAt: tsPtr("2024-06-01T00:00:00Z")},
			stylist: SourceStylist{ID: "s1", Email: "a@x.no", Bio: "hi", UpdatedAt: ts("2020-01-01T00:00:00Z")},
			want:    ResolutionMergeToStylist,
		},
		{
			name:    "more recently active buyer wins",
			buyer:   SourceBuyer{ID: "b1", Email: "a@x.no", LastLoginAt: tsPtr("2024-06-01T00:00:00Z")},
			stylist: SourceStylist{ID: "s1", Email: "a@x.no", UpdatedAt: ts("2024-01-01T00:00:00Z")},
			want:    ResolutionMergeToBuyer,
		},
		{
			name:    "last login falls back to updated_at",
			buyer:   SourceBuyer{ID: "b1", Email: "a@x.no", UpdatedAt: ts("2023-01-01T00:00:00Z")},
			stylist: SourceStylist{ID: "s1", Email: "a@x.no", LastLoginAt: tsPtr("2024-01-01T00:00:00Z")},
			want:    ResolutionMergeToStylist,
		},
		{
			name:    "tie defaults to stylist",
			buyer:   SourceBuyer{ID: "b1", Email: "a@x.no", UpdatedAt: ts("2024-01-01T00:00:00Z")},
			stylist: SourceStylist{ID: "s1", Email: "a@x.no", UpdatedAt: ts("2024-01-01T00:00:00Z")},
			want:    ResolutionMergeToStylist,
		},
	}

	d := NewDeduplicator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := DuplicateConflict{Email: "a@x.no", Buyer: &tt.buyer, Stylist: &tt.stylist}
			d.resolve(&c)
			assert.Equal(t, tt.want, c.Resolution)
			assert.NotEmpty(t, c.Reason)
		})
	}
}

func TestMergeFieldRules(t *testing.T) {
	t.Parallel()

	buyer := SourceBuyer{
		ID:               "b1",
		Name:             "Buyer Name",
		Email:            "a@x.no",
		StripeCustomerID: "cus_123",
		CreatedAt:        ts("2024-02-01T00:00:00Z"),
		UpdatedAt:        ts("2024-01-01T00:00:00Z"),
	}
	stylist := SourceStylist{
		ID:        "s1",
		Email:     "A@X.no",
		Bio:       "hi",
		CreatedAt: ts("2023-01-01T00:00:00Z"),
		UpdatedAt: ts("2023-06-01T00:00:00Z"),
	}

	d := NewDeduplicator(nil)
	c := DuplicateConflict{Email: "a@x.no", Buyer: &buyer, Stylist: &stylist}
	d.resolve(&c)
	require.Equal(t, ResolutionMergeToStylist, c.Resolution)

	merged, err := d.Merge(&c)
	require.NoError(t, err)

	assert.Equal(t, "s1", merged.ID)
	assert.Equal(t, RoleStylist, merged.Role)
	require.NotNil(t, merged.StylistDetails)
	assert.Equal(t, "hi", merged.StylistDetails.Bio)
	// Winner has no name, falls back to the loser's.
	assert.Equal(t, "Buyer Name", merged.Name)
	// Stripe linkage is buyer-specific regardless of winner.
	assert.Equal(t, "cus_123", merged.StripeCustomerID)
	assert.Equal(t, ts("2023-01-01T00:00:00Z"), merged.CreatedAt, "created_at is the min across both")
	assert.Equal(t, ts("2024-01-01T00:00:00Z"), merged.UpdatedAt, "updated_at is the max across both")
	assert.Equal(t, "stylists", merged.SourceTable)
	assert.Equal(t, "s1", merged.OriginalID)
}

func TestMergeCreateSeparateDowngrades(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(nil)
	c := DuplicateConflict{
		Email:      "a@x.no",
		Buyer:      &SourceBuyer{ID: "b1", Email: "a@x.no"},
		Stylist:    &SourceStylist{ID: "s1", Email: "a@x.no"},
		Resolution: ResolutionCreateSeparate,
	}

	merged, err := d.Merge(&c)
	require.NoError(t, err)
	assert.Equal(t, "s1", merged.ID, "create_separate downgrades to the stylist merge")
	assert.Equal(t, RoleStylist, merged.Role)
}

func TestMergeMissingSide(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(nil)
	c := DuplicateConflict{Email: "a@x.no", Buyer: &SourceBuyer{ID: "b1"}}
	_, err := d.Merge(&c)
	assert.Error(t, err)
}

func TestConsolidate(t *testing.T) {
	t.Parallel()

	buyers := []SourceBuyer{
		{ID: "b1", Email: "shared@example.com", Name: "B One", UpdatedAt: ts("2024-01-01T00:00:00Z")},
		{ID: "b2", Email: "buyer@example.com", Name: "B Two"},
	}
	stylists := []SourceStylist{
		{ID: "s1", Email: "Shared@example.com", Bio: "cuts", UpdatedAt: ts("2023-01-01T00:00:00Z")},
		{ID: "s2", Email: "stylist@example.com", Bio: "color"},
	}

	d := NewDeduplicator(nil)
	result, err := d.Consolidate(buyers, stylists)
	require.NoError(t, err)

	// One conflict yields exactly one identity; the two unconflicted records
	// pass through.
	require.Len(t, result.Conflicts, 1)
	require.Len(t, result.Identities, 3)
	assert.Empty(t, result.Issues)

	emails := make(map[string]bool)
	ids := make(map[string]bool)
	for i := range result.Identities {
		id := &result.Identities[i]
		key := NormalizeEmail(id.Email)
		assert.False(t, emails[key], "duplicate email %s survived consolidation", id.Email)
		assert.False(t, ids[id.ID], "duplicate id %s survived consolidation", id.ID)
		emails[key] = true
		ids[id.ID] = true

		if id.Role == RoleStylist {
			assert.NotNil(t, id.StylistDetails)
		} else {
			assert.Nil(t, id.StylistDetails)
		}
		assert.True(t, id.Preferences.EmailNotifications)
		assert.True(t, id.Preferences.SMSNotifications)
		assert.False(t, id.Preferences.MarketingEmails)
	}
}

func TestConsolidateDeterministic(t *testing.T) {
	t.Parallel()

	buyers := []SourceBuyer{
		{ID: "b1", Email: "a@example.com", UpdatedAt: ts("2024-01-01T00:00:00Z")},
		{ID: "b2", Email: "b@example.com"},
	}
	stylists := []SourceStylist{
		{ID: "s1", Email: "a@example.com", UpdatedAt: ts("2023-01-01T00:00:00Z")},
	}

	d := NewDeduplicator(nil)
	first, err := d.Consolidate(buyers, stylists)
	require.NoError(t, err)
	second, err := d.Consolidate(buyers, stylists)
	require.NoError(t, err)

	assert.Equal(t, first.Identities, second.Identities)
	assert.Equal(t, first.Conflicts, second.Conflicts)
}

func TestConsolidateSurfacesShadowedDuplicateBuyer(t *testing.T) {
	t.Parallel()

	// Two buyers share an email that also conflicts with a stylist. The
	// conflict merges exactly one buyer record; the other must show up as a
	// warning issue instead of vanishing.
	buyers := []SourceBuyer{
		{ID: "b1", Email: "dup@example.com", Name: "First"},
		{ID: "b2", Email: "dup@example.com", Name: "Second"},
	}
	stylists := []SourceStylist{
		{ID: "s1", Email: "DUP@example.com", Bio: "cuts"},
	}

	d := NewDeduplicator(nil)
	result, err := d.Consolidate(buyers, stylists)
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	require.Len(t, result.Identities, 1)
	assert.Equal(t, "s1", result.Identities[0].ID)

	require.Len(t, result.Issues, 1, "shadowed buyer must be reported")
	issue := result.Issues[0]
	assert.Equal(t, "b1", issue.RecordID)
	assert.Equal(t, "buyers", issue.Source)
	assert.Equal(t, CodeDuplicateEmail, issue.Code)
	assert.Equal(t, SeverityWarning, issue.Severity)
	assert.False(t, HasErrors(result.Issues), "exclusion is a warning, not a step failure")
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, NormalizeEmail("USER@Example.COM"), NormalizeEmail("user@example.com"))
	assert.Equal(t, NormalizeEmail("ÅSA@x.no"), NormalizeEmail("åsa@x.no"))
}

func TestNormalizeEmailConcurrent(t *testing.T) {
	t.Parallel()

	// Folding must be safe from concurrent goroutines; the race detector
	// flags any shared transform state.
	want := NormalizeEmail("ÄBC@Example.com")
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				if got := NormalizeEmail("ÄBC@Example.com"); got != want {
					t.Errorf("NormalizeEmail returned %q, want %q", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}
