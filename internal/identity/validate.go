package identity

import (
	"fmt"
	"regexp"
)

// Severity of a validation issue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ValidationIssue is a typed error record produced by structural checks.
// Issues are accumulated and reported, never thrown.
type ValidationIssue struct {
	RecordID string   `json:"record_id"`
	Source   string   `json:"source"`
	Field    string   `json:"field"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Issue codes, stable for machine checking.
const (
	CodeMissingID      = "missing_id"
	CodeMissingEmail   = "missing_email"
	CodeInvalidEmail   = "invalid_email"
	CodeDuplicateEmail = "duplicate_email"
	CodeDuplicateID    = "duplicate_id"
	CodeMissingDetails = "missing_role_details"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validator performs field-level and cross-record structural checks on
// source and consolidated records.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateBuyer checks a single buyer record. Soft-deleted records are not
// validated; they are filtered before migration.
func (v *Validator) ValidateBuyer(b *SourceBuyer) []ValidationIssue {
	return v.validateCommon(b.ID, b.Email, "buyers")
}

// ValidateStylist checks a single stylist record.
func (v *Validator) ValidateStylist(s *SourceStylist) []ValidationIssue {
	return v.validateCommon(s.ID, s.Email, "stylists")
}

func (v *Validator) validateCommon(id, email, source string) []ValidationIssue {
	var issues []ValidationIssue

	if id == "" {
		issues = append(issues, ValidationIssue{
			RecordID: id,
			Source:   source,
			Field:    "id",
			Code:     CodeMissingID,
			Severity: SeverityError,
			Message:  "record has no id",
		})
	}

	switch {
	case email == "":
		issues = append(issues, ValidationIssue{
			RecordID: id,
			Source:   source,
			Field:    "email",
			Code:     CodeMissingEmail,
			Severity: SeverityError,
			Message:  "record has no email",
		})
	case !emailPattern.MatchString(email):
		issues = append(issues, ValidationIssue{
			RecordID: id,
			Source:   source,
			Field:    "email",
			Code:     CodeInvalidEmail,
			Severity: SeverityError,
			Message:  fmt.Sprintf("malformed email %q", email),
		})
	}

	return issues
}

// ValidateConsolidated checks the postconditions of a consolidated set: no
// two entries share a case-folded email or an id, and the role-specific
// detail block is present exactly when the role requires it. Violations are
// reported as issues, never silently dropped.
func (v *Validator) ValidateConsolidated(identities []ConsolidatedIdentity) []ValidationIssue {
	var issues []ValidationIssue

	seenEmails := make(map[string]string, len(identities))
	seenIDs := make(map[string]bool, len(identities))

	for i := range identities {
		id := &identities[i]

		key := NormalizeEmail(id.Email)
		if firstID, dup := seenEmails[key]; dup {
			issues = append(issues, ValidationIssue{
				RecordID: id.ID,
				Source:   "consolidated",
				Field:    "email",
				Code:     CodeDuplicateEmail,
				Severity: SeverityError,
				Message:  fmt.Sprintf("email %q already used by identity %s", id.Email, firstID),
			})
		} else {
			seenEmails[key] = id.ID
		}

		if seenIDs[id.ID] {
			issues = append(issues, ValidationIssue{
				RecordID: id.ID,
				Source:   "consolidated",
				Field:    "id",
				Code:     CodeDuplicateID,
				Severity: SeverityError,
				Message:  fmt.Sprintf("identity id %s appears more than once", id.ID),
			})
		} else {
			seenIDs[id.ID] = true
		}

		if id.Role == RoleStylist && id.StylistDetails == nil {
			issues = append(issues, ValidationIssue{
				RecordID: id.ID,
				Source:   "consolidated",
				Field:    "stylist_details",
				Code:     CodeMissingDetails,
				Severity: SeverityError,
				Message:  "stylist identity has no stylist details",
			})
		}
		if id.Role == RoleBuyer && id.StylistDetails != nil {
			issues = append(issues, ValidationIssue{
				RecordID: id.ID,
				Source:   "consolidated",
				Field:    "stylist_details",
				Code:     CodeMissingDetails,
				Severity: SeverityError,
				Message:  "buyer identity carries stylist details",
			})
		}
	}

	return issues
}

// HasErrors reports whether any issue in the list is an error.
func HasErrors(issues []ValidationIssue) bool {
	for i := range issues {
		if issues[i].Severity == SeverityError {
			return true
		}
	}
	return false
}
