package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// ValidateAccountRole validates an account role
func ValidateAccountRole(role string) error {
	switch AccountRole(role) {
	case AccountRoleStudent, AccountRoleInstructor, AccountRoleAdmin:
		return nil
	default:
		return fmt.Errorf("invalid account role: must be one of: student, instructor, admin")
	}
}

// ValidateSlug validates an account slug
func ValidateSlug(slug string) error {
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("invalid slug %q: must be lowercase letters, digits and hyphens", slug)
	}
	return nil
}

// ValidateResourceType validates an event resource type
func ValidateResourceType(resourceType string) error {
	switch resourceType {
	case "student", "account", "class", "instructor", "system":
		return nil
	default:
		return fmt.Errorf("invalid resource type: must be one of: student, account, class, instructor, system")
	}
}

// ValidateProfileField reports whether name is a known scalar profile column
func ValidateProfileField(name string) error {
	for _, f := range ProfileFields {
		if f == name {
			return nil
		}
	}
	return fmt.Errorf("unknown profile field %q", name)
}

// ValidateDateOfBirth validates a YYYY-MM-DD date
func ValidateDateOfBirth(s string) error {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("invalid date of birth %q: expected YYYY-MM-DD", s)
	}
	return nil
}

// ValidateProfile validates a partial profile update
func ValidateProfile(fields map[string]string) error {
	for name, value := range fields {
		if err := ValidateProfileField(name); err != nil {
			return err
		}
		if name == FieldDateOfBirth && strings.TrimSpace(value) != "" {
			if err := ValidateDateOfBirth(value); err != nil {
				return err
			}
		}
	}
	return nil
}
