package domain

import (
	"errors"
	"testing"
)

func TestValidateAccountRole(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		wantErr bool
	}{
		{name: "student", role: "student", wantErr: false},
		{name: "instructor", role: "instructor", wantErr: false},
		{name: "admin", role: "admin", wantErr: false},
		{name: "invalid", role: "invalid", wantErr: true},
		{name: "empty", role: "", wantErr: true},
		{name: "uppercase", role: "ADMIN", wantErr: true},
		{name: "mixed case", role: "Instructor", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAccountRole(tt.role)
			if tt.wantErr && err == nil {
				t.Error("ValidateAccountRole() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateAccountRole() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		wantErr bool
	}{
		{name: "simple", slug: "coach-ana", wantErr: false},
		{name: "digits", slug: "desk2", wantErr: false},
		{name: "leading hyphen", slug: "-ana", wantErr: true},
		{name: "uppercase", slug: "Ana", wantErr: true},
		{name: "space", slug: "coach ana", wantErr: true},
		{name: "empty", slug: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlug(tt.slug)
			if tt.wantErr != (err != nil) {
				t.Errorf("ValidateSlug(%q) error = %v, wantErr %v", tt.slug, err, tt.wantErr)
			}
		})
	}
}

func TestValidateResourceType(t *testing.T) {
	tests := []struct {
		name    string
		resType string
		wantErr bool
	}{
		{name: "student", resType: "student", wantErr: false},
		{name: "account", resType: "account", wantErr: false},
		{name: "system", resType: "system", wantErr: false},
		{name: "invalid", resType: "invalid", wantErr: true},
		{name: "empty", resType: "", wantErr: true},
		{name: "uppercase", resType: "STUDENT", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResourceType(tt.resType)
			if tt.wantErr && err == nil {
				t.Error("ValidateResourceType() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateResourceType() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateProfile(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]string
		wantErr bool
	}{
		{name: "empty", fields: map[string]string{}, wantErr: false},
		{name: "goals", fields: map[string]string{"goals": "improve turns"}, wantErr: false},
		{name: "valid dob", fields: map[string]string{"date_of_birth": "2001-04-30"}, wantErr: false},
		{name: "blank dob", fields: map[string]string{"date_of_birth": ""}, wantErr: false},
		{name: "bad dob", fields: map[string]string{"date_of_birth": "30/04/2001"}, wantErr: true},
		{name: "identifier column", fields: map[string]string{"uuid": "x"}, wantErr: true},
		{name: "audit column", fields: map[string]string{"created_at": "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProfile(tt.fields)
			if tt.wantErr != (err != nil) {
				t.Errorf("ValidateProfile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckETag(t *testing.T) {
	if err := CheckETag(3, 3); err != nil {
		t.Errorf("CheckETag() unexpected error: %v", err)
	}

	err := CheckETag(3, 4)
	var etagErr *ETagMismatchError
	if !errors.As(err, &etagErr) {
		t.Fatalf("CheckETag() error type = %T, want *ETagMismatchError", err)
	}
	if etagErr.Expected != 3 || etagErr.Actual != 4 {
		t.Errorf("ETagMismatchError = %+v, want expected 3 actual 4", etagErr)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("database is locked")

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "not found", err: &NotFoundError{Kind: "student", Role: "source", ID: "x"}, target: ErrNotFound},
		{name: "invalid operation", err: &InvalidOperationError{Reason: ReasonSelfMerge}, target: ErrInvalidOperation},
		{name: "conflict", err: &ConflictRetryableError{Op: "commit", Err: cause}, target: ErrConflictRetryable},
		{name: "fatal", err: &FatalInconsistencyError{Op: "delete source", Err: cause}, target: ErrFatalInconsistency},
		{name: "forbidden", err: &ForbiddenError{ActorUUID: "x", Role: AccountRoleStudent}, target: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
			if tt.err.Error() == "" {
				t.Error("Error() returned empty string")
			}
		})
	}

	wrapped := &ConflictRetryableError{Op: "commit", Err: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("ConflictRetryableError should unwrap to its cause")
	}
}

func TestNotFoundError_Message(t *testing.T) {
	err := &NotFoundError{Kind: "student", Role: "target", ID: "S-00002"}
	if got, want := err.Error(), "target student not found: S-00002"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	err = &NotFoundError{Kind: "account", ID: "A-00009"}
	if got, want := err.Error(), "account not found: A-00009"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
