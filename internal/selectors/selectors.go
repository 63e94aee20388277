package selectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/id"
	"github.com/lherron/roster/internal/store"
)

// Type represents the type of resource being selected
type Type string

const (
	TypeStudent Type = "student"
	TypeAccount Type = "account"
	TypeAuto    Type = "auto" // Auto-detect based on selector
)

// Selector represents a parsed typed selector
type Selector struct {
	Type  Type
	Token string // The part after the prefix (e.g., "S-00012" from "s:S-00012")
}

// Parse parses a selector string and returns the type and token
// Supports: s:<token>, a:<token>, or plain <token> (auto-detect)
func Parse(selector string) Selector {
	selector = strings.TrimSpace(selector)

	if strings.HasPrefix(selector, "s:") {
		return Selector{
			Type:  TypeStudent,
			Token: strings.TrimPrefix(selector, "s:"),
		}
	}

	if strings.HasPrefix(selector, "a:") {
		return Selector{
			Type:  TypeAccount,
			Token: strings.TrimPrefix(selector, "a:"),
		}
	}

	return Selector{
		Type:  TypeAuto,
		Token: selector,
	}
}

// ResolveStudent resolves a student selector (UUID or S-xxxxx) to the student.
func ResolveStudent(ctx context.Context, s *store.Store, selector string) (*domain.Student, error) {
	parsed := Parse(selector)
	if parsed.Type != TypeStudent && parsed.Type != TypeAuto {
		return nil, fmt.Errorf("expected student selector (s:), got %s selector", parsed.Type)
	}

	token := parsed.Token
	switch {
	case token == "":
		return nil, fmt.Errorf("empty student selector")
	case id.IsUUID(token):
		return s.Students.GetByUUID(ctx, strings.ToLower(token))
	case strings.HasPrefix(token, id.Prefix(id.TypeStudent)):
		return s.Students.GetByID(ctx, token)
	default:
		return nil, &domain.NotFoundError{Kind: "student", ID: token}
	}
}

// ResolveAccount resolves an account selector (UUID, A-xxxxx or slug) to the account.
func ResolveAccount(ctx context.Context, s *store.Store, selector string) (*domain.Account, error) {
	parsed := Parse(selector)
	if parsed.Type != TypeAccount && parsed.Type != TypeAuto {
		return nil, fmt.Errorf("expected account selector (a:), got %s selector", parsed.Type)
	}

	token := parsed.Token
	switch {
	case token == "":
		return nil, fmt.Errorf("empty account selector")
	case id.IsUUID(token):
		return s.Accounts.GetByUUID(ctx, strings.ToLower(token))
	case id.IsFriendlyID(token):
		return s.Accounts.GetByID(ctx, token)
	default:
		return s.Accounts.GetBySlug(ctx, token)
	}
}
