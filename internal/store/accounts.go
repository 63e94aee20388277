package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/id"
)

// AccountStore handles account persistence operations.
type AccountStore struct {
	store *Store
}

// CreateAccountParams contains parameters for creating a new account.
type CreateAccountParams struct {
	UUID        string // optional
	Slug        string
	DisplayName string
	Role        domain.AccountRole
}

const accountColumns = "uuid, id, slug, display_name, role, created_at, updated_at"

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.UUID, &a.ID, &a.Slug, &a.DisplayName, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create creates a new account and logs an account.created event.
func (as *AccountStore) Create(ctx context.Context, actorUUID string, params CreateAccountParams) (*domain.Account, error) {
	var created *domain.Account
	err := as.store.RunInTx(ctx, func(tx *Tx) error {
		var err error
		created, err = tx.CreateAccount(ctx, actorUUID, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByUUID loads an account outside any transaction.
func (as *AccountStore) GetByUUID(ctx context.Context, accountUUID string) (*domain.Account, error) {
	return as.getBy(ctx, "uuid", accountUUID)
}

// GetByID loads an account by friendly ID (A-00001).
func (as *AccountStore) GetByID(ctx context.Context, friendlyID string) (*domain.Account, error) {
	return as.getBy(ctx, "id", friendlyID)
}

// GetBySlug loads an account by slug.
func (as *AccountStore) GetBySlug(ctx context.Context, slug string) (*domain.Account, error) {
	return as.getBy(ctx, "slug", slug)
}

func (as *AccountStore) getBy(ctx context.Context, column, value string) (*domain.Account, error) {
	d := as.store.db
	a, err := scanAccount(d.QueryRowContext(ctx, d.Rebind("SELECT "+accountColumns+" FROM accounts WHERE "+column+" = ?"), value))
	if err != nil {
		return nil, notFound(err, "account", value)
	}
	return a, nil
}

// List returns all accounts ordered by friendly ID.
func (as *AccountStore) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := as.store.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// GetAccount loads an account inside the transaction.
func (t *Tx) GetAccount(ctx context.Context, accountUUID string) (*domain.Account, error) {
	a, err := scanAccount(t.queryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE uuid = ?", accountUUID))
	if err != nil {
		return nil, notFound(err, "account", accountUUID)
	}
	return a, nil
}

// CreateAccount inserts an account inside the transaction.
func (t *Tx) CreateAccount(ctx context.Context, actorUUID string, params CreateAccountParams) (*domain.Account, error) {
	if err := domain.ValidateSlug(params.Slug); err != nil {
		return nil, err
	}
	if err := domain.ValidateAccountRole(string(params.Role)); err != nil {
		return nil, err
	}

	accountUUID := params.UUID
	if accountUUID == "" {
		accountUUID = uuid.NewString()
	}
	friendlyID, err := nextFriendlyID(ctx, t.tx, t.dialect(), "accounts", id.Prefix(id.TypeAccount))
	if err != nil {
		return nil, err
	}

	now := t.store.now()
	_, err = t.exec(ctx, `
		INSERT INTO accounts (uuid, id, slug, display_name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, accountUUID, friendlyID, params.Slug, nullIfBlank(params.DisplayName), string(params.Role), now, now)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, fmt.Errorf("account slug %q already exists: %w", params.Slug, err)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	a, err := t.GetAccount(ctx, accountUUID)
	if err != nil {
		return nil, err
	}
	if err := t.store.events.LogAccountCreated(ctx, t.tx, actorUUID, a); err != nil {
		return nil, fmt.Errorf("failed to log event: %w", err)
	}
	return a, nil
}
