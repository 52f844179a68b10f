// Package projections contains durable read models for accounts.
package projections

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coffers/coffers/account"
	"github.com/coffers/coffers/pkg/domain"
)

// AccountView maintains a denormalized per-account row in SQLite, suitable
// for serving balance queries without replaying streams.
//
// Idempotency is enforced in SQL: every write is guarded by the stored
// last_version, so a redelivered envelope is a no-op.
type AccountView struct {
	db *sql.DB
}

// NewAccountView creates the projection and ensures its tables exist.
func NewAccountView(db *sql.DB) (*AccountView, error) {
	p := &AccountView{db: db}
	if err := p.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to create account_view schema: %w", err)
	}
	return p, nil
}

func (p *AccountView) ensureSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS account_view (
			account_id   TEXT PRIMARY KEY,
			owner_name   TEXT NOT NULL DEFAULT '',
			balance      TEXT NOT NULL DEFAULT '0',
			last_version INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS account_view_checks (
			account_id   TEXT NOT NULL,
			check_number TEXT NOT NULL,
			PRIMARY KEY (account_id, check_number)
		);
	`)
	return err
}

// Name implements projection.Projection.
func (p *AccountView) Name() string {
	return "account_view"
}

// Handle folds one envelope into the view.
func (p *AccountView) Handle(ctx context.Context, envelope *domain.EventEnvelope) error {
	if err := p.ensureRow(ctx, envelope.AggregateID); err != nil {
		return err
	}

	switch evt := envelope.Payload.(type) {
	case *account.AccountOpened:
		return p.exec(ctx, `
			UPDATE account_view SET owner_name = ?, last_version = ?
			WHERE account_id = ? AND last_version < ?
		`, evt.OwnerName, envelope.Version, envelope.AggregateID, envelope.Version)

	case *account.CustomerDepositedMoney:
		return p.updateBalance(ctx, envelope, evt.Balance.String())

	case *account.CustomerWithdrewCash:
		return p.updateBalance(ctx, envelope, evt.Balance.String())

	case *account.CustomerWroteCheck:
		if _, err := p.db.ExecContext(ctx, `
			INSERT INTO account_view_checks (account_id, check_number)
			VALUES (?, ?)
			ON CONFLICT (account_id, check_number) DO NOTHING
		`, envelope.AggregateID, evt.CheckNumber); err != nil {
			return err
		}
		return p.updateBalance(ctx, envelope, evt.Balance.String())
	}

	return nil
}

func (p *AccountView) ensureRow(ctx context.Context, accountID string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO account_view (account_id) VALUES (?)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	return err
}

func (p *AccountView) updateBalance(ctx context.Context, envelope *domain.EventEnvelope, balance string) error {
	return p.exec(ctx, `
		UPDATE account_view SET balance = ?, last_version = ?
		WHERE account_id = ? AND last_version < ?
	`, balance, envelope.Version, envelope.AggregateID, envelope.Version)
}

func (p *AccountView) exec(ctx context.Context, query string, args ...any) error {
	_, err := p.db.ExecContext(ctx, query, args...)
	return err
}

// Reset clears all projection data.
func (p *AccountView) Reset(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM account_view_checks`); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `DELETE FROM account_view`)
	return err
}

// Row is one account's denormalized view.
type Row struct {
	AccountID   string
	OwnerName   string
	Balance     string
	LastVersion int64
	Checks      []string
}

// Get loads one account's row, including its written check numbers.
func (p *AccountView) Get(ctx context.Context, accountID string) (*Row, error) {
	row := &Row{}
	err := p.db.QueryRowContext(ctx, `
		SELECT account_id, owner_name, balance, last_version
		FROM account_view WHERE account_id = ?
	`, accountID).Scan(&row.AccountID, &row.OwnerName, &row.Balance, &row.LastVersion)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT check_number FROM account_view_checks
		WHERE account_id = ? ORDER BY check_number
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var check string
		if err := rows.Scan(&check); err != nil {
			return nil, err
		}
		row.Checks = append(row.Checks, check)
	}
	return row, rows.Err()
}
