package store

import (
	"context"

	"reconcile/internal/models"

	"github.com/shopspring/decimal"
)

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, account models.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, name, current_balance)
		VALUES ($1, $2, $3)
	`, account.ID, account.Name, account.CurrentBalance)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, current_balance, created_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID string, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET current_balance = $1
		WHERE id = $2
	`, balance, accountID)
	return err
}
