package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/investment"
)

func TestGormAgreementRepository_PaidTokenTotal(t *testing.T) {
	t.Run("sums paid agreements", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormAgreementRepository(db.DB, &recordingSaver{})

		mock.ExpectQuery(`SELECT SUM\(token_count::numeric / power\(10::numeric, token_precision\)\) FROM "investment_agreements" WHERE username = \$1 AND status = \$2`).
			WithArgs("bob.3bot", int(investment.AgreementStatusPaid)).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("1500.5"))

		total, err := repo.PaidTokenTotal(context.Background(), "bob.3bot")
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("1500.5").Equal(total))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no paid agreements is zero", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()
		repo := NewGormAgreementRepository(db.DB, &recordingSaver{})

		mock.ExpectQuery(`SELECT SUM`).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))

		total, err := repo.PaidTokenTotal(context.Background(), "bob.3bot")
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})
}

func TestGormAgreementRepository_SaveWithEffects(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	saver := &recordingSaver{}
	repo := NewGormAgreementRepository(db.DB, saver)

	a, err := investment.NewAgreement("bob.3bot", investment.TokenTFT, "EUR",
		decimal.NewFromInt(1000), decimal.NewFromInt(12500), 7, "Bob", "Side street 2")
	require.NoError(t, err)
	task := effect.MustNewTask(a.ID.String(), effect.TypeSupportNewInvestment, nil)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "investment_agreements" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveWithEffects(context.Background(), a, []*effect.Task{task}))
	assert.Equal(t, 2, a.Version)
	require.Len(t, saver.calls, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
