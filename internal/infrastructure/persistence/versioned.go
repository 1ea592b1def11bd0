package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tffhost/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE of a unique index violation
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err was raised by a unique index
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// saveVersioned writes an aggregate row with optimistic locking. The row is updated
// when its stored version equals version, and inserted when no row has the key yet.
// model must carry version+1 on entry; it carries the stored version on return.
// A row with the key but another version yields shared.ErrConcurrencyConflict.
func saveVersioned(tx *gorm.DB, table string, model any, keyColumn string, key any, version int, setVersion func(int)) error {
	result := tx.Model(model).
		Where(keyColumn+" = ? AND version = ?", key, version).
		Select("*").
		Omit("created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Table(table).Where(keyColumn+" = ?", key).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict
	}
	setVersion(version)
	return tx.Create(model).Error
}
