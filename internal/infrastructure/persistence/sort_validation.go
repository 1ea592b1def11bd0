package persistence

import (
	"strings"

	"github.com/tffhost/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// NodeOrderSortFields contains allowed sort fields for node orders
var NodeOrderSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"number":     true,
	"username":   true,
	"status":     true,
	"order_time": true,
	"send_time":  true,
}

// AgreementSortFields contains allowed sort fields for investment agreements
var AgreementSortFields = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"username":    true,
	"status":      true,
	"amount":      true,
	"token_count": true,
}

// ProfileSortFields contains allowed sort fields for profiles
var ProfileSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"username":   true,
	"name":       true,
}

// paginate applies the validated ordering and the page window of filter
func paginate(db *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	db = db.Order(field + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		db = db.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return db
}
