package persistence

import (
	"strings"

	"github.com/treasury/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// normalizeFilter fills in page defaults so pagination math never divides
// by zero
func normalizeFilter(filter shared.Filter) shared.Filter {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return filter
}

// applyFilter applies pagination and ordering to the query
func applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	offset := (filter.Page - 1) * filter.PageSize
	query = query.Offset(offset).Limit(filter.PageSize)

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}
