package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/yukikurage/kpi-management-api/internal/utils"
)

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return Page(params.Page, params.Limit)
}

// Page limits a query to one page. A zero page or size returns everything.
func Page(page, size int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 || size < 1 {
			return db
		}
		return db.Offset((page - 1) * size).Limit(size)
	}
}

// DueBetween keeps tasks due in [from, to). Either bound may be nil.
func DueBetween(from, to *time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where("tasks.due_date >= ?", *from)
		}
		if to != nil {
			db = db.Where("tasks.due_date < ?", *to)
		}
		return db
	}
}

// ActiveUsers drops deactivated accounts.
func ActiveUsers(db *gorm.DB) *gorm.DB {
	return db.Where("users.is_active = ?", true)
}
