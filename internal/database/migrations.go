package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type indexSpec struct {
	table   string
	name    string
	columns []string
	unique  bool
}

// indexes that back the evaluation uniqueness rules and the hot list queries.
var indexes = []indexSpec{
	{"kpi_evaluations", "idx_kpi_evaluations_task_type", []string{"task_id", "evaluation_type"}, true},
	{"user_evaluations", "idx_user_evaluations_period_type", []string{"evaluatee_id", "period_start", "evaluation_type"}, true},
	{"tasks", "idx_tasks_assignee_status", []string{"assignee_id", "status"}, false},
	{"activity_logs", "idx_activity_logs_actor_created", []string{"actor_id", "created_at"}, false},
}

// AddIndexes creates any missing index from the list above. It works on every
// supported driver because existence is checked through the gorm migrator.
func AddIndexes(db *gorm.DB, log *zap.Logger) error {
	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.table, idx.name) {
			log.Debug("index already exists, skipping", zap.String("index", idx.name))
			continue
		}

		kind := "INDEX"
		if idx.unique {
			kind = "UNIQUE INDEX"
		}
		sql := fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, idx.name, idx.table, strings.Join(idx.columns, ", "))
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.Info("created index",
			zap.String("index", idx.name),
			zap.String("table", idx.table),
			zap.Strings("columns", idx.columns),
		)
	}

	return nil
}
