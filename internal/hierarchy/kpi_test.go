package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yukikurage/kpi-management-api/internal/constants"
	"github.com/yukikurage/kpi-management-api/internal/models"
)

func TestKPIEvaluator(t *testing.T) {
	r := fixtureResolver(t)

	assert.Equal(t, uint64(5), idOf(r.KPIEvaluator(user(t, r, 6))))
	assert.Equal(t, uint64(4), idOf(r.KPIEvaluator(user(t, r, 5))), "manager skips itself")
	assert.Equal(t, uint64(3), idOf(r.KPIEvaluator(user(t, r, 4))))
	assert.Equal(t, uint64(21), idOf(r.KPIEvaluator(user(t, r, 22))))
	assert.Nil(t, r.KPIEvaluator(user(t, r, 8)))
}

func TestKPISuperiorChain(t *testing.T) {
	r := fixtureResolver(t)

	assert.Equal(t, []uint64{5, 4, 3}, ids(r.KPISuperiorChain(user(t, r, 6))))
	for _, u := range r.Snapshot().Users() {
		assert.LessOrEqual(t, len(r.KPISuperiorChain(u)), constants.MaxKPISuperiorHops)
	}
}

func TestEvaluationConfig(t *testing.T) {
	r := fixtureResolver(t)

	cfg := r.EvaluationConfig(user(t, r, 6))
	assert.Equal(t, uint64(5), idOf(cfg.Evaluator))
	assert.Equal(t, uint64(3), idOf(cfg.TopManagementEvaluator))
	assert.True(t, cfg.IsDualEvaluation)

	// The lead's superior is the overseer itself, so there is no second opinion.
	cfg = r.EvaluationConfig(user(t, r, 4))
	assert.Equal(t, uint64(3), idOf(cfg.Evaluator))
	assert.False(t, cfg.IsDualEvaluation)

	cfg = r.EvaluationConfig(user(t, r, 8))
	assert.Nil(t, cfg.TopManagementEvaluator)
	assert.False(t, cfg.IsDualEvaluation)

	cfg = r.EvaluationConfig(user(t, r, 22))
	assert.Equal(t, uint64(23), idOf(cfg.TopManagementEvaluator))
	assert.True(t, cfg.IsDualEvaluation)
}

func TestEvaluationConfig_DualWithoutDirectEvaluator(t *testing.T) {
	users := []models.User{
		officeUser(1, models.RoleTopManagement, nil),
		officeUser(2, models.RoleEmployee, u64(10)),
	}
	departments := []models.Department{{ID: 10, Name: "Ops", TopManagement: []models.User{{ID: 1}}}}
	r := NewResolver(NewSnapshot(users, departments))

	cfg := r.EvaluationConfig(user(t, r, 2))
	assert.Nil(t, cfg.Evaluator)
	assert.True(t, cfg.IsDualEvaluation)
}
