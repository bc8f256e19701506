package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/kpi-management-api/internal/models"
)

func TestAverageScores(t *testing.T) {
	assert.Nil(t, AverageScores(nil))

	avg := AverageScores([]float64{80, 90})
	require.NotNil(t, avg)
	assert.Equal(t, 85.0, *avg)

	avg = AverageScores([]float64{70, 80, 85})
	require.NotNil(t, avg)
	assert.Equal(t, 78.33, *avg)

	avg = AverageScores([]float64{66.666, 66.667})
	require.NotNil(t, avg)
	assert.Equal(t, 66.67, *avg)
}

func TestMonthStart(t *testing.T) {
	got := MonthStart(time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), got)
}

// AggregationServiceTestSuite covers the windowed averages against sqlite
type AggregationServiceTestSuite struct {
	suite.Suite
	env *testEnv
	org *testOrg
}

func (suite *AggregationServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.org = suite.env.seedOrg(suite.T())
}

func (suite *AggregationServiceTestSuite) storeTopManagementScore(evaluatee *models.User, month time.Month, year int, score float64) {
	eval := &models.UserEvaluation{
		EvaluationBase: models.EvaluationBase{
			EvaluatorID: suite.org.tm.ID,
			EvaluateeID: evaluatee.ID,
			Type:        models.EvaluationTypeTopManagement,
			Score:       score,
			Version:     1,
		},
		PeriodStart: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
	}
	suite.Require().NoError(suite.env.db.Omit("Evaluator", "Evaluatee").Create(eval).Error)
}

func (suite *AggregationServiceTestSuite) TestAverage_SkipsEmptyMonths() {
	suite.storeTopManagementScore(suite.org.employee, time.January, 2026, 80)
	suite.storeTopManagementScore(suite.org.employee, time.February, 2026, 90)
	march := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	avg, err := suite.env.aggregation.AverageTopManagementScore(suite.org.employee.ID, march, 3)
	suite.Require().NoError(err)
	suite.Require().NotNil(avg)
	assert.Equal(suite.T(), 85.0, *avg)

	avg, err = suite.env.aggregation.AverageTopManagementScore(suite.org.employee.ID, march, 1)
	suite.Require().NoError(err)
	assert.Nil(suite.T(), avg)

	avg, err = suite.env.aggregation.AverageTopManagementScore(suite.org.employee.ID, march, 2)
	suite.Require().NoError(err)
	suite.Require().NotNil(avg)
	assert.Equal(suite.T(), 90.0, *avg)
}

func (suite *AggregationServiceTestSuite) TestAverage_InvalidWindow() {
	_, err := suite.env.aggregation.AverageTopManagementScore(suite.org.employee.ID, time.Now(), 0)
	assert.ErrorIs(suite.T(), err, ErrInvalidWindow)
}

func (suite *AggregationServiceTestSuite) TestSummary_StandardWindows() {
	suite.storeTopManagementScore(suite.org.employee, time.December, 2025, 60)
	suite.storeTopManagementScore(suite.org.employee, time.February, 2026, 90)
	suite.storeTopManagementScore(suite.org.employee, time.March, 2026, 80)
	suite.storeTopManagementScore(suite.org.employee, time.April, 2026, 100)

	summary, err := suite.env.aggregation.Summary(suite.org.employee.ID, suite.org.manager.ID, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	suite.Require().NoError(err)
	suite.Require().Len(summary.Windows, 4)

	expected := map[int]float64{3: 85, 6: 76.67, 9: 76.67, 12: 76.67}
	for _, w := range summary.Windows {
		suite.Require().NotNil(w.Average, "window %d", w.Months)
		assert.Equal(suite.T(), expected[w.Months], *w.Average, "window %d", w.Months)
	}
	assert.Equal(suite.T(), 2, summary.Windows[0].Samples)
}

func (suite *AggregationServiceTestSuite) TestSummary_RequiresVisibility() {
	_, err := suite.env.aggregation.Summary(suite.org.employee.ID, suite.org.peer.ID, time.Now())
	assert.ErrorIs(suite.T(), err, ErrEvaluationAccessDenied)
}

func TestAggregationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AggregationServiceTestSuite))
}
