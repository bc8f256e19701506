package services

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	apierrors "github.com/yukikurage/kpi-management-api/internal/errors"
	"github.com/yukikurage/kpi-management-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// OrgServiceTestSuite covers org administration and authentication
type OrgServiceTestSuite struct {
	suite.Suite
	env *testEnv
	org *testOrg
}

func (suite *OrgServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.org = suite.env.seedOrg(suite.T())
}

func (suite *OrgServiceTestSuite) TestProvisionUser() {
	bidon := models.FactoryTypeBidon
	user, err := suite.env.org.ProvisionUser(suite.org.admin.ID, ProvisionUserInput{
		Username:    "  worker  ",
		Password:    "password123",
		Role:        models.RoleEmployee,
		FactoryType: &bidon,
	})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "worker", user.Username)
	assert.True(suite.T(), user.IsActive)
	assert.NoError(suite.T(), bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))

	_, err = suite.env.org.ProvisionUser(suite.org.admin.ID, ProvisionUserInput{
		Username: "worker",
		Password: "password123",
	})
	assert.ErrorIs(suite.T(), err, ErrUsernameTaken)
}

func (suite *OrgServiceTestSuite) TestProvisionUser_AxisRules() {
	bidon := models.FactoryTypeBidon
	salesID := suite.org.sales.ID

	cases := []struct {
		name  string
		input ProvisionUserInput
		want  error
	}{
		{"both axes", ProvisionUserInput{Role: models.RoleEmployee, DepartmentID: &salesID, FactoryType: &bidon}, ErrBothAxes},
		{"manager in a factory", ProvisionUserInput{Role: models.RoleManager, FactoryType: &bidon}, ErrRoleNotOnFactoryTrack},
		{"deputy director in an office", ProvisionUserInput{Role: models.RoleDeputyDirector, DepartmentID: &salesID}, ErrRoleNotOnOfficeTrack},
		{"unknown role", ProvisionUserInput{Role: models.Role("intern")}, ErrInvalidRole},
	}

	for i, tc := range cases {
		tc.input.Username = "candidate" + string(rune('a'+i))
		tc.input.Password = "password123"
		_, err := suite.env.org.ProvisionUser(suite.org.admin.ID, tc.input)
		assert.ErrorIs(suite.T(), err, tc.want, tc.name)
	}

	_, err := suite.env.org.ProvisionUser(suite.org.admin.ID, ProvisionUserInput{
		Username: "shortpw",
		Password: "short",
	})
	assert.True(suite.T(), stderrors.Is(err, apierrors.ErrValidation))
}

func (suite *OrgServiceTestSuite) TestCreateDepartment_RoleInvariants() {
	spare := suite.env.createUser(suite.T(), "spare_manager", models.RoleManager, nil)
	newLead := suite.env.createUser(suite.T(), "new_lead", models.RoleDepartmentLead, nil)

	dept, err := suite.env.org.CreateDepartment(suite.org.admin.ID, DepartmentInput{
		Name:             "Finance",
		ManagerID:        &spare.ID,
		DepartmentLeadID: &newLead.ID,
		TopManagementIDs: []uint64{suite.org.tm.ID, suite.org.ceo.ID},
	})
	suite.Require().NoError(err)
	assert.Len(suite.T(), dept.TopManagement, 2)

	_, err = suite.env.org.CreateDepartment(suite.org.admin.ID, DepartmentInput{
		Name:      "Legal",
		ManagerID: &suite.org.employee.ID,
	})
	assert.True(suite.T(), stderrors.Is(err, apierrors.Validation("department.manager_role_mismatch", "")))

	_, err = suite.env.org.CreateDepartment(suite.org.admin.ID, DepartmentInput{
		Name:             "Legal",
		TopManagementIDs: []uint64{suite.org.lead.ID},
	})
	assert.True(suite.T(), stderrors.Is(err, apierrors.Validation("department.top_management_role_mismatch", "")))

	_, err = suite.env.org.CreateDepartment(suite.org.admin.ID, DepartmentInput{Name: "Sales"})
	assert.ErrorIs(suite.T(), err, ErrDepartmentNameTaken)
}

func (suite *OrgServiceTestSuite) TestDeleteDepartment_RequiresNoMembers() {
	err := suite.env.org.DeleteDepartment(suite.org.admin.ID, suite.org.sales.ID)
	assert.ErrorIs(suite.T(), err, ErrDepartmentHasMembers)

	empty, err := suite.env.org.CreateDepartment(suite.org.admin.ID, DepartmentInput{Name: "Empty"})
	suite.Require().NoError(err)
	suite.Require().NoError(suite.env.org.DeleteDepartment(suite.org.admin.ID, empty.ID))

	_, err = suite.env.org.GetDepartment(empty.ID)
	assert.ErrorIs(suite.T(), err, ErrDepartmentNotFound)
}

func (suite *OrgServiceTestSuite) TestUpdateUser_DesignatedUserKeepsRole() {
	employeeRole := models.RoleEmployee
	_, err := suite.env.org.UpdateUser(suite.org.admin.ID, suite.org.manager.ID, UpdateUserInput{Role: &employeeRole})
	assert.ErrorIs(suite.T(), err, ErrStillDesignated)

	leadRole := models.RoleDepartmentLead
	updated, err := suite.env.org.UpdateUser(suite.org.admin.ID, suite.org.peer.ID, UpdateUserInput{Role: &leadRole})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.RoleDepartmentLead, updated.Role)
}

func (suite *OrgServiceTestSuite) TestDeactivateUser() {
	_, err := suite.env.org.DeactivateUser(suite.org.admin.ID, suite.org.admin.ID)
	assert.ErrorIs(suite.T(), err, ErrSelfDeactivation)

	user, err := suite.env.org.DeactivateUser(suite.org.admin.ID, suite.org.peer.ID)
	suite.Require().NoError(err)
	assert.False(suite.T(), user.IsActive)

	// Deactivated users drop out of the hierarchy.
	r, err := suite.env.hierarchy.Resolver()
	suite.Require().NoError(err)
	for _, sub := range r.Subordinates(suite.org.manager) {
		assert.NotEqual(suite.T(), suite.org.peer.ID, sub.ID)
	}
}

func (suite *OrgServiceTestSuite) TestLogin() {
	user, err := suite.env.org.ProvisionUser(suite.org.admin.ID, ProvisionUserInput{
		Username: "alice",
		Password: "password123",
	})
	suite.Require().NoError(err)

	loggedIn, err := suite.env.auth.Login(LoginInput{Username: "alice", Password: "password123"})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), user.ID, loggedIn.ID)

	_, err = suite.env.auth.Login(LoginInput{Username: "alice", Password: "wrong-password"})
	assert.ErrorIs(suite.T(), err, ErrInvalidCredentials)

	_, err = suite.env.org.DeactivateUser(suite.org.admin.ID, user.ID)
	suite.Require().NoError(err)
	_, err = suite.env.auth.Login(LoginInput{Username: "alice", Password: "password123"})
	assert.ErrorIs(suite.T(), err, ErrUserInactive)
}

func (suite *OrgServiceTestSuite) TestChangePassword() {
	user, err := suite.env.org.ProvisionUser(suite.org.admin.ID, ProvisionUserInput{
		Username: "bob",
		Password: "password123",
	})
	suite.Require().NoError(err)

	err = suite.env.auth.ChangePassword(user.ID, "wrong-password", "newpassword1")
	assert.ErrorIs(suite.T(), err, ErrInvalidCredentials)

	suite.Require().NoError(suite.env.auth.ChangePassword(user.ID, "password123", "newpassword1"))
	_, err = suite.env.auth.Login(LoginInput{Username: "bob", Password: "newpassword1"})
	assert.NoError(suite.T(), err)
}

func (suite *OrgServiceTestSuite) TestBootstrapAdmin() {
	admin, err := suite.env.auth.BootstrapAdmin("root", "password123")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.RoleAdmin, admin.Role)

	again, err := suite.env.auth.BootstrapAdmin("root", "password123")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), admin.ID, again.ID)

	none, err := suite.env.auth.BootstrapAdmin("", "")
	suite.Require().NoError(err)
	assert.Nil(suite.T(), none)
}

func TestOrgServiceTestSuite(t *testing.T) {
	suite.Run(t, new(OrgServiceTestSuite))
}
