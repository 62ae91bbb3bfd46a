package authz

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/EUDYDEV/eproject-saas/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Branch{},
		&model.User{},
		&model.Membership{},
		&model.AgencySubscription{},
		&model.Student{},
	))
	return db
}

func uintPtr(v uint) *uint { return &v }

func seedBranches(t *testing.T, db *gorm.DB, names ...string) []model.Branch {
	t.Helper()
	branches := make([]model.Branch, 0, len(names))
	for _, name := range names {
		b := model.Branch{Name: name, Slug: name, CountryCode: "SN"}
		require.NoError(t, db.Create(&b).Error)
		branches = append(branches, b)
	}
	return branches
}

func TestVisibleBranchIDsUnauthenticated(t *testing.T) {
	r := NewResolver(newTestDB(t))
	assert.Nil(t, r.VisibleBranchIDs(Anonymous()))
}

func TestVisibleBranchIDsMembershipUnionLegacyPointer(t *testing.T) {
	db := newTestDB(t)
	branches := seedBranches(t, db, "dakar", "abidjan", "bamako")
	r := NewResolver(db)

	// Membership on one branch, legacy pointer at another: both are visible.
	require.NoError(t, db.Create(&model.Membership{UserID: 10, BranchID: branches[0].ID}).Error)

	actor := Actor{
		UserID:        10,
		Role:          RoleFounder,
		BranchID:      &branches[1].ID,
		Authenticated: true,
	}
	assert.Equal(t, []uint{branches[0].ID, branches[1].ID}, r.VisibleBranchIDs(actor))
}

func TestVisibleBranchIDsEnterpriseExpansionForBranchStaff(t *testing.T) {
	db := newTestDB(t)
	branches := seedBranches(t, db, "dakar", "abidjan", "bamako")
	r := NewResolver(db)

	// One owner holds subscriptions on two branches; a third branch belongs
	// to someone else entirely.
	require.NoError(t, db.Create(&model.AgencySubscription{BranchID: branches[0].ID, OwnerUserID: 1}).Error)
	require.NoError(t, db.Create(&model.AgencySubscription{BranchID: branches[1].ID, OwnerUserID: 1}).Error)
	require.NoError(t, db.Create(&model.AgencySubscription{BranchID: branches[2].ID, OwnerUserID: 2}).Error)

	staff := Actor{
		UserID:        20,
		Role:          RoleEmployee,
		BranchID:      &branches[1].ID,
		Authenticated: true,
	}
	got := r.VisibleBranchIDs(staff)
	assert.Equal(t, []uint{branches[0].ID, branches[1].ID}, got)
	assert.NotContains(t, got, branches[2].ID)
}

func TestVisibleBranchIDsUnionsMembershipsPointerAndEnterprise(t *testing.T) {
	db := newTestDB(t)
	branches := seedBranches(t, db, "dakar", "abidjan", "bamako", "lome")
	r := NewResolver(db)

	// All three sources at once: memberships on two branches, the legacy
	// pointer at the first, and an owner whose enterprise spans the first
	// branch plus a fourth one. The actor sees the full union; the unrelated
	// third branch stays invisible.
	require.NoError(t, db.Create(&model.Membership{UserID: 30, BranchID: branches[0].ID}).Error)
	require.NoError(t, db.Create(&model.Membership{UserID: 30, BranchID: branches[1].ID}).Error)
	require.NoError(t, db.Create(&model.AgencySubscription{BranchID: branches[0].ID, OwnerUserID: 1}).Error)
	require.NoError(t, db.Create(&model.AgencySubscription{BranchID: branches[3].ID, OwnerUserID: 1}).Error)
	require.NoError(t, db.Create(&model.AgencySubscription{BranchID: branches[2].ID, OwnerUserID: 2}).Error)

	staff := Actor{
		UserID:        30,
		Role:          RoleEmployee,
		BranchID:      &branches[0].ID,
		Authenticated: true,
	}
	got := r.VisibleBranchIDs(staff)
	assert.Equal(t, []uint{branches[0].ID, branches[1].ID, branches[3].ID}, got)
	assert.NotContains(t, got, branches[2].ID)
}

func TestVisibleBranchIDsSuperAdminEmptyDatabase(t *testing.T) {
	r := NewResolver(newTestDB(t))

	admin := Actor{UserID: 1, Role: RoleIT, PlatformRole: SuperAdminPlatform, Authenticated: true}
	got := r.VisibleBranchIDs(admin)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestVisibleBranchIDsSuperAdmin(t *testing.T) {
	db := newTestDB(t)
	branches := seedBranches(t, db, "dakar", "abidjan", "bamako")
	r := NewResolver(db)

	admin := Actor{UserID: 1, Role: RoleIT, PlatformRole: SuperAdminPlatform, Authenticated: true}
	assert.Len(t, r.VisibleBranchIDs(admin), 3)

	admin.ScopeBranchID = &branches[1].ID
	assert.Equal(t, []uint{branches[1].ID}, r.VisibleBranchIDs(admin))
}

func TestCanAccessBranchNilOrZeroNeverGrants(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(db)

	actor := Actor{UserID: 1, Role: RoleFounder, Authenticated: true}
	assert.False(t, r.CanAccessBranch(nil, actor))
	assert.False(t, r.CanAccessBranch(uintPtr(0), actor))
}

func TestScopeQueryEmptyScopeLeaksNothing(t *testing.T) {
	db := newTestDB(t)
	branches := seedBranches(t, db, "dakar")
	r := NewResolver(db)

	require.NoError(t, db.Create(&model.Student{
		BranchID: &branches[0].ID, Matricule: "M1",
		LastName: "Diop", FirstNames: "Awa", Gender: "F",
		FieldOfStudy: "droit", Level: "L3", Promotion: "2026",
	}).Error)

	// Authenticated actor with no memberships and no branch pointer.
	orphan := Actor{UserID: 99, Role: RoleEmployee, Authenticated: true}
	var students []model.Student
	require.NoError(t, r.ScopeQuery(db.Model(&model.Student{}), &model.Student{}, orphan).Find(&students).Error)
	assert.Empty(t, students)

	var unauthStudents []model.Student
	require.NoError(t, r.ScopeQuery(db.Model(&model.Student{}), &model.Student{}, Anonymous()).Find(&unauthStudents).Error)
	assert.Empty(t, unauthStudents)
}

func TestScopeQueryFiltersByVisibleBranches(t *testing.T) {
	db := newTestDB(t)
	branches := seedBranches(t, db, "dakar", "abidjan")
	r := NewResolver(db)

	for _, b := range branches {
		require.NoError(t, db.Create(&model.Student{
			BranchID: &b.ID, Matricule: "M" + b.Slug,
			LastName: "Diop", FirstNames: "Awa", Gender: "F",
			FieldOfStudy: "droit", Level: "L3", Promotion: "2026",
		}).Error)
	}

	actor := Actor{UserID: 10, Role: RoleEmployee, BranchID: &branches[0].ID, Authenticated: true}
	var students []model.Student
	require.NoError(t, r.ScopeQuery(db.Model(&model.Student{}), &model.Student{}, actor).Find(&students).Error)
	require.Len(t, students, 1)
	assert.Equal(t, branches[0].ID, *students[0].BranchID)
}

func TestScopeQuerySuperAdminDrillDown(t *testing.T) {
	db := newTestDB(t)
	branches := seedBranches(t, db, "dakar", "abidjan")
	r := NewResolver(db)

	for _, b := range branches {
		require.NoError(t, db.Create(&model.Student{
			BranchID: &b.ID, Matricule: "M" + b.Slug,
			LastName: "Diop", FirstNames: "Awa", Gender: "F",
			FieldOfStudy: "droit", Level: "L3", Promotion: "2026",
		}).Error)
	}

	admin := Actor{UserID: 1, Role: RoleIT, PlatformRole: SuperAdminPlatform, Authenticated: true}

	var all []model.Student
	require.NoError(t, r.ScopeQuery(db.Model(&model.Student{}), &model.Student{}, admin).Find(&all).Error)
	assert.Len(t, all, 2)

	admin.ScopeBranchID = &branches[1].ID
	var scoped []model.Student
	require.NoError(t, r.ScopeQuery(db.Model(&model.Student{}), &model.Student{}, admin).Find(&scoped).Error)
	require.Len(t, scoped, 1)
	assert.Equal(t, branches[1].ID, *scoped[0].BranchID)
}

func TestScopeQueryPassThroughWithoutBranchColumn(t *testing.T) {
	db := newTestDB(t)
	seedBranches(t, db, "dakar", "abidjan")
	r := NewResolver(db)

	// Branch itself carries no branch_id column; the scope does not apply.
	var branches []model.Branch
	actor := Actor{UserID: 10, Role: RoleEmployee, Authenticated: true}
	require.NoError(t, r.ScopeQuery(db.Model(&model.Branch{}), &model.Branch{}, actor).Find(&branches).Error)
	assert.Len(t, branches, 2)
}

func TestScopeQueryExcludesArchivedStudents(t *testing.T) {
	db := newTestDB(t)
	branches := seedBranches(t, db, "dakar")
	r := NewResolver(db)

	keep := model.Student{
		BranchID: &branches[0].ID, Matricule: "KEEP",
		LastName: "Diop", FirstNames: "Awa", Gender: "F",
		FieldOfStudy: "droit", Level: "L3", Promotion: "2026",
	}
	archive := model.Student{
		BranchID: &branches[0].ID, Matricule: "GONE",
		LastName: "Ba", FirstNames: "Moussa", Gender: "M",
		FieldOfStudy: "info", Level: "M1", Promotion: "2025",
	}
	require.NoError(t, db.Create(&keep).Error)
	require.NoError(t, db.Create(&archive).Error)
	require.NoError(t, db.Delete(&archive).Error)

	actor := Actor{UserID: 10, Role: RoleEmployee, BranchID: &branches[0].ID, Authenticated: true}
	var students []model.Student
	require.NoError(t, r.ScopeQuery(db.Model(&model.Student{}), &model.Student{}, actor).Find(&students).Error)
	require.Len(t, students, 1)
	assert.Equal(t, "KEEP", students[0].Matricule)
}
