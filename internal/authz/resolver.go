package authz

import (
	"reflect"
	"sort"

	"gorm.io/gorm"

	"github.com/EUDYDEV/eproject-saas/internal/model"
)

// Resolver computes which branches an actor may see and applies that scope to
// queries. It is the single place tenant visibility is decided.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a scope resolver bound to the given database.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// VisibleBranchIDs returns the sorted set of branch ids the actor may access.
// Unauthenticated actors get nil; authenticated actors always get a non-nil
// set, possibly empty. A platform super admin sees every branch unless the
// session-scoped IT drill-down narrows visibility to one.
func (r *Resolver) VisibleBranchIDs(actor Actor) []uint {
	if !actor.Authenticated {
		return nil
	}

	if actor.IsSuperAdmin() {
		if actor.ScopeBranchID != nil && *actor.ScopeBranchID != 0 {
			return []uint{*actor.ScopeBranchID}
		}
		all := make([]uint, 0)
		r.db.Model(&model.Branch{}).Order("id").Pluck("id", &all)
		return all
	}

	ids := make(map[uint]struct{})

	var membershipIDs []uint
	r.db.Model(&model.Membership{}).Where("user_id = ?", actor.UserID).Pluck("branch_id", &membershipIDs)
	for _, id := range membershipIDs {
		ids[id] = struct{}{}
	}

	// Compat transition: keep the legacy branch link while memberships are
	// backfilled.
	if actor.BranchID != nil && *actor.BranchID != 0 {
		ids[*actor.BranchID] = struct{}{}
	}

	// Business rule: branch staff can see enterprise-wide data.
	if actor.Role.IsBranchScoped() {
		for id := range r.enterpriseBranchIDs(actor) {
			ids[id] = struct{}{}
		}
	}

	return sortedIDs(ids)
}

// enterpriseBranchIDs returns all branch ids belonging to the same owner
// enterprise as the actor's own branch.
func (r *Resolver) enterpriseBranchIDs(actor Actor) map[uint]struct{} {
	if actor.BranchID == nil || *actor.BranchID == 0 {
		return nil
	}

	var ownSub model.AgencySubscription
	if err := r.db.Where("branch_id = ?", *actor.BranchID).First(&ownSub).Error; err != nil {
		return nil
	}
	if ownSub.OwnerUserID == 0 {
		return nil
	}

	ids := make(map[uint]struct{})

	var subBranchIDs []uint
	r.db.Model(&model.AgencySubscription{}).
		Where("owner_user_id = ?", ownSub.OwnerUserID).
		Pluck("branch_id", &subBranchIDs)
	for _, id := range subBranchIDs {
		if id != 0 {
			ids[id] = struct{}{}
		}
	}

	// Owner memberships can include enterprise branches not yet mirrored in
	// subscriptions.
	var ownerMembershipIDs []uint
	r.db.Model(&model.Membership{}).
		Where("user_id = ?", ownSub.OwnerUserID).
		Pluck("branch_id", &ownerMembershipIDs)
	for _, id := range ownerMembershipIDs {
		if id != 0 {
			ids[id] = struct{}{}
		}
	}

	return ids
}

// CanAccessBranch reports whether the actor may touch the given branch. A nil
// or zero branch id never grants access.
func (r *Resolver) CanAccessBranch(branchID *uint, actor Actor) bool {
	if !actor.Authenticated {
		return false
	}
	if branchID == nil || *branchID == 0 {
		return false
	}
	if actor.IsSuperAdmin() {
		return true
	}
	for _, id := range r.VisibleBranchIDs(actor) {
		if id == *branchID {
			return true
		}
	}
	return false
}

// ScopeQuery narrows a query to the actor's visible branches. Models without
// a BranchID column pass through untouched; soft-deleted rows are excluded by
// the ORM's deleted_at handling on models that carry it. An empty visible set
// for a non-super-admin actor short-circuits to zero rows instead of leaking
// an unfiltered query.
func (r *Resolver) ScopeQuery(q *gorm.DB, entity interface{}, actor Actor) *gorm.DB {
	if !hasBranchColumn(entity) {
		return q
	}

	if !actor.Authenticated {
		return q.Where("1 = 0")
	}

	if actor.IsSuperAdmin() {
		if actor.ScopeBranchID != nil && *actor.ScopeBranchID != 0 {
			return q.Where("branch_id = ?", *actor.ScopeBranchID)
		}
		return q
	}

	allowed := r.VisibleBranchIDs(actor)
	if len(allowed) == 0 {
		return q.Where("1 = 0")
	}
	return q.Where("branch_id IN ?", allowed)
}

// hasBranchColumn reports whether the entity struct carries a BranchID field.
func hasBranchColumn(entity interface{}) bool {
	t := reflect.TypeOf(entity)
	for t != nil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return false
	}
	_, ok := t.FieldByName("BranchID")
	return ok
}

func sortedIDs(set map[uint]struct{}) []uint {
	out := make([]uint, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
