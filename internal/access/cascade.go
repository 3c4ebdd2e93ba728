package access

import (
	"context"

	"github.com/Remijang/cnl-final-project-sub000/internal/model"
	"github.com/Remijang/cnl-final-project-sub000/internal/store"
)

// Cascades run on stores bound to the caller's transaction so grants and
// subscriptions change together. Touching zero rows is a valid outcome.

type cascadeResult struct {
	revoked      []int64
	unsubscribed int64
}

// onVisibilityOff drops every non-owner subscription except those of users
// holding an explicit read grant.
func onVisibilityOff(ctx context.Context, st *store.Stores, cal *model.Calendar) (cascadeResult, error) {
	keep, err := st.Grants.ListUserIDsWithRole(ctx, cal.ID, model.RoleRead)
	if err != nil {
		return cascadeResult{}, err
	}
	keep = append(keep, cal.OwnerID)
	n, err := st.Subscriptions.DeleteExcept(ctx, cal.ID, keep)
	if err != nil {
		return cascadeResult{}, err
	}
	return cascadeResult{unsubscribed: n}, nil
}

// onReadLinkOff revokes every grant on the calendar, both roles, and
// unsubscribes every user who lost a grant.
func onReadLinkOff(ctx context.Context, st *store.Stores, cal *model.Calendar) (cascadeResult, error) {
	revoked, err := st.Grants.RevokeAll(ctx, cal.ID, nil)
	if err != nil {
		return cascadeResult{}, err
	}
	n, err := st.Subscriptions.DeleteUsers(ctx, cal.ID, withoutID(revoked, cal.OwnerID))
	if err != nil {
		return cascadeResult{}, err
	}
	return cascadeResult{revoked: revoked, unsubscribed: n}, nil
}

// onWriteLinkOff revokes write grants only. Read rows survive, so a
// subscription is dropped only for a user left with no read access.
func onWriteLinkOff(ctx context.Context, st *store.Stores, cal *model.Calendar) (cascadeResult, error) {
	role := model.RoleWrite
	revoked, err := st.Grants.RevokeAll(ctx, cal.ID, &role)
	if err != nil {
		return cascadeResult{}, err
	}
	n, err := dropUnreadable(ctx, st, cal, revoked)
	if err != nil {
		return cascadeResult{}, err
	}
	return cascadeResult{revoked: revoked, unsubscribed: n}, nil
}

// onRevokeReadGrant removes the user's subscription unconditionally, even
// if the calendar is still visible to them.
func onRevokeReadGrant(ctx context.Context, st *store.Stores, cal *model.Calendar, userID int64) (cascadeResult, error) {
	deleted, err := st.Subscriptions.Delete(ctx, userID, cal.ID)
	if err != nil {
		return cascadeResult{}, err
	}
	res := cascadeResult{revoked: []int64{userID}}
	if deleted {
		res.unsubscribed = 1
	}
	return res, nil
}

// dropUnreadable removes the subscriptions of those users who can no
// longer read the calendar.
func dropUnreadable(ctx context.Context, st *store.Stores, cal *model.Calendar, userIDs []int64) (int64, error) {
	var lost []int64
	for _, id := range userIDs {
		ok, err := canRead(ctx, st, cal, id)
		if err != nil {
			return 0, err
		}
		if !ok {
			lost = append(lost, id)
		}
	}
	return st.Subscriptions.DeleteUsers(ctx, cal.ID, lost)
}

func withoutID(ids []int64, drop int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
