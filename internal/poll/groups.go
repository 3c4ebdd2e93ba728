package poll

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Remijang/cnl-final-project-sub000/internal/apperr"
	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
	"github.com/Remijang/cnl-final-project-sub000/internal/store"
)

// Groups manages the user groups that InviteGroup expands.
type Groups struct {
	runner *database.Runner
}

func NewGroups(runner *database.Runner) *Groups {
	return &Groups{runner: runner}
}

func (g *Groups) Create(ctx context.Context, ownerID int64, name string) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	var grp *model.Group
	err := g.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		grp, err = store.New(tx).Groups.Create(ctx, ownerID, name)
		return err
	})
	return grp, err
}

func requireGroupOwner(ctx context.Context, st *store.Stores, groupID, callerID int64) error {
	grp, err := st.Groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if grp == nil {
		return apperr.NotFound("group %d", groupID)
	}
	if grp.OwnerID != callerID {
		return apperr.PermissionDenied("group %d is not owned by user %d", groupID, callerID)
	}
	return nil
}

func (g *Groups) AddMember(ctx context.Context, groupID, callerID, userID int64) error {
	return g.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		if err := requireGroupOwner(ctx, st, groupID, callerID); err != nil {
			return err
		}
		u, err := st.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound("user %d", userID)
		}
		return st.Groups.AddMember(ctx, groupID, userID)
	})
}

func (g *Groups) RemoveMember(ctx context.Context, groupID, callerID, userID int64) error {
	return g.runner.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		if err := requireGroupOwner(ctx, st, groupID, callerID); err != nil {
			return err
		}
		removed, err := st.Groups.RemoveMember(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("user %d in group %d", userID, groupID)
		}
		return nil
	})
}

func (g *Groups) Members(ctx context.Context, groupID int64) ([]int64, error) {
	var ids []int64
	err := g.runner.Read(ctx, func(ctx context.Context, q database.Querier) error {
		st := store.New(q)
		grp, err := st.Groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if grp == nil {
			return apperr.NotFound("group %d", groupID)
		}
		ids, err = st.Groups.MemberIDs(ctx, groupID)
		return err
	})
	if ids == nil && err == nil {
		ids = []int64{}
	}
	return ids, err
}
