package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/holo-host/hpos-core/pkg/log"
	"github.com/holo-host/hpos-core/pkg/types"
)

// HosterMatch is the projection the callout's hoster-validation stage
// consumes: jurisdiction, hoster pubkey, the hoster row's id, and the
// paired user_info email — exactly the fields §4.2.1 step 4 projects.
type HosterMatch struct {
	HosterID     types.DocID
	UserID       types.DocID
	Jurisdiction types.Jurisdiction
	Pubkey       string
	Email        string
}

// FindHosterByPubkey runs the 5-stage aggregation the design describes as
// match-user-by-hoster-pubkey, join-user-info, join-hoster, project — as
// a single parameterized SQL query, returning the same shape a 5-stage
// document-store aggregation would. Multiple matches are a warn-and-
// take-first condition per the design's Open Question Q2.
func (d *DB) FindHosterByPubkey(ctx context.Context, pubkey string) (HosterMatch, error) {
	var matches []struct {
		HosterID     []byte `db:"hoster_id"`
		UserID       []byte `db:"user_id"`
		Jurisdiction string `db:"jurisdiction"`
		Pubkey       string `db:"pubkey"`
		Email        string `db:"email"`
	}

	err := d.withBreaker(ctx, func(ctx context.Context) error {
		return d.sqlx.SelectContext(ctx, &matches, `
			SELECT h.id AS hoster_id, u.id AS user_id, u.jurisdiction, h.pubkey, ui.email
			FROM hosters h
			JOIN users u ON u.id = h.user_id
			JOIN user_infos ui ON ui.user_id = u.id
			WHERE h.pubkey = $1
		`, pubkey)
	})
	if err != nil {
		return HosterMatch{}, fmt.Errorf("store: find hoster by pubkey: %w", err)
	}
	if len(matches) == 0 {
		return HosterMatch{}, errNotFound
	}
	if len(matches) > 1 {
		log.Warn(fmt.Sprintf("store: %d hosters matched pubkey %q, taking the first", len(matches), pubkey))
	}

	m := matches[0]
	hosterID, err := docIDFromBytes(m.HosterID)
	if err != nil {
		return HosterMatch{}, err
	}
	userID, err := docIDFromBytes(m.UserID)
	if err != nil {
		return HosterMatch{}, err
	}
	return HosterMatch{
		HosterID:     hosterID,
		UserID:       userID,
		Jurisdiction: types.Jurisdiction(m.Jurisdiction),
		Pubkey:       m.Pubkey,
		Email:        m.Email,
	}, nil
}

// AppendAssignedHost records hostID under hosterID by calling
// AssignHoster: the only stored link is hosts.assigned_hoster_id, and a
// hoster's assigned hosts are the hosts whose column names it, so one
// write keeps both sides of the Host<->Hoster reference in I4 consistent.
func (d *DB) AppendAssignedHost(ctx context.Context, hosterID, hostID types.DocID) error {
	return d.AssignHoster(ctx, hostID, hosterID)
}

// CreateHoster inserts a hoster row for an existing user.
func (d *DB) CreateHoster(ctx context.Context, h types.Hoster) (types.Hoster, error) {
	if h.ID.IsZero() {
		h.ID = newDocID()
	}
	err := d.withBreaker(ctx, func(ctx context.Context) error {
		_, err := d.sqlx.ExecContext(ctx, `
			INSERT INTO hosters (id, user_id, pubkey) VALUES ($1, $2, $3)
		`, h.ID[:], h.UserID[:], h.Pubkey)
		return err
	})
	if err != nil {
		return types.Hoster{}, fmt.Errorf("store: create hoster: %w", err)
	}
	return h, nil
}

// CreateUser inserts a user row with an optional linked UserInfo.
func (d *DB) CreateUser(ctx context.Context, u types.User, info types.UserInfo) (types.User, error) {
	if u.ID.IsZero() {
		u.ID = newDocID()
	}
	if info.ID.IsZero() {
		info.ID = newDocID()
	}
	info.UserID = u.ID
	u.UserInfoID = &info.ID

	err := d.withBreaker(ctx, func(ctx context.Context) error {
		tx, err := d.sqlx.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, jurisdiction, permissions, user_info_id)
			VALUES ($1, $2, $3, $4)
		`, u.ID[:], string(u.Jurisdiction), pq.Array(permissionStrings(u.Permissions)), info.ID[:]); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_infos (id, user_id, email, given_name, family_name)
			VALUES ($1, $2, $3, $4, $5)
		`, info.ID[:], u.ID[:], info.Email, info.GivenName, info.FamilyName); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return types.User{}, fmt.Errorf("store: create user: %w", err)
	}
	return u, nil
}

func permissionStrings(perms []types.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
