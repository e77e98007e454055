package acl

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db DBTX
}

// NewPGStore binds a store to db, normally the request's transaction.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

// ClientUser resolves a client id to its user.
func (s *PGStore) ClientUser(ctx context.Context, clientID int64) (User, error) {
	const query = `SELECT u.id, u.is_active FROM client c JOIN users u ON u.id = c.user_id WHERE c.id = $1`
	var user User
	if err := s.db.QueryRow(ctx, query, clientID).Scan(&user.ID, &user.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrClientNotFound
		}
		return User{}, fmt.Errorf("acl: client user: %w", err)
	}
	return user, nil
}

// MemberGrants lists grants held by the user through membership m.
func (s *PGStore) MemberGrants(ctx context.Context, userID int64, m Membership, subject string) ([]Grant, error) {
	return s.grants(ctx, grantQuery{membership: m, userID: userID, subject: subject})
}

// HasGrant runs one existence check.
func (s *PGStore) HasGrant(ctx context.Context, userID int64, m Membership, subject, action string, ref SubjectRef) (bool, error) {
	sql, args, err := grantQuery{membership: m, userID: userID, subject: subject, action: action, ref: &ref}.existsSQL()
	if err != nil {
		return false, err
	}
	var ok bool
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("acl: has grant: %w", err)
	}
	return ok, nil
}

// SubjectGrants lists every group of subject whose scope matches ref.
func (s *PGStore) SubjectGrants(ctx context.Context, subject string, ref SubjectRef) ([]Grant, error) {
	return s.grants(ctx, grantQuery{subject: subject, ref: &ref})
}

// PerspectiveState returns the state of the perspective with the given id.
func (s *PGStore) PerspectiveState(ctx context.Context, id CompositeID) (string, error) {
	const query = `SELECT state FROM dictionaryperspective WHERE client_id = $1 AND object_id = $2`
	var state string
	if err := s.db.QueryRow(ctx, query, id.ClientID, id.ObjectID).Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrPerspectiveNotFound
		}
		return "", fmt.Errorf("acl: perspective state: %w", err)
	}
	return state, nil
}

func (s *PGStore) grants(ctx context.Context, q grantQuery) ([]Grant, error) {
	sql, args, err := q.selectSQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("acl: list grants: %w", err)
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var (
			grant    Grant
			override bool
			clientID *int64
			objectID *int64
		)
		if err := rows.Scan(&grant.GroupID, &grant.Subject, &grant.Action, &override, &clientID, &objectID); err != nil {
			return nil, fmt.Errorf("acl: scan grant: %w", err)
		}
		scope, ok := decodeScope(override, clientID, objectID)
		if !ok {
			continue
		}
		grant.Scope = scope
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("acl: list grants: %w", err)
	}
	return grants, nil
}

var _ Store = (*PGStore)(nil)
