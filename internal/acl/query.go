package acl

import (
	"fmt"
	"strings"
)

const grantColumns = `g.id, b.subject, b.action, g.subject_override, g.subject_client_id, g.subject_object_id`

// grantQuery describes a read over the group tables. Every grant lookup of
// PGStore, for either decision path, is rendered from one of these.
type grantQuery struct {
	// membership restricts to groups held by userID; zero means any holder.
	membership Membership
	userID     int64
	// subject and action filter on the base group when not empty.
	subject string
	action  string
	// ref restricts to groups whose scope matches it; nil means any scope.
	ref *SubjectRef
}

type sqlArgs struct {
	values []any
}

func (a *sqlArgs) add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

func (q grantQuery) render(args *sqlArgs) (from string, where []string, err error) {
	var b strings.Builder
	b.WriteString(`"group" g JOIN basegroup b ON b.id = g.base_group_id`)
	switch q.membership {
	case 0:
	case MembershipDirect:
		b.WriteString(` JOIN user_to_group_association ug ON ug.group_id = g.id`)
		where = append(where, "ug.user_id = "+args.add(q.userID))
	case MembershipOrganization:
		b.WriteString(` JOIN organization_to_group_association og ON og.group_id = g.id`)
		b.WriteString(` JOIN user_to_organization_association uo ON uo.organization_id = og.organization_id`)
		where = append(where, "uo.user_id = "+args.add(q.userID))
		where = append(where, "NOT g.subject_override", "g.subject_client_id IS NOT NULL", "g.subject_object_id IS NOT NULL")
	default:
		return "", nil, fmt.Errorf("acl: unknown membership %s", q.membership)
	}
	if q.subject != "" {
		where = append(where, "b.subject = "+args.add(q.subject))
	}
	if q.action != "" {
		where = append(where, "b.action = "+args.add(q.action))
	}
	if q.ref != nil {
		switch q.ref.kind {
		case refComposite:
			where = append(where, fmt.Sprintf("(g.subject_override OR (g.subject_client_id = %s AND g.subject_object_id = %s))",
				args.add(q.ref.clientID), args.add(q.ref.objectID)))
		case refObject:
			where = append(where, fmt.Sprintf("(g.subject_override OR (g.subject_client_id IS NULL AND g.subject_object_id = %s))",
				args.add(q.ref.objectID)))
		case refNotYetCreated:
			where = append(where, "g.subject_override")
		default:
			return "", nil, q.ref.validate()
		}
	}
	return b.String(), where, nil
}

// selectSQL renders a row-returning query in a stable order.
func (q grantQuery) selectSQL() (string, []any, error) {
	var args sqlArgs
	from, where, err := q.render(&args)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT DISTINCT " + grantColumns + " FROM " + from
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY b.subject, b.action, g.id"
	return sql, args.values, nil
}

// existsSQL renders a single boolean existence check.
func (q grantQuery) existsSQL() (string, []any, error) {
	var args sqlArgs
	from, where, err := q.render(&args)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT EXISTS (SELECT 1 FROM " + from
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += ")"
	return sql, args.values, nil
}

// decodeScope maps the three scope columns to a Scope. Rows violating the
// single-scope constraint report false and are ignored by callers.
func decodeScope(override bool, clientID, objectID *int64) (Scope, bool) {
	switch {
	case override:
		return Scope{Kind: ScopeOverride}, true
	case clientID != nil && objectID != nil:
		return Scope{Kind: ScopeComposite, ClientID: *clientID, ObjectID: *objectID}, true
	case clientID == nil && objectID != nil:
		return Scope{Kind: ScopeObject, ObjectID: *objectID}, true
	default:
		return Scope{}, false
	}
}
