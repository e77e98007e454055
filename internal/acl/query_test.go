package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantQueryDirectExists(t *testing.T) {
	ref := ByComposite(3, 9)
	sql, args, err := grantQuery{membership: MembershipDirect, userID: 7, subject: SubjectDictionary, action: ActionEdit, ref: &ref}.existsSQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT EXISTS (SELECT 1 FROM "group" g JOIN basegroup b ON b.id = g.base_group_id`+
		` JOIN user_to_group_association ug ON ug.group_id = g.id`+
		` WHERE ug.user_id = $1 AND b.subject = $2 AND b.action = $3`+
		` AND (g.subject_override OR (g.subject_client_id = $4 AND g.subject_object_id = $5)))`, sql)
	assert.Equal(t, []any{int64(7), SubjectDictionary, ActionEdit, int64(3), int64(9)}, args)
}

func TestGrantQueryOrganizationExcludesNonComposite(t *testing.T) {
	sql, args, err := grantQuery{membership: MembershipOrganization, userID: 4, subject: SubjectPerspective}.selectSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "JOIN user_to_organization_association uo ON uo.organization_id = og.organization_id")
	assert.Contains(t, sql, "NOT g.subject_override AND g.subject_client_id IS NOT NULL AND g.subject_object_id IS NOT NULL")
	assert.Contains(t, sql, "ORDER BY b.subject, b.action, g.id")
	assert.Equal(t, []any{int64(4), SubjectPerspective}, args)
}

func TestGrantQueryScopeConditions(t *testing.T) {
	object := ByID(9)
	sql, args, err := grantQuery{subject: SubjectLanguage, ref: &object}.selectSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "(g.subject_override OR (g.subject_client_id IS NULL AND g.subject_object_id = $2))")
	assert.Equal(t, []any{SubjectLanguage, int64(9)}, args)

	none := NotYetCreated()
	sql, _, err = grantQuery{subject: SubjectOrganization, ref: &none}.selectSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "AND g.subject_override ORDER BY")

	bad := SubjectRef{kind: refInvalid}
	_, _, err = grantQuery{ref: &bad}.existsSQL()
	assert.ErrorIs(t, err, ErrUnsupportedSubjectID)

	_, _, err = grantQuery{membership: Membership(9)}.existsSQL()
	assert.Error(t, err)
}

func TestDecodeScope(t *testing.T) {
	c, o := int64(3), int64(9)

	s, ok := decodeScope(true, nil, nil)
	assert.True(t, ok)
	assert.Equal(t, Override(), s)

	s, ok = decodeScope(false, &c, &o)
	assert.True(t, ok)
	assert.Equal(t, AtComposite(3, 9), s)

	s, ok = decodeScope(false, nil, &o)
	assert.True(t, ok)
	assert.Equal(t, AtObject(9), s)

	_, ok = decodeScope(false, &c, nil)
	assert.False(t, ok)
	_, ok = decodeScope(false, nil, nil)
	assert.False(t, ok)
}

func TestScopeMatches(t *testing.T) {
	assert.True(t, Override().Matches(NotYetCreated()))
	assert.True(t, Override().Matches(ByComposite(1, 2)))
	assert.True(t, AtComposite(3, 9).Matches(ByComposite(3, 9)))
	assert.False(t, AtComposite(3, 9).Matches(ByComposite(3, 10)))
	assert.False(t, AtComposite(3, 9).Matches(ByID(9)))
	assert.True(t, AtObject(9).Matches(ByID(9)))
	assert.False(t, AtObject(9).Matches(ByComposite(3, 9)))
	assert.False(t, AtObject(9).Matches(NotYetCreated()))
}
