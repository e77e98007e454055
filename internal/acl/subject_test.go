package acl_test

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingvodoc/lingvodoc/internal/acl"
)

func TestSubjectRefFrom(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want acl.SubjectRef
	}{
		{name: "nil", in: nil, want: acl.NotYetCreated()},
		{name: "int", in: 9, want: acl.ByID(9)},
		{name: "int64", in: int64(9), want: acl.ByID(9)},
		{name: "composite", in: acl.CompositeID{ClientID: 3, ObjectID: 9}, want: acl.ByComposite(3, 9)},
		{name: "array", in: [2]int64{3, 9}, want: acl.ByComposite(3, 9)},
		{name: "slice", in: []int64{3, 9}, want: acl.ByComposite(3, 9)},
		{name: "int slice", in: []int{3, 9}, want: acl.ByComposite(3, 9)},
		{name: "nil pointer", in: (*acl.CompositeID)(nil), want: acl.NotYetCreated()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := acl.SubjectRefFrom(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSubjectRefFromRejectsUnknownShapes(t *testing.T) {
	for _, in := range []any{"3:9", 3.5, []int64{1, 2, 3}, []int{1}, map[string]int{"client_id": 3}} {
		_, err := acl.SubjectRefFrom(in)
		assert.ErrorIs(t, err, acl.ErrUnsupportedSubjectID, "%#v", in)
	}
}

func TestSubjectRefJSON(t *testing.T) {
	var payload struct {
		ID acl.SubjectRef `json:"subject_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"subject_id":[3,9]}`), &payload))
	assert.Equal(t, acl.ByComposite(3, 9), payload.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"subject_id":9}`), &payload))
	assert.Equal(t, acl.ByID(9), payload.ID)

	payload.ID = acl.ByID(1)
	require.NoError(t, json.Unmarshal([]byte(`{"subject_id":null}`), &payload))
	assert.True(t, payload.ID.IsNotYetCreated())

	err := json.Unmarshal([]byte(`{"subject_id":"3:9"}`), &payload)
	assert.ErrorIs(t, err, acl.ErrUnsupportedSubjectID)
	err = json.Unmarshal([]byte(`{"subject_id":[3]}`), &payload)
	assert.ErrorIs(t, err, acl.ErrUnsupportedSubjectID)

	out, err := json.Marshal(acl.ByComposite(3, 9))
	require.NoError(t, err)
	assert.JSONEq(t, `[3,9]`, string(out))
}

func TestSubjectRefFromQuery(t *testing.T) {
	ref, err := acl.SubjectRefFromQuery(url.Values{"client_id": {"3"}, "object_id": {"9"}})
	require.NoError(t, err)
	assert.Equal(t, acl.ByComposite(3, 9), ref)

	ref, err = acl.SubjectRefFromQuery(url.Values{"object_id": {"9"}})
	require.NoError(t, err)
	assert.Equal(t, acl.ByID(9), ref)

	ref, err = acl.SubjectRefFromQuery(url.Values{})
	require.NoError(t, err)
	assert.True(t, ref.IsNotYetCreated())

	_, err = acl.SubjectRefFromQuery(url.Values{"client_id": {"3"}})
	assert.ErrorIs(t, err, acl.ErrUnsupportedSubjectID)
	_, err = acl.SubjectRefFromQuery(url.Values{"object_id": {"nine"}})
	assert.ErrorIs(t, err, acl.ErrUnsupportedSubjectID)
}

func TestPrincipalFormat(t *testing.T) {
	assert.Equal(t, "edit:dictionary:3:9", acl.FormatPrincipal(acl.ActionEdit, acl.SubjectDictionary, acl.AtComposite(3, 9)))
	assert.Equal(t, "delete:language:9", acl.FormatPrincipal(acl.ActionDelete, acl.SubjectLanguage, acl.AtObject(9)))
	assert.Equal(t, "create:organization:*", acl.FormatPrincipal(acl.ActionCreate, acl.SubjectOrganization, acl.Override()))
}

func TestACEPermits(t *testing.T) {
	principals := acl.NewPrincipals("edit:dictionary:3:9")

	entry := acl.ACE{Action: acl.ActionEdit, Principal: "edit:dictionary:3:9", Permission: acl.Named(acl.ActionEdit)}
	assert.True(t, entry.Permits(principals, acl.ActionEdit))
	assert.False(t, entry.Permits(principals, acl.ActionView))
	assert.False(t, entry.Permits(acl.NewPrincipals(), acl.ActionEdit))

	admin := acl.ACE{Action: acl.AllActions, Principal: acl.AdminPrincipal, Permission: acl.AllPermissions()}
	assert.True(t, admin.Permits(acl.NewPrincipals(acl.AdminPrincipal), "anything"))
	assert.False(t, admin.Permits(principals, acl.ActionView))

	out, err := json.Marshal(admin)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"*","principal":"Admin","permission":"ALL_PERMISSIONS"}`, string(out))
}
