package rbac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasAny(t *testing.T) {
	granted := NewSet(Sales, Orders)

	require.True(t, HasAny(NewSet(Orders, Kitchen), granted))
	require.False(t, HasAny(NewSet(Users), granted))
	require.True(t, HasAny(NewSet(), granted))
	require.False(t, HasAny(NewSet(Sales), NewSet()))
}

func TestHasAll(t *testing.T) {
	require.True(t, HasAll(NewSet(Sales), All()))
	require.False(t, HasAll(NewSet(Sales, Users), NewSet(Sales)))
}

func TestParseSetRejectsUnknownKeys(t *testing.T) {
	set, err := ParseSet([]string{" Sales ", "kitchen"})
	require.NoError(t, err)
	require.Equal(t, []string{"kitchen", "sales"}, set.Strings())

	_, err = ParseSet([]string{"root"})
	require.Error(t, err)
}

func TestSetJSON(t *testing.T) {
	out, err := json.Marshal(NewSet(Stock, Dashboard))
	require.NoError(t, err)
	require.JSONEq(t, `["dashboard","stock"]`, string(out))

	var back Set
	require.NoError(t, json.Unmarshal(out, &back))
	require.True(t, back.Has(Stock))
}

func TestBuiltinAdminHoldsEveryPermission(t *testing.T) {
	roles := BuiltinRoles()
	require.Equal(t, AdminRole, roles[0].Name)
	for _, d := range Catalog() {
		require.True(t, roles[0].Permissions.Has(d.Key), d.Key)
	}
}
