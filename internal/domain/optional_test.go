package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionalTracksPresence(t *testing.T) {
	var patch ProductPatch
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Lahmacun","categoryId":null}`), &patch))

	name, ok := patch.Name.Get()
	require.True(t, ok)
	require.Equal(t, "Lahmacun", name)

	require.True(t, patch.CategoryID.Set)
	require.True(t, patch.CategoryID.Null)
	require.False(t, patch.StockItemID.Set)
	require.False(t, patch.Price.Set)
}

func TestOptionalPtr(t *testing.T) {
	current := "cat-1"

	require.Equal(t, &current, Optional[string]{}.Ptr(&current))
	require.Nil(t, Null[string]().Ptr(&current))
	require.Equal(t, "cat-2", *Some("cat-2").Ptr(&current))
}
