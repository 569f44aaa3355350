package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitKey(t *testing.T) {
	asset, entry, ok := SplitKey("Strings/Strings:askToFollow")
	require.True(t, ok)
	assert.Equal(t, "Strings/Strings", asset)
	assert.Equal(t, "askToFollow", entry)

	for _, bad := range []string{"", "noColon", ":entry", "Asset:"} {
		_, _, ok := SplitKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestYAMLLoader(t *testing.T) {
	l := NewYAMLLoader("testdata")

	text, ok := l.LoadString("Strings/Strings:askToFollow", "Abigail")
	require.True(t, ok)
	assert.Equal(t, "Ask Abigail to follow you?", text)

	text, ok = l.LoadString("Dialogue/Abigail:companion_Beach")
	require.True(t, ok)
	assert.Equal(t, "The sea always makes me feel small.", text)

	text, ok = l.LoadString("Dialogue/Abigail:companion_Mines")
	assert.False(t, ok)
	assert.Equal(t, "Dialogue/Abigail:companion_Mines", text)

	_, ok = l.LoadString("Dialogue/Maru:companionAccepted")
	assert.False(t, ok)

	table, err := l.LoadStrings("Dialogue/Abigail")
	require.NoError(t, err)
	assert.Len(t, table, 2)

	_, err = l.LoadStrings("Dialogue/Maru")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = l.LoadStrings("Dialogue/Broken")
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	s := Static{
		"Strings/Strings:companionBusy":      "{0} is busy.",
		"Dialogue/Abigail:companionAccepted": "Let's go!",
	}

	text, ok := s.LoadString("Strings/Strings:companionBusy", "Maru")
	require.True(t, ok)
	assert.Equal(t, "Maru is busy.", text)

	table, err := s.LoadStrings("Dialogue/Abigail")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"companionAccepted": "Let's go!"}, table)

	_, err = s.LoadStrings("Dialogue/Maru")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestFallback(t *testing.T) {
	f := Fallback{Primary: NewYAMLLoader("testdata"), Secondary: Builtin}

	text, ok := f.LoadString("Strings/Strings:companionSuggest", "Abigail")
	require.True(t, ok)
	assert.Equal(t, "Abigail looks like they want to go on an adventure.", text, "primary wins")

	text, ok = f.LoadString("Strings/Strings:claim_taken", "Maru")
	require.True(t, ok)
	assert.Equal(t, "Maru is already with someone else.", text)

	_, ok = f.LoadString("Strings/Strings:nope")
	assert.False(t, ok)

	table, err := f.LoadStrings("Strings/Strings")
	require.NoError(t, err)
	assert.Equal(t, "{0} looks like they want to go on an adventure.", table["companionSuggest"])
	assert.Equal(t, "Yes", table["choice_yes"])

	table, err = f.LoadStrings("Dialogue/Abigail")
	require.NoError(t, err)
	assert.Len(t, table, 2)

	_, err = f.LoadStrings("Dialogue/Maru")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = f.LoadStrings("Dialogue/Broken")
	assert.Error(t, err)
}
