package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seededIndex() *Index {
	return NewIndex(
		ResourceEntry{ID: "light_corridor", Name: "走廊灯", Location: "走廊", DeviceType: "light", Kind: "device"},
		ResourceEntry{ID: "light_living_room", Name: "客厅灯", Location: "客厅", DeviceType: "light", Kind: "device"},
	)
}

func TestResolveDeviceS6CompoundDecomposition(t *testing.T) {
	r := NewResolver(seededIndex(), NewAliasTables())
	res, err := r.ResolveDevice("走廊灯")
	require.NoError(t, err)
	require.Equal(t, "light_corridor", res.DeviceID)
	require.Equal(t, MatchLocation, res.MatchType)
}

func TestRewriteDeviceArgS6(t *testing.T) {
	r := NewResolver(seededIndex(), NewAliasTables())
	args := map[string]any{"device": "走廊灯"}
	r.RewriteDeviceArg(args, "device", "device_id")

	require.Equal(t, "light_corridor", args["device_id"])
	require.Equal(t, "走廊灯", args["_device_name"])
	require.Equal(t, "Location", args["_match_type"])
	_, hasOld := args["device"]
	require.False(t, hasOld)
}

func TestResolveDeviceExactEnglishMatch(t *testing.T) {
	idx := NewIndex(ResourceEntry{ID: "sensor_001", Name: "kitchen sensor", Location: "kitchen", DeviceType: "sensor"})
	r := NewResolver(idx, NewAliasTables())
	res, err := r.ResolveDevice("kitchen sensor")
	require.NoError(t, err)
	require.Equal(t, "sensor_001", res.DeviceID)
}

func TestResolveDeviceUnresolvable(t *testing.T) {
	r := NewResolver(seededIndex(), NewAliasTables())
	_, err := r.ResolveDevice("completely unrelated gibberish xyz")
	require.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	require.Equal(t, LangChinese, DetectLanguage("走廊灯"))
	require.Equal(t, LangEnglish, DetectLanguage("living room light"))
	require.Equal(t, LangMixed, DetectLanguage("走廊灯light"))
}

func TestAddAliasExtendsRuntime(t *testing.T) {
	tbl := NewAliasTables()
	tbl.AddAlias("location", "主卧", "master_bedroom")
	canon, ok := tbl.MatchLocationToken("主卧")
	require.True(t, ok)
	require.Equal(t, "master_bedroom", canon)
}
