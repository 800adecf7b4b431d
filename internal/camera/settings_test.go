package camera

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTree builds a small configuration tree in the shape the device
// reports: a root section, grouping sections, and typed leaves.
func testTree() *ConfigNode {
	root := &ConfigNode{Name: "main", Label: "Camera and Driver Configuration", Type: WidgetSection}

	img := root.AddChild(&ConfigNode{Name: "imgsettings", Label: "Image Settings", Type: WidgetSection})
	img.AddChild(&ConfigNode{
		Name: "iso", Label: "ISO Speed", Type: WidgetRadio,
		Value: "100", Choices: []string{"100", "200", "400", "800"},
	})
	img.AddChild(&ConfigNode{
		Name: "whitebalance", Label: "WhiteBalance", Type: WidgetRadio,
		Value: "Automatic", Choices: []string{"Automatic", "Daylight", "Tungsten"},
	})

	capt := root.AddChild(&ConfigNode{Name: "capturesettings", Label: "Capture Settings", Type: WidgetSection})
	capt.AddChild(&ConfigNode{
		Name: "exposurecompensation", Label: "Exposure Compensation", Type: WidgetRange,
		Value: "0", Min: -5, Max: 5, Step: 0.5,
	})
	capt.AddChild(&ConfigNode{
		Name: "autofocus", Label: "Autofocus", Type: WidgetToggle, Value: "0",
	})

	status := root.AddChild(&ConfigNode{Name: "status", Label: "Camera Status", Type: WidgetSection})
	status.AddChild(&ConfigNode{
		Name: "batterylevel", Label: "Battery Level", Type: WidgetText,
		Value: "100%", ReadOnly: true,
	})

	// An empty section the pruning must drop
	root.AddChild(&ConfigNode{Name: "other", Label: "Other", Type: WidgetSection})

	return root
}

// settingsSession wires a session to a fake conn serving one persistent
// tree, so a written value is visible to the verification read.
func settingsSession(t *testing.T) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{summary: summaryText}
	root := testTree()
	conn.treeFn = func() *ConfigNode { return root }
	s := NewSession(&fakeDriver{conns: []*fakeConn{conn}})
	return s, conn
}

func TestListSettingsPrunesEmptySections(t *testing.T) {
	s, _ := settingsSession(t)

	tree, err := s.ListSettings(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tree)

	names := make([]string, 0, len(tree.Children))
	for _, c := range tree.Children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"imgsettings", "capturesettings", "status"}, names)

	iso := tree.Children[0].Children[0]
	assert.Equal(t, "iso", iso.Name)
	assert.Equal(t, WidgetRadio, iso.Type)
	assert.Equal(t, []string{"100", "200", "400", "800"}, iso.Choices)

	exp := tree.Children[1].Children[0]
	require.NotNil(t, exp.Range)
	assert.Equal(t, -5.0, exp.Range.Min)
	assert.Equal(t, 5.0, exp.Range.Max)
}

func TestGetSetting(t *testing.T) {
	s, _ := settingsSession(t)
	ctx := context.Background()

	value, err := s.GetSetting(ctx, "imgsettings/iso")
	require.NoError(t, err)
	assert.Equal(t, "100", value)

	// A leading root segment and a leading slash are both accepted
	value, err = s.GetSetting(ctx, "main/imgsettings/iso")
	require.NoError(t, err)
	assert.Equal(t, "100", value)

	value, err = s.GetSetting(ctx, "/imgsettings/iso")
	require.NoError(t, err)
	assert.Equal(t, "100", value)
}

func TestGetSettingNotFound(t *testing.T) {
	s, _ := settingsSession(t)
	ctx := context.Background()

	_, err := s.GetSetting(ctx, "imgsettings/nosuch")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	// A section is not a readable setting
	_, err = s.GetSetting(ctx, "imgsettings")
	assert.ErrorIs(t, err, ErrSettingNotFound)
}

func TestSetSettingChoice(t *testing.T) {
	s, conn := settingsSession(t)

	msg, err := s.SetSetting(context.Background(), "imgsettings/iso", "400")
	require.NoError(t, err)
	assert.Contains(t, msg, `updated to "400"`)
	assert.Equal(t, 1, conn.applyCalls)
}

func TestSetSettingInvalidChoiceListsOptions(t *testing.T) {
	s, conn := settingsSession(t)

	_, err := s.SetSetting(context.Background(), "imgsettings/iso", "3200")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available choices: 100, 200, 400, 800")
	assert.Equal(t, 0, conn.applyCalls, "invalid value must not reach the device")
}

func TestSetSettingChoiceIsCaseSensitive(t *testing.T) {
	s, _ := settingsSession(t)

	_, err := s.SetSetting(context.Background(), "imgsettings/whitebalance", "daylight")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available choices")
}

func TestSetSettingRangeClamps(t *testing.T) {
	s, conn := settingsSession(t)
	ctx := context.Background()

	msg, err := s.SetSetting(ctx, "capturesettings/exposurecompensation", "99")
	require.NoError(t, err)
	assert.Contains(t, msg, `updated to "5"`)
	assert.Equal(t, 1, conn.applyCalls)

	msg, err = s.SetSetting(ctx, "capturesettings/exposurecompensation", "-99")
	require.NoError(t, err)
	assert.Contains(t, msg, `updated to "-5"`)

	_, err = s.SetSetting(ctx, "capturesettings/exposurecompensation", "not a number")
	require.Error(t, err)
}

func TestSetSettingToggle(t *testing.T) {
	s, _ := settingsSession(t)
	ctx := context.Background()

	msg, err := s.SetSetting(ctx, "capturesettings/autofocus", "true")
	require.NoError(t, err)
	assert.Contains(t, msg, `updated to "1"`)

	// Any non-zero number coerces to "1", which is now the current value
	msg, err = s.SetSetting(ctx, "capturesettings/autofocus", "5")
	require.NoError(t, err)
	assert.Contains(t, msg, "No change needed.")

	_, err = s.SetSetting(ctx, "capturesettings/autofocus", "maybe")
	require.Error(t, err)
}

func TestSetSettingIdempotentNoOp(t *testing.T) {
	s, conn := settingsSession(t)

	msg, err := s.SetSetting(context.Background(), "imgsettings/iso", "100")
	require.NoError(t, err)
	assert.Contains(t, msg, "No change needed.")
	assert.Equal(t, 0, conn.applyCalls, "no device write on a no-op")
}

func TestSetSettingReadOnly(t *testing.T) {
	s, conn := settingsSession(t)

	_, err := s.SetSetting(context.Background(), "status/batterylevel", "50%")
	assert.ErrorIs(t, err, ErrSettingReadOnly)
	assert.Equal(t, 0, conn.applyCalls)
}

func TestSetSettingVerificationMismatch(t *testing.T) {
	// The device silently refuses the new value: every tree read hands
	// back a fresh tree with the old value, so the readback check fails.
	conn := &fakeConn{summary: summaryText}
	conn.treeFn = testTree
	s := NewSession(&fakeDriver{conns: []*fakeConn{conn}})

	_, err := s.SetSetting(context.Background(), "imgsettings/iso", "800")
	require.Error(t, err)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "800", verr.Requested)
	assert.Equal(t, "100", verr.Actual)
	assert.Equal(t, 1, conn.applyCalls)
}

func TestSetSettingVerifyReadFailureIsNonFatal(t *testing.T) {
	conn := &fakeConn{summary: summaryText}
	reads := 0
	conn.treeFn = func() *ConfigNode {
		reads++
		if reads > 1 {
			// The verification read cannot resolve the path anymore
			return &ConfigNode{Name: "main", Type: WidgetSection}
		}
		return testTree()
	}
	s := NewSession(&fakeDriver{conns: []*fakeConn{conn}})

	msg, err := s.SetSetting(context.Background(), "imgsettings/iso", "400")
	require.NoError(t, err, "a failed verification read only warns")
	assert.Contains(t, msg, `updated to "400"`)
}

func TestConvertValuePassthroughText(t *testing.T) {
	node := &ConfigNode{Name: "artist", Type: WidgetText, Value: "old"}
	out, err := convertValue(node, "settings/artist", "new name")
	require.NoError(t, err)
	assert.Equal(t, "new name", out)
}

func TestDirtyLeaves(t *testing.T) {
	root := testTree()
	assert.Empty(t, root.DirtyLeaves())

	iso := root.Resolve("imgsettings/iso")
	require.NotNil(t, iso)
	iso.SetValue("200")

	dirty := root.DirtyLeaves()
	require.Len(t, dirty, 1)
	assert.Equal(t, "200", dirty[0].Value)
	assert.Equal(t, "main/imgsettings/iso", root.Path(dirty[0]))
}
