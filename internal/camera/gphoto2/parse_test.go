package gphoto2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethercam/camera-server/internal/camera"
)

const autoDetectOutput = `Model                          Port
----------------------------------------------------------
Nikon DSC D3500                usb:001,004
`

const captureOutput = `New file is in location /store_00010001/DCIM/100D3500/DSC_0042.JPG on the camera
`

const configListOutput = `/main/imgsettings/iso
Label: ISO Speed
Readonly: 0
Type: RADIO
Current: 100
Choice: 0 100
Choice: 1 200
Choice: 2 400
END
/main/capturesettings/exposurecompensation
Label: Exposure Compensation
Readonly: 0
Type: RANGE
Current: 0
Bottom: -5
Top: 5
Step: 0.5
END
/main/status/batterylevel
Label: Battery Level
Readonly: 1
Type: TEXT
Current: 100%
END
`

func TestParseAutoDetect(t *testing.T) {
	model, port, ok := parseAutoDetect(autoDetectOutput)
	require.True(t, ok)
	assert.Equal(t, "Nikon DSC D3500", model)
	assert.Equal(t, "usb:001,004", port)
}

func TestParseAutoDetectNoCamera(t *testing.T) {
	_, _, ok := parseAutoDetect("Model                          Port\n----\n")
	assert.False(t, ok)
}

func TestParseCaptureLocation(t *testing.T) {
	ref, ok := parseCaptureLocation(captureOutput)
	require.True(t, ok)
	assert.Equal(t, "/store_00010001/DCIM/100D3500", ref.Folder)
	assert.Equal(t, "DSC_0042.JPG", ref.Name)
}

func TestParseCaptureLocationMissing(t *testing.T) {
	_, ok := parseCaptureLocation("ERROR: could not capture\n")
	assert.False(t, ok)
}

func TestParseConfigList(t *testing.T) {
	root := parseConfigList(configListOutput)
	require.NotNil(t, root)
	assert.Equal(t, "main", root.Name)
	assert.True(t, root.IsSection())

	iso := root.Resolve("imgsettings/iso")
	require.NotNil(t, iso)
	assert.Equal(t, "ISO Speed", iso.Label)
	assert.Equal(t, camera.WidgetRadio, iso.Type)
	assert.Equal(t, "100", iso.Value)
	assert.False(t, iso.ReadOnly)
	assert.Equal(t, []string{"100", "200", "400"}, iso.Choices)

	exp := root.Resolve("capturesettings/exposurecompensation")
	require.NotNil(t, exp)
	assert.Equal(t, camera.WidgetRange, exp.Type)
	assert.Equal(t, -5.0, exp.Min)
	assert.Equal(t, 5.0, exp.Max)
	assert.Equal(t, 0.5, exp.Step)

	battery := root.Resolve("status/batterylevel")
	require.NotNil(t, battery)
	assert.True(t, battery.ReadOnly)
	assert.Equal(t, "100%", battery.Value)

	// The intermediate sections were created implicitly
	img := root.Child("imgsettings")
	require.NotNil(t, img)
	assert.True(t, img.IsSection())
}

func TestParseConfigListEmpty(t *testing.T) {
	root := parseConfigList("")
	require.NotNil(t, root)
	assert.Empty(t, root.Children)
}
