package gphoto2

import (
	"strconv"
	"strings"

	"github.com/tethercam/camera-server/internal/camera"
)

// parseAutoDetect extracts the first detected camera from --auto-detect
// output. The output is a two-column table (model, port) under a dashed
// header line.
func parseAutoDetect(out string) (model, port string, ok bool) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		idx := strings.LastIndex(line, "usb:")
		if idx < 0 {
			continue
		}
		model = strings.TrimSpace(line[:idx])
		port = strings.TrimSpace(line[idx:])
		if model != "" && port != "" {
			return model, port, true
		}
	}
	return "", "", false
}

// parseCaptureLocation extracts the camera-side file reference from
// --capture-image output ("New file is in location /store/.../IMG.JPG on
// the camera").
func parseCaptureLocation(out string) (camera.FileRef, bool) {
	const marker = "new file is in location "
	lower := strings.ToLower(out)

	idx := strings.Index(lower, marker)
	if idx < 0 {
		return camera.FileRef{}, false
	}

	rest := out[idx+len(marker):]
	if end := strings.IndexAny(rest, " \r\n"); end >= 0 {
		rest = rest[:end]
	}

	slash := strings.LastIndex(rest, "/")
	if slash <= 0 {
		return camera.FileRef{}, false
	}
	return camera.FileRef{Folder: rest[:slash], Name: rest[slash+1:]}, true
}

// parseConfigList builds a configuration tree from --list-all-config
// output: blocks of "Label:/Type:/Current:/..." attribute lines, each
// introduced by the entry's full path and terminated by END.
func parseConfigList(out string) *camera.ConfigNode {
	root := &camera.ConfigNode{
		Name:  "main",
		Label: "Camera and Driver Configuration",
		Type:  camera.WidgetSection,
	}

	var current *camera.ConfigNode
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")

		if strings.HasPrefix(line, "/") {
			current = insertLeaf(root, line)
			continue
		}
		if current == nil {
			continue
		}
		if strings.TrimSpace(line) == "END" {
			current = nil
			continue
		}
		applyAttribute(current, line)
	}

	return root
}

// insertLeaf creates the sections along a path and returns the leaf node
func insertLeaf(root *camera.ConfigNode, path string) *camera.ConfigNode {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) > 0 && segments[0] == root.Name {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return nil
	}

	cur := root
	for _, seg := range segments[:len(segments)-1] {
		cur = cur.AddChild(&camera.ConfigNode{
			Name:  seg,
			Label: seg,
			Type:  camera.WidgetSection,
		})
	}

	name := segments[len(segments)-1]
	return cur.AddChild(&camera.ConfigNode{Name: name, Label: name})
}

// applyAttribute sets one "Key: value" attribute line on a node
func applyAttribute(node *camera.ConfigNode, line string) {
	key, value, found := strings.Cut(line, ":")
	if !found {
		return
	}
	value = strings.TrimSpace(value)

	switch strings.TrimSpace(key) {
	case "Label":
		node.Label = value
	case "Readonly":
		node.ReadOnly = value == "1"
	case "Type":
		node.Type = camera.WidgetType(value)
	case "Current":
		node.Value = value
	case "Bottom":
		node.Min, _ = strconv.ParseFloat(value, 64)
	case "Top":
		node.Max, _ = strconv.ParseFloat(value, 64)
	case "Step":
		node.Step, _ = strconv.ParseFloat(value, 64)
	case "Choice":
		// "Choice: <index> <value>"
		if _, choice, ok := strings.Cut(value, " "); ok {
			node.Choices = append(node.Choices, choice)
		} else {
			node.Choices = append(node.Choices, value)
		}
	}
}
