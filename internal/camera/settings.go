package camera

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// SettingNode is the externally visible form of one configuration node
type SettingNode struct {
	Name     string         `json:"name"`
	Label    string         `json:"label"`
	Type     WidgetType     `json:"type"`
	ReadOnly bool           `json:"readonly"`
	Value    string         `json:"value,omitempty"`
	Range    *RangeInfo     `json:"range,omitempty"`
	Choices  []string       `json:"choices,omitempty"`
	Children []*SettingNode `json:"children,omitempty"`
}

// RangeInfo describes the bounds of a numeric-range setting
type RangeInfo struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// ListSettings reads the live configuration tree and returns it with empty
// sections pruned. The tree is rebuilt from the device on every call.
func (s *Session) ListSettings(ctx context.Context) (*SettingNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return nil, err
	}

	log.Info().Msg("fetching camera configuration tree")
	root, err := s.conn.ConfigTree(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error getting configuration")
		return nil, fmt.Errorf("get config tree: %w", err)
	}

	out := convertNode(root)
	if out == nil {
		return nil, fmt.Errorf("configuration tree is empty")
	}
	return out, nil
}

// convertNode transforms one config node. Sections keep only children that
// produced a usable result; a section with none is pruned, never
// represented. A single bad node is skipped, it never aborts the walk.
func convertNode(n *ConfigNode) *SettingNode {
	if n == nil {
		return nil
	}

	if n.IsSection() {
		var children []*SettingNode
		for _, c := range n.Children {
			if converted := convertNode(c); converted != nil {
				children = append(children, converted)
			}
		}
		if len(children) == 0 {
			return nil
		}
		return &SettingNode{
			Name:     n.Name,
			Label:    n.Label,
			Type:     WidgetSection,
			ReadOnly: n.ReadOnly,
			Children: children,
		}
	}

	if n.Name == "" || n.Type == "" {
		log.Warn().Str("label", n.Label).Msg("skipping config node with missing attributes")
		return nil
	}

	out := &SettingNode{
		Name:     n.Name,
		Label:    n.Label,
		Type:     n.Type,
		ReadOnly: n.ReadOnly,
		Value:    n.Value,
	}
	if n.Type == WidgetRange {
		out.Range = &RangeInfo{Min: n.Min, Max: n.Max, Step: n.Step}
	}
	if n.Type.IsChoice() {
		out.Choices = append([]string(nil), n.Choices...)
	}
	return out
}

// GetSetting resolves a slash-separated path against the live tree and
// returns the leaf's current value.
func (s *Session) GetSetting(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return "", err
	}

	root, err := s.conn.ConfigTree(ctx)
	if err != nil {
		return "", fmt.Errorf("get config tree: %w", err)
	}

	node := root.Resolve(path)
	if node == nil || node.IsSection() {
		return "", fmt.Errorf("setting %q: %w", path, ErrSettingNotFound)
	}

	log.Debug().Str("path", path).Str("value", node.Value).Msg("get config")
	return node.Value, nil
}

// SetSetting resolves and writes one leaf. The raw value is converted
// according to the leaf's type; setting the current value again
// short-circuits without a device write. After a write the same leaf is
// re-read to verify the device actually applied the requested value.
func (s *Session) SetSetting(ctx context.Context, path, raw string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return "", err
	}

	log.Info().Str("path", path).Str("value", raw).Msg("attempting to set config")
	root, err := s.conn.ConfigTree(ctx)
	if err != nil {
		return "", fmt.Errorf("get config tree: %w", err)
	}

	node := root.Resolve(path)
	if node == nil || node.IsSection() {
		return "", fmt.Errorf("setting %q: %w", path, ErrSettingNotFound)
	}

	if node.ReadOnly {
		return "", fmt.Errorf("setting %q (%s): %w", path, node.Label, ErrSettingReadOnly)
	}

	converted, err := convertValue(node, path, raw)
	if err != nil {
		return "", err
	}

	if converted == node.Value {
		msg := fmt.Sprintf("Value for %q is already %q. No change needed.", path, node.Value)
		log.Info().Msg(msg)
		return msg, nil
	}

	log.Debug().
		Str("path", path).
		Str("from", node.Value).
		Str("to", converted).
		Msg("setting widget value")
	node.SetValue(converted)

	if err := s.conn.ApplyConfig(ctx, root); err != nil {
		log.Error().Err(err).Str("path", path).Msg("error setting config")
		return "", fmt.Errorf("set %q: %w", path, err)
	}

	// Readback verification: the device's write acknowledgement is not
	// trusted blindly. A failure to re-read is only logged.
	verified, err := s.conn.ConfigTree(ctx)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not verify setting after change")
		return fmt.Sprintf("Setting %q updated to %q.", path, converted), nil
	}

	check := verified.Resolve(path)
	if check == nil {
		log.Warn().Str("path", path).Msg("setting disappeared during verification")
		return fmt.Sprintf("Setting %q updated to %q.", path, converted), nil
	}
	if check.Value != converted {
		log.Warn().
			Str("path", path).
			Str("requested", converted).
			Str("actual", check.Value).
			Msg("verification failed")
		return "", &VerificationError{Path: path, Requested: converted, Actual: check.Value}
	}

	log.Info().Str("path", path).Str("value", converted).Msg("successfully set config")
	return fmt.Sprintf("Setting %q updated to %q.", path, converted), nil
}

// convertValue coerces a raw value according to the leaf's type
func convertValue(node *ConfigNode, path, raw string) (string, error) {
	switch {
	case node.Type == WidgetRange:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return "", fmt.Errorf("invalid value %q for range setting %q: %w", raw, path, err)
		}
		if f < node.Min {
			f = node.Min
		}
		if f > node.Max {
			f = node.Max
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	case node.Type == WidgetToggle:
		v, err := parseToggle(raw)
		if err != nil {
			return "", fmt.Errorf("invalid value %q for toggle setting %q", raw, path)
		}
		return v, nil

	case node.Type.IsChoice():
		for _, choice := range node.Choices {
			if raw == choice {
				return raw, nil
			}
		}
		return "", fmt.Errorf("invalid value %q for setting %q, available choices: %s",
			raw, path, strings.Join(node.Choices, ", "))

	default:
		return raw, nil
	}
}

// parseToggle coerces a toggle input to "0" or "1"
func parseToggle(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n != 0 {
			return "1", nil
		}
		return "0", nil
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		if b {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("not a toggle value")
}
