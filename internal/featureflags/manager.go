// Package featureflags evaluates FEATURE_FLAGS, a comma-separated list of
// name=value pairs such as "confirm_password=on,tag_cloud=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags understood by the application.
const (
	// ConfirmPassword switches registration to the two-field password form.
	ConfirmPassword = "confirm_password"
	// TagCloud shows the tag cloud beside the article list.
	TagCloud = "tag_cloud"
)

// defaults apply when FEATURE_FLAGS does not mention a known flag.
var defaults = map[string]string{
	ConfirmPassword: "off",
	TagCloud:        "on",
}

// rule is a parsed flag value: always on, always off, or a percentage rollout.
type rule struct {
	raw     string
	on      bool
	percent int
	rollout bool
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, on: true}, true
	case "off", "false", "0":
		return rule{raw: value}, true
	}
	pctRaw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: pct, rollout: true}, true
}

// Manager holds the evaluated flag rules.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw on top of the built-in defaults. Malformed pairs are ignored.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule, len(defaults))
	for name, value := range defaults {
		r, _ := parseRule(value)
		rules[name] = r
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}

	return &Manager{rules: rules}
}

// Enabled reports whether name is on for userID. Percentage rollouts are
// deterministic per user and never include anonymous visitors unless at 100%.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	if !r.rollout {
		return r.on
	}
	switch {
	case r.percent <= 0:
		return false
	case r.percent >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// Raw returns the configured value of every flag.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot returns evaluated flag status for one user, as exposed to templates.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
