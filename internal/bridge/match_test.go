package bridge

import "testing"

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		topic   string
		want    bool
	}{
		// Exact matches
		{"exact single segment", "status", "status", true},
		{"exact multi segment", "site/s1/node/n1/telemetry", "site/s1/node/n1/telemetry", true},
		{"literal mismatch", "site/s1/status", "site/s2/status", false},

		// Single-level wildcard
		{"plus matches one segment", "site/s1/node/+/telemetry", "site/s1/node/n42/telemetry", true},
		{"plus wrong suffix", "site/s1/node/+/telemetry", "site/s1/node/n42/pairing", false},
		{"plus requires segment present", "a/+/c", "a/b", false},
		{"plus does not span segments", "a/+", "a/b/c", false},
		{"multiple plus", "site/+/node/+/status", "site/s1/node/n1/status", true},

		// Multi-level wildcard
		{"hash matches remainder", "site/s1/coord/#", "site/s1/coord/c1/telemetry", true},
		{"hash matches zero segments", "site/s1/#", "site/s1", true},
		{"hash at root", "#", "anything/at/all", true},
		{"hash mid-pattern terminal", "site/#", "site/s1/node/n1/cmd", true},

		// Length mismatches without wildcards
		{"topic longer than pattern", "site/s1", "site/s1/status", false},
		{"pattern longer than topic", "site/s1/status", "site/s1", false},

		// Mixed
		{"plus then literal mismatch", "site/+/zone/z1", "site/s1/zone/z2", false},
		{"customize section", "customize/+", "customize/profiles", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchTopic(tt.pattern, tt.topic); got != tt.want {
				t.Errorf("MatchTopic(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
			}
		})
	}
}
