package bridge

import "strings"

// MatchTopic reports whether a concrete topic matches a subscription
// pattern using MQTT wildcard rules.
//
// Both strings are split on "/" and walked segment by segment:
//   - "#" matches the remainder of the topic, including zero segments, and
//     ends the walk successfully
//   - "+" matches exactly one segment, whatever its value
//   - any other pattern segment must equal the topic segment exactly
//
// A full walk only matches when pattern and topic have the same number of
// segments, so "a/+/c" does not match "a/b" and "a/b" does not match
// "a/b/c".
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")

	for i, part := range patternParts {
		if part == "#" {
			return true
		}
		if i >= len(topicParts) {
			return false
		}
		if part == "+" {
			continue
		}
		if part != topicParts[i] {
			return false
		}
	}

	return len(patternParts) == len(topicParts)
}
