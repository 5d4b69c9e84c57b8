package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the config leaves topic_prefix empty.
const DefaultTopicPrefix = "busdecode"

// Topics builds the decoder's MQTT topics under one prefix.
//
//	topics := mqtt.NewTopics("busdecode")
//	topics.Telegram("rx", "1%2F2%2F3")
//	// Returns: "busdecode/telegram/rx/1%2F2%2F3"
type Topics struct {
	prefix string
}

// NewTopics creates a topic builder. Trailing slashes are trimmed and an
// empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// Telegram returns the topic for a decoded telegram.
// The destination must already be escaped for use as one topic level.
//
// Example: busdecode/telegram/rx/1%2F2%2F3
func (t Topics) Telegram(direction, escapedDest string) string {
	return fmt.Sprintf("%s/telegram/%s/%s", t.Prefix(), direction, escapedDest)
}

// Control returns the topic for single-byte control codes.
//
// Example: busdecode/control/tx
func (t Topics) Control(direction string) string {
	return fmt.Sprintf("%s/control/%s", t.Prefix(), direction)
}

// Stats returns the retained session statistics topic.
//
// Example: busdecode/stats/rx
func (t Topics) Stats(direction string) string {
	return fmt.Sprintf("%s/stats/%s", t.Prefix(), direction)
}

// SystemStatus returns the online/offline status topic.
//
// Example: busdecode/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.Prefix())
}

// AllTelegrams returns a pattern matching every telegram topic.
//
// Pattern: busdecode/telegram/#
func (t Topics) AllTelegrams() string {
	return fmt.Sprintf("%s/telegram/#", t.Prefix())
}
