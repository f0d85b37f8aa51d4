package mqtt

import "strings"

const TopicSeparator = "/"

// TrimTopic trims TopicSeparator from both ends of topic.
func TrimTopic(topic string) string {
	return strings.Trim(topic, TopicSeparator)
}

// JoinTopic trims every part and joins the non-empty ones with TopicSeparator.
func JoinTopic(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = TrimTopic(part); part != "" {
			kept = append(kept, part)
		}
	}

	return strings.Join(kept, TopicSeparator)
}
