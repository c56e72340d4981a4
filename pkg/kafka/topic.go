package kafka

import "fmt"

// TopicPrefix is the prefix for every vidtube topic.
const TopicPrefix = "vidtube"

// Topic builds a fully-qualified topic name, e.g. vidtube.user.registered.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
