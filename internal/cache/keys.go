package cache

import "fmt"

const agentListPrefix = "agents:list:"

// AgentListKey keys one cached agent listing. The hash covers the filter and
// the viewing user, since star state is per user.
func AgentListKey(hash string) string {
	return agentListPrefix + hash
}

// AgentListPrefix is the scan prefix covering every cached agent listing.
func AgentListPrefix() string {
	return agentListPrefix
}

func AgentDetailKey(agentID, userID string) string {
	return fmt.Sprintf("agents:detail:%s:%s", agentID, userID)
}

// AgentDetailPrefix covers all cached detail views of one agent across users.
func AgentDetailPrefix(agentID string) string {
	return fmt.Sprintf("agents:detail:%s:", agentID)
}
