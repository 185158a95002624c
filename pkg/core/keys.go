package core

import "strings"

// DefaultGroup is used when a caller omits the group of a key.
const DefaultGroup = "DEFAULT"

// JobKey identifies a job definition.
type JobKey struct {
	Name  string `json:"jobName"`
	Group string `json:"jobGroup"`
}

// NewJobKey builds a JobKey, defaulting a blank group to DefaultGroup.
func NewJobKey(name, group string) JobKey {
	return JobKey{Name: strings.TrimSpace(name), Group: groupOrDefault(group)}
}

func (k JobKey) String() string { return k.Group + "." + k.Name }

// TriggerKey identifies a trigger. The key space is independent of JobKey.
type TriggerKey struct {
	Name  string `json:"triggerName"`
	Group string `json:"triggerGroup"`
}

// NewTriggerKey builds a TriggerKey, defaulting a blank group to DefaultGroup.
func NewTriggerKey(name, group string) TriggerKey {
	return TriggerKey{Name: strings.TrimSpace(name), Group: groupOrDefault(group)}
}

func (k TriggerKey) String() string { return k.Group + "." + k.Name }

func groupOrDefault(group string) string {
	group = strings.TrimSpace(group)
	if group == "" {
		return DefaultGroup
	}
	return group
}
