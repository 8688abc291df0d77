package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogTrigger names what caused a discovery task to run.
type LogTrigger string

// Log triggers.
const (
	TriggerUnknown    LogTrigger = "unknown"
	TriggerPlatform   LogTrigger = "platform"
	TriggerRepository LogTrigger = "repository"
	TriggerUser       LogTrigger = "user"
)

// LogMessageType is the severity of a single log message.
type LogMessageType string

// Log message types.
const (
	MessageInfo        LogMessageType = "info"
	MessageSuccess     LogMessageType = "success"
	MessageUndesirable LogMessageType = "undesirable"
	MessageError       LogMessageType = "error"
)

// LogMessage is one timestamped line within a discovery log.
type LogMessage struct {
	Type    LogMessageType `json:"type"`
	Message string         `json:"message"`
	Time    time.Time      `json:"time"`
}

// DiscoveryLog collects the messages of one executed discovery task. Logs
// are append-only: messages are added while the task runs and the log is
// closed and persisted when it finishes. A nil log disables collection.
type DiscoveryLog struct {
	ID               string       `json:"id"`
	DeviceTemplateID string       `json:"deviceTemplateId"`
	TaskName         string       `json:"taskName"`
	Trigger          LogTrigger   `json:"trigger"`
	StartTime        time.Time    `json:"startTime"`
	EndTime          *time.Time   `json:"endTime,omitempty"`
	Messages         []LogMessage `json:"messages"`
}

// NewDiscoveryLog creates an empty log for a task run caused by the given
// trigger.
func NewDiscoveryLog(trigger LogTrigger, deviceTemplateID string) *DiscoveryLog {
	return &DiscoveryLog{
		ID:               uuid.NewString(),
		DeviceTemplateID: deviceTemplateID,
		Trigger:          trigger,
	}
}

// Empty reports whether any messages were collected.
func (l *DiscoveryLog) Empty() bool {
	return l == nil || len(l.Messages) == 0
}

// Add appends a formatted message. The first message stamps the log's start
// time. Calling Add on a nil log is a no-op.
func (l *DiscoveryLog) Add(msgType LogMessageType, format string, args ...any) {
	if l == nil {
		return
	}

	now := time.Now().UTC()
	if len(l.Messages) == 0 {
		l.StartTime = now
	}
	l.Messages = append(l.Messages, LogMessage{
		Type:    msgType,
		Message: fmt.Sprintf(format, args...),
		Time:    now,
	})
}

// Close stamps the log's end time. Calling Close on a nil log is a no-op.
func (l *DiscoveryLog) Close() {
	if l == nil {
		return
	}
	now := time.Now().UTC()
	l.EndTime = &now
}
