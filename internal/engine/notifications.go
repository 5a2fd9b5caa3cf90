package engine

// notificationCapacity is fixed; the log is a display of recent activity only.
const notificationCapacity = 5

type Notification struct {
	Text string
}

// NotificationLog keeps the most recent notifications, oldest first.
type NotificationLog struct {
	entries []Notification
}

func NewNotificationLog() *NotificationLog {
	return &NotificationLog{entries: make([]Notification, 0, notificationCapacity+1)}
}

func (l *NotificationLog) Push(text string) {
	l.entries = append(l.entries, Notification{Text: text})
	for len(l.entries) > notificationCapacity {
		l.entries = l.entries[1:]
	}
}

func (l *NotificationLog) All() []Notification {
	return append([]Notification(nil), l.entries...)
}

func (l *NotificationLog) Len() int {
	return len(l.entries)
}
