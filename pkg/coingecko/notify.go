package coingecko

import (
	"sync"

	"go.uber.org/zap"
)

type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a human-readable message about a fetch in progress, meant for
// whoever is watching (a UI banner or a log line). It is reported in
// addition to, never instead of, the returned error.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to the logger at the matching level.
func LogNotifier(logger *zap.Logger) Notifier {
	return NotifierFunc(func(n Notice) {
		if n.Level == LevelError {
			logger.Error(n.Message)
			return
		}
		logger.Warn(n.Message)
	})
}

// Multi forwards each notice to all given notifiers.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(n Notice) {
		for _, t := range notifiers {
			if t != nil {
				t.Notify(n)
			}
		}
	})
}

// NoticeCollector buffers notices so a page render can show them as banners.
type NoticeCollector struct {
	mu      sync.Mutex
	notices []Notice
}

func (c *NoticeCollector) Notify(n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
}

// Notices returns a copy of everything collected so far.
func (c *NoticeCollector) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}
