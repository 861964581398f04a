package runtime

import (
	"fmt"
	"io"
	"sync"
)

// Logger provides log.Info/Warn/Error for Risor scripts and implements
// hook.Logger for the host. Lines look like "[typehook] INFO: msg".
type Logger struct {
	mu     sync.Mutex
	prefix string
	w      io.Writer
}

// NewLogger returns a Logger writing to w.
func NewLogger(w io.Writer, prefix string) *Logger {
	return &Logger{prefix: prefix, w: w}
}

func (l *Logger) Info(msg string) {
	l.write("INFO", msg)
}

func (l *Logger) Warn(msg string) {
	l.write("WARN", msg)
}

func (l *Logger) Error(msg string) {
	l.write("ERROR", msg)
}

func (l *Logger) write(level, msg string) {
	if l == nil || l.w == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[%s] %s: %s\n", l.prefix, level, msg)
}
