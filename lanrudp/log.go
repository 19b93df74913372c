package lanrudp

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"
)

// Severity classifies a log entry delivered to the host application's
// on_log_message upcall (spec.md §6).
type Severity uint8

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// logSink is the library's own trace output: every line is written to
// stderr and also queued as an on_log_message upcall, so the host
// application controls all user-visible presentation (spec.md §1 Non-goals:
// "logging of user-visible messages").
// Grounded on HimbeerserverDE-multiserver/log.go's Logger, which wraps
// log.SetOutput and tees every line to a rotated file on disk; generalized
// here into a small io.Writer-backed type any transport goroutine can hold
// a reference to, instead of that repo's single process-wide logger.
type logSink struct {
	debug  bool
	logger *log.Logger
	upcall *upcallQueue
}

func newLogSink(debug bool, upcall *upcallQueue) *logSink {
	return &logSink{
		debug:  debug,
		logger: log.New(os.Stderr, "", log.LstdFlags),
		upcall: upcall,
	}
}

func (s *logSink) emit(sev Severity, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	s.logger.Printf("[%s] %s", sev, text)

	if s.upcall != nil {
		now := time.Now()
		s.upcall.enqueue(func(h Upcalls) {
			if h.OnLogMessage != nil {
				h.OnLogMessage(sev, now, text)
			}
		})
	}
}

func (s *logSink) debugf(format string, args ...any) {
	if !s.debug {
		return
	}
	s.emit(SeverityDebug, format, args...)
}

func (s *logSink) infof(format string, args ...any)  { s.emit(SeverityInfo, format, args...) }
func (s *logSink) warnf(format string, args ...any)  { s.emit(SeverityWarn, format, args...) }
func (s *logSink) errorf(format string, args ...any) { s.emit(SeverityError, format, args...) }

// traceFrame hex-dumps a wire frame when debug tracing is enabled (spec.md
// §6 "debug bool, enables hex/bin tracing"). encoding/hex is the standard
// library's hex-dump tool; no third-party hex-dump package appears anywhere
// in the retrieved example pack, so this stays on the standard library
// (see DESIGN.md).
func (s *logSink) traceFrame(direction string, peerID uint8, frame []byte) {
	if !s.debug {
		return
	}
	s.emit(SeverityDebug, "%s peer=%d len=%d\n%s", direction, peerID, len(frame), hex.Dump(frame))
}
