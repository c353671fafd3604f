// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package obslog provides the structured logging sink described in
// spec.md §4.9: leveled entries with {seq, timestamp, level, thread_id,
// message}, a bounded ring buffer (oldest entry dropped when full), a
// non-mutating snapshot API, and a separately toggleable terminal
// stream. It generalizes the teacher's pkg/log (level-gated
// *log.Logger writers with sd-daemon style prefixes) into a single
// ring-buffered sink instance instead of package-level loggers, since
// the runtime needs queryable history (spec S6), not just a stream.
package obslog

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level mirrors spec.md §4.9's enumerated log levels.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARNING
	ERROR
	FATAL
	DEV_WARNING
	TERMINATION
	SYS_ERRNO
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	case DEV_WARNING:
		return "DEV_WARNING"
	case TERMINATION:
		return "TERMINATION"
	case SYS_ERRNO:
		return "SYS_ERRNO"
	default:
		return "UNKNOWN"
	}
}

// Entry is one structured log record.
type Entry struct {
	Seq       uint64
	Timestamp time.Time
	Level     Level
	ThreadID  string
	Message   string
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*[a-zA-Z]")

func stripANSI(s string) string {
	if !strings.ContainsRune(s, 0x1b) {
		return s
	}
	return ansiEscape.ReplaceAllString(s, "")
}

// Sink is a bounded ring buffer of Entry plus an optionally-muted
// terminal stream, guarded by one mutex per spec §5's "log ring buffer:
// guarded by one mutex" rule.
type Sink struct {
	mu       sync.Mutex
	buf      []Entry
	capacity int
	next     int // index where the next entry is written
	count    int // number of valid entries currently stored

	seq    atomic.Uint64
	nextSeq func() uint64

	terminalEnabled atomic.Bool
	terminalWriter  *os.File

	publish func(Entry) // optional fanout, e.g. to nats
}

// New builds a Sink with the given ring capacity (coerced to a minimum
// of 1, per spec's "bounded ring buffer with configurable capacity,
// minimum 1").
func New(capacity int) *Sink {
	if capacity < 1 {
		capacity = 1
	}
	s := &Sink{
		buf:            make([]Entry, capacity),
		capacity:       capacity,
		terminalWriter: os.Stderr,
	}
	s.terminalEnabled.Store(true)
	return s
}

// SetTerminalEnabled toggles emission to the terminal stream
// independently of ring-buffer retention (spec: "Emission to terminal
// streams is separately toggleable (default on)").
func (s *Sink) SetTerminalEnabled(enabled bool) {
	s.terminalEnabled.Store(enabled)
}

// SetPublisher attaches a fanout callback invoked after every push,
// e.g. to bridge entries onto a nats subject. Pass nil to detach.
func (s *Sink) SetPublisher(fn func(Entry)) {
	s.mu.Lock()
	s.publish = fn
	s.mu.Unlock()
}

func callerThreadID() string {
	return "g" + strconv.FormatUint(goroutineID(), 10)
}

// goroutineID extracts the numeric goroutine id from the runtime stack
// trace header, the cheapest portable proxy for "thread id" available
// without cgo.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:"
	b := buf[:n]
	const prefix = "goroutine "
	if !strings.HasPrefix(string(b), prefix) {
		return 0
	}
	rest := string(b[len(prefix):])
	sp := strings.IndexByte(rest, ' ')
	if sp < 0 {
		return 0
	}
	id, err := strconv.ParseUint(rest[:sp], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (s *Sink) push(level Level, msg string) Entry {
	entry := Entry{
		Seq:       s.seq.Add(1),
		Timestamp: time.Now(),
		Level:     level,
		ThreadID:  callerThreadID(),
		Message:   stripANSI(msg),
	}

	s.mu.Lock()
	s.buf[s.next] = entry
	s.next = (s.next + 1) % s.capacity
	if s.count < s.capacity {
		s.count++
	}
	publish := s.publish
	s.mu.Unlock()

	if s.terminalEnabled.Load() && s.terminalWriter != nil {
		fmt.Fprintf(s.terminalWriter, "<%s> %s\n", level, entry.Message)
	}
	if publish != nil {
		publish(entry)
	}
	return entry
}

// Snapshot returns up to n most recent entries, oldest first, without
// mutating the buffer.
func (s *Sink) Snapshot(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > s.count {
		n = s.count
	}
	out := make([]Entry, n)
	// oldest retained entry is at index (next - count + capacity) % capacity
	start := (s.next - s.count + s.capacity) % s.capacity
	// we want the n most recent, i.e. skip (count-n) from the oldest end
	skip := s.count - n
	for i := 0; i < n; i++ {
		idx := (start + skip + i) % s.capacity
		out[i] = s.buf[idx]
	}
	return out
}

func (s *Sink) Debugf(format string, args ...any)      { s.push(DEBUG, fmt.Sprintf(format, args...)) }
func (s *Sink) Infof(format string, args ...any)        { s.push(INFO, fmt.Sprintf(format, args...)) }
func (s *Sink) Warnf(format string, args ...any)        { s.push(WARNING, fmt.Sprintf(format, args...)) }
func (s *Sink) Errorf(format string, args ...any)       { s.push(ERROR, fmt.Sprintf(format, args...)) }
func (s *Sink) DevWarnf(format string, args ...any)     { s.push(DEV_WARNING, fmt.Sprintf(format, args...)) }
func (s *Sink) SysErrnof(format string, args ...any)    { s.push(SYS_ERRNO, fmt.Sprintf(format, args...)) }

// Fatalf logs at FATAL and terminates the process, mirroring the
// teacher's cclog.Fatalf idiom used across fatal invariant violations.
func (s *Sink) Fatalf(format string, args ...any) {
	s.push(FATAL, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Terminationf logs at TERMINATION and terminates the process cleanly
// (exit code 0), used for graceful episode/process shutdown traces.
func (s *Sink) Terminationf(format string, args ...any) {
	s.push(TERMINATION, fmt.Sprintf(format, args...))
	os.Exit(0)
}

// Default is the process-wide sink, created at package init with a
// conservative default capacity until globalconfig overrides it via
// Reconfigure.
var defaultSink = New(1024)

// Default returns the process-wide Sink.
func Default() *Sink { return defaultSink }

// Reconfigure replaces the process-wide sink's capacity, used once
// GENERAL.iinuji_logs_buffer_capacity has been validated.
func Reconfigure(capacity int) {
	defaultSink = New(capacity)
}
