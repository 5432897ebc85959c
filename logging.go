package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"matrixboard/config"
	"matrixboard/internal/ratelimit"
)

const (
	logTimestampLayout = "2006/01/02 15:04:05"
	logFileDateLayout  = "02-Jan-2006"
	maxLogBufferBytes  = 16 * 1024
	maxHeldLines       = 200
)

type lineSink interface {
	WriteLine(line string, now time.Time)
	Close() error
}

type ioLineSink struct {
	w             io.Writer
	withTimestamp bool
}

func (s *ioLineSink) WriteLine(line string, now time.Time) {
	if s == nil || s.w == nil {
		return
	}
	if s.withTimestamp {
		line = formatLogTimestamp(now) + " " + line
	}
	_, _ = io.WriteString(s.w, line+"\n")
}

func (s *ioLineSink) Close() error {
	return nil
}

// dailyFileSink appends to one file per UTC day under dir. Files older than
// retentionDays are pruned each time a day's file is opened.
type dailyFileSink struct {
	dir           string
	retentionDays int
	errors        *ratelimit.Counter

	mu   sync.Mutex
	day  string
	file *os.File
}

// Purpose: Prepare a daily log directory.
// Key aspects: Creates dir up front so a bad path fails at startup; the first
// file is opened lazily by WriteLine.
// Upstream: setupLogging.
// Downstream: os.MkdirAll.
func newDailyFileSink(dir string, retentionDays int) (*dailyFileSink, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("log directory is empty")
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}
	return &dailyFileSink{
		dir:           dir,
		retentionDays: retentionDays,
		errors:        ratelimit.NewCounter(time.Minute),
	}, nil
}

// Purpose: Append a timestamped line to today's log file.
// Key aspects: Switches files when the UTC day changes; file errors go to
// stderr at most once a minute.
// Upstream: logFanout.Write.
// Downstream: openDayLocked, os.File.WriteString.
func (s *dailyFileSink) WriteLine(line string, now time.Time) {
	if s == nil {
		return
	}
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if day := now.Format(logFileDateLayout); s.file == nil || s.day != day {
		if err := s.openDayLocked(day, now); err != nil {
			s.report(now, err)
			return
		}
	}
	if _, err := s.file.WriteString(formatLogTimestamp(now) + " " + line + "\n"); err != nil {
		s.report(now, fmt.Errorf("write failed: %w", err))
	}
}

func (s *dailyFileSink) openDayLocked(day string, now time.Time) error {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	path := filepath.Join(s.dir, logFileNameForDate(now))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open failed for %s: %w", path, err)
	}
	s.file = file
	s.day = day
	if err := cleanupOldLogs(s.dir, now, s.retentionDays); err != nil {
		s.report(now, fmt.Errorf("cleanup failed: %w", err))
	}
	return nil
}

func (s *dailyFileSink) report(now time.Time, err error) {
	if _, _, ok := s.errors.Allow(now); ok {
		fmt.Fprintf(os.Stderr, "Logging: %v\n", err)
	}
}

func (s *dailyFileSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.day = ""
	return err
}

// logFanout splits log output into lines and hands each one to the console
// and file sinks. While the terminal display owns the screen the console is
// held: lines are kept in memory (bounded) and replayed on release.
type logFanout struct {
	mu      sync.Mutex
	buf     []byte
	console lineSink
	file    lineSink

	holding bool
	held    []heldLine
	dropped int
}

type heldLine struct {
	line string
	at   time.Time
}

func newLogFanout(console lineSink, file lineSink) *logFanout {
	return &logFanout{console: console, file: file}
}

// Purpose: Wire logging from config without blocking startup.
// Key aspects: Returns a usable fanout even when the file sink could not be
// created; the error is for the caller to log.
// Upstream: main startup.
// Downstream: newDailyFileSink.
func setupLogging(cfg config.LoggingConfig, console io.Writer) (*logFanout, error) {
	fanout := newLogFanout(&ioLineSink{w: console, withTimestamp: true}, nil)
	if !cfg.Enabled {
		return fanout, nil
	}
	fileSink, err := newDailyFileSink(cfg.Dir, cfg.RetentionDays)
	if err != nil {
		return fanout, err
	}
	fanout.SetFileSink(fileSink)
	return fanout, nil
}

func (f *logFanout) SetFileSink(sink lineSink) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.file = sink
	f.mu.Unlock()
}

// Purpose: Keep log lines off the terminal while the display owns it.
// Key aspects: Lines are buffered (bounded, oldest dropped) until
// ReleaseConsole; the file sink keeps receiving them.
// Upstream: main before opening the terminal sink.
// Downstream: None.
func (f *logFanout) HoldConsole() {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.holding = true
	f.mu.Unlock()
}

// Purpose: Hand the console back after the terminal display is torn down.
// Key aspects: Replays held lines with their original timestamps, preceded by
// a count of any that were dropped.
// Upstream: main after loop.Run returns.
// Downstream: lineSink.WriteLine.
func (f *logFanout) ReleaseConsole() {
	if f == nil {
		return
	}
	f.mu.Lock()
	held := f.held
	dropped := f.dropped
	console := f.console
	f.held = nil
	f.dropped = 0
	f.holding = false
	f.mu.Unlock()

	if console == nil {
		return
	}
	if dropped > 0 {
		console.WriteLine(fmt.Sprintf("(%d earlier log lines not shown)", dropped), time.Now().UTC())
	}
	for _, h := range held {
		console.WriteLine(h.line, h.at)
	}
}

// Purpose: Fan out log output to the console and file sinks.
// Key aspects: Line-buffered with bounded internal storage; console lines are
// diverted to the hold buffer while held.
// Upstream: log.Logger output.
// Downstream: lineSink.WriteLine.
func (f *logFanout) Write(p []byte) (int, error) {
	if f == nil {
		return len(p), nil
	}
	f.mu.Lock()
	f.buf = append(f.buf, p...)
	data := f.buf
	var lines []string
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(data[:idx], "\r")))
		data = data[idx+1:]
	}
	if len(data) > maxLogBufferBytes {
		if trimmed := string(bytes.TrimRight(data, "\r")); trimmed != "" {
			lines = append(lines, trimmed)
		}
		data = data[:0]
	}
	f.buf = data
	now := time.Now().UTC()
	console := f.console
	if f.holding {
		for _, line := range lines {
			f.holdLocked(line, now)
		}
		console = nil
	}
	file := f.file
	f.mu.Unlock()

	for _, line := range lines {
		if console != nil {
			console.WriteLine(line, now)
		}
		if file != nil {
			file.WriteLine(line, now)
		}
	}
	return len(p), nil
}

func (f *logFanout) holdLocked(line string, now time.Time) {
	if len(f.held) >= maxHeldLines {
		copy(f.held, f.held[1:])
		f.held = f.held[:len(f.held)-1]
		f.dropped++
	}
	f.held = append(f.held, heldLine{line: line, at: now})
}

func (f *logFanout) Close() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	console := f.console
	file := f.file
	f.mu.Unlock()

	if console != nil {
		_ = console.Close()
	}
	if file != nil {
		return file.Close()
	}
	return nil
}

func formatLogTimestamp(now time.Time) string {
	return now.UTC().Format(logTimestampLayout)
}

func logFileNameForDate(now time.Time) string {
	return now.UTC().Format(logFileDateLayout) + ".log"
}

func parseLogFileDate(name string) (time.Time, bool) {
	if filepath.Ext(name) != ".log" {
		return time.Time{}, false
	}
	base := strings.TrimSuffix(name, ".log")
	parsed, err := time.ParseInLocation(logFileDateLayout, base, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// cleanupOldLogs removes dated log files older than retentionDays, counting
// today as the first day. Other files are left alone.
func cleanupOldLogs(dir string, now time.Time, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	cutoff := dateOnly(now.UTC()).AddDate(0, 0, -(retentionDays - 1))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := parseLogFileDate(entry.Name())
		if !ok {
			continue
		}
		if date.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
