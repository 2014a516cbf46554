package chatlog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
)

// headerPattern matches the start of a message in an exported chat log:
// [DD.MM.YYYY, HH:MM:SS] sender: content
var headerPattern = regexp.MustCompile(`^\[(\d{2}\.\d{2}\.\d{4}, \d{2}:\d{2}:\d{2})\] ([^:]+): (.*)$`)

const timestampLayout = "02.01.2006, 15:04:05"

// ParseChat extracts messages from a chat export, in file order. Lines that
// don't match the header pattern are continuations of the open message (joined
// with a newline) or, when no message is open, skipped with a warning. A header
// line with an unparseable timestamp is skipped the same way; it never becomes
// a continuation. The caller sorts by timestamp afterwards; ParseChat assumes
// nothing about order.
func ParseChat(r io.Reader, logger *slog.Logger) ([]Message, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var msgs []Message
	open := false
	var current Message

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(CleanText(scanner.Text()))

		m := headerPattern.FindStringSubmatch(line)
		if m == nil {
			if open {
				current.Content += "\n" + line
				continue
			}
			logger.Warn("skipping malformed line", "line", lineNumber, "text", line)
			continue
		}

		ts, err := time.Parse(timestampLayout, m[1])
		if err != nil {
			logger.Warn("skipping line with invalid timestamp", "line", lineNumber, "timestamp", m[1])
			continue
		}

		if open {
			msgs = append(msgs, current)
		}
		current = Message{
			Sender:    strings.TrimSpace(m[2]),
			Timestamp: ts,
			Content:   strings.TrimSpace(m[3]),
		}
		open = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ParseChat: scan: %w", err)
	}

	if open {
		msgs = append(msgs, current)
	}
	return msgs, nil
}

// ParseChatFile reads and parses one exported chat file. An unreadable file is
// an error for the caller to surface; an empty or header-free file parses to an
// empty message list with a warning.
func ParseChatFile(path string, logger *slog.Logger) ([]Message, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ParseChatFile: open %s: %w", path, err)
	}
	defer f.Close()

	msgs, err := ParseChat(f, logger)
	if err != nil {
		return nil, fmt.Errorf("ParseChatFile: %s: %w", path, err)
	}
	if len(msgs) == 0 {
		logger.Warn("no valid messages found", "file", path)
	}
	return msgs, nil
}
