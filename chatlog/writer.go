package chatlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteOptions controls how conversation records are persisted.
type WriteOptions struct {
	// Append adds records to an existing file instead of replacing it. Used
	// when multiple input files funnel into one output.
	Append bool

	// FileMode is used when creating the output file (defaults to 0o644).
	FileMode fs.FileMode
}

// WriteConversations serializes conversations as line-delimited JSON, one
// {"messages": [...]} object per line. The default mode replaces the file via
// a temp-file rename so a failed run never leaves a half-written output;
// append mode adds to whatever is already there.
func WriteConversations(path string, convs []Conversation, opts WriteOptions) error {
	if path == "" {
		return errors.New("WriteConversations: path is empty")
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("WriteConversations: mkdir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, conv := range convs {
		if err := enc.Encode(conv); err != nil {
			return fmt.Errorf("WriteConversations: marshal record: %w", err)
		}
	}

	if opts.Append {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, opts.FileMode)
		if err != nil {
			return fmt.Errorf("WriteConversations: open for append: %w", err)
		}
		if _, err := f.Write(buf.Bytes()); err != nil {
			_ = f.Close()
			return fmt.Errorf("WriteConversations: append: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("WriteConversations: close: %w", err)
		}
		return nil
	}

	if err := writeFileAtomic(path, buf.Bytes(), opts.FileMode); err != nil {
		return fmt.Errorf("WriteConversations: write: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp_wac2j_*.jsonl")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
