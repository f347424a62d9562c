package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/0xmhha/tab-monitor/pkg/logger"
)

const (
	// MaxReadSize bounds the bytes consumed by one ParseFile call (8MB).
	// Larger backlogs are read over several calls.
	MaxReadSize = 8 * 1024 * 1024

	// MaxLineLength is the maximum allowed line length (1MB).
	// Longer lines are skipped.
	MaxLineLength = 1024 * 1024
)

// Parser provides methods for parsing browser event spool files.
type Parser interface {
	// ParseFile reads a JSONL file from the given offset and returns
	// the parsed events along with the new file offset.
	//
	// Parameters:
	//   - path: Path to the JSONL file
	//   - offset: Byte offset to start reading from (0 for beginning)
	//
	// Returns:
	//   - Slice of successfully parsed events, in file order
	//   - New offset, just past the last complete line
	//   - Error if file cannot be read
	//
	// Malformed lines are logged and skipped. An offset beyond the end of
	// the file (truncated or replaced file) restarts from 0.
	//
	// Thread-safety: This method is safe to call concurrently with different files.
	ParseFile(path string, offset int64) ([]Event, int64, error)

	// ParseLine parses a single JSONL line into an Event.
	//
	// Thread-safety: This method is thread-safe.
	ParseLine(line string) (*Event, error)
}

// jsonlParser implements the Parser interface.
type jsonlParser struct {
	logger logger.Logger
}

// New creates a new Parser instance.
func New(log logger.Logger) Parser {
	return &jsonlParser{logger: logger.ForComponent(log, "parser")}
}

// ParseFile implements Parser.ParseFile.
func (p *jsonlParser) ParseFile(path string, offset int64) ([]Event, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat file: %w", err)
	}

	if offset > info.Size() {
		p.logger.Warn("spool file shrank, reading from start",
			"path", path,
			"offset", offset,
			"size", info.Size())
		offset = 0
	}
	if offset == info.Size() {
		return nil, offset, nil
	}

	// #nosec G304: path comes from discovery
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			p.logger.Warn("failed to close spool file", "path", path, "error", closeErr)
		}
	}()

	if offset > 0 {
		if _, seekErr := f.Seek(offset, io.SeekStart); seekErr != nil {
			return nil, 0, fmt.Errorf("failed to seek to offset %d: %w", offset, seekErr)
		}
	}

	events := make([]Event, 0, 64)
	r := bufio.NewReaderSize(io.LimitReader(f, MaxReadSize), 64*1024)
	consumed := offset
	lineNum := 0

	for {
		line, readErr := r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return events, consumed, fmt.Errorf("read error after line %d: %w", lineNum, readErr)
		}

		if len(line) == 0 || line[len(line)-1] != '\n' {
			// Unterminated tail: wait for the writer, unless it fills the
			// whole read window and can never complete.
			if len(line) >= MaxReadSize {
				p.logger.Warn("skipping oversized line", "path", path, "offset", consumed)
				consumed += int64(len(line))
			}
			break
		}

		lineNum++
		consumed += int64(len(line))

		text := bytes.TrimSpace(line)
		if len(text) == 0 {
			continue
		}
		if len(text) > MaxLineLength {
			p.logger.Warn("skipping oversized line", "path", path, "line", lineNum, "length", len(text))
			continue
		}

		ev, parseErr := p.ParseLine(string(text))
		if parseErr != nil {
			p.logger.Debug("skipping malformed line",
				"path", path,
				"error", &ParseError{Line: lineNum, Data: string(text), Err: parseErr})
			continue
		}

		events = append(events, *ev)
	}

	return events, consumed, nil
}

// ParseLine implements Parser.ParseLine.
func (p *jsonlParser) ParseLine(line string) (*Event, error) {
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedJSON)
	}

	var ev Event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &ev, nil
}
