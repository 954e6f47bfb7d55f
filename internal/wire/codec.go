// Package wire carries envelopes as newline-delimited JSON. Inbound lines are
// decoded into untyped values exactly as a structured clone would deliver
// them; validation is left to the dispatcher.
package wire

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

const maxLineSize = 1024 * 1024

// Decode parses one line into an untyped value. Numbers decode as float64.
func Decode(line []byte) (any, error) {
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return v, nil
}

// Encode renders an envelope as one line without the trailing newline.
func Encode(env schema.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Line is one non-blank input line.
type Line struct {
	Number int
	Raw    []byte
	Value  any
	Err    error
}

// Scan reads r line by line and calls fn for every non-blank line, including
// lines that fail to decode (Line.Err set). A line longer than maxLineSize is
// skipped to its end and reported as undecodable; the lines after it are still
// read. Scan stops at EOF, when ctx is done, or when fn returns an error.
func Scan(ctx context.Context, r io.Reader, fn func(Line) error) error {
	br := bufio.NewReaderSize(r, 64*1024)

	n := 0
	for {
		raw, tooLong, readErr := readLine(br)
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("reading input: %w", readErr)
		}
		if readErr == io.EOF && len(raw) == 0 && !tooLong {
			return nil
		}
		n++

		var line Line
		if tooLong {
			line = Line{Number: n, Err: fmt.Errorf("%w: line exceeds %d bytes", ErrUndecodable, maxLineSize)}
			log.Warn(log.CatWire, "oversized line skipped", "line", n, "limit", maxLineSize)
		} else {
			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) == 0 {
				if readErr == io.EOF {
					return nil
				}
				continue
			}
			line = Line{Number: n, Raw: trimmed}
			line.Value, line.Err = Decode(trimmed)
			if line.Err != nil {
				log.Debug(log.CatWire, "undecodable line", "line", n, "error", line.Err.Error())
			}
		}
		if err := fn(line); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

// readLine returns the next line including its terminator. The bytes of a
// line over maxLineSize are consumed but not kept, and tooLong is set.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(bytes.TrimRight(chunk, "\r\n")) > maxLineSize {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if rerr == bufio.ErrBufferFull {
			continue
		}
		return line, tooLong, rerr
	}
}
