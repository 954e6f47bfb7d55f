package wire

import "errors"

var (
	// ErrUndecodable is returned for lines that are not valid JSON.
	ErrUndecodable = errors.New("line is not valid JSON")

	// ErrPipeFull is returned by Pipe.Post when the buffer is full.
	ErrPipeFull = errors.New("pipe buffer full")

	// ErrPipeClosed is returned by a closed Pipe.
	ErrPipeClosed = errors.New("pipe closed")
)
