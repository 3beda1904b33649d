// Package stream carries a turn's output to the caller as an ordered
// sequence of frames.
package stream

type FrameType string

const (
	FrameStatus  FrameType = "status"
	FrameContent FrameType = "content"
	FrameDone    FrameType = "done"
	FrameError   FrameType = "error"
)

type Frame struct {
	Type    FrameType `json:"type"`
	Status  string    `json:"status,omitempty"`
	Content string    `json:"content,omitempty"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// Terminal reports whether f ends a turn.
func (f Frame) Terminal() bool {
	return f.Type == FrameDone || f.Type == FrameError
}

// EmitFunc delivers one frame to the caller. It is called synchronously
// from the turn's goroutine; an error means the caller went away.
type EmitFunc func(Frame) error

// Discard is an EmitFunc that drops every frame.
func Discard(Frame) error { return nil }
