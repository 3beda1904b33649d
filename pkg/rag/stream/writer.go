package stream

import (
	"errors"
	"strings"
	"sync"
)

var ErrClosed = errors.New("stream already terminated")

// Writer wraps an EmitFunc for one turn. Content is pushed to the caller
// before it is appended to the accumulator, so Text always equals the
// concatenation of the content frames that were delivered. After Done or
// Fail every further write returns ErrClosed.
type Writer struct {
	mu     sync.Mutex
	emit   EmitFunc
	acc    strings.Builder
	closed bool
}

func NewWriter(emit EmitFunc) *Writer {
	if emit == nil {
		emit = Discard
	}
	return &Writer{emit: emit}
}

func (w *Writer) Status(status string) error {
	return w.send(Frame{Type: FrameStatus, Status: status})
}

// Token pushes a content delta.
func (w *Writer) Token(token string) error {
	if token == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.emit(Frame{Type: FrameContent, Content: token}); err != nil {
		return err
	}
	w.acc.WriteString(token)
	return nil
}

// Message pushes a complete piece of text, separated from earlier content
// by a blank line.
func (w *Writer) Message(text string) error {
	if err := w.Break(); err != nil {
		return err
	}
	return w.Token(text)
}

// Break emits a paragraph separator when content was already written.
func (w *Writer) Break() error {
	w.mu.Lock()
	empty := w.acc.Len() == 0
	w.mu.Unlock()
	if empty {
		return nil
	}
	return w.Token("\n\n")
}

func (w *Writer) Done(data any) error {
	return w.terminate(Frame{Type: FrameDone, Data: data})
}

func (w *Writer) Fail(code, message string) error {
	return w.terminate(Frame{Type: FrameError, Code: code, Message: message})
}

// Text returns everything pushed as content so far.
func (w *Writer) Text() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.acc.String()
}

func (w *Writer) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Writer) send(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.emit(f)
}

func (w *Writer) terminate(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	return w.emit(f)
}
