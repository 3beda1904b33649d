package serverutils

import (
	"ai-assistant-be/internal/constant"
	"ai-assistant-be/pkg/rag/stream"
)

// RejectedFrame reports a turn that failed before the pipeline took over.
// Server faults are not echoed to the client.
func RejectedFrame(err error) stream.Frame {
	status, msg := StatusFor(err)
	if status >= 500 {
		msg = constant.MessageInternal
	}
	return stream.Frame{
		Type:    stream.FrameError,
		Code:    constant.ErrorCodeRejected,
		Message: msg,
		Data:    map[string]int{"status": status},
	}
}

// TerminalTracker wraps an emitter and remembers whether the turn ended.
type TerminalTracker struct {
	Next     stream.EmitFunc
	terminal bool
}

func (t *TerminalTracker) Emit(f stream.Frame) error {
	if f.Terminal() {
		t.terminal = true
	}
	return t.Next(f)
}

func (t *TerminalTracker) Terminated() bool {
	return t.terminal
}
