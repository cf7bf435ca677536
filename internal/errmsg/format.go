// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/llehouerou/cadence/internal/playback"
)

// Op represents an operation that can fail.
type Op string

const (
	OpLoad       Op = "load track"
	OpSeek       Op = "seek"
	OpDecode     Op = "decode track"
	OpPlay       Op = "play"
	OpCommand    Op = "run command"
	OpResolve    Op = "read file"
	OpConfig     Op = "load configuration"
	OpInitialize Op = "initialize application"
	OpSession    Op = "persist session"
)

// opNames maps the op strings carried by playback error events.
var opNames = map[string]Op{
	"load":    OpLoad,
	"seek":    OpSeek,
	"decode":  OpDecode,
	"play":    OpPlay,
	"command": OpCommand,
}

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}

// FormatEvent renders a playback error event for the status line.
func FormatEvent(ev playback.ErrorEvent) string {
	switch ev.Kind {
	case playback.KindNone:
		return ""
	case playback.KindUnderrun:
		return "Audio buffer underrun"
	case playback.KindInvalidCommand:
		return fmt.Sprintf("Ignored: %v", unwrapped(ev.Err, playback.ErrInvalidCommand))
	case playback.KindDeviceLost:
		return "Audio device lost, playback stopped"
	}
	op, ok := opNames[ev.Op]
	if !ok {
		op = OpPlay
	}
	name := ""
	if ev.Path != "" {
		name = filepath.Base(ev.Path)
	}
	err := ev.Err
	if err == nil {
		err = errors.New(ev.Kind.String())
	}
	return FormatWith(op, name, err)
}

// unwrapped strips the leading "sentinel: " from err's message.
func unwrapped(err, sentinel error) string {
	if err == nil {
		return sentinel.Error()
	}
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
