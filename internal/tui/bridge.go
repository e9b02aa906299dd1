package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/testmend/testmend/internal/fixer"
)

// EventBridge converts orchestrator events into TUI messages that the Bubble
// Tea runtime can dispatch to the session model. It is intended to be used
// as a tea.Cmd producer that reads from the session event channel.
type EventBridge struct{}

// NewEventBridge creates a new EventBridge. No internal state is maintained;
// the struct exists to provide a namespaced API for the bridge helpers.
func NewEventBridge() EventBridge {
	return EventBridge{}
}

// FixEventCmd returns a tea.Cmd that reads a single event from ch and
// converts it to a FixEventMsg. When the channel is closed the command sends
// StreamClosedMsg; when ctx is done it sends nil.
//
// Usage: call repeatedly inside Update to keep draining the channel:
//
//	case FixEventMsg:
//	    // handle...
//	    return m, bridge.FixEventCmd(ctx, ch)
func (b EventBridge) FixEventCmd(ctx context.Context, ch <-chan fixer.Event) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return StreamClosedMsg{}
			}
			return FixEventMsg{Event: ev}
		}
	}
}

// SendFixEvent is a convenience function that sends an event to the Bubble
// Tea program p by converting it to a FixEventMsg. It is intended for use
// outside the Elm update loop when direct channel bridging is not used.
func SendFixEvent(p *tea.Program, ev fixer.Event) {
	p.Send(FixEventMsg{Event: ev})
}
