// Package tui renders a live view of a fix session with Bubble Tea. The
// session model consumes fixer events through an EventBridge and shows
// per-case progress, a scrolling activity log and elapsed time.
package tui
