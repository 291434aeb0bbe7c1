package domain

import "fmt"

// Event types fanned out over the real-time transport. The names are part of
// the wire contract with clients.
const (
	EventColumnCreate  = "column:create"
	EventColumnUpdate  = "column:update"
	EventColumnDelete  = "column:delete"
	EventColumnReorder = "column:reorder"

	EventCardCreate  = "card:create"
	EventCardUpdate  = "card:update"
	EventCardDelete  = "card:delete"
	EventCardMove    = "card:move"
	EventCardReorder = "card:reorder"

	EventTaskCreate  = "task:create"
	EventTaskUpdate  = "task:update"
	EventTaskDelete  = "task:delete"
	EventTaskReorder = "task:reorder"
	EventTaskLink    = "task:link"

	EventChannelUpdate = "channel:update"
	EventChannelDelete = "channel:delete"

	EventMessageCreate    = "message:create"
	EventPropertyUpdate   = "property:update"
	EventTagUpdate        = "tag:update"
	EventQuestionCreate   = "question:create"
	EventInstructionWrite = "instruction:update"

	// Workspace-placement events only concern the acting user's own sidebar
	// and are delivered to their private topic.
	EventFolderCreate   = "folder:create"
	EventFolderUpdate   = "folder:update"
	EventFolderDelete   = "folder:delete"
	EventFolderReorder  = "folder:reorder"
	EventChannelSort    = "channel:sort"
	EventChannelMove    = "channel:move"
	EventChannelArchive = "channel:archive"

	// Viewer-level channel events carry no state change.
	EventMemberTyping = "member:typing"
	EventCursorMove   = "cursor:move"
)

// EventScope says which topic an event is delivered to.
type EventScope int

const (
	ScopeUser EventScope = iota
	ScopeChannel
)

// Classification is the fan-out contract for one event type: where it goes
// and what capability the publisher must hold on the channel.
type Classification struct {
	Scope    EventScope
	Requires Capability // empty for user-scoped events
}

var userScopedEvents = map[string]struct{}{
	EventFolderCreate:   {},
	EventFolderUpdate:   {},
	EventFolderDelete:   {},
	EventFolderReorder:  {},
	EventChannelSort:    {},
	EventChannelMove:    {},
	EventChannelArchive: {},
}

var channelWriteEvents = map[string]struct{}{
	EventColumnCreate:     {},
	EventColumnUpdate:     {},
	EventColumnDelete:     {},
	EventColumnReorder:    {},
	EventCardCreate:       {},
	EventCardUpdate:       {},
	EventCardDelete:       {},
	EventCardMove:         {},
	EventCardReorder:      {},
	EventTaskCreate:       {},
	EventTaskUpdate:       {},
	EventTaskDelete:       {},
	EventTaskReorder:      {},
	EventTaskLink:         {},
	EventChannelUpdate:    {},
	EventChannelDelete:    {},
	EventMessageCreate:    {},
	EventPropertyUpdate:   {},
	EventTagUpdate:        {},
	EventQuestionCreate:   {},
	EventInstructionWrite: {},
}

var channelReadEvents = map[string]struct{}{
	EventMemberTyping: {},
	EventCursorMove:   {},
}

// Classify maps an event type to its scope and fan-out capability. The tables
// above are the single source of truth; a type absent from all of them is a
// configuration error and the publish must be rejected, never treated as
// public.
func Classify(eventType string) (Classification, error) {
	if _, ok := userScopedEvents[eventType]; ok {
		return Classification{Scope: ScopeUser}, nil
	}
	if _, ok := channelWriteEvents[eventType]; ok {
		return Classification{Scope: ScopeChannel, Requires: CapabilityEdit}, nil
	}
	if _, ok := channelReadEvents[eventType]; ok {
		return Classification{Scope: ScopeChannel, Requires: CapabilityView}, nil
	}
	return Classification{}, fmt.Errorf("event type %q: %w", eventType, ErrUnknownEventType)
}

// KnownEventTypes lists every classified type, for exhaustiveness checks.
func KnownEventTypes() []string {
	out := make([]string, 0, len(userScopedEvents)+len(channelWriteEvents)+len(channelReadEvents))
	for t := range userScopedEvents {
		out = append(out, t)
	}
	for t := range channelWriteEvents {
		out = append(out, t)
	}
	for t := range channelReadEvents {
		out = append(out, t)
	}
	return out
}
