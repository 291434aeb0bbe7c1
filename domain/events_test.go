package domain

import (
	"errors"
	"testing"
)

func TestClassifyUserScoped(t *testing.T) {
	for _, et := range []string{EventFolderCreate, EventFolderReorder, EventChannelSort, EventChannelArchive} {
		cl, err := Classify(et)
		if err != nil {
			t.Fatalf("%s: %v", et, err)
		}
		if cl.Scope != ScopeUser {
			t.Errorf("%s classified channel-scoped", et)
		}
		if cl.Requires != "" {
			t.Errorf("%s requires %q, user events need no channel capability", et, cl.Requires)
		}
	}
}

func TestClassifyChannelWrite(t *testing.T) {
	for _, et := range []string{EventColumnCreate, EventCardMove, EventTaskReorder, EventChannelDelete, EventMessageCreate} {
		cl, err := Classify(et)
		if err != nil {
			t.Fatalf("%s: %v", et, err)
		}
		if cl.Scope != ScopeChannel || cl.Requires != CapabilityEdit {
			t.Errorf("%s = %+v, want channel scope gated on edit", et, cl)
		}
	}
}

func TestClassifyChannelRead(t *testing.T) {
	for _, et := range []string{EventMemberTyping, EventCursorMove} {
		cl, err := Classify(et)
		if err != nil {
			t.Fatalf("%s: %v", et, err)
		}
		if cl.Scope != ScopeChannel || cl.Requires != CapabilityView {
			t.Errorf("%s = %+v, want channel scope gated on view", et, cl)
		}
	}
}

func TestClassifyFailsClosed(t *testing.T) {
	for _, et := range []string{"", "column:explode", "Column:Create", "folder:create "} {
		_, err := Classify(et)
		if !errors.Is(err, ErrUnknownEventType) {
			t.Errorf("%q: got %v, want ErrUnknownEventType", et, err)
		}
	}
}

// Every type the tables know must classify without error, and no type may sit
// in more than one table.
func TestClassifyExhaustive(t *testing.T) {
	seen := make(map[string]struct{})
	for _, et := range KnownEventTypes() {
		if _, dup := seen[et]; dup {
			t.Errorf("%s listed in more than one table", et)
		}
		seen[et] = struct{}{}
		if _, err := Classify(et); err != nil {
			t.Errorf("%s: %v", et, err)
		}
	}
	if len(seen) == 0 {
		t.Fatal("no known event types")
	}
}
