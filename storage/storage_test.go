package storage

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

func TestSanitize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"o'brien", "o''brien"},
		{"''", "''''"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sanitize(tc.in); got != tc.want {
			t.Errorf("sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPartitionFilter(t *testing.T) {
	if got := partitionFilter("ch'1"); got != "PartitionKey eq 'ch''1'" {
		t.Fatalf("got %q", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if isNotFound(nil) {
		t.Error("nil error reported as not found")
	}
	if isNotFound(errors.New("boom")) {
		t.Error("plain error reported as not found")
	}
	if !isNotFound(&azcore.ResponseError{StatusCode: http.StatusNotFound}) {
		t.Error("404 not recognised")
	}
	if isNotFound(&azcore.ResponseError{StatusCode: http.StatusConflict}) {
		t.Error("409 reported as not found")
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	if got := parseTime(formatTime(now)); !got.Equal(now) {
		t.Fatalf("round trip %v -> %v", now, got)
	}
	if !parseTime("").IsZero() {
		t.Error("empty string must parse to the zero time")
	}
	if !parseTime("garbage").IsZero() {
		t.Error("unparseable string must parse to the zero time")
	}
	if formatTime(time.Time{}) != "" {
		t.Error("zero time must format to empty")
	}
}

func TestEntityConversions(t *testing.T) {
	col := columnFromEntity(columnEntity{
		Entity:   aztables.Entity{PartitionKey: "ch1", RowKey: "col1"},
		Name:     "todo",
		Position: 3,
	})
	if col.ID != "col1" || col.ChannelID != "ch1" || col.Position != 3 {
		t.Fatalf("column = %+v", col)
	}

	card := cardFromEntity(cardEntity{
		Entity:   aztables.Entity{PartitionKey: "ch1", RowKey: "card1"},
		ColumnID: "col1",
		Title:    "write tests",
		Position: 1,
	})
	if card.ColumnID != "col1" || card.ChannelID != "ch1" {
		t.Fatalf("card = %+v", card)
	}

	task := taskFromEntity(taskEntity{
		Entity: aztables.Entity{PartitionKey: "ch1", RowKey: "t1"},
		CardID: "card1",
		Title:  "step one",
		Done:   true,
	})
	if task.CardID != "card1" || !task.Done {
		t.Fatalf("task = %+v", task)
	}
	if task.ParentScope() != "card1" {
		t.Fatalf("scope = %s", task.ParentScope())
	}

	loose := taskFromEntity(taskEntity{
		Entity: aztables.Entity{PartitionKey: "ch1", RowKey: "t2"},
		Title:  "unlinked",
	})
	if loose.ParentScope() != "ch1" {
		t.Fatalf("channel-scoped task scope = %s", loose.ParentScope())
	}
}
