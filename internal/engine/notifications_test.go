package engine

import (
	"fmt"
	"testing"
)

func TestNotificationLogPush(t *testing.T) {
	tests := []struct {
		name   string
		pushes int
		want   []string
	}{
		{"empty", 0, nil},
		{"below capacity", 3, []string{"n0", "n1", "n2"}},
		{"at capacity", 5, []string{"n0", "n1", "n2", "n3", "n4"}},
		{"seven keeps last five", 7, []string{"n2", "n3", "n4", "n5", "n6"}},
		{"many", 100, []string{"n95", "n96", "n97", "n98", "n99"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log := NewNotificationLog()
			for i := 0; i < tc.pushes; i++ {
				log.Push(fmt.Sprintf("n%d", i))
			}
			got := log.All()
			if len(got) != len(tc.want) {
				t.Fatalf("got %d entries want %d", len(got), len(tc.want))
			}
			for i := range tc.want {
				if got[i].Text != tc.want[i] {
					t.Fatalf("entry %d got %q want %q", i, got[i].Text, tc.want[i])
				}
			}
		})
	}
}

func TestNotificationLogKeepsDuplicates(t *testing.T) {
	log := NewNotificationLog()
	log.Push("same")
	log.Push("same")
	if log.Len() != 2 {
		t.Fatalf("got %d entries want 2", log.Len())
	}
}

func TestNotificationLogAllIsSnapshot(t *testing.T) {
	log := NewNotificationLog()
	log.Push("a")
	snapshot := log.All()
	log.Push("b")
	snapshot[0].Text = "changed"

	if len(snapshot) != 1 {
		t.Fatalf("snapshot observed later push")
	}
	if log.All()[0].Text != "a" {
		t.Fatalf("mutating snapshot changed the log")
	}
}
