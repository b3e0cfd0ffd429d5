package dialogue

import (
	"testing"

	"github.com/dgnsrekt/troupe/agent"
)

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		h.append(agent.Utterance{Text: text})
	}

	got := h.Snapshot()
	if len(got) != 3 || got[0].Text != "3" || got[2].Text != "5" {
		t.Errorf("Snapshot() = %+v, want 3..5", got)
	}
	if r := h.Recent(2); len(r) != 2 || r[0].Text != "4" {
		t.Errorf("Recent(2) = %+v", r)
	}
	if r := h.Recent(10); len(r) != 3 {
		t.Errorf("Recent(10) len = %d", len(r))
	}

	got[0].Text = "changed"
	if h.Snapshot()[0].Text != "3" {
		t.Error("Snapshot shares storage")
	}

	h.reset()
	if h.Len() != 0 {
		t.Error("reset left entries")
	}
	if NewHistory(0).limit != DefaultHistoryLimit {
		t.Error("default limit not applied")
	}
}
