package emotion

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Label
	}{
		{"happy", Happy},
		{"  Happy_Strong.\n", HappyStrong},
		{"The emotion is: sad", Sad},
		{"angry angry", Angry},
		{"happy or sad", Normal},
		{"ecstatic", Normal},
		{"", Normal},
		{"strong_ok!", StrongOK},
		{"happy-strong", Happy},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Parse(tt.in); got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLabelsClosedSet(t *testing.T) {
	if len(Labels) != 14 {
		t.Fatalf("expected 14 labels, got %d", len(Labels))
	}
	for _, l := range Labels {
		if !l.Valid() {
			t.Errorf("%s should be valid", l)
		}
	}
	if Label("bored").Valid() {
		t.Error("bored should not be valid")
	}
}
