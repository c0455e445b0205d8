package pipeline

import "testing"

func TestContextTracker_States(t *testing.T) {
	tracker := NewContextTracker(0, nil)

	if tracker.Current() != "" {
		t.Error("expected no fragment initially")
	}

	tracker.SetIncomplete("  jum  ", 3)
	if tracker.Current() != "jum" {
		t.Errorf("expected trimmed fragment jum, got %q", tracker.Current())
	}

	// Non-consuming read
	if tracker.Current() != "jum" {
		t.Error("expected Current to not consume the fragment")
	}

	// Overwrite without clearing
	tracker.SetIncomplete("frag-", 4)
	if tracker.Current() != "frag-" {
		t.Errorf("expected frag-, got %q", tracker.Current())
	}

	tracker.Clear()
	if tracker.Current() != "" {
		t.Error("expected empty fragment after Clear")
	}

	history := tracker.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Page != 3 || history[0].Fragment != "jum" {
		t.Errorf("unexpected first entry: %+v", history[0])
	}
	if history[1].Page != 4 || history[1].Fragment != "frag-" {
		t.Errorf("unexpected second entry: %+v", history[1])
	}
}

func TestContextTracker_FallbackDetect(t *testing.T) {
	tracker := NewContextTracker(0, nil)

	tests := []struct {
		name         string
		markdown     string
		wantDetected bool
		wantFragment string
	}{
		{"broken hyphenated word", "...the quick brown break-", true, "break-"},
		{"sentence ends with period", "...end of sentence.", false, ""},
		{"hyphenated ending in letter", "some self-con", true, "self-con"},
		{"long token", "supercalifragilistic-expialidocious", false, ""},
		{"no hyphen", "plain ending word", false, ""},
		{"ends with closing quote", `he said "done"`, false, ""},
		{"empty input", "", false, ""},
		{"only blank lines", "\n\n  \n", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detected, fragment := tracker.FallbackDetect(tt.markdown)
			if detected != tt.wantDetected {
				t.Errorf("detected = %v, want %v", detected, tt.wantDetected)
			}
			if fragment != tt.wantFragment {
				t.Errorf("fragment = %q, want %q", fragment, tt.wantFragment)
			}
		})
	}
}
