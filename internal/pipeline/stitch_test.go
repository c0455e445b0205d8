package pipeline

import (
	"strings"
	"testing"
)

func TestStitcher_HeaderDedup(t *testing.T) {
	s := NewStitcher(0, nil)
	s.Add("Some text leading up to\n\n## Chapter 3", 1)
	s.Add("## Chapter 3\n\nThe chapter continues here.", 2)

	result := s.StitchAll()

	if got := strings.Count(result, "## Chapter 3"); got != 1 {
		t.Errorf("expected exactly one occurrence of the heading, got %d:\n%s", got, result)
	}
	if !strings.Contains(result, "The chapter continues here.") {
		t.Error("expected chapter body to survive the merge")
	}
}

func TestStitcher_OutOfOrderPages(t *testing.T) {
	s := NewStitcher(0, nil)
	s.Add("Second page.", 2)
	s.Add("First page.", 1)
	s.Add("Third page.", 3)

	result := s.StitchAll()

	first := strings.Index(result, "First page.")
	second := strings.Index(result, "Second page.")
	third := strings.Index(result, "Third page.")
	if first == -1 || second == -1 || third == -1 {
		t.Fatalf("missing page content:\n%s", result)
	}
	if !(first < second && second < third) {
		t.Errorf("pages out of order:\n%s", result)
	}
}

func TestStitcher_Cleanup(t *testing.T) {
	t.Run("collapses excessive newlines", func(t *testing.T) {
		s := NewStitcher(0, nil)
		s.Add("para one\n\n\n\n\npara two", 1)
		result := s.StitchAll()
		if strings.Contains(result, "\n\n\n") {
			t.Errorf("expected newlines collapsed:\n%q", result)
		}
	})

	t.Run("normalizes bullet markers", func(t *testing.T) {
		s := NewStitcher(0, nil)
		s.Add("intro\n•   apples\n*  pears\n-   plums", 1)
		result := s.StitchAll()
		for _, want := range []string{"\n- apples", "\n- pears", "\n- plums"} {
			if !strings.Contains(result, want) {
				t.Errorf("expected %q in:\n%q", want, result)
			}
		}
	})

	t.Run("strips lone page numbers", func(t *testing.T) {
		s := NewStitcher(0, nil)
		s.Add("end of paragraph\n42\nnext paragraph", 1)
		result := s.StitchAll()
		if strings.Contains(result, "42") {
			t.Errorf("expected lone page number removed:\n%q", result)
		}
	})

	t.Run("empty stitcher", func(t *testing.T) {
		s := NewStitcher(0, nil)
		if got := s.StitchAll(); got != "" {
			t.Errorf("expected empty document, got %q", got)
		}
	})
}

func TestSimilarText(t *testing.T) {
	t.Run("case-insensitive match", func(t *testing.T) {
		if !similarText("## Introduction", "## introduction", DefaultSimilarityThreshold) {
			t.Error("expected case-insensitive headings to be similar")
		}
	})

	t.Run("chapter one vs chapter two", func(t *testing.T) {
		// Stripped and lowercased both sides are " chapter one" and
		// " chapter two" (12 runes). Position-wise " chapter " matches
		// (9 runes), "one"/"two" share none: 9/12 = 0.75 < 0.8.
		if similarText("## Chapter One", "## Chapter Two", DefaultSimilarityThreshold) {
			t.Error("expected 0.75 overlap to fall below the 0.8 threshold")
		}
	})

	t.Run("substring match", func(t *testing.T) {
		if !similarText("## The Great War", "## The Great War (continued)", DefaultSimilarityThreshold) {
			t.Error("expected substring containment to be similar")
		}
	})

	t.Run("empty after stripping", func(t *testing.T) {
		if similarText("###", "###", DefaultSimilarityThreshold) {
			t.Error("expected empty stripped strings to not be similar")
		}
	})
}

func TestStitcher_Stats(t *testing.T) {
	s := NewStitcher(0, nil)
	s.Add("one two three", 1)
	s.Add("four five", 2)

	stats := s.Stats()

	if stats.TotalPages != 2 {
		t.Errorf("expected 2 pages, got %d", stats.TotalPages)
	}
	if stats.TotalWords != 5 {
		t.Errorf("expected 5 words, got %d", stats.TotalWords)
	}
	// "one two three" + " " + "four five" = 23 chars
	if stats.TotalChars != 23 {
		t.Errorf("expected 23 chars, got %d", stats.TotalChars)
	}
	if stats.AvgCharsPerPage != 11 {
		t.Errorf("expected avg 11, got %d", stats.AvgCharsPerPage)
	}
}
