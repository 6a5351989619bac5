package main

import "testing"

func TestParseAnswers(t *testing.T) {
	cells := []string{
		"Cat", "43",
		"<b>Dog</b>", "24",
		"", "15",      // blank answer, pair skipped
		"Fish", "abc", // unparseable score, pair skipped
		"Bird", "-5",  // non-positive score, pair skipped
		"  Horse  ", "33",
	}

	answers, total := parseAnswers(cells)

	if len(answers) != 3 {
		t.Fatalf("parsed %d answers, want 3", len(answers))
	}
	if answers[0].Title != "Cat" || answers[0].Score != 43 {
		t.Errorf("answers[0] = %q/%d, want Cat/43", answers[0].Title, answers[0].Score)
	}
	if answers[1].Title != "Dog" {
		t.Errorf("markup not stripped from answer title: %q", answers[1].Title)
	}
	if answers[2].Title != "Horse" {
		t.Errorf("answer title not trimmed: %q", answers[2].Title)
	}
	if total != 100 {
		t.Errorf("total = %d, want 100", total)
	}
}

func TestParseAnswersMarkupOnlyTitleSkipped(t *testing.T) {
	answers, total := parseAnswers([]string{"<script>alert(1)</script>", "50", "Cat", "50"})

	if len(answers) != 1 || answers[0].Title != "Cat" {
		t.Fatalf("answers = %+v, want only Cat", answers)
	}
	if total != 50 {
		t.Errorf("total = %d, want 50", total)
	}
}
