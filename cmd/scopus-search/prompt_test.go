package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dadope/scopus-search/internal/author"
	"github.com/dadope/scopus-search/internal/reference"
)

func TestPromptPicker(t *testing.T) {
	guesses := []author.NameGuess{
		{Name: "Ada Lovelace", Count: 3},
		{Name: "A. Lovelace", Count: 1},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"first guess", "1\n", "Ada Lovelace"},
		{"second guess without newline", "2", "A. Lovelace"},
		{"invalid then valid", "x\n9\n\n2\n", "A. Lovelace"},
		{"other", "3\nAugusta Ada King\n", "Augusta Ada King"},
		{"end of input", "", ""},
		{"end of input after other", "3\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := newPromptPicker(strings.NewReader(tt.input), &out)

			got, err := p.PickName(context.Background(), reference.Author{ScopusID: 7}, guesses)
			if err != nil {
				t.Fatalf("PickName() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PickName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPromptPicker_ListsChoices(t *testing.T) {
	var out bytes.Buffer
	p := newPromptPicker(strings.NewReader("1\n"), &out)

	_, err := p.PickName(context.Background(), reference.Author{ScopusID: 7}, []author.NameGuess{{Name: "Ada Lovelace", Count: 3}})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"author 7", "1) [3] Ada Lovelace", "2) Other, input name..."} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("prompt missing %q:\n%s", want, out.String())
		}
	}
}

func TestPromptPicker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPromptPicker(strings.NewReader("1\n"), &bytes.Buffer{})
	if _, err := p.PickName(ctx, reference.Author{ScopusID: 7}, nil); err == nil {
		t.Error("PickName() should fail on a canceled context")
	}
}
