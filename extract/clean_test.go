package extract

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Acme Corp", "Acme Corp"},
		{"surrounding whitespace", "  Acme Corp \n", "Acme Corp"},
		{"straight quotes", `"Acme Corp"`, "Acme Corp"},
		{"curly quotes", "“Acme Corp”", "Acme Corp"},
		{"boilerplate phrase", "Read the story opens in a new tab", "Read the story"},
		{"boilerplate in parens", "Read the story (opens in a new tab)", "Read the story"},
		{"boilerplate mixed case", "Read Opens In A New Tab the story", "Read the story"},
		{"boilerplate across layout newline", "Read the story opens in a new\ntab", "Read the story"},
		{"boilerplate with tab run", "opens in a new \t tab", ""},
		{"whitespace runs collapse", "a  b\n\tc", "a b c"},
		{"empty", "", ""},
		{"only quotes and spaces", ` "“ ” `, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// Clean must be idempotent: a second pass never changes the value.
func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"Acme Corp",
		`  "“Acme Corp”"  `,
		"Read the story opens in a new tab",
		"a  b\n\tc  opens in a new tab ",
		"Read the story opens in a new\ntab",
		"opens in a new \t tab",
		"opens in a opens in a new tab new tab",
		"",
		"'''",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestAccepted(t *testing.T) {
	tests := []struct {
		name      string
		cleaned   string
		minLength int
		want      bool
	}{
		{"normal value", "Acme Corporation", 5, true},
		{"empty", "", 0, false},
		{"too short", "ab", 3, false},
		{"exactly min length", "abc", 3, true},
		{"bare keyword lowercase", "challenge", 0, false},
		{"bare keyword mixed case", "Headquarters", 0, false},
		{"keyword inside sentence", "The challenge was real and nontrivial", 5, true},
		{"bare keyword results", "Results", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Accepted(tt.cleaned, tt.minLength); got != tt.want {
				t.Errorf("Accepted(%q, %d) = %v, want %v", tt.cleaned, tt.minLength, got, tt.want)
			}
		})
	}
}
