package decision

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIsParagraphMention(t *testing.T) {
	tests := []struct {
		name string
		text string
		who  string
		want bool
	}{
		{"offset zero", "@bob please review", "bob", true},
		{"after newline", "first line\n@bob go", "bob", true},
		{"after newline with spaces", "intro\n   @bob go", "bob", true},
		{"after newline with tab", "intro\n\t@bob go", "bob", true},
		{"crlf line break", "intro\r\n@bob go", "bob", true},
		{"leading whitespace at start", "  @bob hello", "bob", true},
		{"case-insensitive name", "@BOB hello", "bob", true},
		{"mid line", "please ask @bob about it", "bob", false},
		{"mid line after comma", "hey, @bob", "bob", false},
		{"second paragraph mid line", "a\nplease ping @bob", "bob", false},
		{"comma terminates token", "@bob, take a look", "bob", true},
		{"colon terminates token", "@bob: status?", "bob", true},
		{"period extends token", "@bob. take a look", "bob", false},
		{"longer token", "@bobby hello", "bob", false},
		{"dotted token", "@bob.smith hello", "bob", false},
		{"dotted name matches", "@bob.smith hello", "bob.smith", true},
		{"hyphen and underscore", "@code-review_2 go", "code-review_2", true},
		{"bare at sign", "@ bob", "bob", false},
		{"empty text", "", "bob", false},
		{"empty name", "@bob", "", false},
		{"multiple paragraphs", "ignore @bob here\n@bob but this counts", "bob", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsParagraphMention(tt.text, tt.who); got != tt.want {
				t.Fatalf("IsParagraphMention(%q, %q) = %v, want %v", tt.text, tt.who, got, tt.want)
			}
		})
	}
}

func TestIsParagraphMention_NewlinePositionFlipsVerdict(t *testing.T) {
	// The same token moves from mid-line to paragraph start when a
	// newline is inserted before it.
	flat := "could you check with @reviewer today"
	if IsParagraphMention(flat, "reviewer") {
		t.Fatal("mid-line mention must not qualify")
	}
	broken := "could you check with\n@reviewer today"
	if !IsParagraphMention(broken, "reviewer") {
		t.Fatal("newline-anchored mention must qualify")
	}
}

func TestExtractMentions(t *testing.T) {
	text := "@alice start\nsome prose @carol ignored\n  @Bob next\n@alice again"
	got := ExtractMentions(text)
	want := []string{"alice", "bob"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mentions mismatch (-want +got):\n%s", diff)
	}
}

func TestValidMentionName(t *testing.T) {
	for _, ok := range []string{"bob", "Bob-2", "code_review", "a.b"} {
		if !ValidMentionName(ok) {
			t.Errorf("%q should be valid", ok)
		}
	}
	for _, bad := range []string{"", "two words", "émile", "a/b", "@bob"} {
		if ValidMentionName(bad) {
			t.Errorf("%q should be invalid", bad)
		}
	}
}
