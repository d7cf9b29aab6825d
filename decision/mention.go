package decision

import "strings"

// IsParagraphMention reports whether text contains an @name token at a
// paragraph start: offset 0 of the text or immediately after a newline,
// with horizontal whitespace permitted before the @. Mid-line mentions
// never qualify. The name comparison is case-insensitive and the token
// is the maximal run of [A-Za-z0-9_.-] after the @, so "@bob," mentions
// bob while "@bobby" and "@bob.smith" do not.
func IsParagraphMention(text, name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(text); i++ {
		if text[i] != '@' || !anchoredAt(text, i) {
			continue
		}
		start, end := token(text, i+1)
		if end > start && strings.EqualFold(text[start:end], name) {
			return true
		}
	}
	return false
}

// ExtractMentions returns the lowercased paragraph-anchored mention
// tokens of text in order of appearance, de-duplicated. Intended for
// display and diagnostics; dispatch decisions go through
// IsParagraphMention.
func ExtractMentions(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for i := 0; i < len(text); i++ {
		if text[i] != '@' || !anchoredAt(text, i) {
			continue
		}
		start, end := token(text, i+1)
		if end == start {
			continue
		}
		name := strings.ToLower(text[start:end])
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ValidMentionName reports whether a name consists solely of mention
// token characters, i.e. agents carrying it can actually be mentioned.
func ValidMentionName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isTokenChar(name[i]) {
			return false
		}
	}
	return true
}

// anchoredAt reports whether the @ at position at sits at a paragraph
// start: only spaces/tabs (and stray carriage returns) between it and
// the preceding newline or the start of the text.
func anchoredAt(text string, at int) bool {
	j := at - 1
	for j >= 0 && (text[j] == ' ' || text[j] == '\t' || text[j] == '\r') {
		j--
	}
	return j < 0 || text[j] == '\n'
}

// token returns the bounds of the maximal token run starting at start.
func token(text string, start int) (int, int) {
	end := start
	for end < len(text) && isTokenChar(text[end]) {
		end++
	}
	return start, end
}

func isTokenChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '_' || c == '.' || c == '-':
		return true
	default:
		return false
	}
}
