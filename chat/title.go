package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yysun/agent-world-sub006/core"
)

// maxTitleRunes caps generated session titles; longer titles are cut
// and marked with an ellipsis.
const maxTitleRunes = 50

// greetingPrefixes are stripped from the front of the message before
// keywords are extracted. Ordered longest-first so compound greetings
// win over their own prefixes.
var greetingPrefixes = []string{
	"good morning",
	"good afternoon",
	"good evening",
	"greetings",
	"hello",
	"howdy",
	"hey",
	"yo",
	"hi",
}

// stopwords are dropped during keyword extraction. When every word is a
// stopword the unfiltered words are kept instead, so short polite
// messages still produce a usable title.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "am": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "for": {},
	"with": {}, "from": {}, "as": {}, "about": {},
	"can": {}, "could": {}, "would": {}, "should": {}, "will": {},
	"may": {}, "might": {}, "please": {},
	"do": {}, "does": {}, "did": {}, "have": {}, "has": {}, "had": {},
	"what": {}, "when": {}, "where": {}, "who": {}, "how": {}, "why": {},
	"there": {}, "here": {}, "just": {}, "so": {}, "very": {},
	"i": {}, "you": {}, "we": {}, "they": {}, "me": {}, "us": {},
	"my": {}, "your": {}, "our": {}, "it": {}, "its": {},
	"this": {}, "that": {}, "these": {}, "those": {},
}

// GenerateTitle derives a session title from a human message: greeting
// prefixes are stripped, whitespace collapsed, stopwords dropped, and
// the result truncated to maxTitleRunes with "..." appended when cut.
// Content that reduces to nothing falls back to core.DefaultSessionName.
func GenerateTitle(content string) string {
	s := stripGreetings(strings.TrimSpace(content))

	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		trimmed := strings.Trim(w, ",.!?;:")
		if trimmed == "" {
			continue
		}
		if _, skip := stopwords[strings.ToLower(trimmed)]; skip {
			continue
		}
		kept = append(kept, trimmed)
	}
	if len(kept) == 0 {
		kept = words
	}

	title := strings.Join(kept, " ")
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = strings.TrimRight(string(runes[:maxTitleRunes]), " ") + "..."
	}
	if title == "" {
		return core.DefaultSessionName
	}
	return title
}

// stripGreetings repeatedly removes a leading greeting plus the
// punctuation and whitespace run after it. A greeting only matches on a
// word boundary: "hi" strips from "hi there" but not from "history".
func stripGreetings(s string) string {
	for {
		stripped := false
		for _, g := range greetingPrefixes {
			if len(s) < len(g) || !strings.EqualFold(s[:len(g)], g) {
				continue
			}
			rest := s[len(g):]
			if rest != "" {
				r, _ := utf8.DecodeRuneInString(rest)
				if unicode.IsLetter(r) || unicode.IsDigit(r) {
					continue
				}
			}
			s = strings.TrimLeftFunc(rest, func(r rune) bool {
				return unicode.IsSpace(r) || unicode.IsPunct(r)
			})
			stripped = true
			break
		}
		if !stripped {
			return s
		}
	}
}
