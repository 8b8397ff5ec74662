package util

import (
	"os"
	"strings"
	"unicode"
)

// IsPunctuation checks if a string consists entirely of punctuation or symbols.
func IsPunctuation(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isPunct(r) {
			return false
		}
	}
	return true
}

func isPunct(r rune) bool {
	if unicode.IsPunct(r) || unicode.IsSymbol(r) {
		return true
	}
	// CJK Symbols and Punctuation
	if r >= 0x3000 && r <= 0x303F {
		return true
	}
	// Full-width forms
	if r >= 0xFF00 && r <= 0xFFEF {
		return true
	}
	return false
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Tokenize splits text on whitespace and cuts punctuation into tokens of
// its own. Apostrophes and hyphens between letters stay inside the word,
// so "don't" and "built-in" are single tokens.
func Tokenize(text string) []string {
	runes := []rune(text)
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsSpace(r):
			flush()
		case (r == '\'' || r == '-') && cur.Len() > 0 && i+1 < len(runes) && unicode.IsLetter(runes[i+1]):
			cur.WriteRune(r)
		case isPunct(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// Normalize lowercases a token for lookups.
func Normalize(token string) string {
	return strings.ToLower(token)
}
