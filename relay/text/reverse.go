// Package text holds the message transforms a relay applies before echoing a message back.
package text

import (
	"fmt"
	"strings"
)

// Transform rewrites one client message.
type Transform func(string) string

// Reverse reverses the order of the words and the letters of every word,
// collapsing runs of whitespace into a single space.
func Reverse(s string) string {
	words := strings.Fields(s)
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	for i, word := range words {
		words[i] = reverseRunes(word)
	}
	return strings.Join(words, " ")
}

// ReverseWords reverses the letters of every word and keeps the word order.
func ReverseWords(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = reverseRunes(word)
	}
	return strings.Join(words, " ")
}

// Echo returns the message unchanged.
func Echo(s string) string {
	return s
}

// ByName resolves a transform from its configuration name.
func ByName(name string) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "reverse":
		return Reverse, nil
	case "reverse-words":
		return ReverseWords, nil
	case "echo":
		return Echo, nil
	default:
		return nil, fmt.Errorf("text: unknown transform %q (valid: reverse, reverse-words, echo)", name)
	}
}

func reverseRunes(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
