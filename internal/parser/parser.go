// Package parser turns a raw input line into a command vector.
package parser

import (
	"errors"
	"strings"
)

var ErrUnterminatedQuote = errors.New("unterminated quote")

// Command is one parsed input line.
type Command struct {
	Argv       []string
	Background bool
	// Line is the trimmed input, used to display the job.
	Line string
}

// Empty reports whether the line had no words.
func (c Command) Empty() bool {
	return len(c.Argv) == 0
}

// Name is the first word, or "" for an empty command.
func (c Command) Name() string {
	if c.Empty() {
		return ""
	}
	return c.Argv[0]
}

// Parse splits line into words. Words are separated by blanks; a single
// quoted word may contain blanks. A trailing & word marks a background job.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	tokens, err := Split(line)
	if err != nil {
		return Command{Line: line}, err
	}
	argv, background := ParseWithBackground(tokens)
	return Command{Argv: argv, Background: background, Line: line}, nil
}

// ParseWithBackground detects a trailing & and returns the remaining tokens
// and the background flag.
func ParseWithBackground(tokens []string) ([]string, bool) {
	if len(tokens) > 0 && tokens[len(tokens)-1] == "&" {
		return tokens[:len(tokens)-1], true
	}
	return tokens, false
}

// Split breaks line into words, honoring single quotes.
func Split(line string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		inWord  bool
		inQuote bool
	)
	for _, r := range line {
		switch {
		case inQuote:
			if r == '\'' {
				inQuote = false
				continue
			}
			cur.WriteRune(r)
		case r == '\'':
			inQuote, inWord = true, true
		case r == ' ' || r == '\t':
			if inWord {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inQuote {
		return nil, ErrUnterminatedQuote
	}
	if inWord {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}
