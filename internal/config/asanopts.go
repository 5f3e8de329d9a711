package config

import (
	"fmt"
	"strings"
)

// parseASANOptions tokenizes an ASAN_OPTIONS-style string: a comma-separated
// list of key=value pairs. A comma or equals sign inside a matching pair of
// single or double quotes is not a delimiter, so a value may itself contain
// a comma (e.g. log_path='a,b'). No whitespace is trimmed: values are
// free-form strings up to the next unquoted delimiter. Unknown keys are
// returned along with recognized ones; the caller decides what to do with
// them (spec.md §4.1: "Unknown keys are ignored").
//
// An unterminated quote is a malformed list and returns an error.
func parseASANOptions(s string) (map[string]string, error) {
	opts := make(map[string]string)
	if s == "" {
		return opts, nil
	}

	tokens, err := splitTopLevel(s, ',')
	if err != nil {
		return nil, err
	}
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		key, value, err := splitKeyValue(tok)
		if err != nil {
			return nil, err
		}
		opts[key] = value
	}
	return opts, nil
}

// splitTopLevel splits s on sep, treating single- and double-quoted runs as
// atomic (sep inside a quoted run does not split). It returns an error if a
// quote is left unterminated at the end of s.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	var quote byte // 0, '\'', or '"'

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			cur.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == sep:
			tokens = append(tokens, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in option list", quote)
	}
	tokens = append(tokens, cur.String())
	return tokens, nil
}

// splitKeyValue splits one key=value token on the first unquoted '=' and
// strips a single layer of surrounding quotes from the value, if present.
func splitKeyValue(tok string) (key, value string, err error) {
	var quote byte
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '=':
			return tok[:i], unquote(tok[i+1:]), nil
		}
	}
	if quote != 0 {
		return "", "", fmt.Errorf("unterminated %c quote in option list", quote)
	}
	// No '=' found: the whole token is the key, with an empty value.
	return tok, "", nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
