package grammar

import (
	"fmt"
	"unicode"
)

// Token is one lexical unit of a candidate query, with its byte offset in
// the original text.
type Token struct {
	Text string
	Pos  int
}

// lex splits candidate text into tokens. The lexer recognizes only the
// shapes the grammar can use: words, numbers, single-quoted literals,
// comparison operators and punctuation. Anything else (comment openers,
// string escapes, stray runes) fails immediately with its position - the
// closed-world half of validation.
func lex(input string) ([]Token, *RejectError) {
	var tokens []Token
	i := 0
	n := len(input)

	for i < n {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(' || c == ')' || c == ',' || c == ';' || c == '*' || c == '=':
			tokens = append(tokens, Token{Text: string(c), Pos: i})
			i++

		case c == '!' || c == '>' || c == '<':
			if c == '!' {
				if i+1 >= n || input[i+1] != '=' {
					return nil, lexError(i, string(c), "incomplete operator")
				}
				tokens = append(tokens, Token{Text: "!=", Pos: i})
				i += 2
				break
			}
			if i+1 < n && input[i+1] == '=' {
				tokens = append(tokens, Token{Text: input[i : i+2], Pos: i})
				i += 2
			} else {
				tokens = append(tokens, Token{Text: string(c), Pos: i})
				i++
			}

		case c == '\'':
			j := i + 1
			for j < n && input[j] != '\'' && input[j] != '\n' {
				j++
			}
			if j >= n || input[j] != '\'' {
				return nil, lexError(i, input[i:min(i+8, n)], "unterminated string literal")
			}
			tokens = append(tokens, Token{Text: input[i : j+1], Pos: i})
			i = j + 1

		case c >= '0' && c <= '9':
			j := i
			for j < n && (input[j] >= '0' && input[j] <= '9') {
				j++
			}
			if j < n && input[j] == '.' {
				j++
				for j < n && (input[j] >= '0' && input[j] <= '9') {
					j++
				}
			}
			tokens = append(tokens, Token{Text: input[i:j], Pos: i})
			i = j

		case isWordStart(c):
			j := i
			for j < n && isWordPart(input[j]) {
				j++
			}
			tokens = append(tokens, Token{Text: input[i:j], Pos: i})
			i = j

		default:
			return nil, lexError(i, describeRune(input[i:]), "unrecognized character")
		}
	}

	return tokens, nil
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}

func lexError(pos int, got, detail string) *RejectError {
	return &RejectError{Pos: pos, Got: got, Message: detail}
}

func describeRune(rest string) string {
	for _, r := range rest {
		if unicode.IsPrint(r) {
			return string(r)
		}
		return fmt.Sprintf("%U", r)
	}
	return ""
}
