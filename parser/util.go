package parser

import (
	"fmt"
	"strconv"
)

// parseInt converts a NUMBER token's decimal text into its i64
// value. The lexer only ever hands us a run of digit characters, so
// the only failure mode here is overflow.
func parseInt(lit string) (int64, error) {
	n, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric literal %q: %w", lit, err)
	}
	return n, nil
}
