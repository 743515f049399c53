package script

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes command scripts. Newlines and semicolons both end a
// statement; '#' starts a comment that runs to the end of the line.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "EOL", Pattern: `[\n;]`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},

	// Reset delays and numeric booleans
	{Name: "Number", Pattern: `[-+]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][-+]?[0-9]+)?`},

	// Command names and word booleans (on, off, yes, ...)
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
})
