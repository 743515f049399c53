package script

import "github.com/alecthomas/participle/v2/lexer"

// File is a parsed script: statements separated by one or more newlines or
// semicolons.
type File struct {
	Statements []*Statement `EOL* ( @@ ( EOL+ @@? )* )?`
}

// Statement is one command with an optional argument, e.g. "uut on" or
// "rst 0.150".
type Statement struct {
	Pos lexer.Position

	Name string  `@Ident`
	Arg  *string `( @Ident | @Number )?`
}
