// Package script parses command scripts: the --cmd-* flags of the command
// line written one per line without their prefix.
//
//	# power up and sample the rails
//	uut on
//	measurev12uut; measurea12
//	rst 0.150
package script

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/OpenTraceLab/pcibx/pkg/command"
)

// Parser turns script text into commands.
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser creates a script parser.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(Lexer),
		participle.Elide("Comment", "Whitespace"),
	)
	if err != nil {
		return nil, fmt.Errorf("script: build parser: %w", err)
	}
	return &Parser{parser: parser}, nil
}

// Parse reads a script from r. name labels positions in errors.
func (p *Parser) Parse(name string, r io.Reader) ([]command.Command, error) {
	file, err := p.parser.Parse(name, r)
	if err != nil {
		return nil, syntaxError(err)
	}
	return compile(file)
}

// ParseString parses a script held in memory.
func (p *Parser) ParseString(name, input string) ([]command.Command, error) {
	file, err := p.parser.ParseString(name, input)
	if err != nil {
		return nil, syntaxError(err)
	}
	return compile(file)
}

// ParseFile parses the script at path.
func (p *Parser) ParseFile(path string) ([]command.Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	defer f.Close()

	return p.Parse(path, f)
}

// Load parses the script at path into a queue bounded by capacity.
func Load(path string, capacity int) (*command.Queue, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	cmds, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	q := command.NewQueue(capacity)
	if err := AppendAll(q, cmds); err != nil {
		return nil, fmt.Errorf("script: %s: %w", path, err)
	}
	return q, nil
}

// AppendAll appends cmds to q in order, stopping at the first failure.
func AppendAll(q *command.Queue, cmds []command.Command) error {
	for _, c := range cmds {
		if err := q.Append(c); err != nil {
			return err
		}
	}
	return nil
}

// Format renders commands in script syntax, one per line.
func Format(cmds []command.Command) string {
	var b strings.Builder
	for _, c := range cmds {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func compile(file *File) ([]command.Command, error) {
	cmds := make([]command.Command, 0, len(file.Statements))
	for _, st := range file.Statements {
		c, err := st.command()
		if err != nil {
			return nil, fmt.Errorf("script: %s: %w", st.Pos, err)
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}

func (s *Statement) command() (command.Command, error) {
	kind, ok := command.Lookup(s.Name)
	if !ok {
		return command.Command{}, fmt.Errorf("%w: unknown command %q", command.ErrInvalidArgument, s.Name)
	}
	switch {
	case kind.Payload() == command.PayloadNone && s.Arg != nil:
		return command.Command{}, fmt.Errorf("%w: %s takes no argument", command.ErrInvalidArgument, kind)
	case kind.Payload() != command.PayloadNone && s.Arg == nil:
		return command.Command{}, fmt.Errorf("%w: %s requires an argument", command.ErrInvalidArgument, kind)
	}

	arg := ""
	if s.Arg != nil {
		arg = *s.Arg
	}
	return command.Parse(kind, arg)
}

func syntaxError(err error) error {
	var perr participle.Error
	if errors.As(err, &perr) {
		return fmt.Errorf("script: %s: %s", perr.Position(), perr.Message())
	}
	return fmt.Errorf("script: %w", err)
}
