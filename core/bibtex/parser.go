package bibtex

import (
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/CedarBib/core/errors"
	"github.com/FocuswithJustin/CedarBib/internal/fileutil"
	"github.com/FocuswithJustin/CedarBib/internal/logging"
)

// ParseOptions configures parsing.
type ParseOptions struct {
	// IncludeMeta surfaces text found between blocks as MetaContent
	// elements instead of skipping it.
	IncludeMeta bool

	// MonthMacros makes the resulting bibliography resolve the standard
	// month macros (jan through dec) during string expansion.
	MonthMacros bool
}

// Grammar AST. The custom lexer has already resolved BibTeX's
// context-sensitive regions, so the grammar itself stays declarative.

//nolint:govet // participle grammar tags are not standard struct tags
type astFile struct {
	Blocks []*astBlock `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type astBlock struct {
	Meta     *astMeta     `  @@`
	String   *astString   `| @@`
	Preamble *astPreamble `| @@`
	Comment  *astComment  `| @@`
	Entry    *astEntry    `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type astMeta struct {
	Text string `@Meta`
}

//nolint:govet // participle grammar tags are not standard struct tags
type astString struct {
	Pos   lexer.Position
	Name  string    `AtString Open @Ident Equals`
	Value *astValue `@@ Close`
}

//nolint:govet // participle grammar tags are not standard struct tags
type astPreamble struct {
	Value *astValue `AtPreamble Open @@ Close`
}

//nolint:govet // participle grammar tags are not standard struct tags
type astComment struct {
	Text string `AtComment Open @Raw Close`
}

//nolint:govet // participle grammar tags are not standard struct tags
type astEntry struct {
	Pos    lexer.Position
	Type   string      `@AtEntry`
	Key    string      `Open @Key`
	Fields []*astField `( Comma @@ )* Comma? Close`
}

//nolint:govet // participle grammar tags are not standard struct tags
type astField struct {
	Pos   lexer.Position
	Name  string    `@Ident Equals`
	Value *astValue `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type astValue struct {
	Parts []*astPart `@@ ( Hash @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type astPart struct {
	Quoted *string `  @Quoted`
	Braced *string `| @Braced`
	Number *string `| @Number`
	Symbol *string `| @Ident`
}

// bibParser is the participle parser over the custom BibTeX lexer.
var bibParser = participle.MustBuild[astFile](
	participle.Lexer(bibDefinition{}),
	participle.UseLookahead(2),
)

// Parse reads .bib source and returns the populated bibliography.
func Parse(r io.Reader, opts ParseOptions) (*Bibliography, error) {
	return parse("", r, opts)
}

// ParseString parses .bib source from a string.
func ParseString(src string, opts ParseOptions) (*Bibliography, error) {
	file, err := bibParser.ParseString("", src)
	if err != nil {
		return nil, convertParseError("", err)
	}
	return assemble("", file, opts)
}

// ParseElements parses .bib source and returns the elements detached,
// without a container.
func ParseElements(src string, opts ParseOptions) ([]Element, error) {
	file, err := bibParser.ParseString("", src)
	if err != nil {
		return nil, convertParseError("", err)
	}
	return convert("", file, opts)
}

// Open parses the .bib file at path, decompressing transparently when the
// file is xz- or gzip-compressed.
func Open(path string, opts ParseOptions) (*Bibliography, error) {
	f, err := fileutil.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(path, f, opts)
}

func parse(path string, r io.Reader, opts ParseOptions) (*Bibliography, error) {
	file, err := bibParser.Parse(path, r)
	if err != nil {
		return nil, convertParseError(path, err)
	}
	return assemble(path, file, opts)
}

func assemble(path string, file *astFile, opts ParseOptions) (*Bibliography, error) {
	els, err := convert(path, file, opts)
	if err != nil {
		return nil, err
	}
	bib := New()
	if opts.MonthMacros {
		bib.UseMonthMacros()
	}
	for _, el := range els {
		if err := bib.Add(el); err != nil {
			return nil, err
		}
	}
	return bib, nil
}

// convert turns the AST into element instances in source order. Symbol
// and string constant names fold to lower case, matching BibTeX's
// case-insensitive macro naming.
func convert(path string, file *astFile, opts ParseOptions) ([]Element, error) {
	var els []Element
	for _, b := range file.Blocks {
		switch {
		case b.Meta != nil:
			if !opts.IncludeMeta {
				logging.Debug("skipping meta content", "length", len(b.Meta.Text))
				continue
			}
			els = append(els, NewMetaContent(b.Meta.Text))
		case b.String != nil:
			sc, err := NewStringConstant(strings.ToLower(b.String.Name), valueFromAST(b.String.Value))
			if err != nil {
				return nil, blockError(path, b.String.Pos, "invalid string constant name", err)
			}
			els = append(els, sc)
		case b.Preamble != nil:
			els = append(els, NewPreamble(valueFromAST(b.Preamble.Value)))
		case b.Comment != nil:
			els = append(els, NewComment(b.Comment.Text))
		case b.Entry != nil:
			e, err := NewEntry(b.Entry.Type, b.Entry.Key)
			if err != nil {
				return nil, blockError(path, b.Entry.Pos, "invalid entry", err)
			}
			for _, f := range b.Entry.Fields {
				if err := e.Set(f.Name, valueFromAST(f.Value)); err != nil {
					return nil, blockError(path, f.Pos, "invalid field", err)
				}
			}
			els = append(els, e)
		}
	}
	return els, nil
}

func valueFromAST(v *astValue) *Value {
	if v == nil {
		return nil
	}
	val := &Value{}
	for _, p := range v.Parts {
		switch {
		case p.Quoted != nil:
			val.Append(Token{Kind: TokenLiteral, Text: *p.Quoted})
		case p.Braced != nil:
			val.Append(Token{Kind: TokenBraced, Text: *p.Braced})
		case p.Number != nil:
			val.Append(Token{Kind: TokenLiteral, Text: *p.Number})
		case p.Symbol != nil:
			val.Append(Token{Kind: TokenSymbol, Text: strings.ToLower(*p.Symbol)})
		}
	}
	return val
}

func blockError(path string, pos lexer.Position, msg string, err error) error {
	return &errors.ParseError{
		Path:    path,
		Line:    pos.Line,
		Column:  pos.Column,
		Message: msg + ": " + err.Error(),
		Err:     err,
	}
}

// convertParseError normalizes lexer and grammar failures to the parse
// error type. Scanner errors already carry position context.
func convertParseError(path string, err error) error {
	var pe *errors.ParseError
	if errors.As(err, &pe) {
		return err
	}
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		return &errors.ParseError{
			Path:    path,
			Line:    pos.Line,
			Column:  pos.Column,
			Message: perr.Message(),
			Err:     err,
		}
	}
	return errors.Wrap(err, "parse bibliography")
}
