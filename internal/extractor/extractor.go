package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// Extractor orchestrates the extraction process using a language-specific walker.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	var langExt LanguageExtractor
	switch lang {
	case "rust":
		langExt = &RustExtractor{}
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	return &Extractor{langExtractor: langExt, langName: lang}, nil
}

// ExtractFromFile reads a single source file and extracts its declarations.
// The path is used verbatim as the File of every returned entry.
func (e *Extractor) ExtractFromFile(filepath string) ([]Entry, error) {
	sourceCode, err := os.ReadFile(filepath)
	if err != nil {
		return nil, &ExtractionError{Kind: ReadFailure, Path: filepath, Err: err}
	}
	if !utf8.Valid(sourceCode) {
		return nil, &ExtractionError{Kind: ReadFailure, Path: filepath, Err: errors.New("file is not valid UTF-8")}
	}
	return e.Extract(filepath, sourceCode)
}

// Extract parses sourceCode and returns the declarations it contains.
// Any syntax error in the file fails the whole file.
func (e *Extractor) Extract(filepath string, sourceCode []byte) ([]Entry, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.langExtractor.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, blankShebang(sourceCode))
	if err != nil {
		return nil, &ExtractionError{Kind: ParseFailure, Path: filepath, Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if bad := firstSyntaxError(root); bad != nil {
		return nil, &ExtractionError{Kind: ParseFailure, Path: filepath, Err: describeSyntaxError(bad)}
	}

	return e.langExtractor.ExtractEntries(root, sourceCode, filepath), nil
}

// blankShebang replaces a leading `#!` interpreter line with spaces so the
// grammar does not see it. Byte offsets are preserved. Inner attributes such
// as `#![allow(dead_code)]` are left alone.
func blankShebang(src []byte) []byte {
	if !bytes.HasPrefix(src, []byte("#!")) {
		return src
	}
	if bytes.HasPrefix(bytes.TrimLeft(src[2:], " \t\r\n"), []byte("[")) {
		return src
	}
	end := bytes.IndexByte(src, '\n')
	if end < 0 {
		end = len(src)
	}
	out := bytes.Clone(src)
	for i := 0; i < end; i++ {
		out[i] = ' '
	}
	return out
}

// firstSyntaxError returns the first ERROR or MISSING node in document order.
func firstSyntaxError(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstSyntaxError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

func describeSyntaxError(n *sitter.Node) error {
	pos := n.StartPoint()
	if n.IsMissing() {
		return fmt.Errorf("syntax error at line %d, column %d: missing %s", pos.Row+1, pos.Column+1, n.Type())
	}
	return fmt.Errorf("syntax error at line %d, column %d", pos.Row+1, pos.Column+1)
}
