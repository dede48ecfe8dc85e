package extractor

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Kind is the declaration kind of an index entry.
type Kind int

const (
	KindFunction Kind = iota + 1
	KindStruct
	KindEnum
	KindImplMethod
	KindTraitMethod
)

var kindLabels = map[Kind]string{
	KindFunction:    "Function",
	KindStruct:      "Struct",
	KindEnum:        "Enum",
	KindImplMethod:  "ImplMethod",
	KindTraitMethod: "TraitMethod",
}

// Labels written by earlier versions of the indexer.
var legacyKindLabels = map[string]Kind{
	"ImplFn":  KindImplMethod,
	"TraitFn": KindTraitMethod,
}

// String returns the label stored in the "Item Type" column.
func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a stored label back to its Kind.
func ParseKind(label string) (Kind, error) {
	for k, l := range kindLabels {
		if l == label {
			return k, nil
		}
	}
	if k, ok := legacyKindLabels[label]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown item type %q", label)
}

// Entry is one row of the index. The whole struct is its identity.
type Entry struct {
	File string
	Kind Kind
	Name string
}

// LanguageExtractor defines what a grammar-specific walker must provide.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	ExtractEntries(root *sitter.Node, sourceCode []byte, filepath string) []Entry
}
