package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// UnknownType names the owner of methods in an impl block whose self type
// is not a plain path (references, tuples, slices, trait objects, ...).
const UnknownType = "UnknownType"

// RustExtractor implements LanguageExtractor for Rust.
type RustExtractor struct{}

func (r *RustExtractor) GetLanguage() *sitter.Language {
	return rust.GetLanguage()
}

// itemKind is the closed set of top-level items the walker understands.
type itemKind int

const (
	itemIgnored itemKind = iota
	itemFunction
	itemStruct
	itemEnum
	itemImpl
	itemTrait
)

func classifyItem(node *sitter.Node) itemKind {
	switch node.Type() {
	case "function_item":
		return itemFunction
	case "struct_item":
		return itemStruct
	case "enum_item":
		return itemEnum
	case "impl_item":
		return itemImpl
	case "trait_item":
		return itemTrait
	default:
		// mod_item, type_item, const_item, static_item, macro_invocation,
		// use_declaration, union_item, foreign_mod_item, attributes, comments
		return itemIgnored
	}
}

// ExtractEntries walks the top-level items of a parsed file in source order.
// Only items directly under the root and the methods directly inside impl
// and trait bodies are visited.
func (r *RustExtractor) ExtractEntries(root *sitter.Node, sourceCode []byte, filepath string) []Entry {
	var entries []Entry
	for i := 0; i < int(root.NamedChildCount()); i++ {
		item := root.NamedChild(i)
		if item == nil {
			continue
		}

		switch classifyItem(item) {
		case itemFunction:
			entries = appendNamed(entries, item, sourceCode, filepath, KindFunction)
		case itemStruct:
			entries = appendNamed(entries, item, sourceCode, filepath, KindStruct)
		case itemEnum:
			entries = appendNamed(entries, item, sourceCode, filepath, KindEnum)
		case itemImpl:
			owner := ownerTypeName(item.ChildByFieldName("type"), sourceCode)
			entries = appendMethods(entries, item, owner, sourceCode, filepath, KindImplMethod)
		case itemTrait:
			nameNode := item.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			entries = appendMethods(entries, item, nameNode.Content(sourceCode), sourceCode, filepath, KindTraitMethod)
		case itemIgnored:
		}
	}
	return entries
}

func appendNamed(entries []Entry, node *sitter.Node, sourceCode []byte, filepath string, kind Kind) []Entry {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return entries
	}
	return append(entries, Entry{File: filepath, Kind: kind, Name: nameNode.Content(sourceCode)})
}

// appendMethods emits one entry per method-like item in the block body,
// qualified as owner::method. Associated consts and types are skipped.
func appendMethods(entries []Entry, block *sitter.Node, owner string, sourceCode []byte, filepath string, kind Kind) []Entry {
	body := block.ChildByFieldName("body")
	if body == nil {
		return entries
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member == nil {
			continue
		}
		switch member.Type() {
		case "function_item", "function_signature_item":
			nameNode := member.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			entries = append(entries, Entry{
				File: filepath,
				Kind: kind,
				Name: owner + "::" + nameNode.Content(sourceCode),
			})
		}
	}
	return entries
}

// ownerTypeName resolves the self type of an impl block to its last path
// segment, e.g. `crate::shapes::Widget<T>` becomes `Widget`.
func ownerTypeName(typeNode *sitter.Node, sourceCode []byte) string {
	if typeNode == nil {
		return UnknownType
	}
	switch typeNode.Type() {
	case "type_identifier", "primitive_type":
		return typeNode.Content(sourceCode)
	case "scoped_type_identifier":
		// <T as Trait>::Assoc is a projection, not a named type.
		if path := typeNode.ChildByFieldName("path"); path != nil && path.Type() == "bracketed_type" {
			return UnknownType
		}
		nameNode := typeNode.ChildByFieldName("name")
		if nameNode == nil {
			return UnknownType
		}
		return nameNode.Content(sourceCode)
	case "generic_type":
		return ownerTypeName(typeNode.ChildByFieldName("type"), sourceCode)
	default:
		return UnknownType
	}
}
