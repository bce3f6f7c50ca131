package ast

import "strings"

// Pattern is a structural pattern in a case clause.
type Pattern interface {
	pattern() // marker method
}

// MatchValue matches a literal or dotted-name value.
type MatchValue struct{ Value Expr }

// MatchAs binds Name, optionally after matching Pattern. With neither it
// is the wildcard "_".
type MatchAs struct {
	Pattern Pattern
	Name    string
}

// MatchOr matches any alternative.
type MatchOr struct{ Patterns []Pattern }

// MatchSequence matches a sequence element-wise.
type MatchSequence struct{ Patterns []Pattern }

// MatchStar captures the rest of a sequence; an empty Name is *_.
type MatchStar struct{ Name string }

// MatchMapping matches keys of a mapping; Rest captures **rest.
type MatchMapping struct {
	Keys     []Expr
	Patterns []Pattern
	Rest     string
}

// MatchClass matches an instance of Cls with positional and keyword
// sub-patterns.
type MatchClass struct {
	Cls         Expr
	Patterns    []Pattern
	KwdAttrs    []string
	KwdPatterns []Pattern
}

func (*MatchValue) pattern()    {}
func (*MatchAs) pattern()       {}
func (*MatchOr) pattern()       {}
func (*MatchSequence) pattern() {}
func (*MatchStar) pattern()     {}
func (*MatchMapping) pattern()  {}
func (*MatchClass) pattern()    {}

// PatternString renders a pattern.
func PatternString(p Pattern) string {
	switch p := p.(type) {
	case nil:
		return "_"
	case *MatchValue:
		return exprString(p.Value, precOr+1)
	case *MatchAs:
		switch {
		case p.Pattern == nil && p.Name == "":
			return "_"
		case p.Pattern == nil:
			return p.Name
		}
		inner := PatternString(p.Pattern)
		if _, ok := p.Pattern.(*MatchOr); ok {
			inner = "(" + inner + ")"
		}
		return inner + " as " + p.Name
	case *MatchOr:
		parts := make([]string, len(p.Patterns))
		for i, sub := range p.Patterns {
			parts[i] = PatternString(sub)
		}
		return strings.Join(parts, " | ")
	case *MatchSequence:
		parts := make([]string, len(p.Patterns))
		for i, sub := range p.Patterns {
			parts[i] = PatternString(sub)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *MatchStar:
		if p.Name == "" {
			return "*_"
		}
		return "*" + p.Name
	case *MatchMapping:
		parts := make([]string, 0, len(p.Keys)+1)
		for i, k := range p.Keys {
			parts = append(parts, exprString(k, precOr+1)+": "+PatternString(p.Patterns[i]))
		}
		if p.Rest != "" {
			parts = append(parts, "**"+p.Rest)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *MatchClass:
		parts := make([]string, 0, len(p.Patterns)+len(p.KwdAttrs))
		for _, sub := range p.Patterns {
			parts = append(parts, PatternString(sub))
		}
		for i, name := range p.KwdAttrs {
			parts = append(parts, name+"="+PatternString(p.KwdPatterns[i]))
		}
		return exprString(p.Cls, precAtom) + "(" + strings.Join(parts, ", ") + ")"
	}
	return "<pattern>"
}
