package borg

// PatternKind selects whether a pattern includes or excludes paths.
type PatternKind int

const (
	Include PatternKind = iota
	Exclude
)

// Pattern is a shell-style (sh:) selection rule handed to --pattern.
type Pattern struct {
	Kind PatternKind
	Expr string
}

// String renders the rule in borg's pattern-file syntax, e.g. "+ sh:/home/*".
func (p Pattern) String() string {
	prefix := "+"
	if p.Kind == Exclude {
		prefix = "-"
	}
	return prefix + " sh:" + p.Expr
}

// PatternsFrom builds the rule list: includes first, then excludes. Nil
// inputs contribute nothing, so an empty result means no restriction.
func PatternsFrom(include, exclude []string) []Pattern {
	out := make([]Pattern, 0, len(include)+len(exclude))
	for _, p := range include {
		out = append(out, Pattern{Kind: Include, Expr: p})
	}
	for _, p := range exclude {
		out = append(out, Pattern{Kind: Exclude, Expr: p})
	}
	return out
}
