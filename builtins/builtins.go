// Package builtins holds the builtin macro registry shared by the
// evaluator and renderer: alias resolution and parameter declarations.
package builtins

// Aliases maps alternate macro names to their canonical name.
var Aliases = map[string]string{
	"-":   "title",
	"h1":  "title",
	"--":  "h2",
	"---": "h3",
	"**":  "b",
	"__":  "i",
	"li":  "*",
}

// ResolveName resolves an alias to its canonical macro name. Names
// without an alias entry are returned unchanged.
func ResolveName(name string) string {
	if canonical, ok := Aliases[name]; ok {
		return canonical
	}
	return name
}

// ParamDecl is a parameter declaration for a builtin macro.
type ParamDecl struct {
	Name     string
	Required bool
}

// Def describes a builtin macro.
type Def struct {
	Name    string
	Params  []ParamDecl
	HasBody bool
}

// Builtins maps canonical macro names to their definitions.
var Builtins = makeBuiltins()

func makeBuiltins() map[string]Def {
	defs := map[string]Def{}

	add := func(name string, hasBody bool, params ...ParamDecl) {
		defs[name] = Def{Name: name, Params: params, HasBody: hasBody}
	}

	// Structural
	add("title", true)
	add("h2", true)
	add("h3", true)
	add("h4", true)
	add("h5", true)
	add("h6", true)
	add("p", true)
	add("hr", false)

	// Inline
	add("b", true)
	add("i", true)
	add("url", true, ParamDecl{"link", true}, ParamDecl{"text", false})

	// Code and literal text
	add("code", true, ParamDecl{"language", false})
	add("literal", true)

	// Lists
	add("ul", true)
	add("ol", true)
	add("*", true)

	// Tables
	add("table", true)
	add("tr", true)
	add("td", true, ParamDecl{"span", false})
	add("th", true, ParamDecl{"span", false})

	// Document metadata
	add("meta", false, ParamDecl{"name", false}, ParamDecl{"property", false}, ParamDecl{"content", true})
	add("link", false, ParamDecl{"rel", true}, ParamDecl{"href", true})
	add("script", true, ParamDecl{"src", false})
	add("lang", true)

	// Expansion time
	add("comment", true)
	add("set", true, ParamDecl{"name", true})
	add("ifeq", true, ParamDecl{"lhs", true}, ParamDecl{"rhs", true})
	add("ifne", true, ParamDecl{"lhs", true}, ParamDecl{"rhs", true})
	add("ifset", true, ParamDecl{"name", true})
	add("include", false, ParamDecl{"file", true})

	return defs
}

// Lookup returns the builtin definition for name after alias resolution.
func Lookup(name string) (Def, bool) {
	def, ok := Builtins[ResolveName(name)]
	return def, ok
}
