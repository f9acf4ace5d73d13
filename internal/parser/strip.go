package parser

import "regexp"

// Notice documents bind the same absolute namespace URIs to prefixes that
// drift across revisions (ns2..ns14 observed, plus occasional default or
// undeclared namespaces). Stripping the declarations and qualifiers lets
// the extractor query bare tag names regardless of revision.
var (
	// xmlns:ns="uri" and default xmlns="uri", double or single quoted.
	xmlnsRe = regexp.MustCompile(`\s+xmlns(?::[A-Za-z_][\w.-]*)?\s*=\s*("[^"]*"|'[^']*')`)

	// ns: qualifier in opening and closing tags. Anchored on < and </ so
	// element text and attribute values are never touched.
	prefixRe = regexp.MustCompile(`(</?)[A-Za-z_][\w.-]*:`)
)

// StripNamespaces removes all xmlns declarations and all prefix
// qualifiers from tag names, leaving text content and attribute values
// intact.
func StripNamespaces(data []byte) []byte {
	data = xmlnsRe.ReplaceAll(data, nil)
	return prefixRe.ReplaceAll(data, []byte("$1"))
}
