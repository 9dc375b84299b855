package naming

// solidityReservedWords contains Solidity keywords, reserved identifiers and
// elementary type names. Matching is case-sensitive, as in Solidity.
var solidityReservedWords = map[string]bool{
	// Keywords
	"abstract": true, "anonymous": true, "as": true, "assembly": true,
	"break": true, "calldata": true, "catch": true, "constant": true,
	"constructor": true, "continue": true, "contract": true, "delete": true,
	"do": true, "else": true, "emit": true, "enum": true, "error": true,
	"event": true, "external": true, "fallback": true, "for": true,
	"function": true, "if": true, "immutable": true, "import": true,
	"indexed": true, "interface": true, "internal": true, "is": true,
	"library": true, "mapping": true, "memory": true, "modifier": true,
	"new": true, "override": true, "payable": true, "pragma": true,
	"private": true, "public": true, "pure": true, "receive": true,
	"return": true, "returns": true, "revert": true, "storage": true,
	"struct": true, "super": true, "this": true, "throw": true, "try": true,
	"type": true, "unchecked": true, "using": true, "view": true,
	"virtual": true, "while": true,

	// Reserved for future use
	"after": true, "alias": true, "apply": true, "auto": true, "byte": true,
	"case": true, "copyof": true, "default": true, "define": true,
	"final": true, "implements": true, "in": true, "inline": true,
	"let": true, "macro": true, "match": true, "mutable": true, "null": true,
	"of": true, "partial": true, "promise": true, "reference": true,
	"relocatable": true, "sealed": true, "sizeof": true, "static": true,
	"supports": true, "switch": true, "typedef": true, "typeof": true,
	"var": true,

	// Elementary types and literals
	"address": true, "bool": true, "bytes": true, "string": true,
	"int": true, "uint": true, "fixed": true, "ufixed": true,
	"true": true, "false": true,

	// Units
	"wei": true, "gwei": true, "ether": true, "seconds": true,
	"minutes": true, "hours": true, "days": true, "weeks": true,
}

// IsReservedWord checks if a label is a Solidity reserved word.
func IsReservedWord(name string) bool {
	return solidityReservedWords[name]
}
