package memegen

import "strings"

var escaper = strings.NewReplacer(
	"_", "__",
	"-", "--",
	" ", "_",
	"?", "~q",
	"&", "~a",
	"%", "~p",
	"#", "~h",
	"/", "~s",
	"\\", "~b",
	"<", "~l",
	">", "~g",
	`"`, "''",
	"\n", "~n",
)

// Escape encodes a caption line into memegen's path grammar.
// An empty caption becomes "_", which memegen renders as a blank line.
func Escape(text string) string {
	if text == "" {
		return "_"
	}
	return escaper.Replace(text)
}
