package names

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// Exported converts a catalogue name into an exported Go identifier:
// underscore- and dot-separated chunks are title-cased and joined,
// bytes that cannot appear in a Go identifier are hex-escaped, and a
// leading digit gets an underscore prefix.
func Exported(name string) string {
	var sb strings.Builder
	chunk := func(s string) {
		if s == "" {
			return
		}
		if strings.ToUpper(s) == s {
			// All-caps chunks (MODE, OFF) read as words, not acronyms.
			s = strings.ToLower(s)
		}
		sb.WriteString(titleCaser.String(s))
	}
	start := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_' || c == '.' || c == ' ':
			chunk(name[start:i])
			start = i + 1
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			// part of the current chunk
		default:
			chunk(name[start:i])
			fmt.Fprintf(&sb, "X%02x", c)
			start = i + 1
		}
	}
	chunk(name[start:])

	out := sb.String()
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// Unexported converts a catalogue name into an unexported Go
// identifier using the same chunk rules, with the keyword escape
// applied.
func Unexported(name string) string {
	out := Exported(name)
	if out == "" {
		return ""
	}
	if out[0] >= 'A' && out[0] <= 'Z' {
		out = strings.ToLower(out[:1]) + out[1:]
	}
	return Escape(out)
}

// Escape applies the fixed reserved-word transformation: a trailing
// underscore. The name is kept, never discarded.
func Escape(name string) string {
	if Reserved(name) {
		return name + "_"
	}
	return name
}

// Section converts a data section name (".bss", ".data.custom") into
// an exported identifier ("Bss", "DataCustom").
func Section(sec string) string {
	out := Exported(strings.TrimPrefix(sec, "."))
	if out == "" {
		return "Sec"
	}
	return out
}
