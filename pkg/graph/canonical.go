package graph

import "strings"

// Canonicalize splits a raw entity identifier into its canonical name and an
// optional type annotation.
//
// An identifier of the form "Name (Type)" is split at the last "(" so that
// parentheses inside the name survive: "Smith (Jones) (Person)" yields
// ("Smith (Jones)", "Person"). The trailing ")" must be the last character of
// raw itself; anything else is returned trimmed with an empty type. An
// annotation-only identifier such as "(Person)" yields an empty name.
func Canonicalize(raw string) (name string, typ string) {
	if !strings.HasSuffix(raw, ")") {
		return strings.TrimSpace(raw), ""
	}

	idx := strings.LastIndex(raw, "(")
	if idx < 0 {
		return strings.TrimSpace(raw), ""
	}

	name = strings.TrimSpace(raw[:idx])
	typ = strings.TrimSpace(raw[idx+1 : len(raw)-1])
	return name, typ
}
