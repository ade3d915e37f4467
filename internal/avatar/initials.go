package avatar

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Unknown is shown when there is no name to take initials from.
const Unknown = "?"

// maxInitials is the number of user-perceived characters kept.
const maxInitials = 2

// InitialsFor returns the first two user-perceived characters of name, or fewer
// when the name is shorter. Iteration is by grapheme cluster, so CJK characters,
// emoji and combining sequences are never split. Only the empty name yields
// Unknown; whitespace is not trimmed, so "  Claude" gives two spaces.
func InitialsFor(name string) string {
	if name == "" {
		return Unknown
	}

	var b strings.Builder
	g := uniseg.NewGraphemes(name)
	for n := 0; n < maxInitials && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	return b.String()
}
