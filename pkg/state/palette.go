package state

// DefaultPalette is used when configuration does not provide one.
var DefaultPalette = Palette{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8",
	"#F7DC6F", "#BB8FCE", "#85C1E2", "#F8B739", "#52B788",
}

type Palette []string

// Pick returns the first color not in use, or a random one from the whole
// palette when every color is taken. randN returns a value in [0, n).
func (p Palette) Pick(inUse map[string]bool, randN func(n int) int) string {
	if len(p) == 0 {
		return ""
	}
	for _, c := range p {
		if !inUse[c] {
			return c
		}
	}
	return p[randN(len(p))]
}
