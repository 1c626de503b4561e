package rules

import "unicode/utf16"

// Palette is the ordered set of group colors a host accepts.
var Palette = []string{"grey", "blue", "red", "yellow", "green", "pink", "purple", "cyan", "orange"}

// ColorFor picks a palette color from a group name. The same name always
// gets the same color regardless of how many groups exist.
func ColorFor(name string) string {
	return Palette[hashName(name)%int64(len(Palette))]
}

// hashName is a 31-multiplier string hash over UTF-16 code units with 32-bit
// wraparound, made non-negative. Colors chosen by earlier releases depend on
// this exact function.
func hashName(s string) int64 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(u)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
