package merge

import "strings"

const (
	prefixComment = "t1_"
	prefixPost    = "t3_"
)

// NormalizeLinkID strips a leading post prefix: "t3_abc123" -> "abc123".
func NormalizeLinkID(s string) string {
	return strings.TrimPrefix(s, prefixPost)
}

// NormalizeParentID strips a leading comment or post prefix. Values without
// a prefix are returned unchanged.
func NormalizeParentID(s string) string {
	if strings.HasPrefix(s, prefixComment) {
		return s[len(prefixComment):]
	}
	return strings.TrimPrefix(s, prefixPost)
}

// idColumns holds the positions of the identifier columns in a header.
type idColumns struct {
	link, parent int
}

func (c idColumns) apply(row []string) {
	if c.link < len(row) {
		row[c.link] = NormalizeLinkID(row[c.link])
	}
	if c.parent < len(row) {
		row[c.parent] = NormalizeParentID(row[c.parent])
	}
}
