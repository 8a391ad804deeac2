package schema

import (
	"fmt"
	"strings"
)

// Kind identifies a record kind; it selects the field list and whether
// identifier normalization applies on merge.
type Kind int

const (
	Unknown Kind = iota
	Comment
	Post
)

func (k Kind) String() string {
	switch k {
	case Comment:
		return "comment"
	case Post:
		return "post"
	default:
		return "unknown"
	}
}

// ParseKind accepts singular and plural spellings ("comments" is what job
// tables usually say).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "comment", "comments":
		return Comment, nil
	case "post", "posts", "submission", "submissions":
		return Post, nil
	}
	return Unknown, fmt.Errorf("schema: unknown record kind %q", s)
}

// UnmarshalText lets plan files spell kinds as text.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// FieldSchema is the ordered output column list for one record kind.
type FieldSchema []string

// Index returns the column position of name, or -1.
func (s FieldSchema) Index(name string) int {
	for i, f := range s {
		if f == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two headers have the same columns in the same order.
func (s FieldSchema) Equal(o []string) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Header returns a copy safe to hand to a CSV writer.
func (s FieldSchema) Header() []string {
	return append([]string(nil), s...)
}

// Column names shared across kinds.
const (
	ColLinkID   = "link_id"
	ColParentID = "parent_id"
)

// CommentFields: comment output schema
var CommentFields = FieldSchema{
	"id",
	"author",
	"body",
	"score",
	"created_utc",
	"subreddit",
	ColLinkID,
	ColParentID,
}

// PostFields: post (submission) output schema
var PostFields = FieldSchema{
	"id",
	"author",
	"title",
	"selftext",
	"score",
	"created_utc",
	"subreddit",
	"num_comments",
	"url",
	"permalink",
}

// For returns the field schema of a kind. Unknown kinds get nil.
func For(k Kind) FieldSchema {
	switch k {
	case Comment:
		return CommentFields
	case Post:
		return PostFields
	}
	return nil
}
