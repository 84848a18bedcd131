package migration

import (
	"fmt"
	"path"
	"strings"
	"unicode"
)

// Role distinguishes creation migrations from alterations.
type Role string

const (
	RoleCreate Role = "create"
	RoleAlter  Role = "alter"
)

// MigrationName returns the identifier of the seq-th migration of table,
// e.g. 0003_alter_posts_table.
func MigrationName(table string, role Role, seq int) string {
	return fmt.Sprintf("%04d_%s_%s_table", seq, role, snake(table))
}

// ClassName returns the generated class name, e.g. CreatePostsTable or
// AlterPostsTable3. Only alterations carry the sequence number.
func ClassName(table string, role Role, seq int) string {
	name := studly(string(role)) + studly(table) + "Table"
	if role == RoleAlter {
		name += fmt.Sprint(seq)
	}
	return name
}

// ArtifactPath is where the plan document for name is stored.
func ArtifactPath(outputDir, name string) string {
	if outputDir == "" {
		return name + ".json"
	}
	return path.Join(outputDir, name+".json")
}

func snake(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func studly(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
