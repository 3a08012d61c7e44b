package chunkgraph

import (
	"sort"
	"strconv"
	"strings"

	"github.com/talebox/slepau/internal/common/regexes"
)

// parseStatic extracts title/ref/parents/access/props from value by the
// stable regex bundle shared with the access store's username/password
// rules. It never mutates c; callers apply the result.
type parsedStatic struct {
	Title     string
	Ref       string
	ParentIDs []ChunkID
	Access    map[string]AccessLevel
	Props     map[string]string
}

func parseStatic(value string) parsedStatic {
	out := parsedStatic{
		Access: make(map[string]AccessLevel),
		Props:  make(map[string]string),
	}

	if m := regexes.Title.FindStringSubmatch(value); m != nil {
		idx := regexes.Title.SubexpNames()
		var title, parents string
		for i, name := range idx {
			switch name {
			case "title":
				title = m[i]
			case "parents":
				parents = m[i]
			}
		}
		out.Title = title
		out.Ref = regexes.Standardize(title)
		if parents != "" {
			for _, p := range strings.Split(parents, ",") {
				p = strings.TrimSpace(p)
				if p == "" {
					continue
				}
				if id, err := strconv.ParseUint(p, 10, 32); err == nil {
					out.ParentIDs = append(out.ParentIDs, ChunkID(id))
				}
			}
		}
	}

	if m := regexes.Access.FindStringSubmatch(value); m != nil {
		idx := regexes.Access.SubexpNames()
		var list string
		for i, name := range idx {
			if name == "list" {
				list = m[i]
			}
		}
		for _, pair := range regexes.AccessPair.FindAllStringSubmatch(list, -1) {
			user := strings.ToLower(pair[1])
			level, ok := ParseAccessLevel(strings.ToLower(pair[2]))
			if !ok {
				continue
			}
			grantAccess(out.Access, user, level)
		}
	}

	for _, m := range regexes.Property.FindAllStringSubmatch(value, -1) {
		key, val := m[1], strings.TrimSpace(m[2])
		if key == "share" {
			continue // the access line is parsed separately, above
		}
		out.Props[key] = val
	}

	return out
}

// grantAccess installs level for user, expanding Admin to also imply
// Write+Read and Write to imply Read, without ever downgrading a level
// the user already holds from an earlier pair in the same line.
func grantAccess(access map[string]AccessLevel, user string, level AccessLevel) {
	if existing, ok := access[user]; ok && existing >= level {
		return
	}
	access[user] = level
}

// applyStatic overwrites c's parsed fields in place. Called on creation and
// on any override while unlinked.
func (c *DBChunk) applyStatic(p parsedStatic) {
	c.Title = p.Title
	c.Ref = p.Ref
	c.ParentIDs = p.ParentIDs
	c.Access = p.Access
	c.Props = p.Props
}

// renderAccessLine renders access back into the "share: user level, ..."
// form parseStatic's Access regex reads, sorted by username for a
// deterministic result. Returns "" when access is empty.
func renderAccessLine(access map[string]AccessLevel) string {
	if len(access) == 0 {
		return ""
	}
	users := make([]string, 0, len(access))
	for u := range access {
		users = append(users, u)
	}
	sort.Strings(users)
	pairs := make([]string, 0, len(users))
	for _, u := range users {
		pairs = append(pairs, u+" "+strings.ToLower(access[u].String()))
	}
	return "share: " + strings.Join(pairs, ", ")
}
