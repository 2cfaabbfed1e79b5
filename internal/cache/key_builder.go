package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// FinalParam stands in for an omitted optional parameter, e.g. "standings
// after the final round" when no round is requested.
const FinalParam = "final"

// BuildKey renders a deterministic cache key:
//
//	<source>:<resource>[:<param>...]
//
// Params are lower-cased and trimmed so "Monaco" and " monaco" share a key.
// Nil params and nil *int render as FinalParam.
func BuildKey(source, resource string, params ...any) string {
	var b strings.Builder
	b.WriteString(normalizePart(source))
	b.WriteByte(':')
	b.WriteString(normalizePart(resource))
	for _, p := range params {
		b.WriteByte(':')
		b.WriteString(renderParam(p))
	}
	return b.String()
}

func renderParam(p any) string {
	switch v := p.(type) {
	case nil:
		return FinalParam
	case *int:
		if v == nil {
			return FinalParam
		}
		return strconv.Itoa(*v)
	case int:
		return strconv.Itoa(v)
	case string:
		return normalizePart(v)
	case fmt.Stringer:
		return normalizePart(v.String())
	default:
		return normalizePart(fmt.Sprint(v))
	}
}

func normalizePart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// maxNameStem keeps file names well under common 255-byte limits.
const maxNameStem = 120

// fileName maps a key to a filesystem-safe name. The readable stem keeps the
// cache directory browsable; the xxhash suffix keeps distinct keys that
// sanitize to the same stem from colliding.
func fileName(key string) string {
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, key)
	stem = strings.TrimLeft(stem, ".")
	if len(stem) > maxNameStem {
		stem = stem[:maxNameStem]
	}
	return fmt.Sprintf("%s-%016x%s", stem, xxhash.Sum64String(key), entryExt)
}
