package wsregistry

import "strings"

// pathTemplate is a parsed URI template: a sequence of literal segments and
// {name} parameter segments, per spec.md §4.7/§GLOSSARY.
type pathTemplate struct {
	raw      string
	segments []templateSegment
}

type templateSegment struct {
	name    string
	literal bool
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func normalizePath(path string) string {
	parts := splitPath(path)
	return "/" + strings.Join(parts, "/")
}

// parseTemplate builds a pathTemplate from a registration path such as
// "/rooms/{id}". Segments wrapped in "{" "}" become parameter bindings;
// everything else is matched literally.
func parseTemplate(path string) pathTemplate {
	parts := splitPath(path)
	segs := make([]templateSegment, len(parts))
	for i, p := range parts {
		if len(p) > 2 && strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			segs[i] = templateSegment{name: p[1 : len(p)-1]}
		} else {
			segs[i] = templateSegment{name: p, literal: true}
		}
	}
	return pathTemplate{raw: normalizePath(path), segments: segs}
}

// hasParams reports whether any segment of t is a {name} binding. A
// template with no params belongs in the registry's exact map instead.
func (t pathTemplate) hasParams() bool {
	for _, s := range t.segments {
		if !s.literal {
			return true
		}
	}
	return false
}

func (t pathTemplate) segmentCount() int {
	return len(t.segments)
}

// String returns the template's normalized form, used both for display and
// as the lexicographic tie-breaking key within a segment-count bucket.
func (t pathTemplate) String() string {
	return t.raw
}

// match reports whether path binds against t, returning the bound
// parameters on success.
func (t pathTemplate) match(path string) (map[string]string, bool) {
	parts := splitPath(path)
	if len(parts) != len(t.segments) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range t.segments {
		if seg.literal {
			if seg.name != parts[i] {
				return nil, false
			}
			continue
		}
		if params == nil {
			params = make(map[string]string)
		}
		params[seg.name] = parts[i]
	}
	if params == nil {
		params = map[string]string{}
	}
	return params, true
}
