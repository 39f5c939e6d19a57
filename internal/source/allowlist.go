package source

import "strings"

// domainAllowlist stores exact hosts and suffix wildcards derived from configuration.
// "*.example.com" and ".example.com" match subdomains and example.com itself.
type domainAllowlist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newDomainAllowlist(patterns []string) *domainAllowlist {
	matcher := &domainAllowlist{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			matcher.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			matcher.addSuffix(strings.TrimPrefix(value, "."))
		default:
			matcher.exact[value] = struct{}{}
		}
	}
	return matcher
}

func (a *domainAllowlist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range a.suffixes {
		if existing == suffix {
			return
		}
	}
	a.suffixes = append(a.suffixes, suffix)
}

// Allows reports whether host may be crawled. An empty allow-list allows nothing.
func (a *domainAllowlist) Allows(host string) bool {
	host = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(host)), ".")
	if host == "" {
		return false
	}
	if _, exact := a.exact[host]; exact {
		return true
	}
	for _, suffix := range a.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// globs returns colly DomainGlob patterns covering every allowed host, with
// and without an explicit port.
func (a *domainAllowlist) globs() []string {
	out := make([]string, 0, 2*(len(a.exact)+2*len(a.suffixes)))
	add := func(host string) {
		out = append(out, host, host+":*")
	}
	for host := range a.exact {
		add(host)
	}
	for _, suffix := range a.suffixes {
		add(suffix)
		add("*." + suffix)
	}
	return out
}
