package mpd

import "net/url"

// resolveBase composes a sequence of nested BaseURL values onto a parent
// base, left to right. An absolute child replaces the running base; a
// relative child composes against it. Empty values are skipped. This
// implements the same left-fold URL-join semantics at every nesting level:
// MPD, Period, AdaptationSet, Representation.
func resolveBase(parent *url.URL, children ...[]string) *url.URL {
	base := parent
	for _, group := range children {
		for _, raw := range group {
			if raw == "" {
				continue
			}
			ref, err := url.Parse(raw)
			if err != nil {
				continue
			}
			base = base.ResolveReference(ref)
		}
	}
	return base
}

// dirURL returns the directory URL (trailing component stripped, trailing
// slash ensured) that segment/init URLs resolve relative to.
func dirURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if idx := lastSlash(u.Path); idx >= 0 {
		u.Path = u.Path[:idx+1]
	} else {
		u.Path = "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

func resolveURL(base *url.URL, ref string) string {
	if ref == "" {
		return base.String()
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
