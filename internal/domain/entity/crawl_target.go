package entity

import (
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
)

type TargetKind string

const (
	KindCollection TargetKind = "collection"
	KindProduct    TargetKind = "product"
)

// CrawlTarget is a collection or product page queued for a visit.
// It lives only for the duration of one run.
type CrawlTarget struct {
	Kind  TargetKind `json:"kind"`
	Title string     `json:"title"`
	URL   string     `json:"url"`
	// DiscoveredFrom is the title of the collection the target was found on.
	// Products inherit it as their category label.
	DiscoveredFrom string `json:"discovered_from"`
}

// TargetSet keeps targets in discovery order and drops repeats by normalized URL.
// Not safe for concurrent use.
type TargetSet struct {
	seen  map[string]struct{}
	items []CrawlTarget
}

func NewTargetSet() *TargetSet {
	return &TargetSet{seen: make(map[string]struct{})}
}

// Add queues t unless its URL was already seen. It reports whether t was added.
func (s *TargetSet) Add(t CrawlTarget) bool {
	key := model.NormalizeURL(t.URL)
	if key == "" {
		return false
	}
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, t)
	return true
}

// AddAll adds every target and returns how many were new.
func (s *TargetSet) AddAll(targets []CrawlTarget) int {
	n := 0
	for _, t := range targets {
		if s.Add(t) {
			n++
		}
	}
	return n
}

func (s *TargetSet) Len() int {
	return len(s.items)
}

// Items returns a copy of the queued targets.
func (s *TargetSet) Items() []CrawlTarget {
	return append([]CrawlTarget(nil), s.items...)
}

// TitleFromURL turns ".../collections/herbal-teas" into "Herbal Teas".
// A URL without a path yields its host; an unparseable one yields "".
func TitleFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	slug := path.Base(strings.TrimRight(u.Path, "/"))
	if slug == "." || slug == "/" || slug == "" {
		return u.Host
	}
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}
