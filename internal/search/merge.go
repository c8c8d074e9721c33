// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/research-assistant/pkg/types"
)

var (
	arxivURLPattern = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5})(?:v\d+)?`)
	arxivDOIPattern = regexp.MustCompile(`^10\.48550/arxiv\.(\d{4}\.\d{4,5})`)
	arxivIDPattern  = regexp.MustCompile(`^(?:arxiv:)?(\d{4}\.\d{4,5})(?:v\d+)?$`)
	doiURLPattern   = regexp.MustCompile(`doi\.org/(10\.\d{4,9}/[^\s?#]+)`)
)

// identity is the set of keys one entity can be matched on.
type identity struct {
	doi   string
	arxiv string
	title string
	year  int
	// url identifies results whose title normalizes to nothing.
	url string
}

func identify(r types.SearchResult) identity {
	id := identity{
		doi:   normalizeDOI(r.DOI),
		arxiv: normalizeArxivID(r.ArxivID),
		title: normalizeTitle(r.Title),
		year:  r.Year,
	}
	if id.title == "" {
		id.url = normalizeURL(r.URL)
		if id.url == "" {
			id.url = normalizeURL(r.PDFURL)
		}
	}
	if id.doi == "" {
		for _, u := range []string{r.URL, r.PDFURL} {
			if m := doiURLPattern.FindStringSubmatch(u); m != nil {
				id.doi = normalizeDOI(m[1])
				break
			}
		}
	}
	if id.arxiv == "" {
		for _, u := range []string{r.URL, r.PDFURL} {
			if m := arxivURLPattern.FindStringSubmatch(strings.ToLower(u)); m != nil {
				id.arxiv = m[1]
				break
			}
		}
	}
	if id.arxiv == "" {
		if m := arxivDOIPattern.FindStringSubmatch(id.doi); m != nil {
			id.arxiv = m[1]
		}
	}
	return id
}

// key returns the identity key: DOI, then arXiv ID, then title and year.
// Untitled results are keyed by URL; those without one share a single key.
func (id identity) key() string {
	switch {
	case id.doi != "":
		return "doi:" + id.doi
	case id.arxiv != "":
		return "arxiv:" + id.arxiv
	case id.title == "" && id.url != "":
		return "url:" + id.url
	case id.title == "":
		return "untitled"
	default:
		return "title:" + id.title + "|" + strconv.Itoa(id.year)
	}
}

// Merge combines result lists from any number of search adapters into one
// deduplicated, ranked list. Entities sharing a DOI, an arXiv ID, or a
// normalized title with a compatible year become one ResearchItem whose
// fields come from the most complete source. Empty input yields an empty
// list.
func Merge(lists ...[]types.SearchResult) []types.ResearchItem {
	var all []types.SearchResult
	for _, l := range lists {
		all = append(all, l...)
	}
	if len(all) == 0 {
		return []types.ResearchItem{}
	}

	ids := make([]identity, len(all))
	for i, r := range all {
		ids[i] = identify(r)
	}

	uf := newUnionFind(len(all))
	byDOI := make(map[string]int)
	byArxiv := make(map[string]int)
	byTitle := make(map[string]*titleBucket)
	byURL := make(map[string]int)

	for i, id := range ids {
		if id.doi != "" {
			if j, ok := byDOI[id.doi]; ok {
				uf.union(j, i)
			} else {
				byDOI[id.doi] = i
			}
		}
		if id.arxiv != "" {
			if j, ok := byArxiv[id.arxiv]; ok {
				uf.union(j, i)
			} else {
				byArxiv[id.arxiv] = i
			}
		}
		if id.title == "" {
			if j, ok := byURL[id.url]; ok {
				uf.union(j, i)
			} else {
				byURL[id.url] = i
			}
			continue
		}
		b, ok := byTitle[id.title]
		if !ok {
			b = &titleBucket{byYear: make(map[int]int), firstKnown: -1, unknown: -1}
			byTitle[id.title] = b
		}
		b.add(uf, i, id.year)
	}

	groups := make(map[int][]int)
	var roots []int
	for i := range all {
		r := uf.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	items := make([]types.ResearchItem, 0, len(roots))
	for _, r := range roots {
		items = append(items, mergeGroup(all, ids, groups[r]))
	}

	rank(items)
	return items
}

// titleBucket groups entities with one normalized title. An entity with
// an unknown year joins the first entity with a known year, so two known
// but different years stay apart.
type titleBucket struct {
	byYear     map[int]int
	firstKnown int
	unknown    int
}

func (b *titleBucket) add(uf *unionFind, i, year int) {
	if year == 0 {
		switch {
		case b.firstKnown >= 0:
			uf.union(b.firstKnown, i)
		case b.unknown >= 0:
			uf.union(b.unknown, i)
		default:
			b.unknown = i
		}
		return
	}
	if j, ok := b.byYear[year]; ok {
		uf.union(j, i)
		return
	}
	b.byYear[year] = i
	if b.firstKnown < 0 {
		b.firstKnown = i
		if b.unknown >= 0 {
			uf.union(i, b.unknown)
		}
	}
}

// mergeGroup folds one group into a ResearchItem field by field.
func mergeGroup(all []types.SearchResult, ids []identity, members []int) types.ResearchItem {
	var item types.ResearchItem
	var merged identity
	sources := make(map[string]bool)

	for _, i := range members {
		r := all[i]
		id := ids[i]
		item.Title = moreComplete(item.Title, strings.TrimSpace(r.Title))
		item.Abstract = moreComplete(item.Abstract, strings.TrimSpace(r.Abstract))
		item.URL = moreComplete(item.URL, r.URL)
		item.PDFURL = moreComplete(item.PDFURL, r.PDFURL)
		item.Authors = moreAuthors(item.Authors, r.Authors)
		if r.Year > item.Year {
			item.Year = r.Year
		}
		merged.doi = moreComplete(merged.doi, id.doi)
		merged.arxiv = moreComplete(merged.arxiv, id.arxiv)
		merged.url = moreComplete(merged.url, id.url)
		if r.Source != "" {
			sources[r.Source] = true
		}
	}

	merged.title = normalizeTitle(item.Title)
	merged.year = item.Year
	item.DOI = merged.doi
	item.ArxivID = merged.arxiv
	item.Key = merged.key()
	if item.Authors == nil {
		item.Authors = []string{}
	}

	item.Provenance = make([]string, 0, len(sources))
	for s := range sources {
		item.Provenance = append(item.Provenance, s)
	}
	sort.Strings(item.Provenance)
	return item
}

// moreComplete prefers the non-empty, then the longer value; equal
// lengths fall back to lexical order so the result never depends on which
// source arrived first.
func moreComplete(a, b string) string {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	switch {
	case la != lb && la > lb:
		return a
	case la != lb:
		return b
	case b < a:
		return b
	}
	return a
}

func moreAuthors(a, b []string) []string {
	switch {
	case len(b) > len(a):
		return slices.Clone(b)
	case len(b) < len(a):
		return a
	case strings.Join(b, "\x00") < strings.Join(a, "\x00"):
		return slices.Clone(b)
	}
	return a
}

// rank orders items by direct document link, year (newest first),
// provenance count, then title and key, and assigns 1-based ranks.
func rank(items []types.ResearchItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.HasDocumentLink() != b.HasDocumentLink() {
			return a.HasDocumentLink()
		}
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if len(a.Provenance) != len(b.Provenance) {
			return len(a.Provenance) > len(b.Provenance)
		}
		ta, tb := normalizeTitle(a.Title), normalizeTitle(b.Title)
		if ta != tb {
			return ta < tb
		}
		return a.Key < b.Key
	})
	for i := range items {
		items[i].Rank = i + 1
	}
}

// normalizeTitle returns a lowercased, punctuation-stripped,
// whitespace-collapsed version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// normalizeURL lowercases scheme and host, drops a leading "www.", the
// fragment and any trailing slash. Unparseable input is only trimmed.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	out := strings.ToLower(u.Scheme) + "://" + host + path
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(strings.ToLower(doi))
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, p)
	}
	return doi
}

func normalizeArxivID(id string) string {
	m := arxivIDPattern.FindStringSubmatch(strings.TrimSpace(strings.ToLower(id)))
	if m == nil {
		return ""
	}
	return m[1]
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union keeps the smaller index as root so group order follows the
// earliest member.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	switch {
	case ra == rb:
	case ra < rb:
		u.parent[rb] = ra
	default:
		u.parent[ra] = rb
	}
}
