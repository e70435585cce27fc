package babbler

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/supergnaw/nestbox/runtime/client"
)

// excerptBuffer is the number of runes kept on each side of a match.
const excerptBuffer = 100

var nonWord = regexp.MustCompile(`[^\w]+`)

// Match is a search hit.
type Match struct {
	Entry
	// Excerpt is the matched passage of the content with some context.
	Excerpt string
	// Distance ranks fuzzy hits; lower is closer.
	Distance int
}

// SearchTitle returns the entries whose title is exactly title.
func (b *Babbler) SearchTitle(ctx context.Context, title string) ([]Entry, error) {
	rows, err := b.db.Select(ctx, EntriesTable, map[string]interface{}{"title": title})
	if err != nil {
		return nil, err
	}
	return client.Decode[Entry](rows)
}

// SearchURLTitle matches a title from its URL slug: every run of non-word
// characters matches anything.
func (b *Babbler) SearchURLTitle(ctx context.Context, slug string) ([]Entry, error) {
	words := nonWord.Split(strings.TrimSpace(slug), -1)
	rows, err := b.db.Select(ctx, EntriesTable, map[string]interface{}{
		"title LIKE": strings.Join(words, "%"),
	})
	if err != nil {
		return nil, err
	}
	return client.Decode[Entry](rows)
}

// SearchEntriesExact finds entries whose content holds the words in order.
// An empty category or "*" searches every category.
func (b *Babbler) SearchEntriesExact(ctx context.Context, words, category string) ([]Match, error) {
	terms := strings.Fields(words)
	if len(terms) == 0 {
		return []Match{}, nil
	}
	where := map[string]interface{}{
		"content LIKE": "%" + strings.Join(terms, "%") + "%",
	}
	if category != "" && category != "*" {
		where["category"] = category
	}
	rows, err := b.db.Select(ctx, EntriesTable, where, client.OrderBy("created", "DESC"))
	if err != nil {
		return nil, err
	}
	entries, err := client.Decode[Entry](rows)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, Match{Entry: e, Excerpt: excerpt(e.Content, terms)})
	}
	return matches, nil
}

// SearchEntriesFuzzy ranks entries by how closely their title matches term.
// An entry qualifies when the characters of term appear in order in the title
// or the title is within distance edits of term.
func (b *Babbler) SearchEntriesFuzzy(ctx context.Context, term string, distance int) ([]Match, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []Match{}, nil
	}
	rows, err := b.db.Select(ctx, EntriesTable, nil)
	if err != nil {
		return nil, err
	}
	entries, err := client.Decode[Entry](rows)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(term)
	matches := []Match{}
	for _, e := range entries {
		d := fuzzy.LevenshteinDistance(lower, strings.ToLower(e.Title))
		if d > distance && !fuzzy.MatchNormalizedFold(term, e.Title) {
			continue
		}
		matches = append(matches, Match{Entry: e, Excerpt: e.Title, Distance: d})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches, nil
}

// SearchTitles returns the stored titles that fuzzy-match term, closest
// first.
func (b *Babbler) SearchTitles(ctx context.Context, term string) ([]string, error) {
	rows, err := b.db.Select(ctx, EntriesTable, nil)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(rows))
	for _, row := range rows {
		if t, ok := row["title"].(string); ok {
			titles = append(titles, t)
		}
	}
	ranks := fuzzy.RankFindNormalizedFold(term, titles)
	sort.Sort(ranks)

	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out, nil
}

// excerpt cuts the passage spanning terms out of content, keeping up to
// excerptBuffer runes on each side.
func excerpt(content string, terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	loc := regexp.MustCompile(`(?is)` + strings.Join(quoted, ".*?")).FindStringIndex(content)
	if loc == nil {
		return ""
	}
	from, to := loc[0], loc[1]
	for n := 0; n < excerptBuffer && from > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(content[:from])
		from -= size
	}
	for n := 0; n < excerptBuffer && to < len(content); n++ {
		_, size := utf8.DecodeRuneInString(content[to:])
		to += size
	}

	out := content[from:to]
	if from > 0 {
		out = "..." + out
	}
	if to < len(content) {
		out += "..."
	}
	return out
}
