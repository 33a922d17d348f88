package risk

import "strings"

// CategoryOther is the bucket for instruments no keyword matches.
// It has no explicit policy by default, so it resolves to the disabled
// conservative fallback.
const CategoryOther = "other"

// categoryKeywords maps substring hits to categories. Order matters:
// first hit wins, so the more specific sports leagues are checked before
// the broad topical buckets. Known limitation: substring matching can
// misfile ambiguous titles into "other" or a sibling category.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"nba", []string{"nba"}},
	{"nfl", []string{"nfl", "super bowl"}},
	{"mlb", []string{"mlb", "world series"}},
	{"nhl", []string{"nhl", "stanley cup"}},
	{"ncaab", []string{"ncaab", "college basketball"}},
	{"ncaaf", []string{"ncaaf", "college football"}},
	{"soccer", []string{"soccer", "premier league", "champions league", "la liga"}},
	{"crypto", []string{"bitcoin", "btc", "ethereum", "eth", "solana", "sol-usd", "crypto"}},
	{"politics", []string{"election", "president", "congress", "senate", "vote"}},
	{"economics", []string{"fed", "fomc", "gdp", "inflation", "recession", "rate cut", "rate hike"}},
	{"weather", []string{"temperature", "hurricane", "storm", "weather", "rainfall"}},
	{"entertainment", []string{"oscar", "box office", "grammy", "album"}},
}

// Categorize resolves an instrument's descriptive text to a policy
// category. Pure; replaceable without touching allocation logic.
func Categorize(text string) string {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				return ck.category
			}
		}
	}
	return CategoryOther
}
