package classifier

import "sort"

// KeywordTable maps a genre name to the keywords or phrases that select it.
// It defines the universe of known genres.
type KeywordTable map[string][]string

// Genres returns the table's genre names in sorted order.
func (t KeywordTable) Genres() []string {
	genres := make([]string, 0, len(t))
	for genre := range t {
		genres = append(genres, genre)
	}
	sort.Strings(genres)
	return genres
}

// DefaultKeywordTable is tuned for Nollywood film and TV titles.
func DefaultKeywordTable() KeywordTable {
	return KeywordTable{
		"action": {
			"action", "fight", "fighting", "battle", "war", "gun", "guns",
			"gangster", "gang", "revenge", "commando", "soldier", "assassin",
		},
		"comedy": {
			"comedy", "funny", "laugh", "laughter", "hilarious", "skit", "skits",
			"prank", "jokes", "comic", "mr ibu", "aki and pawpaw",
		},
		"drama": {
			"drama", "family drama", "betrayal", "tears", "struggle", "emotional",
			"sacrifice", "inheritance", "true story", "life story",
		},
		"romance": {
			"romance", "romantic", "love", "love story", "lover", "lovers",
			"marriage", "wedding", "heartbreak", "my heart", "valentine",
		},
		"thriller": {
			"thriller", "suspense", "mystery", "kidnap", "kidnapped", "secret",
			"detective", "crime", "murder", "investigation",
		},
		"horror": {
			"horror", "scary", "ghost", "haunted", "witch", "witchcraft",
			"juju", "occult", "demon", "spirit", "evil", "curse", "cursed",
		},
		"epic": {
			"epic", "kingdom", "king", "queen", "prince", "princess", "village",
			"palace", "throne", "igwe", "oracle", "chief priest", "ancient",
		},
		"family": {
			"family", "kids", "children", "mother", "father", "twins",
			"orphan", "stepmother", "sibling", "brothers", "sisters",
		},
	}
}
