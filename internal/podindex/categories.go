package podindex

import (
	"strconv"
	"strings"
)

// MaxCategories is how many category slots a feed has.
const MaxCategories = 10

// Categories maps a category ID (as a string, the way it is keyed in JSON) to
// its display name.
type Categories map[string]string

var categoryNames = map[int]string{
	1: "Arts", 2: "Books", 3: "Design", 4: "Fashion", 5: "Beauty",
	6: "Food", 7: "Performing", 8: "Visual", 9: "Business", 10: "Careers",
	11: "Entrepreneurship", 12: "Investing", 13: "Management", 14: "Marketing", 15: "Non-Profit",
	16: "Comedy", 17: "Interviews", 18: "Improv", 19: "Stand-Up", 20: "Education",
	21: "Courses", 22: "How-To", 23: "Language", 24: "Learning", 25: "Self-Improvement",
	26: "Fiction", 27: "Drama", 28: "History", 29: "Health", 30: "Fitness",
	31: "Alternative", 32: "Medicine", 33: "Mental", 34: "Nutrition", 35: "Sexuality",
	36: "Kids", 37: "Family", 38: "Parenting", 39: "Pets", 40: "Animals",
	41: "Stories", 42: "Leisure", 43: "Animation", 44: "Manga", 45: "Automotive",
	46: "Aviation", 47: "Crafts", 48: "Games", 49: "Hobbies", 50: "Home",
	51: "Garden", 52: "Video-Games", 53: "Music", 54: "Commentary", 55: "News",
	56: "Daily", 57: "Entertainment", 58: "Government", 59: "Politics", 60: "Buddhism",
	61: "Christianity", 62: "Hinduism", 63: "Islam", 64: "Judaism", 65: "Religion",
	66: "Spirituality", 67: "Science", 68: "Astronomy", 69: "Chemistry", 70: "Earth",
	71: "Life", 72: "Mathematics", 73: "Natural", 74: "Nature", 75: "Physics",
	76: "Social", 77: "Society", 78: "Culture", 79: "Documentary", 80: "Personal",
	81: "Journals", 82: "Philosophy", 83: "Places", 84: "Travel", 85: "Relationships",
	86: "Sports", 87: "Baseball", 88: "Basketball", 89: "Cricket", 90: "Fantasy",
	91: "Football", 92: "Golf", 93: "Hockey", 94: "Rugby", 95: "Running",
	96: "Soccer", 97: "Swimming", 98: "Tennis", 99: "Volleyball", 100: "Wilderness",
	101: "Wrestling", 102: "Technology", 103: "True Crime", 104: "TV", 105: "Film",
	106: "After-Shows", 107: "Reviews", 108: "Climate", 109: "Weather", 110: "Tabletop",
	111: "Role-Playing", 112: "Cryptocurrency",
}

var categoryIDs = func() map[string]int {
	m := make(map[string]int, len(categoryNames))
	for id, name := range categoryNames {
		m[strings.ToLower(name)] = id
	}
	return m
}()

// CategoryName returns the display name for a category ID.
func CategoryName(id int) (string, bool) {
	name, ok := categoryNames[id]
	return name, ok
}

// CategoryID resolves a filter token, which is either a numeric ID or a
// category name in any case.
func CategoryID(token string) (int, bool) {
	token = strings.TrimSpace(token)
	if id, err := strconv.Atoi(token); err == nil {
		_, ok := categoryNames[id]
		return id, ok
	}

	id, ok := categoryIDs[strings.ToLower(token)]
	return id, ok
}

// NewCategories builds the ID to name map from the stored category slots.
// Empty slots (zero) and unknown IDs are skipped.
func NewCategories(ids ...int) Categories {
	cats := Categories{}
	for _, id := range ids {
		name, ok := categoryNames[id]
		if !ok {
			continue
		}
		cats[strconv.Itoa(id)] = name
	}

	return cats
}
