package textvec

// stopWords are dropped during preprocessing: common English function words plus
// words every lost-and-found report contains
var stopWords = toSet(
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "cannot", "could", "did", "do", "does",
	"doing", "down", "during", "each", "few", "for", "from", "further", "had", "has",
	"have", "having", "he", "her", "here", "hers", "herself", "him", "himself", "his",
	"how", "if", "in", "into", "is", "it", "its", "itself", "just", "me",
	"more", "most", "my", "myself", "no", "nor", "not", "now", "of", "off",
	"on", "once", "only", "or", "other", "our", "ours", "ourselves", "out", "over",
	"own", "same", "she", "should", "so", "some", "such", "than", "that", "the",
	"their", "theirs", "them", "themselves", "then", "there", "these", "they", "this", "those",
	"through", "to", "too", "under", "until", "up", "very", "was", "we", "were",
	"what", "when", "where", "which", "while", "who", "whom", "why", "will", "with",
	"would", "you", "your", "yours", "yourself", "yourselves", "also", "around", "got", "get",
	"may", "might", "must", "near", "one", "somewhere", "think", "today", "yesterday", "went",
	"left", "lose", "losing", "lost", "found", "find", "item", "items", "please", "help",
	"anyone", "someone", "thanks", "thank", "hi", "hello", "dear", "still", "last", "ago",
)

// distinctiveWords carry strong identifying signal
var distinctiveWords = toSet(
	"iphone", "samsung", "pixel", "macbook", "ipad", "airpods", "kindle", "nintendo",
	"serial", "engraved", "engraving", "initials", "sticker", "scratch", "dent",
	"passport", "license", "student", "id", "card", "keychain", "lanyard",
	"leather", "wallet", "purse", "ring", "necklace", "bracelet", "earring", "watch",
	"laptop", "headphones", "earbuds", "charger", "glasses", "sunglasses", "umbrella",
	"calculator", "textbook", "notebook", "bottle", "hydroflask", "jacket", "hoodie",
)

// commonWords are descriptive but shared by many reports
var commonWords = toSet(
	"black", "white", "grey", "gray", "blue", "red", "small", "large", "big", "little",
	"old", "new", "color", "colour", "bag", "thing", "stuff", "case", "cover", "library",
	"building", "room", "hall", "campus", "floor", "table", "desk", "class",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
