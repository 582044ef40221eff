package detect

import "strings"

// synonymGroups maps a canonical label to the labels detectors use for the same thing
var synonymGroups = map[string][]string{
	"phone":      {"mobile_phone", "smartphone", "cellphone", "cell_phone", "iphone"},
	"laptop":     {"notebook", "computer", "macbook"},
	"bag":        {"handbag", "backpack", "suitcase", "luggage", "purse", "tote_bag"},
	"monitor":    {"screen", "display", "tv"},
	"headphones": {"earphones", "earbuds", "headset", "airpods"},
	"glasses":    {"sunglasses", "eyeglasses", "spectacles"},
	"bottle":     {"water_bottle", "flask", "thermos"},
	"keys":       {"key", "keychain", "key_ring"},
	"wallet":     {"billfold", "card_holder"},
	"watch":      {"wristwatch", "smartwatch"},
}

// groupOf is the reverse index: label -> canonical group key
var groupOf = buildGroupIndex()

func buildGroupIndex() map[string]string {
	idx := make(map[string]string)
	for canonical, members := range synonymGroups {
		idx[canonical] = canonical
		for _, m := range members {
			idx[m] = canonical
		}
	}
	return idx
}

// NormalizeLabel lowercases a label and joins words with underscores
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "_")
}

// AreSimilarLabels reports whether two labels name the same kind of object
func AreSimilarLabels(l1, l2 string) bool {
	a, b := NormalizeLabel(l1), NormalizeLabel(l2)
	if a == b {
		return true
	}
	ga, okA := groupOf[a]
	gb, okB := groupOf[b]
	return okA && okB && ga == gb
}
