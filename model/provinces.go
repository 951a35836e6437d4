package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// provincePopulation holds approximate 2020 population estimates of the 63
// provinces and centrally governed cities, keyed by folded name.
var provincePopulation = map[string]int{
	"ha noi": 8054000, "hanoi": 8054000, "ho chi minh": 8993000, "hcm": 9000000,
	"hai phong": 2029000, "da nang": 1135000, "can tho": 1238000, "an giang": 1908000,
	"ba ria vung tau": 1148000, "bac giang": 1803000, "bac kan": 313000, "bac lieu": 902000,
	"bac ninh": 1368000, "ben tre": 1260000, "binh dinh": 1501000, "binh duong": 2426000,
	"binh phuoc": 993000, "binh thuan": 1226000, "ca mau": 1217000, "cao bang": 530000,
	"dak lak": 1912000, "dak nong": 613000, "dien bien": 598000, "dong nai": 3097000,
	"dong thap": 1676000, "gia lai": 1513000, "ha giang": 854000, "ha nam": 820000,
	"ha tinh": 1270000, "hai duong": 1892000, "hau giang": 769000, "hoa binh": 854000,
	"hung yen": 1282000, "khanh hoa": 1233000, "kien giang": 1875000, "kon tum": 530000,
	"lai chau": 460000, "lam dong": 1296000, "lang son": 789000, "lao cai": 730000,
	"long an": 1688000, "nam dinh": 1780000, "nghe an": 3327000, "ninh binh": 982000,
	"ninh thuan": 590000, "phu tho": 1470000, "phu yen": 877000, "quang binh": 912000,
	"quang nam": 1495000, "quang ngai": 1255000, "quang ninh": 1320000, "quang tri": 632000,
	"soc trang": 1295000, "son la": 1248000, "tay ninh": 1167000, "thai binh": 1868000,
	"thai nguyen": 1286000, "thanh hoa": 3689000, "thua thien hue": 1154000,
	"tien giang": 1764000, "tra vinh": 1015000, "tuyen quang": 788000,
	"vinh long": 1023000, "vinh phuc": 1152000, "yen bai": 820000,
	"sai gon": 8993000, "saigon": 8993000, "tp hcm": 9000000, "hue": 1154000,
	"daklak": 1912000, "vung tau": 1148000,
}

var administrativePrefixes = []string{"thanh pho ", "tp ", "tinh "}

// FoldName lower-cases a place name, strips Vietnamese diacritics and
// collapses punctuation and whitespace, so "TP. Hồ Chí Minh" folds to
// "ho chi minh".
func FoldName(name string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(stripper, strings.ToLower(name))
	if err != nil {
		folded = strings.ToLower(name)
	}

	folded = strings.Map(func(r rune) rune {
		switch {
		case r == 'đ':
			return 'd'
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		default:
			return ' '
		}
	}, folded)

	return strings.Join(strings.Fields(folded), " ")
}

// LookupPopulation returns the population of a province, or 0 when the
// name is not known.
func LookupPopulation(city string) int {
	key := FoldName(city)

	if population, ok := provincePopulation[key]; ok {
		return population
	}

	for _, prefix := range administrativePrefixes {
		if trimmed, ok := strings.CutPrefix(key, prefix); ok {
			if population, ok := provincePopulation[trimmed]; ok {
				return population
			}
		}
	}

	return 0
}
