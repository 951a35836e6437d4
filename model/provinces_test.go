package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldName(t *testing.T) {
	tests := map[string]string{
		"Hà Nội":            "ha noi",
		"  HÀ   NỘI ":       "ha noi",
		"TP. Hồ Chí Minh":   "tp ho chi minh",
		"Đà Nẵng":           "da nang",
		"Bà Rịa - Vũng Tàu": "ba ria vung tau",
		"Thừa Thiên Huế":    "thua thien hue",
		"Đắk Lắk":           "dak lak",
		"already folded":    "already folded",
	}

	for input, expected := range tests {
		assert.Equal(t, expected, FoldName(input), input)
	}
}

func TestLookupPopulation(t *testing.T) {
	assert.Equal(t, 8054000, LookupPopulation("Hà Nội"))
	assert.Equal(t, 8054000, LookupPopulation("ha noi"))
	assert.Equal(t, 8993000, LookupPopulation("Thành phố Hồ Chí Minh"))
	assert.Equal(t, 1135000, LookupPopulation("TP. Đà Nẵng"))
	assert.Equal(t, 1148000, LookupPopulation("Bà Rịa – Vũng Tàu"))
	assert.Equal(t, 1912000, LookupPopulation("Tỉnh Đắk Lắk"))
	assert.Equal(t, 0, LookupPopulation("Springfield"))
	assert.Equal(t, 0, LookupPopulation(""))
}
