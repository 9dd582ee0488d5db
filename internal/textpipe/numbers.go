package textpipe

import (
	"strconv"
	"strings"
)

var onesWords = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var tensWords = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
}

var thousandGroups = []string{"", "thousand", "million", "billion", "trillion"}

const maxNumberSize = 1_000_000_000_000

// numberToWords spells out a non-negative integer up to maxNumberSize.
func numberToWords(n int64) string {
	if n == 0 {
		return "zero"
	}
	if n < 0 {
		return "negative " + numberToWords(-n)
	}
	if n >= maxNumberSize {
		return strconv.FormatInt(n, 10)
	}

	var groups []string
	for n > 0 {
		groups = append(groups, strconv.FormatInt(n%1000, 10))
		n /= 1000
	}

	var parts []string
	for i := len(groups) - 1; i >= 0; i-- {
		v, _ := strconv.Atoi(groups[i])
		if v == 0 {
			continue
		}
		words := convertHundreds(v)
		if thousandGroups[i] != "" {
			words += " " + thousandGroups[i]
		}
		parts = append(parts, words)
	}
	return strings.Join(parts, " ")
}

func convertHundreds(n int) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, onesWords[n/100], "hundred")
		n %= 100
	}
	if n >= 20 {
		tens := tensWords[n/10]
		rem := n % 10
		if rem > 0 {
			tens += "-" + onesWords[rem]
		}
		parts = append(parts, tens)
	} else if n > 0 {
		parts = append(parts, onesWords[n])
	}
	return strings.Join(parts, " ")
}

// decimalToWords reads digits one at a time after "point", as the source
// processor does for arbitrary-precision decimals outside the two-digit
// cents case.
func decimalToWords(fraction string) string {
	var parts []string
	for _, d := range fraction {
		idx := int(d - '0')
		if idx < 0 || idx > 9 {
			continue
		}
		parts = append(parts, onesWords[idx])
	}
	return "point " + strings.Join(parts, " ")
}

func pluralize(word string, n int64) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
