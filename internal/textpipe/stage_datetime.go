package textpipe

import (
	"fmt"
	"regexp"
	"strconv"
)

var monthNames = []string{
	"", "January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var ordinalWords = map[int]string{
	1: "first", 2: "second", 3: "third", 4: "fourth", 5: "fifth",
	6: "sixth", 7: "seventh", 8: "eighth", 9: "ninth", 10: "tenth",
	11: "eleventh", 12: "twelfth", 13: "thirteenth", 20: "twentieth",
	21: "twenty-first", 22: "twenty-second", 23: "twenty-third",
	30: "thirtieth", 31: "thirty-first",
}

var isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
var timeRangePattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*[-–—]\s*(\d{1,2}):(\d{2})\b`)
var timePattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)

// applyDateTime is stage 8: ISO dates and HH:MM times, including ranges,
// expand to natural English before any later symbol pass sees the ':' or
// '-' characters.
func applyDateTime(text string, _ Config) (string, bool) {
	original := text

	text = isoDatePattern.ReplaceAllStringFunc(text, func(m string) string {
		g := isoDatePattern.FindStringSubmatch(m)
		year, _ := strconv.Atoi(g[1])
		month, _ := strconv.Atoi(g[2])
		day, _ := strconv.Atoi(g[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return m
		}
		return fmt.Sprintf("%s %s, %s", monthNames[month], ordinal(day), yearInWords(year))
	})

	text = timeRangePattern.ReplaceAllStringFunc(text, func(m string) string {
		g := timeRangePattern.FindStringSubmatch(m)
		h1, _ := strconv.Atoi(g[1])
		min1, _ := strconv.Atoi(g[2])
		h2, _ := strconv.Atoi(g[3])
		min2, _ := strconv.Atoi(g[4])
		return timeInWords(h1, min1) + " to " + timeInWords(h2, min2)
	})

	text = timePattern.ReplaceAllStringFunc(text, func(m string) string {
		g := timePattern.FindStringSubmatch(m)
		h, _ := strconv.Atoi(g[1])
		min, _ := strconv.Atoi(g[2])
		if h > 23 || min > 59 {
			return m
		}
		return timeInWords(h, min)
	})

	return text, text != original
}

func ordinal(day int) string {
	if w, ok := ordinalWords[day]; ok {
		return w
	}
	tens := (day / 10) * 10
	ones := day % 10
	if ones == 0 {
		return ordinalWords[tens]
	}
	return tensWords[tens/10] + "-" + ordinalWords[ones]
}

func yearInWords(year int) string {
	if year >= 2000 && year < 2100 {
		rem := year - 2000
		if rem == 0 {
			return "two thousand"
		}
		if rem < 10 {
			return "two thousand " + numberToWords(int64(rem))
		}
		return "twenty " + numberToWords(int64(rem))
	}
	first := year / 100
	second := year % 100
	return numberToWords(int64(first)) + " " + numberToWords(int64(second))
}

func timeInWords(hour, minute int) string {
	period := "AM"
	h12 := hour
	if hour == 0 {
		h12 = 12
	} else if hour == 12 {
		period = "PM"
	} else if hour > 12 {
		h12 = hour - 12
		period = "PM"
	}

	switch minute {
	case 0:
		return fmt.Sprintf("%s o'clock %s", numberToWords(int64(h12)), period)
	case 30:
		return fmt.Sprintf("half past %s %s", numberToWords(int64(h12)), period)
	case 15:
		return fmt.Sprintf("quarter past %s %s", numberToWords(int64(h12)), period)
	case 45:
		next := h12 + 1
		nextPeriod := period
		if next == 13 {
			next = 1
			if period == "AM" {
				nextPeriod = "PM"
			} else {
				nextPeriod = "AM"
			}
		}
		return fmt.Sprintf("quarter to %s %s", numberToWords(int64(next)), nextPeriod)
	default:
		return fmt.Sprintf("%s %s %s", numberToWords(int64(h12)), numberToWords(int64(minute)), period)
	}
}
