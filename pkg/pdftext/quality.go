package pdftext

import (
	"strings"
	"unicode"
)

const (
	// Pages with fewer runes than this look like scans without a text layer.
	sparsePageChars = 200
	ocrBonus        = 0.05
)

// Confidence scores recovered text in [0,1]. It blends the share of
// printable runes, the share of word-like tokens and the text density per
// page. Text from an OCR'd copy gets a small bonus. Empty text scores 0.
func Confidence(text string, pages int, ocrApplied bool) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	score := 0.4*printableRatio(text) + 0.4*wordlikeRatio(text) + 0.2*density(text, pages)
	if ocrApplied {
		score += ocrBonus
	}
	return clamp01(score)
}

func printableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if isGarbageRune(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(printable) / float64(total)
}

// wordlikeRatio is the share of whitespace-separated tokens that are 2-15
// runes long and contain at least one letter.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 && strings.IndexFunc(f, unicode.IsLetter) >= 0 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}

func density(text string, pages int) float64 {
	if pages <= 0 {
		pages = 1
	}
	perPage := float64(len([]rune(text))) / float64(pages)
	return clamp01(perPage / sparsePageChars)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
