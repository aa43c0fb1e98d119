package export

import (
	"html"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Разделитель строк в предварительно размеченном тексте ячейки
const lineBreakMarkup = "<br/>"

// escapeText экранирует пользовательский текст перед помещением в ячейку.
func escapeText(s string) string {
	return html.EscapeString(s)
}

// verticalLabel раскладывает подпись по одной букве на строку. Результат является разметкой и не экранируется.
func verticalLabel(text string) string {
	var letters []string
	for _, r := range text {
		if r == ' ' {
			continue
		}
		letters = append(letters, escapeText(string(r)))
	}
	return strings.Join(letters, lineBreakMarkup)
}

// markupLines разбивает текст ячейки по разметке переноса строк и снимает экранирование.
// Экранированный пользовательский текст не содержит разметки, поэтому всегда дает одну строку.
func markupLines(s string) []string {
	parts := strings.Split(s, lineBreakMarkup)
	for i := range parts {
		parts[i] = html.UnescapeString(parts[i])
	}
	return parts
}

// toCP1252 перекодирует строку для core шрифтов PDF. Символы вне cp1252 заменяются на '?'.
func toCP1252(s string) string {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x80 {
			b = append(b, byte(r))
			continue
		}
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b = append(b, c)
		} else {
			b = append(b, '?')
		}
	}
	return string(b)
}

// wrapText переносит текст по словам в пределах width. Слово длиннее строки не разбивается.
func wrapText(text string, width float64, measure func(string) float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, word := range words[1:] {
			candidate := line + " " + word
			if measure(candidate) <= width {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = word
		}
		lines = append(lines, line)
	}
	return lines
}
