package utils

import "unicode/utf8"

const (
	// Gitea rejects repository descriptions longer than this
	// https://github.com/go-gitea/gitea/blob/main/modules/structs/repo.go
	MaxDescriptionLength = 255
)

// TruncateText keeps the first maxLength characters of text.
// Unlike byte slicing it never splits a multi-byte rune.
func TruncateText(text string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}

	runes := []rune(text)
	return string(runes[:maxLength])
}
