package workstation

import (
	"regexp"
	"strings"
	"studio/internal/entity/dto"
)

var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_\-]+)`)

// MentionedCharacters returns the library characters referenced as @Name in
// prompt, in order of first mention. Names match case-insensitively with
// spaces written as underscores.
func MentionedCharacters(prompt string, library []dto.CharacterRef) []dto.CharacterRef {
	if len(library) == 0 || !strings.Contains(prompt, "@") {
		return nil
	}

	byName := make(map[string]dto.CharacterRef, len(library))
	for _, c := range library {
		key := mentionKey(c.Name)
		if key == "" || strings.TrimSpace(c.URL) == "" {
			continue
		}
		if _, exists := byName[key]; !exists {
			byName[key] = c
		}
	}

	var out []dto.CharacterRef
	seen := make(map[string]bool)
	for _, match := range mentionPattern.FindAllStringSubmatch(prompt, -1) {
		key := mentionKey(match[1])
		if seen[key] {
			continue
		}
		if c, ok := byName[key]; ok {
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}

func mentionKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(strings.ReplaceAll(name, "_", " ")), "_")
}
