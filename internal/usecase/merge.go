package usecase

import "strings"

// appendFragment appends a trimmed fragment to final with one separating space.
// An empty fragment leaves final unchanged.
func appendFragment(final string, fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return final
	}
	return strings.TrimSpace(final + " " + fragment)
}

// removeSaved drops a saved prefix from final. Text appended after the save
// began is kept.
func removeSaved(final string, saved string) string {
	trimmed := strings.TrimSpace(final)
	if saved == "" || !strings.HasPrefix(trimmed, saved) {
		return final
	}
	return strings.TrimSpace(trimmed[len(saved):])
}
