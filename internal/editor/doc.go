// Package editor holds editable record lists (settings, variables) that are
// kept in sync with a canonical backing slice.
package editor
