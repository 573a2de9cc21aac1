package vkbackend

import "strings"

// safeString returns s terminated with a NUL. vulkan-go hands the string
// data to C as is.
func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

// safeStrings terminates every name in a fresh slice; list is left alone.
func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}
