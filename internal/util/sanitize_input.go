package util

import "strings"

// ContainsSuspicious reports markup or script fragments in free text.
func ContainsSuspicious(s string) bool {
	lower := strings.ToLower(s)
	for _, c := range []string{"<script", "onerror=", "onload=", "javascript:"} {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}
