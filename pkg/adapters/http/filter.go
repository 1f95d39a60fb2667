package http

import (
	"encoding/json"
	"strings"

	"github.com/aretw0/dialogtree/pkg/domain"
)

// matchesWatch reports whether the encoded diff touches a watched field.
// An empty watch list or an undecodable message always matches.
func matchesWatch(msg string, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	var diff domain.StateDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watch {
		switch strings.TrimSpace(field) {
		case "node":
			if diff.CurrentNodeID != nil {
				return true
			}
		case "status":
			if diff.Status != nil {
				return true
			}
		case "context":
			if len(diff.Context) > 0 {
				return true
			}
		case "branch":
			if len(diff.Branch) > 0 {
				return true
			}
		}
	}
	return false
}
