package resolver

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"ordersync/internal/model"
)

// 匹配得分档位
const (
	scoreExact     = 100
	scoreSubstring = 80
	scoreWordBase  = 70
	scoreMinKeep   = 30
	maxCandidates  = 5
)

// Candidate 一个候选目录条目及其匹配得分
type Candidate struct {
	Entry model.CatalogEntry
	Score int
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(s, -1) {
		out[w] = struct{}{}
	}
	return out
}

// FindMatches 对目录逐条打分并返回前 5 名（降序）
// 规则：完全相等=100；任一方向包含=80；否则按公共词数打 0~70 分，低于 30 丢弃
func FindMatches(catalog []model.CatalogEntry, name string) []Candidate {
	searchLower := strings.ToLower(name)
	searchWords := wordSet(searchLower)

	var matches []Candidate
	for _, entry := range catalog {
		entryLower := strings.ToLower(entry.Name)

		if entryLower == searchLower {
			matches = append(matches, Candidate{Entry: entry, Score: scoreExact})
			continue
		}
		if strings.Contains(entryLower, searchLower) || strings.Contains(searchLower, entryLower) {
			matches = append(matches, Candidate{Entry: entry, Score: scoreSubstring})
			continue
		}

		entryWords := wordSet(entryLower)
		if len(searchWords) == 0 || len(entryWords) == 0 {
			continue
		}
		common := 0
		for w := range searchWords {
			if _, ok := entryWords[w]; ok {
				common++
			}
		}
		if common == 0 {
			continue
		}
		denom := len(searchWords)
		if len(entryWords) > denom {
			denom = len(entryWords)
		}
		score := int(math.Round(float64(scoreWordBase) * float64(common) / float64(denom)))
		if score >= scoreMinKeep {
			matches = append(matches, Candidate{Entry: entry, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > maxCandidates {
		matches = matches[:maxCandidates]
	}
	return matches
}
