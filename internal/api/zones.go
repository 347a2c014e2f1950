package api

import (
	"sort"
	"strings"
)

const (
	defaultZoneLimit = 50
	maxZoneLimit     = 1000
)

type matchedZone struct {
	name     string
	isPrefix bool
}

// searchZones：大小写不敏感的子串匹配，前缀命中排在前面，其余按名称排序
// 约束：空查询返回前 limit 个名称；limit 为 0 取默认值，超过上限时截断，负数返回空
func searchZones(zones []string, q string, limit int) []string {
	switch {
	case limit < 0:
		return []string{}
	case limit == 0:
		limit = defaultZoneLimit
	case limit > maxZoneLimit:
		limit = maxZoneLimit
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		if len(zones) > limit {
			zones = zones[:limit]
		}
		return append([]string{}, zones...)
	}
	matches := make([]matchedZone, 0, 32)
	for _, z := range zones {
		lz := strings.ToLower(z)
		if !strings.Contains(lz, q) {
			continue
		}
		matches = append(matches, matchedZone{name: z, isPrefix: strings.HasPrefix(lz, q)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].isPrefix != matches[j].isPrefix {
			return matches[i].isPrefix
		}
		return matches[i].name < matches[j].name
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.name)
	}
	return out
}
