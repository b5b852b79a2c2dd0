package config

import "strings"

// SetPath 在嵌套 map 中按路径写值，中间层不是 map 时被覆盖
func SetPath(m map[string]interface{}, path []string, value interface{}) {
	if len(path) == 0 {
		return
	}
	current := m
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[key] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

// deepMerge 把 src 合并进 dst，两边都是 map 时递归，否则 src 覆盖
func deepMerge(dst, src map[string]interface{}) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]interface{})
		dstMap, dstIsMap := dst[key].(map[string]interface{})
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			copied := make(map[string]interface{}, len(srcMap))
			deepMerge(copied, srcMap)
			dst[key] = copied
			continue
		}
		dst[key] = value
	}
}

func splitPath(key, sep string) []string {
	parts := strings.Split(key, sep)
	result := parts[:0]
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
