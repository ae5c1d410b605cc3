package utils

func WithDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

// Dedupe drops empty and repeated entries, keeping first occurrences in order.
func Dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
