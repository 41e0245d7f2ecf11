package sanitizer

// NormalizeStringSlice applies normalizer to each item, dropping empties and
// duplicates while keeping first-seen order.
func NormalizeStringSlice(items []string, normalizer func(string) string) []string {
	if len(items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	result := make([]string, 0, len(items))

	for _, item := range items {
		normalized := normalizer(item)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		result = append(result, normalized)
	}

	return result
}

func NormalizeDates(dates []string) []string {
	return NormalizeStringSlice(dates, NormalizeID)
}

func NormalizeSymptoms(symptoms []string) []string {
	return NormalizeStringSlice(symptoms, TrimAndNormalize)
}
