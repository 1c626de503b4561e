package group

// DedupeTabs keeps the first tab for each distinct key and reports how many
// were dropped. Tabs with neither URL nor title carry no key and are kept.
func DedupeTabs(tabs []Tab) ([]Tab, int) {
	seen := make(map[string]struct{}, len(tabs))
	kept := make([]Tab, 0, len(tabs))
	for _, t := range tabs {
		k := t.Key()
		if k != "" {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
		}
		kept = append(kept, t)
	}
	return kept, len(tabs) - len(kept)
}
