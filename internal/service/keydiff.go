package service

// DefaultRerequestCutoff is the share of listed keys that must already be
// cached for missing entries to be fetched one by one.
const DefaultRerequestCutoff = 0.7

// KeyDiffPlan is the outcome of comparing a key listing with the cache.
type KeyDiffPlan struct {
	// Complete is set when every listed key is cached with content.
	Complete bool
	// FullRefetch asks for the whole scope as a structured feed.
	FullRefetch bool
	// Fetch lists the keys to request individually.
	Fetch []string
	// Rerequest asks for the key list again once the fetches are done.
	// Callers honour it for collection scope only.
	Rerequest bool
}

// PlanKeyDiff decides how to fill the gap between the listed keys and the
// cached ones. Keys in skip were already fetched in the current cycle and
// are not fetched again.
func PlanKeyDiff(keys []string, cached func(key string) bool, cutoff float64, skip map[string]struct{}) KeyDiffPlan {
	missing := make([]string, 0)
	for _, k := range keys {
		if !cached(k) {
			missing = append(missing, k)
		}
	}

	if len(missing) == 0 {
		return KeyDiffPlan{Complete: true}
	}

	present := len(keys) - len(missing)
	if float64(present)/float64(len(keys)) < cutoff {
		return KeyDiffPlan{FullRefetch: true}
	}

	fetch := make([]string, 0, len(missing))
	for _, k := range missing {
		if _, done := skip[k]; done {
			continue
		}
		fetch = append(fetch, k)
	}

	return KeyDiffPlan{Fetch: fetch, Rerequest: len(fetch) > 0}
}
