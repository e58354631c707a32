package meli

import "regexp"

type rewriteRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// imageRules are applied in order to every image URL. Each rule leaves its
// own output unchanged when re-applied, so the whole chain is idempotent.
var imageRules = []rewriteRule{
	// Media hosts are served over https.
	{regexp.MustCompile(`^http://([a-z0-9-]+\.mlstatic\.com)`), "https://$1"},
	{regexp.MustCompile(`\.webp$`), ".jpg"},
	{regexp.MustCompile(`D_NQ_NP_2X_`), "D_NQ_NP_4X_"},
	// Insert a 4X marker when no resolution marker is present.
	{regexp.MustCompile(`D_NQ_NP_([^0-9X]|\d+[^0-9X])`), "D_NQ_NP_4X_$1"},
	// Initial and original view codes become the frontal view.
	{regexp.MustCompile(`-[IO]\.(jpg|webp)$`), "-F.$1"},
}

// NormalizeImageURL rewrites a provider image URL to its highest quality
// frontal JPEG form. URLs matching no rule pass through unchanged, and an
// empty URL stays empty.
func NormalizeImageURL(u string) string {
	if u == "" {
		return u
	}
	for _, r := range imageRules {
		u = r.pattern.ReplaceAllString(u, r.replacement)
	}
	return u
}
