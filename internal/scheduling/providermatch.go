package scheduling

import (
	"strings"

	"github.com/wardlink/clinic-comms-platform/internal/identity"
)

// matchProvider resolves a patient's loose provider reference ("Dr. Adams",
// "adams", "sarah") against the directory. It strips honorifics and matches
// case-insensitive name tokens. No match, or no reference at all, falls back
// to the first provider so scheduling can proceed with "any provider".
func matchProvider(providers []identity.Provider, raw string) (identity.Provider, error) {
	if len(providers) == 0 {
		return identity.Provider{}, ErrNoProviderAvailable
	}

	wanted := providerTokens(raw)
	if len(wanted) == 0 {
		return providers[0], nil
	}

	for _, p := range providers {
		name := strings.ToLower(p.Name)
		for _, tok := range wanted {
			if strings.Contains(name, tok) {
				return p, nil
			}
		}
	}
	return providers[0], nil
}

// providerTokens lowercases the reference and drops honorifics and
// single-letter noise.
func providerTokens(raw string) []string {
	var toks []string
	for _, f := range strings.Fields(strings.ToLower(raw)) {
		f = strings.Trim(f, ".,!?")
		if f == "" || f == "dr" || f == "doctor" || len(f) < 2 {
			continue
		}
		toks = append(toks, f)
	}
	return toks
}
