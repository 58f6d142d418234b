package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/folioapp/folio/internal/apperrors"
)

// sanitizeHandle lowercases s and strips everything outside [a-z0-9].
func sanitizeHandle(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// candidateBases returns the base handle forms tried for a name, in
// preference order: first initial + surname, given name + surname initial,
// then the full concatenation. Duplicate and empty forms are dropped.
func candidateBases(firstName, lastName string) []string {
	first := sanitizeHandle(firstName)
	last := sanitizeHandle(lastName)

	var forms []string
	if first != "" && last != "" {
		forms = append(forms, first[:1]+last, first+last[:1], first+last)
	} else if first != "" {
		forms = append(forms, first)
	} else if last != "" {
		forms = append(forms, last)
	} else {
		forms = append(forms, "user")
	}

	seen := make(map[string]struct{}, len(forms))
	var bases []string
	for _, f := range forms {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		bases = append(bases, f)
	}
	return bases
}

// GenerateUsername allocates an unused handle derived from the given name.
// All base forms are tried bare first, then with numeric suffixes 1, 2, ...
// up to the configured cap, so the shortest available handle wins.
func (s *Service) GenerateUsername(ctx context.Context, firstName, lastName string) (string, error) {
	bases := candidateBases(firstName, lastName)
	maxSuffix := s.config.GetMaxUsernameSuffix()

	for suffix := 0; suffix <= maxSuffix; suffix++ {
		for _, base := range bases {
			candidate := base
			if suffix > 0 {
				candidate = fmt.Sprintf("%s%d", base, suffix)
			}
			taken, err := s.storage.UserStore().UsernameExists(ctx, candidate)
			if err != nil {
				return "", fmt.Errorf("failed to check username %s: %w", candidate, err)
			}
			if !taken {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("%w: no free username for %s %s within %d suffixes",
		apperrors.ErrValidation, firstName, lastName, maxSuffix)
}
