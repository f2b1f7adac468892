package service

import (
	"strings"

	"github.com/matchmate/matchmate-go/internal/model"
)

// CompareProfiles computes what two profiles have in common. Attribute
// matches ignore case and surrounding space; empty attributes never match.
// The score counts matched attributes plus shared interests and languages.
func CompareProfiles(a, b model.Profile) model.CommonInterests {
	c := model.CommonInterests{
		SameReligion:     sameAttr(a.Religion, b.Religion),
		SameMotherTongue: sameAttr(a.MotherTongue, b.MotherTongue),
		SameCity:         sameAttr(a.City, b.City),
		SameEducation:    sameAttr(a.Education, b.Education),
		Interests:        intersect(a.Interests, b.Interests),
		Languages:        intersect(a.Languages, b.Languages),
	}

	for _, same := range []bool{c.SameReligion, c.SameMotherTongue, c.SameCity, c.SameEducation} {
		if same {
			c.Score++
		}
	}
	c.Score += len(c.Interests) + len(c.Languages)

	return c
}

func sameAttr(x, y string) bool {
	x, y = strings.TrimSpace(x), strings.TrimSpace(y)
	return x != "" && strings.EqualFold(x, y)
}

// intersect returns the entries of a also present in b, in a's order, lower-cased.
func intersect(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		inB[strings.ToLower(strings.TrimSpace(v))] = true
	}

	out := []string{}
	seen := make(map[string]bool)
	for _, v := range a {
		k := strings.ToLower(strings.TrimSpace(v))
		if k != "" && inB[k] && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
