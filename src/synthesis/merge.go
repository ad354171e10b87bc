package synthesis

import (
	"fmt"

	"diaglog/src/contracts"
)

// Merge reduces the conclusions of independent runs into one. The primary
// conclusion is the riskiest, then most confident, then earliest input, so
// the merged risk is the maximum across inputs. Its
// confidence grows by a fixed step for every other input that reached the
// same category. Evidence keeps input order, tagged with the input index.
// Inputs are not modified.
func Merge(conclusions []contracts.Conclusion) contracts.Conclusion {
	if len(conclusions) == 0 {
		return contracts.Conclusion{RiskLevel: contracts.RiskLow}
	}

	primary := 0
	for i, c := range conclusions[1:] {
		p := conclusions[primary]
		switch {
		case c.RiskLevel.Rank() > p.RiskLevel.Rank():
			primary = i + 1
		case c.RiskLevel.Rank() == p.RiskLevel.Rank() && c.Confidence > p.Confidence:
			primary = i + 1
		}
	}
	p := conclusions[primary]

	out := contracts.Conclusion{
		RootCause:  p.RootCause,
		Category:   p.Category,
		Confidence: p.Confidence,
		RiskLevel:  p.RiskLevel,
	}

	for i, c := range conclusions {
		if i != primary && c.Category == p.Category {
			out.Confidence += corroborationStep
		}
		for _, e := range c.Evidence {
			e.Source = source(i, e.Source)
			out.Evidence = append(out.Evidence, e)
		}
	}
	out.Confidence = clamp(out.Confidence)

	seen := make(map[string]bool)
	add := func(recs []string) {
		for _, r := range recs {
			if !seen[r] {
				seen[r] = true
				out.Recommendations = append(out.Recommendations, r)
			}
		}
	}
	add(p.Recommendations)
	for _, c := range conclusions {
		add(c.Recommendations)
	}

	return out
}

func source(i int, inner string) string {
	s := fmt.Sprintf("log[%d]", i)
	if inner != "" {
		s += "." + inner
	}
	return s
}
