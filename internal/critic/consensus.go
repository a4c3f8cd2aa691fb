package critic

import (
	"sort"
	"strings"
	"unicode"
)

// ConsensusChecker scores agreement between two or three agents'
// independent analyses of the same task/phase, using weighted pairwise
// Jaccard similarity over normalized claim/risk/recommendation sets.
// The peer-review critic and the reasoning validator's agreement scoring
// both drive off this.
type ConsensusChecker struct {
	Threshold      float64
	V2Threshold    float64
	HumanThreshold float64
	Weights        CategoryWeights
}

// CategoryWeights weighs each category of a PeerOutput's content.
type CategoryWeights struct {
	Claims          float64
	Risks           float64
	Recommendations float64
}

// DefaultWeights returns the standard category weighting: claims weigh
// more than risks or recommendations, since factual agreement matters
// most for judging whether two agents did the same analysis.
func DefaultWeights() CategoryWeights {
	return CategoryWeights{Claims: 0.40, Risks: 0.30, Recommendations: 0.30}
}

// NewConsensusChecker builds a checker with the standard V2/human-review
// escalation thresholds (60%/50%) and a custom agreement threshold.
func NewConsensusChecker(threshold float64, weights CategoryWeights) *ConsensusChecker {
	return &ConsensusChecker{
		Threshold:      threshold,
		V2Threshold:    0.60,
		HumanThreshold: 0.50,
		Weights:        weights,
	}
}

// ConsensusResult is the outcome of scoring a set of PeerOutputs.
type ConsensusResult struct {
	Score            float64
	NeedsV3          bool
	NeedsHumanReview bool
	CategoryScores   map[string]float64
	Divergences      []Divergence
	Agreement        map[string][]string
}

// HasConsensus reports whether the score meets threshold.
func (r ConsensusResult) HasConsensus(threshold float64) bool {
	return r.Score >= threshold
}

// Divergence is a significant pairwise disagreement in one category.
type Divergence struct {
	Category     string
	Agent1       string
	Agent1Items  []string
	Agent2       string
	Agent2Items  []string
	JaccardScore float64
}

// Evaluate scores agreement across outputs. Fewer than two outputs is
// treated as perfect agreement (nothing to disagree with).
func (c *ConsensusChecker) Evaluate(outputs []PeerOutput) ConsensusResult {
	if len(outputs) < 2 {
		return ConsensusResult{
			Score:          1.0,
			CategoryScores: make(map[string]float64),
			Agreement:      make(map[string][]string),
		}
	}

	claimsScores := c.pairwiseJaccard(outputs, func(o PeerOutput) []string { return o.Claims })
	risksScores := c.pairwiseJaccard(outputs, func(o PeerOutput) []string { return o.Risks })
	recsScores := c.pairwiseJaccard(outputs, func(o PeerOutput) []string { return o.Recommendations })

	claimsAvg := average(claimsScores)
	risksAvg := average(risksScores)
	recsAvg := average(recsScores)

	totalScore := claimsAvg*c.Weights.Claims + risksAvg*c.Weights.Risks + recsAvg*c.Weights.Recommendations

	result := ConsensusResult{
		Score: totalScore,
		CategoryScores: map[string]float64{
			"claims":          claimsAvg,
			"risks":           risksAvg,
			"recommendations": recsAvg,
		},
		Divergences: c.findDivergences(outputs, claimsScores, risksScores, recsScores),
		Agreement:   c.findAgreement(outputs),
	}

	result.NeedsV3 = totalScore < c.Threshold
	result.NeedsHumanReview = totalScore < c.HumanThreshold
	return result
}

func (c *ConsensusChecker) pairwiseJaccard(outputs []PeerOutput, extract func(PeerOutput) []string) []float64 {
	scores := make([]float64, 0)
	for i := 0; i < len(outputs); i++ {
		for j := i + 1; j < len(outputs); j++ {
			score := JaccardSimilarity(normalizeSet(extract(outputs[i])), normalizeSet(extract(outputs[j])))
			scores = append(scores, score)
		}
	}
	return scores
}

// JaccardSimilarity computes |A ∩ B| / |A ∪ B|. Two empty sets are
// defined as perfect agreement.
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	setA, setB := toSet(a), toSet(b)
	intersection := 0
	for item := range setA {
		if setB[item] {
			intersection++
		}
	}
	union := len(setA)
	for item := range setB {
		if !setA[item] {
			union++
		}
	}
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

func normalizeSet(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		if n := NormalizeText(item); n != "" {
			result = append(result, n)
		}
	}
	return result
}

// NormalizeText lowercases and collapses punctuation/whitespace so two
// differently-phrased but equivalent statements compare equal.
func NormalizeText(text string) string {
	text = strings.ToLower(text)

	var b strings.Builder
	prevSpace := true
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			prevSpace = false
		} else if !prevSpace {
			b.WriteRune(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func toSet(items []string) map[string]bool {
	result := make(map[string]bool, len(items))
	for _, item := range items {
		result[item] = true
	}
	return result
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func (c *ConsensusChecker) findDivergences(outputs []PeerOutput, claims, risks, recs []float64) []Divergence {
	const divergenceThreshold = 0.5
	var divergences []Divergence

	idx := 0
	for i := 0; i < len(outputs); i++ {
		for j := i + 1; j < len(outputs); j++ {
			if idx < len(claims) && claims[idx] < divergenceThreshold {
				divergences = append(divergences, Divergence{
					Category: "claims", Agent1: outputs[i].AgentName, Agent1Items: outputs[i].Claims,
					Agent2: outputs[j].AgentName, Agent2Items: outputs[j].Claims, JaccardScore: claims[idx],
				})
			}
			if idx < len(risks) && risks[idx] < divergenceThreshold {
				divergences = append(divergences, Divergence{
					Category: "risks", Agent1: outputs[i].AgentName, Agent1Items: outputs[i].Risks,
					Agent2: outputs[j].AgentName, Agent2Items: outputs[j].Risks, JaccardScore: risks[idx],
				})
			}
			if idx < len(recs) && recs[idx] < divergenceThreshold {
				divergences = append(divergences, Divergence{
					Category: "recommendations", Agent1: outputs[i].AgentName, Agent1Items: outputs[i].Recommendations,
					Agent2: outputs[j].AgentName, Agent2Items: outputs[j].Recommendations, JaccardScore: recs[idx],
				})
			}
			idx++
		}
	}
	return divergences
}

func (c *ConsensusChecker) findAgreement(outputs []PeerOutput) map[string][]string {
	agreement := make(map[string][]string)
	if len(outputs) == 0 {
		return agreement
	}
	agreement["claims"] = intersectAll(extractAll(outputs, func(o PeerOutput) []string { return o.Claims }))
	agreement["risks"] = intersectAll(extractAll(outputs, func(o PeerOutput) []string { return o.Risks }))
	agreement["recommendations"] = intersectAll(extractAll(outputs, func(o PeerOutput) []string { return o.Recommendations }))
	return agreement
}

func extractAll(outputs []PeerOutput, extract func(PeerOutput) []string) [][]string {
	result := make([][]string, len(outputs))
	for i, o := range outputs {
		result[i] = normalizeSet(extract(o))
	}
	return result
}

func intersectAll(sets [][]string) []string {
	if len(sets) == 0 {
		return nil
	}
	result := toSet(sets[0])
	for i := 1; i < len(sets); i++ {
		next := toSet(sets[i])
		for item := range result {
			if !next[item] {
				delete(result, item)
			}
		}
	}
	items := make([]string, 0, len(result))
	for item := range result {
		items = append(items, item)
	}
	sort.Strings(items)
	return items
}
