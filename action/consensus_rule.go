package action

// RuleName is one of the merge strategies a parameter can be reconciled with.
type RuleName string

const (
	RuleExactMatch          RuleName = "exact_match"
	RuleModeSelection       RuleName = "mode_selection"
	RuleSemanticSimilarity   RuleName = "semantic_similarity"
	RulePercentile           RuleName = "percentile"
	RuleUnionMerge           RuleName = "union_merge"
	RuleStructuralMerge      RuleName = "structural_merge"
	RuleMergeMaps            RuleName = "merge_maps"
	RuleFirstNonNil          RuleName = "first_non_nil"
	RuleBatchSequenceMerge   RuleName = "batch_sequence_merge"
)

// ConsensusRule is one parameter's declared merge strategy. Tau applies to
// semantic_similarity (cosine similarity threshold); Percentile applies to
// percentile.
type ConsensusRule struct {
	Name       RuleName
	Tau        float64
	Percentile float64
}

func ExactMatch() ConsensusRule    { return ConsensusRule{Name: RuleExactMatch} }
func ModeSelection() ConsensusRule { return ConsensusRule{Name: RuleModeSelection} }
func SemanticSimilarity(tau float64) ConsensusRule {
	return ConsensusRule{Name: RuleSemanticSimilarity, Tau: tau}
}
func Percentile(p float64) ConsensusRule {
	return ConsensusRule{Name: RulePercentile, Percentile: p}
}
func UnionMerge() ConsensusRule         { return ConsensusRule{Name: RuleUnionMerge} }
func StructuralMerge() ConsensusRule    { return ConsensusRule{Name: RuleStructuralMerge} }
func MergeMaps() ConsensusRule          { return ConsensusRule{Name: RuleMergeMaps} }
func FirstNonNil() ConsensusRule        { return ConsensusRule{Name: RuleFirstNonNil} }
func BatchSequenceMerge() ConsensusRule { return ConsensusRule{Name: RuleBatchSequenceMerge} }
