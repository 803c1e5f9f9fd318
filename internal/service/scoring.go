package service

// Score weighting shared by expert search and backup ranking. Keeping one
// weighting for both keeps ranked lists comparable across surfaces.
const (
	weightExpertise    = 0.4
	weightAvailability = 0.3
	weightWorkload     = 0.3
)

func combineScores(expertise, availability, workload float64) float64 {
	return weightExpertise*expertise + weightAvailability*availability + weightWorkload*workload
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
