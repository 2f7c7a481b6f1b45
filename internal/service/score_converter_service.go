package service

import (
	"fmt"
	"math"
)

// IQClassification is the band an IQ score falls in.
type IQClassification struct {
	// Score is the IQ score rounded to the nearest integer.
	Score       int
	Level       string
	Description string
}

type ScoreConverterService interface {
	Classify(iqScore float64) (IQClassification, error)
}

type scoreConverterService struct{}

func NewScoreConverterService() ScoreConverterService {
	return &scoreConverterService{}
}

// iqBands is ordered from the highest lower bound down.
var iqBands = []struct {
	min         float64
	level       string
	description string
}{
	{140, "Genius", "Exceptional intellectual ability, found in under 1% of the population"},
	{130, "Very Superior", "Very high intelligence with excellent reasoning ability"},
	{120, "Superior", "Above-average intelligence with strong analytical ability"},
	{110, "High Average", "Good intellectual ability, above the mean"},
	{90, "Average", "Intellectual ability within the normal range"},
	{80, "Low Average", "Intellectual ability slightly below average"},
}

func (s *scoreConverterService) Classify(iqScore float64) (IQClassification, error) {
	if math.IsNaN(iqScore) || math.IsInf(iqScore, 0) || iqScore < 0 {
		return IQClassification{}, fmt.Errorf("iq score %v is out of range", iqScore)
	}

	c := IQClassification{
		Score:       int(math.Round(iqScore)),
		Level:       "Below Average",
		Description: "Intellectual ability that benefits from additional support",
	}
	for _, band := range iqBands {
		if iqScore >= band.min {
			c.Level = band.level
			c.Description = band.description
			break
		}
	}
	return c, nil
}
