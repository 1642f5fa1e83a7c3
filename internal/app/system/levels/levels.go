// internal/app/system/levels/levels.go
package levels

import (
	"strconv"
	"strings"

	"github.com/chitchatclub/chitchatclub/internal/domain/models"
)

// Normalize maps a (scale, raw score) pair to a level bucket.
//
// It is total: blank input, an unknown scale, a parse failure, or a score
// outside the scale's documented range all yield BucketUnspecified. It
// never returns an error, so callers can group and display without a
// failure path.
func Normalize(scale models.LevelScale, raw string) models.LevelBucket {
	raw = strings.TrimSpace(raw)
	if scale == "" || raw == "" {
		return models.BucketUnspecified
	}

	switch scale {
	case models.ScaleIELTS:
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.BucketUnspecified
		}
		return normalizeIELTS(score)
	case models.ScaleTOEFLIBT:
		score, err := strconv.Atoi(raw)
		if err != nil {
			return models.BucketUnspecified
		}
		return normalizeTOEFLIBT(score)
	case models.ScaleTOEFLITP:
		score, err := strconv.Atoi(raw)
		if err != nil {
			return models.BucketUnspecified
		}
		return normalizeTOEFLITP(score)
	case models.ScaleDuolingo:
		score, err := strconv.Atoi(raw)
		if err != nil {
			return models.BucketUnspecified
		}
		return normalizeDuolingo(score)
	case models.ScaleCEFR:
		if b, ok := models.BucketFromName(strings.ToUpper(raw)); ok && b != models.BucketUnspecified {
			return b
		}
		return models.BucketUnspecified
	}
	// ScaleOther and anything unrecognized.
	return models.BucketUnspecified
}

// Effective returns the bucket actually used for grouping and display:
// the admin override when set, otherwise the normalized raw score.
func Effective(u models.User) models.LevelBucket {
	if u.ProficiencyOverride != nil {
		return *u.ProficiencyOverride
	}
	return Normalize(u.EnglishLevelType, u.EnglishLevelValue)
}

func normalizeIELTS(score float64) models.LevelBucket {
	if score < 0 || score > 9 {
		return models.BucketUnspecified
	}
	switch {
	case score <= 3.5:
		return models.BucketA1
	case score <= 4.5:
		return models.BucketA2
	case score <= 5.5:
		return models.BucketB1
	case score <= 6.5:
		return models.BucketB2
	case score <= 8.0:
		return models.BucketC1
	}
	return models.BucketC2
}

func normalizeTOEFLIBT(score int) models.LevelBucket {
	if score < 0 || score > 120 {
		return models.BucketUnspecified
	}
	switch {
	case score <= 30:
		return models.BucketA1
	case score <= 40:
		return models.BucketA2
	case score <= 60:
		return models.BucketB1
	case score <= 80:
		return models.BucketB2
	case score <= 100:
		return models.BucketC1
	}
	return models.BucketC2
}

func normalizeTOEFLITP(score int) models.LevelBucket {
	if score < 310 || score > 677 {
		return models.BucketUnspecified
	}
	switch {
	case score <= 399:
		return models.BucketA1
	case score <= 449:
		return models.BucketA2
	case score <= 499:
		return models.BucketB1
	case score <= 549:
		return models.BucketB2
	case score <= 599:
		return models.BucketC1
	}
	return models.BucketC2
}

func normalizeDuolingo(score int) models.LevelBucket {
	if score < 10 || score > 160 {
		return models.BucketUnspecified
	}
	switch {
	case score <= 55:
		return models.BucketA1
	case score <= 85:
		return models.BucketA2
	case score <= 110:
		return models.BucketB1
	case score <= 130:
		return models.BucketB2
	case score <= 150:
		return models.BucketC1
	}
	return models.BucketC2
}
