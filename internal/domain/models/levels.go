// internal/domain/models/levels.go
package models

// Canonical English level scale identifiers.
//
// These values are stored in the database in the User.EnglishLevelType field
// and are used throughout the application as stable keys. A user reports one
// scale plus a raw score; the levels package maps that pair onto a LevelBucket.
const (
	ScaleIELTS    LevelScale = "IELTS"
	ScaleTOEFLIBT LevelScale = "TOEFL_IBT"
	ScaleTOEFLITP LevelScale = "TOEFL_ITP"
	ScaleDuolingo LevelScale = "DUOLINGO"
	ScaleCEFR     LevelScale = "CEFR"
	ScaleOther    LevelScale = "OTHER"
)

// LevelScale identifies which proficiency test a raw score belongs to.
type LevelScale string

// LevelScales is the full set of allowed scale identifiers.
// Treat this slice as the single source of truth for validation.
var LevelScales = []LevelScale{
	ScaleIELTS,
	ScaleTOEFLIBT,
	ScaleTOEFLITP,
	ScaleDuolingo,
	ScaleCEFR,
	ScaleOther,
}

// IsValidLevelScale checks if a value is a known scale identifier.
func IsValidLevelScale(value string) bool {
	for _, s := range LevelScales {
		if string(s) == value {
			return true
		}
	}
	return false
}

// LevelBucket is the normalized CEFR-style tier used for room grouping
// and display. Buckets are totally ordered A1 < A2 < ... < C2;
// BucketUnspecified sits outside the order and sorts after everything.
type LevelBucket string

const (
	BucketA1          LevelBucket = "A1"
	BucketA2          LevelBucket = "A2"
	BucketB1          LevelBucket = "B1"
	BucketB2          LevelBucket = "B2"
	BucketC1          LevelBucket = "C1"
	BucketC2          LevelBucket = "C2"
	BucketUnspecified LevelBucket = "UNSPECIFIED"
)

// LevelBuckets lists every bucket in grouping order (Unspecified last).
var LevelBuckets = []LevelBucket{
	BucketA1,
	BucketA2,
	BucketB1,
	BucketB2,
	BucketC1,
	BucketC2,
	BucketUnspecified,
}

var bucketRank = map[LevelBucket]int{
	BucketA1:          0,
	BucketA2:          1,
	BucketB1:          2,
	BucketB2:          3,
	BucketC1:          4,
	BucketC2:          5,
	BucketUnspecified: 6,
}

var bucketLabels = map[LevelBucket]string{
	BucketA1:          "Beginner",
	BucketA2:          "Elementary",
	BucketB1:          "Intermediate",
	BucketB2:          "Upper Intermediate",
	BucketC1:          "Advanced",
	BucketC2:          "Proficient",
	BucketUnspecified: "Not determined",
}

// Rank returns the bucket's position in grouping order. Unknown values
// sort with Unspecified so malformed stored data never panics.
func (b LevelBucket) Rank() int {
	if r, ok := bucketRank[b]; ok {
		return r
	}
	return bucketRank[BucketUnspecified]
}

// Label returns the human-readable proficiency label for the bucket.
func (b LevelBucket) Label() string {
	if l, ok := bucketLabels[b]; ok {
		return l
	}
	return bucketLabels[BucketUnspecified]
}

// BucketFromName maps a stored bucket name back to a LevelBucket.
// The second result is false for unrecognized names.
func BucketFromName(name string) (LevelBucket, bool) {
	b := LevelBucket(name)
	_, ok := bucketRank[b]
	return b, ok
}
