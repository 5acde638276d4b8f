// Package scoring implements the compatibility scorer: a pure, symmetric
// function from two candidate profiles to a score in [0, 100].
//
// Hard constraints (gender table, age policy) are platform policy and force
// a score of exactly 0. Soft bonuses (region, rank, age proximity) only
// rank candidates that already passed the hard gates, so a low score can
// never mean "unsafe but deprioritized".
package scoring

// Gender categories recognized by the pairing policy.
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonbinary Gender = "nonbinary"
	GenderOther     Gender = "other"
)

// Region is a fine-grained matchmaking region.
type Region string

const (
	RegionNAEast       Region = "NA_EAST"
	RegionNAWest       Region = "NA_WEST"
	RegionSouthAmerica Region = "SOUTH_AMERICA"
	RegionEUWest       Region = "EU_WEST"
	RegionEUEast       Region = "EU_EAST"
	RegionAsia         Region = "ASIA"
	RegionOceania      Region = "OCEANIA"
)

// Rank is a skill tier on the platform's ordered scale.
type Rank string

const (
	RankIron     Rank = "IRON"
	RankBronze   Rank = "BRONZE"
	RankSilver   Rank = "SILVER"
	RankGold     Rank = "GOLD"
	RankPlatinum Rank = "PLATINUM"
	RankDiamond  Rank = "DIAMOND"
	RankMaster   Rank = "MASTER"
)

// Age policy constants.
const (
	// MinAge is the platform minimum.
	MinAge = 18
	// MaxAgeGap is the hard limit on the pair's age difference.
	MaxAgeGap = 5
	// minAgeGuard caps the partner's age when one side is exactly MinAge.
	minAgeGuard = MinAge + 2
)

// MaxScore is the cap on the final compatibility score.
const MaxScore = 100

// Profile is the slice of a queue entry the scorer looks at.
type Profile struct {
	Age       int
	Gender    Gender
	Region    Region
	SkillRank Rank
}

// genderTable is the fixed compatibility table. Men pair with women and
// vice-versa; the two open categories pair with each other or themselves.
// Entries are symmetric by construction; anything absent never pairs.
var genderTable = map[Gender]map[Gender]bool{
	GenderMale:      {GenderFemale: true},
	GenderFemale:    {GenderMale: true},
	GenderNonbinary: {GenderNonbinary: true, GenderOther: true},
	GenderOther:     {GenderOther: true, GenderNonbinary: true},
}

// superRegion partitions regions into clusters treated as "nearby".
var superRegion = map[Region]string{
	RegionNAEast:       "AMERICAS",
	RegionNAWest:       "AMERICAS",
	RegionSouthAmerica: "AMERICAS",
	RegionEUWest:       "EUROPE",
	RegionEUEast:       "EUROPE",
	RegionAsia:         "APAC",
	RegionOceania:      "APAC",
}

// rankOrder fixes the ordinal positions used for rank distance.
var rankOrder = map[Rank]int{
	RankIron:     0,
	RankBronze:   1,
	RankSilver:   2,
	RankGold:     3,
	RankPlatinum: 4,
	RankDiamond:  5,
	RankMaster:   6,
}

// Score returns the compatibility of two profiles.
//
// 0 means incompatible (hard veto); any positive value ranks an eligible
// pair, capped at MaxScore. Score(a, b) == Score(b, a) for all inputs.
func Score(a, b Profile) int {
	if !GendersCompatible(a.Gender, b.Gender) {
		return 0
	}
	if !agesEligible(a.Age, b.Age) {
		return 0
	}

	score := regionScore(a.Region, b.Region) +
		rankScore(a.SkillRank, b.SkillRank) +
		ageScore(a.Age, b.Age)

	if score > MaxScore {
		score = MaxScore
	}
	return score
}

// GendersCompatible reports whether the fixed gender table permits the
// pairing. Unknown or missing categories on either side never pair.
func GendersCompatible(a, b Gender) bool {
	return genderTable[a][b]
}

// agesEligible applies the hard age policy: both adults, gap within
// MaxAgeGap, and a tighter guard when either side is exactly at MinAge.
func agesEligible(a, b int) bool {
	if a < MinAge || b < MinAge {
		return false
	}
	if ageGap(a, b) > MaxAgeGap {
		return false
	}
	if (a == MinAge && b > minAgeGuard) || (b == MinAge && a > minAgeGuard) {
		return false
	}
	return true
}

func ageGap(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// regionScore rewards geographic closeness: exact region, then shared
// super-region, then a small base bonus for any eligible pair.
func regionScore(a, b Region) int {
	if a == b {
		return 40
	}
	sa, oka := superRegion[a]
	sb, okb := superRegion[b]
	if oka && okb && sa == sb {
		return 25
	}
	return 10
}

// rankScore rewards closeness on the ordered rank scale. Unknown ranks on
// either side earn nothing.
func rankScore(a, b Rank) int {
	ia, oka := rankOrder[a]
	ib, okb := rankOrder[b]
	if !oka || !okb {
		return 0
	}
	dist := ia - ib
	if dist < 0 {
		dist = -dist
	}
	switch {
	case dist <= 1:
		return 30
	case dist <= 2:
		return 20
	case dist <= 3:
		return 10
	default:
		return 0
	}
}

// ageScore rewards age proximity, independent of the hard gate.
func ageScore(a, b int) int {
	switch gap := ageGap(a, b); {
	case gap <= 2:
		return 30
	case gap <= 5:
		return 20
	case gap <= 10:
		return 10
	default:
		return 0
	}
}
