package wander

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/google/uuid"
)

// DefaultSeed seeds worlds that were not given an explicit seed.
const DefaultSeed = "croptails"

var agentNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("croptails/agent"))

// DeterministicSeedValue derives a stable RNG seed from a root seed and a label.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG returns a generator seeded from rootSeed and label.
func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	if rootSeed == "" {
		rootSeed = DefaultSeed
	}
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// AgentID derives a stable identifier for the index-th spawn of a world.
func AgentID(rootSeed string, index int, species string) string {
	if rootSeed == "" {
		rootSeed = DefaultSeed
	}
	name := fmt.Sprintf("%s/%d/%s", rootSeed, index, species)
	return uuid.NewSHA1(agentNamespace, []byte(name)).String()
}

func randomFloat(rng *rand.Rand) float64 {
	if rng == nil {
		return NewDeterministicRNG(DefaultSeed, "wander").Float64()
	}
	return rng.Float64()
}

// RandomRange samples uniformly from [min, max). It returns min when the
// range is empty or inverted.
func RandomRange(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + randomFloat(rng)*(max-min)
}

// RandomInt samples uniformly from the inclusive range [min, max]. It returns
// min when max is below min.
func RandomInt(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	if rng == nil {
		rng = NewDeterministicRNG(DefaultSeed, "wander")
	}
	return min + rng.Intn(max-min+1)
}
