// Package idgen produces short, human-typeable, collision-resistant ids
// for issues, dependencies, and comments.
//
// Issue and dependency ids are sha256 hashes of their content, encoded in
// base36 and truncated to a length that scales with the current issue
// population. On collision the generator escalates: an incrementing nonce,
// then a longer hash, then the creation timestamp as a final nonce. The
// final fallback is not re-checked against the existing set; a collision
// there remains theoretically possible under extreme concurrent load and
// is an accepted gap.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Progressive id length thresholds: ids stay 4 chars up to 500 issues,
// 5 up to 1500, 6 up to 5000, and 7 beyond.
var lengthThresholds = []struct {
	maxCount int
	length   int
}{
	{500, 4},
	{1500, 5},
	{5000, 6},
}

// maxIDLength is the length used beyond the last threshold.
const maxIDLength = 7

// maxRetries bounds the nonce escalation before falling back to a longer hash.
const maxRetries = 100

// DepPrefix is the display prefix for generated dependency ids.
const DepPrefix = "dep"

// LengthForCount returns the id length appropriate for the current
// issue population.
func LengthForCount(count int) int {
	for _, t := range lengthThresholds {
		if count <= t.maxCount {
			return t.length
		}
	}
	return maxIDLength
}

func encodeBase36(data []byte) string {
	num := new(big.Int).SetBytes(data)
	if num.Sign() == 0 {
		return "0"
	}
	base := big.NewInt(36)
	mod := new(big.Int)
	var chars []byte
	for num.Sign() > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}
	for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars)
}

// HashID generates a hash-based id from input data. Deterministic for
// identical (input, nonce, length).
func HashID(input, nonce string, length int) string {
	sum := sha256.Sum256([]byte(input + nonce))
	encoded := encodeBase36(sum[:])
	if len(encoded) < length {
		encoded = strings.Repeat("0", length-len(encoded)) + encoded
	}
	return encoded[:length]
}

// IssueInput builds the canonical hash input for an issue id.
func IssueInput(title string, timestamp time.Time) string {
	return title + ":" + timestamp.Format(time.RFC3339Nano)
}

// Generator produces unique ids against a set of already-used full ids.
// It is not safe for concurrent use; each process invocation owns one.
type Generator struct {
	existing  map[string]bool
	namespace string
}

// New creates a Generator seeded with the given full ids.
func New(existing map[string]bool, namespace string) *Generator {
	if existing == nil {
		existing = make(map[string]bool)
	}
	if namespace == "" {
		namespace = "dc"
	}
	return &Generator{existing: existing, namespace: namespace}
}

// AddExisting records an id so later generations avoid it.
func (g *Generator) AddExisting(id string) {
	g.existing[id] = true
}

// IDLength returns the id length for the current population.
func (g *Generator) IDLength() int {
	return LengthForCount(len(g.existing))
}

// IssueID generates a unique issue id hash (without the namespace
// prefix), escalating through nonces, a longer hash, and finally the
// timestamp when collisions persist.
func (g *Generator) IssueID(title string, timestamp time.Time, namespace string) string {
	if namespace == "" {
		namespace = g.namespace
	}
	length := g.IDLength()
	input := IssueInput(title, timestamp)

	for attempt := 0; attempt < maxRetries; attempt++ {
		nonce := ""
		if attempt > 0 {
			nonce = strconv.Itoa(attempt)
		}
		candidate := HashID(input, nonce, length)
		full := namespace + "-" + candidate
		if !g.existing[full] {
			g.existing[full] = true
			return candidate
		}
	}

	// Longer hash before giving up on the standard length.
	fallbackLength := length + 2
	candidate := HashID(input, "", fallbackLength)
	full := namespace + "-" + candidate
	if !g.existing[full] {
		g.existing[full] = true
		return candidate
	}

	// Last resort: the invocation's high-resolution timestamp as nonce.
	// Not re-checked; see the package comment.
	candidate = HashID(input, strconv.FormatInt(timestamp.UnixMicro(), 10), fallbackLength)
	g.existing[namespace+"-"+candidate] = true
	return candidate
}

// DependencyID generates a display id for a dependency edge, hashing the
// ordered endpoint/type triple.
func (g *Generator) DependencyID(issueID, dependsOnID, depType string) string {
	input := fmt.Sprintf("%s:%s:%s", issueID, dependsOnID, depType)
	for attempt := 0; attempt < maxRetries; attempt++ {
		nonce := ""
		if attempt > 0 {
			nonce = strconv.Itoa(attempt)
		}
		candidate := DepPrefix + "-" + HashID(input, nonce, 4)
		if !g.existing[candidate] {
			g.existing[candidate] = true
			return candidate
		}
	}
	candidate := DepPrefix + "-" + HashID(input, "", 6)
	g.existing[candidate] = true
	return candidate
}

// CommentID generates a random comment id. Comments have no natural
// collision-prone content/timestamp pairing, so a UUID is used instead
// of a content hash.
func (g *Generator) CommentID() string {
	id := uuid.NewString()
	for g.existing[id] {
		id = uuid.NewString()
	}
	g.existing[id] = true
	return id
}
