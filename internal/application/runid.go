package application

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run id length bounds, in hex characters.
const (
	minRunIDLength     = 12
	maxRunIDLength     = 64
	defaultRunIDLength = 24
)

// RunIDGenerator produces lowercase hex run identifiers that are unique across
// runs and restarts. Each id is a truncated SHA-256 over the optional commit,
// the current time in nanoseconds, a random UUID and extra random bytes.
type RunIDGenerator struct {
	length int
	now    func() time.Time
}

// NewRunIDGenerator creates a generator for ids of length hex characters,
// clamped to [12,64]. A zero length selects the default of 24.
func NewRunIDGenerator(length int) *RunIDGenerator {
	if length == 0 {
		length = defaultRunIDLength
	}
	length = max(minRunIDLength, min(length, maxRunIDLength))
	return &RunIDGenerator{length: length, now: time.Now}
}

// Length returns the number of hex characters each id has.
func (g *RunIDGenerator) Length() int {
	return g.length
}

// Generate returns a new run id. commit may be empty.
func (g *RunIDGenerator) Generate(commit string) string {
	var salt [16]byte
	_, _ = rand.Read(salt[:]) // crypto/rand.Read never returns an error on supported platforms.

	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(commit))))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(g.now().UnixNano(), 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(uuid.NewString()))
	h.Write([]byte{'|'})
	h.Write(salt[:])

	return hex.EncodeToString(h.Sum(nil))[:g.length]
}
