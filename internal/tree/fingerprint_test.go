package tree

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEntries(n int) []Entry {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, Entry{
			Path:       fmt.Sprintf("dir%d/file%d.txt", i%5, i),
			Size:       int64(i * 100),
			ModifiedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return entries
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	entries := makeEntries(50)
	want := Fingerprint(entries)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]Entry, len(entries))
		copy(shuffled, entries)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		require.Equal(t, want, Fingerprint(shuffled), "shuffle %d changed the fingerprint", i)
	}
}

func TestFingerprint_SensitiveToPerturbation(t *testing.T) {
	entries := makeEntries(20)
	want := Fingerprint(entries)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		perturbed := make([]Entry, len(entries))
		copy(perturbed, entries)
		idx := rng.Intn(len(perturbed))

		switch rng.Intn(3) {
		case 0:
			perturbed[idx].Size += 1 + int64(rng.Intn(1000))
		case 1:
			perturbed[idx].ModifiedAt = perturbed[idx].ModifiedAt.Add(time.Duration(1+rng.Intn(3600)) * time.Second)
		case 2:
			perturbed[idx].Path += ".bak"
		}

		assert.NotEqual(t, want, Fingerprint(perturbed), "perturbation %d collided", i)
	}
}

func TestFingerprint_DirVsEmptyFile(t *testing.T) {
	mod := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asDir := []Entry{{Path: "x", ModifiedAt: mod, IsDir: true}}
	asEmptyFile := []Entry{{Path: "x", ModifiedAt: mod, Size: 0}}

	assert.NotEqual(t, Fingerprint(asDir), Fingerprint(asEmptyFile))
}

func TestFingerprint_Deterministic(t *testing.T) {
	entries := makeEntries(10)
	assert.Equal(t, Fingerprint(entries), Fingerprint(entries))
	assert.Equal(t, Fingerprint(nil), Fingerprint([]Entry{}))
}
