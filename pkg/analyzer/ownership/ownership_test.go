package ownership

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/panbanda/refmine/internal/testutil"
	"github.com/panbanda/refmine/internal/vcs"
	"github.com/panbanda/refmine/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(hash, author string, files map[string]int) *history.Commit {
	c := &history.Commit{Hash: hash, Author: author}
	for path, added := range files {
		c.Files = append(c.Files, history.FileChange{Path: path, Added: added})
	}
	return c
}

func TestCompute_TwoAuthors(t *testing.T) {
	r := testutil.NewGitRepo(t)
	r.Write("alice", "introduce", map[string]string{"A.java": testutil.Lines(100)})
	r.Write("bob", "extend", map[string]string{"A.java": testutil.Lines(110)})

	repo, err := vcs.NewGitOpener().PlainOpen(r.Path)
	require.NoError(t, err)
	idx, err := history.Build(context.Background(), repo, history.Options{})
	require.NoError(t, err)

	m := Compute(idx, "A.java")

	assert.Equal(t, 2, m.COMM)
	assert.Equal(t, 2, m.ADEV)
	assert.Equal(t, 2, m.DDEV)
	assert.InDelta(t, 100.0/110.0*100, m.OWN, 1e-9)
	assert.Equal(t, 0, m.MINOR, "10/110 is above the 5% threshold")
	assert.InDelta(t, 100.0, m.OEXP, 1e-9)
	assert.InDelta(t, 1.0, m.EXP, 1e-9)
}

func TestCompute_MinorBoundary(t *testing.T) {
	tests := []struct {
		name      string
		minor     int
		wantMinor int
	}{
		{"exactly five percent is not minor", 5, 0},
		{"below five percent is minor", 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := history.NewIndex([]*history.Commit{
				touch("c1", "alice", map[string]int{"f": 100 - tt.minor}),
				touch("c2", "bob", map[string]int{"f": tt.minor}),
			})
			m := Compute(idx, "f")
			assert.Equal(t, tt.wantMinor, m.MINOR)
		})
	}
}

func TestCompute_ZeroAdded(t *testing.T) {
	idx := history.NewIndex([]*history.Commit{
		touch("c1", "alice", map[string]int{"f": 0}),
		touch("c2", "bob", map[string]int{"f": 0}),
	})

	m := Compute(idx, "f")

	assert.Equal(t, 2, m.COMM)
	assert.Zero(t, m.OWN)
	assert.Zero(t, m.MINOR)
	assert.Zero(t, m.OEXP)
	assert.InDelta(t, 1.0, m.EXP, 1e-9)
}

func TestCompute_TieBreakFirstAuthor(t *testing.T) {
	idx := history.NewIndex([]*history.Commit{
		touch("c1", "alice", map[string]int{"f": 10, "g": 30}),
		touch("c2", "bob", map[string]int{"f": 10}),
	})

	m := Compute(idx, "f")

	assert.InDelta(t, 50.0, m.OWN, 1e-9)
	// alice wins the tie; her project-wide total is 40.
	assert.InDelta(t, 25.0, m.OEXP, 1e-9)
}

func TestCompute_GeometricMeanExperience(t *testing.T) {
	idx := history.NewIndex([]*history.Commit{
		touch("c1", "alice", map[string]int{"f": 1}),
		touch("c2", "alice", map[string]int{"f": 1}),
		touch("c3", "alice", map[string]int{"f": 1}),
		touch("c4", "alice", map[string]int{"f": 1}),
		touch("c5", "bob", map[string]int{"f": 1}),
	})

	m := Compute(idx, "f")

	assert.InDelta(t, 2.0, m.EXP, 1e-9)
	assert.Equal(t, 5, m.COMM)
	assert.Equal(t, 2, m.ADEV)
}

func TestCompute_UnknownPath(t *testing.T) {
	idx := history.NewIndex(nil)

	m := Compute(idx, "missing")

	assert.Zero(t, m.COMM)
	assert.Zero(t, m.ADEV)
	assert.Zero(t, m.EXP)
}

func TestCompute_Bounds(t *testing.T) {
	idx := history.NewIndex([]*history.Commit{
		touch("c1", "alice", map[string]int{"f": 7, "g": 3}),
		touch("c2", "bob", map[string]int{"f": 2}),
		touch("c3", "carol", map[string]int{"f": 1, "h": 40}),
	})

	m := Compute(idx, "f")

	assert.GreaterOrEqual(t, m.OWN, 0.0)
	assert.LessOrEqual(t, m.OWN, 100.0)
	assert.GreaterOrEqual(t, m.OEXP, 0.0)
	assert.LessOrEqual(t, m.OEXP, 100.0)
	assert.GreaterOrEqual(t, m.EXP, 0.0)
}

func TestCompute_SharesOverGeneratedHistory(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	authors := []string{"alice", "bob", "carol", "dave"}
	paths := []string{"a", "b", "c", "d", "e"}

	var commits []*history.Commit
	for i := range 60 {
		files := map[string]int{paths[rng.IntN(len(paths))]: rng.IntN(40)}
		if rng.IntN(3) == 0 {
			files[paths[rng.IntN(len(paths))]] = rng.IntN(5)
		}
		commits = append(commits, touch(fmt.Sprintf("c%d", i), authors[rng.IntN(len(authors))], files))
	}
	idx := history.NewIndex(commits)

	for _, path := range idx.Paths() {
		contributors := Contributors(idx, path)
		total := 0
		for _, c := range contributors {
			total += c.Added
		}
		m := Compute(idx, path)

		assert.GreaterOrEqual(t, m.COMM, 1, path)
		assert.LessOrEqual(t, m.OWN, 100.0, path)
		assert.LessOrEqual(t, m.OEXP, 100.0, path)
		if total == 0 {
			assert.Zero(t, m.OWN, path)
			assert.Zero(t, m.MINOR, path)
			continue
		}

		sum, minor := 0.0, 0
		for _, c := range contributors {
			share := float64(c.Added) / float64(total)
			sum += share
			if c.Added*100 < total*MinorThresholdPercent {
				minor++
			}
		}
		assert.InDelta(t, 1.0, sum, 1e-9, path)
		assert.Equal(t, minor, m.MINOR, path)
	}
}

func TestContributors(t *testing.T) {
	idx := history.NewIndex([]*history.Commit{
		touch("c1", "bob", map[string]int{"f": 3}),
		touch("c2", "alice", map[string]int{"f": 4}),
		touch("c3", "bob", map[string]int{"f": 5}),
	})

	got := Contributors(idx, "f")

	require.Len(t, got, 2)
	assert.Equal(t, Contributor{Name: "bob", Commits: 2, Added: 8}, got[0])
	assert.Equal(t, Contributor{Name: "alice", Commits: 1, Added: 4}, got[1])
}

func TestBusFactor(t *testing.T) {
	tests := []struct {
		name    string
		commits []*history.Commit
		want    int
	}{
		{"empty", nil, 0},
		{"single author", []*history.Commit{touch("c1", "alice", map[string]int{"f": 10})}, 1},
		{
			"dominant author",
			[]*history.Commit{
				touch("c1", "alice", map[string]int{"f": 80}),
				touch("c2", "bob", map[string]int{"f": 10}),
				touch("c3", "carol", map[string]int{"f": 10}),
			},
			1,
		},
		{
			"even split",
			[]*history.Commit{
				touch("c1", "alice", map[string]int{"f": 30}),
				touch("c2", "bob", map[string]int{"f": 30}),
				touch("c3", "carol", map[string]int{"f": 40}),
			},
			2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BusFactor(history.NewIndex(tt.commits)))
		})
	}
}

func TestTopContributors(t *testing.T) {
	idx := history.NewIndex([]*history.Commit{
		touch("c1", "alice", map[string]int{"f": 5}),
		touch("c2", "bob", map[string]int{"f": 50}),
		touch("c3", "carol", map[string]int{"f": 1}),
	})

	top := TopContributors(idx, 2)

	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].Name)
	assert.Equal(t, "alice", top[1].Name)
}
