package stats

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/kohakuhub/hub/internal/metadata"
)

// decayBase is the day-over-day weight applied to older download
// counts in the trending score, spec §4.I: score = Σ log(1+downloads) * 0.8^d.
const decayBase = 0.8

// DefaultWindowDays is the default D for the trending window.
const DefaultWindowDays = 7

// Ranked is one repository's computed trending score.
type Ranked struct {
	RepositoryID int64
	Score        float64
}

// Trending loads every repository's daily stats over the last
// windowDays and returns them ranked descending by score, restricted
// to repoType when non-empty.
func Trending(ctx context.Context, store metadata.Store, repos map[int64]metadata.RepoType, repoType metadata.RepoType, windowDays int, now time.Time) ([]Ranked, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	since := now.UTC().AddDate(0, 0, -(windowDays - 1)).Format("2006-01-02")

	rows, err := store.Stats().TrendingCandidates(ctx, since)
	if err != nil {
		return nil, err
	}

	today := now.UTC().Format("2006-01-02")

	perRepo := make(map[int64]float64)

	for _, row := range rows {
		if repoType != "" && repos[row.RepositoryID] != repoType {
			continue
		}

		d, err := daysAgo(today, row.Date)
		if err != nil || d < 0 || d >= windowDays {
			continue
		}

		weight := math.Pow(decayBase, float64(d))
		perRepo[row.RepositoryID] += math.Log(1+float64(row.DownloadSessions)) * weight
	}

	out := make([]Ranked, 0, len(perRepo))
	for id, score := range perRepo {
		out = append(out, Ranked{RepositoryID: id, Score: score})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	return out, nil
}

func daysAgo(today, date string) (int, error) {
	t1, err := time.Parse("2006-01-02", today)
	if err != nil {
		return 0, err
	}

	t2, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, err
	}

	return int(t1.Sub(t2).Hours() / 24), nil
}
