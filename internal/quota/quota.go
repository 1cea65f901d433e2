// Package quota implements the owner/repository budget arithmetic of
// spec §4.D over the typed metadata.Store accessors. No new
// dependency is introduced here: it is plain Go over nullable int64
// budgets, where a nil quota means "no upper bound".
package quota

import (
	"context"
	"fmt"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
)

// Bucket selects which of an owner's two budgets a repo's visibility
// draws from.
type Bucket int

const (
	BucketPrivate Bucket = iota
	BucketPublic
)

func (b Bucket) String() string {
	if b == BucketPrivate {
		return "private"
	}

	return "public"
}

// BucketFor returns the budget a repo with the given visibility draws
// from.
func BucketFor(private bool) Bucket {
	if private {
		return BucketPrivate
	}

	return BucketPublic
}

// Delta is the net byte change a commit or LFS upload will apply.
type Delta int64

// CheckCommit enforces spec §4.D's two simultaneous checks — owner
// budget and repo budget — against a prospective delta, before any
// staging side effect happens. A nil quota never rejects.
func CheckCommit(ctx context.Context, store metadata.Store, ownerID, repoID int64, bucket Bucket, repo *metadata.Repository, delta Delta) error {
	owner, err := store.Users().FindByID(ctx, ownerID)
	if err != nil {
		return err
	}

	ownerQuota, ownerUsed := ownerBudget(owner, bucket)
	if ownerQuota != nil && ownerUsed+int64(delta) > *ownerQuota {
		return apperr.NewQuotaExceeded(
			fmt.Sprintf("%s quota exceeded for owner %s", bucket, owner.Username))
	}

	if repo.QuotaBytes != nil && repo.UsedBytes+int64(delta) > *repo.QuotaBytes {
		return apperr.NewQuotaExceeded(
			fmt.Sprintf("quota exceeded for repository %s", repo.FullID))
	}

	return nil
}

func ownerBudget(owner *metadata.User, bucket Bucket) (quota *int64, used int64) {
	if bucket == BucketPrivate {
		return owner.PrivateQuotaBytes, owner.PrivateUsedBytes
	}

	return owner.PublicQuotaBytes, owner.PublicUsedBytes
}

// ApplyCommit atomically folds delta into both the owner's bucket and
// the repo's own used_bytes counter, called inside the same DB
// transaction that upserts File/Commit rows (spec §4.F step 7).
func ApplyCommit(ctx context.Context, tx metadata.Store, ownerID, repoID int64, bucket Bucket, delta Delta) error {
	privateDelta, publicDelta := int64(0), int64(0)
	if bucket == BucketPrivate {
		privateDelta = int64(delta)
	} else {
		publicDelta = int64(delta)
	}

	if err := tx.Users().ApplyUsageDelta(ctx, ownerID, privateDelta, publicDelta); err != nil {
		return err
	}

	return tx.Repositories().ApplyUsageDelta(ctx, repoID, int64(delta))
}

// Recalculate lists every live file under repo's tip branch, sums
// distinct LFS sha256 references once each, and writes the repo's
// used_bytes back — the "recalculate(repo)" operation of spec §4.D,
// also invoked by the periodic reconciler and by admins on demand.
func Recalculate(ctx context.Context, store metadata.Store, repo *metadata.Repository) (int64, error) {
	var total int64

	seenLFS := make(map[string]bool)

	after := ""

	for {
		files, err := store.Files().ListByPrefix(ctx, repo.ID, repo.DefaultBranch, "", after, 500)
		if err != nil {
			return 0, err
		}

		if len(files) == 0 {
			break
		}

		for _, f := range files {
			if f.IsDeleted {
				continue
			}

			if f.LFS {
				if seenLFS[f.SHA256] {
					continue
				}

				seenLFS[f.SHA256] = true
			}

			total += f.Size
		}

		after = files[len(files)-1].PathInRepo

		if len(files) < 500 {
			break
		}
	}

	repo.UsedBytes = total

	if _, err := store.Repositories().Update(ctx, repo); err != nil {
		return 0, err
	}

	return total, nil
}

// RecalculateOwner sums used_bytes across every repository owned by
// ownerID, split by visibility bucket, and writes the owner's two
// used-byte counters back.
func RecalculateOwner(ctx context.Context, store metadata.Store, ownerID int64) error {
	owner, err := store.Users().FindByID(ctx, ownerID)
	if err != nil {
		return err
	}

	repos, err := store.Repositories().List(ctx, metadata.RepositoryFilter{Author: owner.Username, Limit: 100000})
	if err != nil {
		return err
	}

	var privateUsed, publicUsed int64

	for _, r := range repos {
		if r.Private {
			privateUsed += r.UsedBytes
		} else {
			publicUsed += r.UsedBytes
		}
	}

	delta := struct{ private, public int64 }{
		private: privateUsed - owner.PrivateUsedBytes,
		public:  publicUsed - owner.PublicUsedBytes,
	}

	return store.Users().ApplyUsageDelta(ctx, ownerID, delta.private, delta.public)
}
