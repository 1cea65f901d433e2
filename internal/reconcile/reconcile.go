// Package reconcile implements the only partial-failure window spec
// §4.F/§9 names: a DB transaction failure after the VOS commit call
// leaves the versioned store ahead of the metadata index. Reconcile
// polls VOS commit history for each active (repo, branch) and
// re-derives any Commit/File rows missing from the metadata store.
// Grounded on components/consumer/internal/bootstrap/consumer.go's
// "cooperative task with its own Run(l) error" shape, generalized from
// an AMQP consume loop to an interval poll.
package reconcile

import (
	"context"
	"time"

	"github.com/kohakuhub/hub/internal/logging"
	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/platform/launcher"
	"github.com/kohakuhub/hub/internal/quota"
	"github.com/kohakuhub/hub/internal/storage/vos"
)

// Reconciler is a launcher.App that repairs the metadata index from
// VOS commit history on a fixed interval.
type Reconciler struct {
	Store    metadata.Store
	VOS      vos.Store
	Logger   logging.Logger
	Interval time.Duration
}

// Run polls every active repository's default branch once per
// Interval until the launcher shuts the process down. Interval
// defaults to one minute when unset.
func (r *Reconciler) Run(l *launcher.Launcher) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := r.reconcileOnce(context.Background()); err != nil {
			l.Logger.Errorf("reconcile: pass failed: %s", err)
		}
	}

	return nil
}

func (r *Reconciler) reconcileOnce(ctx context.Context) error {
	repos, err := r.Store.Repositories().List(ctx, metadata.RepositoryFilter{Limit: 100000})
	if err != nil {
		return err
	}

	for i := range repos {
		if err := r.ReconcileRepo(ctx, &repos[i]); err != nil {
			r.Logger.Warnf("reconcile: repo %s failed: %s", repos[i].FullID, err)
		}
	}

	return nil
}

// ReconcileRepo implements the detection+repair described in spec §9:
// walk VOS's commit log for repo's default branch, and for every
// commit id VOS knows about but the Commit table doesn't, re-derive
// the File rows for every path VOS reports as of that commit and
// insert the missing Commit row.
func (r *Reconciler) ReconcileRepo(ctx context.Context, repo *metadata.Repository) error {
	after := ""

	for {
		commits, err := r.VOS.LogCommits(ctx, repo.VOSRepoName, repo.DefaultBranch, after, 100)
		if err != nil {
			return err
		}

		if len(commits) == 0 {
			break
		}

		for _, c := range commits {
			exists, err := r.Store.Commits().Exists(ctx, repo.ID, c.ID)
			if err != nil {
				return err
			}

			if exists {
				continue
			}

			if err := r.rederive(ctx, repo, c); err != nil {
				return err
			}
		}

		after = commits[len(commits)-1].ID

		if len(commits) < 100 {
			break
		}
	}

	return nil
}

// rederive re-populates the File index from VOS's object listing at
// commit c and inserts the missing Commit row. It does not touch the
// repo's or owner's used_bytes counters.
func (r *Reconciler) rederive(ctx context.Context, repo *metadata.Repository, c vos.CommitResult) error {
	return r.Store.WithTx(ctx, func(ctx context.Context, tx metadata.Store) error {
		after := ""

		for {
			objs, err := r.VOS.ListObjects(ctx, repo.VOSRepoName, c.ID, "", after, 500)
			if err != nil {
				return err
			}

			if len(objs) == 0 {
				break
			}

			for _, obj := range objs {
				if err := tx.Files().Upsert(ctx, &metadata.File{
					RepositoryID: repo.ID, Branch: repo.DefaultBranch, PathInRepo: obj.Path,
					SHA256: obj.Checksum, Size: obj.SizeBytes,
				}); err != nil {
					return err
				}
			}

			after = objs[len(objs)-1].Path

			if len(objs) < 500 {
				break
			}
		}

		if _, err := tx.Commits().Create(ctx, &metadata.Commit{
			CommitID: c.ID, RepositoryID: repo.ID, RepoType: repo.RepoType,
			Branch: repo.DefaultBranch, Username: c.Committer, Message: c.Message,
		}); err != nil {
			return err
		}

		return nil
	})
}

// RecalculateAfter folds the reconciled index back into the repo's and
// owner's used_bytes counters (spec §4.D). Run and ReconcileRepo do not
// call it; a repair pass leaves the counters unchanged.
func (r *Reconciler) RecalculateAfter(ctx context.Context, repo *metadata.Repository) error {
	if _, err := quota.Recalculate(ctx, r.Store, repo); err != nil {
		return err
	}

	return quota.RecalculateOwner(ctx, r.Store, repo.OwnerID)
}
