package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/doorlink/internal/models"
	"github.com/starford/doorlink/internal/tree"
)

// Sync reads the tree and brings the index up to date:
//   - new/changed items are upserted
//   - items no longer in the tree are deleted from the index
func Sync(ctx context.Context, db ItemIndex, repo *tree.Repo, logger *slog.Logger) error {
	snap, err := repo.Snapshot(ctx)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	live := make(map[string]struct{})
	for _, item := range snap.All() {
		live[item.UID] = struct{}{}

		if checksums[item.UID] == item.Checksum {
			continue
		}
		if err := indexItem(db, item); err != nil {
			logger.Warn("sync: index failed", slog.String("uid", item.UID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("uid", item.UID))
		}
	}

	// Remove stale entries.
	for uid := range checksums {
		if _, ok := live[uid]; !ok {
			if err := db.DeleteItem(uid); err != nil {
				logger.Warn("sync: delete failed", slog.String("uid", uid), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("uid", uid))
			}
		}
	}

	return nil
}

func indexItem(db ItemIndex, item *models.Item) error {
	row := ItemRow{
		UID:       item.UID,
		Prefix:    item.Prefix,
		Path:      item.Path,
		Header:    item.Header,
		Checksum:  item.Checksum,
		Normative: item.Normative,
		Active:    item.Active,
		UpdatedAt: time.Now(),
	}
	return db.UpsertItem(row, item.Body, item.Links)
}
