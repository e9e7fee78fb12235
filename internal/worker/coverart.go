package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/internal/objectstore"
	"github.com/444radio/radio-be/internal/provider"
)

func wantsCoverArt(info *jobInfo) bool {
	return info.Type == domain.GenMusic && info.Params.Bool("generateCoverArt", false)
}

// generateCoverArt renders and stores the album cover of a music job and returns its URL.
// A failed cover leaves the track without artwork; only a cancelled job is reported.
func (w *Worker) generateCoverArt(ctx context.Context, info *jobInfo) (string, error) {
	logger := w.logger.With(slog.String("job_id", info.ID))
	req := provider.CoverArtRequest(info.Params.String("prompt"), info.Params.String("genre"))

	pred, err := w.provider.CreatePrediction(ctx, req)
	if err != nil {
		logger.Warn("Failed to start cover art", slog.String("error", err.Error()))
		return "", nil
	}

	done, err := w.pollPrediction(ctx, *info, pred.ID)
	if err != nil {
		if errors.Is(err, errJobCancelled) {
			return "", err
		}
		logger.Warn("Cover art did not finish", slog.String("error", err.Error()))
		return "", nil
	}

	files := done.OutputFiles()
	if done.Status != provider.StatusSucceeded || len(files) == 0 {
		logger.Warn("Cover art returned no image", slog.String("status", done.Status))
		return "", nil
	}

	name := truncate(info.Params.StringOr("title", "track"), 30) + "-cover." + req.Format
	key := objectstore.BuildKey(info.UserID, folderFor(domain.GenImage), name, w.now())
	url, err := w.artifacts.CopyFromURL(ctx, files[0].URL, key, objectstore.ContentTypeFor(name))
	if err != nil {
		logger.Warn("Failed to store cover art", slog.String("error", err.Error()))
		return "", nil
	}
	return url, nil
}
