package metric

import (
	"context"
	"time"
	"vouchbot/src-server/model"
	"vouchbot/src-server/utils"
)

// database times a lookup on the target_id index.
func database(as *utils.AppState) (time.Duration, error) {
	start := time.Now()
	if _, err := as.BunDB.NewSelect().
		Model((*model.Vouch)(nil)).
		Where("target_id = ?", "").
		Exists(context.Background()); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
