package model

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// One row per posted vouch. The running number lives in the counter file,
// this table is only a history of who vouched for whom.
type Vouch struct {
	bun.BaseModel `bun:"table:vouches"`

	ID               string `bun:"id,pk"`                       // uuid, generated on insert
	Number           int    `bun:"number,notnull"`              // required
	GuildID          string `bun:"guild_id"`
	ChannelID        string `bun:"channel_id,notnull"`          // required, where the embed was posted
	VoucherID        string `bun:"voucher_id,notnull"`          // required
	TargetID         string `bun:"target_id"`                   // empty when vouching for the business
	Stars            int    `bun:"stars,notnull"`               // required, 1..5
	Message          string `bun:"message,notnull"`             // required
	ImageURL         string `bun:"image_url"`
	CreatedAtUnixUTC int64  `bun:"created_at_unix_utc,notnull"` // required
}

func (v *Vouch) Insert(ctx context.Context, db bun.IDB) error {
	if v.Number <= 0 {
		return fmt.Errorf("(*Vouch).Insert: number must be positive")
	}
	if v.ChannelID == "" {
		return fmt.Errorf("(*Vouch).Insert: channel id is required")
	}
	if v.VoucherID == "" {
		return fmt.Errorf("(*Vouch).Insert: voucher id is required")
	}
	if v.Stars < 1 || v.Stars > 5 {
		return fmt.Errorf("(*Vouch).Insert: stars out of range | stars=%d", v.Stars)
	}
	if v.Message == "" {
		return fmt.Errorf("(*Vouch).Insert: message is required")
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAtUnixUTC == 0 {
		v.CreatedAtUnixUTC = time.Now().UTC().Unix()
	}

	if _, err := db.NewInsert().
		Model(v).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Vouch).Insert: %w", err)
	}
	return nil
}

// CountVouches returns how many vouches were recorded, all targets included.
func CountVouches(ctx context.Context, db bun.IDB) (int, error) {
	count, err := db.NewSelect().
		Model((*Vouch)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountVouches: %w", err)
	}
	return count, nil
}

// CountVouchesFor returns how many vouches targetID received.
func CountVouchesFor(ctx context.Context, db bun.IDB, targetID string) (int, error) {
	count, err := db.NewSelect().
		Model((*Vouch)(nil)).
		Where("target_id = ?", targetID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountVouchesFor: %w", err)
	}
	return count, nil
}
