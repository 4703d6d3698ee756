package utils_test

import (
	"context"
	"path/filepath"
	"testing"
	"vouchbot/src-server/utils"
)

func TestOpenDatabase(t *testing.T) {
	// queries get printed by the debug hook
	t.Setenv("BUNDEBUG", "2")

	cfg := utils.DefaultConfig()
	cfg.VouchCountFile = filepath.Join(t.TempDir(), "vouchCount.json")
	cfg.DatabasePath = filepath.Join(t.TempDir(), "vouches.db")
	as := utils.NewAppState(cfg)
	defer as.GracefulShutdown()

	if err := as.OpenDatabase(); err != nil {
		t.Fatal(err)
	}

	var one int
	if err := as.BunDB.NewRaw("SELECT 1").Scan(context.Background(), &one); err != nil {
		t.Fatal(err)
	}
	if one != 1 {
		t.Errorf("SELECT 1 = %d", one)
	}
}
