package utils_test

import (
	"testing"
	"time"
	"vouchbot/src-server/utils"
)

func TestHasAnyRole(t *testing.T) {
	allowed := []string{"10", "20"}
	if !utils.HasAnyRole([]string{"5", "20"}, allowed) {
		t.Error("member with role 20 should be allowed")
	}
	if utils.HasAnyRole([]string{"5"}, allowed) {
		t.Error("member without allowed roles should be denied")
	}
	if utils.HasAnyRole(nil, allowed) {
		t.Error("member without roles should be denied")
	}
	if utils.HasAnyRole([]string{"10"}, nil) {
		t.Error("nobody is allowed when no roles are configured")
	}
}

func TestCooldown(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		var nilCooldown *utils.Cooldown
		for range 3 {
			if !nilCooldown.Allow("u") || !utils.NewCooldown(0).Allow("u") {
				t.Fatal("disabled cooldown must allow everything")
			}
		}
	})

	t.Run("one per period", func(t *testing.T) {
		c := utils.NewCooldown(time.Hour)
		if !c.Allow("u1") {
			t.Error("first vouch should pass")
		}
		if c.Allow("u1") {
			t.Error("second vouch within the period should be refused")
		}
		if !c.Allow("u2") {
			t.Error("other users are unaffected")
		}

		// exhausted buckets are kept by Prune
		c.Prune()
		if c.Allow("u1") {
			t.Error("prune must not reset an exhausted user")
		}
	})
}
