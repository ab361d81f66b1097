package utils

import (
	"context"
	"testing"
	"time"
)

func TestReleaseScriptInitialized(t *testing.T) {
	if releaseLockScript == nil {
		t.Fatalf("expected release script to be initialized")
	}
}

func TestRedisLocker_RejectsBadArguments(t *testing.T) {
	var nilLocker *RedisLocker
	if _, _, err := nilLocker.TryLock(context.Background(), "k", time.Second); err == nil {
		t.Fatalf("expected error for nil locker")
	}

	l := NewRedisLocker(nil)
	if _, ok, err := l.TryLock(context.Background(), "k", time.Second); err == nil || ok {
		t.Fatalf("expected error for nil client, got ok=%v err=%v", ok, err)
	}
}

func TestRedisConfigDefaults(t *testing.T) {
	c := RedisConfig{MinIdleConns: -1}.withDefaults()
	if c.PoolSize != 20 || c.MinIdleConns != 0 {
		t.Fatalf("unexpected pool defaults: %+v", c)
	}
	if c.DialTimeout != 3*time.Second || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected timeout defaults: %+v", c)
	}
}
