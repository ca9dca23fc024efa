package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"productsnap/internal/infra"
)

func run(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(e)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func redisEnv(t *testing.T) (*env, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &env{cfg: &infra.Config{QueueName: "job_queue"}, logger: zerolog.Nop(), rdb: rdb}, rdb
}

func TestQueueCommands(t *testing.T) {
	e, rdb := redisEnv(t)
	rdb.RPush(context.Background(), "job_queue", "a", "b", "c")

	out, err := run(t, e, "queue", "len")
	if err != nil || strings.TrimSpace(out) != "3" {
		t.Fatalf("queue len = %q, %v", out, err)
	}

	e2, rdb2 := redisEnv(t)
	rdb2.RPush(context.Background(), "job_queue", "a", "b", "c")
	out, err = run(t, e2, "queue", "peek", "--n", "2")
	if err != nil || strings.Fields(out)[0] != "a" || len(strings.Fields(out)) != 2 {
		t.Fatalf("queue peek = %q, %v", out, err)
	}
}

func TestPlanSetValidatesBeforeConnecting(t *testing.T) {
	e := &env{cfg: &infra.Config{}, logger: zerolog.Nop()}
	if _, err := run(t, e, "plan", "set", "--user", "u1", "--plan", "platinum"); err == nil || !strings.Contains(err.Error(), "unsupported plan") {
		t.Fatalf("err = %v", err)
	}
	if _, err := run(t, e, "plan", "set", "--user", "u1", "--plan", "pro_monthly", "--status", "frozen"); err == nil || !strings.Contains(err.Error(), "unsupported status") {
		t.Fatalf("err = %v", err)
	}
	if _, err := run(t, e, "plan", "set", "--plan", "pro_monthly"); err == nil {
		t.Fatal("expected missing --user error")
	}
}
