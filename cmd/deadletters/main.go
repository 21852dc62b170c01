// Package main inspects dead-lettered tasks: the Redis dead-letter list and
// the copies archived to S3.
//
//	deadletters list [-n 20]
//	deadletters show -key dead-letters/user_service/2024/02/15/<task_id>.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/config"
	"github.com/aura-platform/integrations/internal/pipeline"
	"github.com/aura-platform/integrations/pkg/logger"
	"github.com/aura-platform/integrations/pkg/queue"
	"github.com/aura-platform/integrations/pkg/redis"
)

func main() {
	log := logger.New(logger.Options{Level: "warn"})
	defer log.Sync()

	if len(os.Args) < 2 {
		usage()
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		n := fs.Int64("n", 20, "number of tasks from the head of the list")
		_ = fs.Parse(os.Args[2:])

		rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, log)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		if err := list(ctx, queue.NewQueue(rdb.Client, log), *n, os.Stdout); err != nil {
			log.Fatal("list dead letters", zap.Error(err))
		}
	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		key := fs.String("key", "", "archive object key")
		_ = fs.Parse(os.Args[2:])
		if *key == "" {
			usage()
		}

		archive, err := pipeline.OpenArchive(ctx, cfg.AWS, log)
		if err != nil {
			log.Fatal("open archive", zap.Error(err))
		}
		task, err := archive.Fetch(ctx, *key)
		if err != nil {
			log.Fatal("fetch archived task", zap.Error(err))
		}
		if err := writeJSON(os.Stdout, task); err != nil {
			log.Fatal("write task", zap.Error(err))
		}
	default:
		usage()
	}
}

// deadLetterLister is the read side of the queue this tool needs.
type deadLetterLister interface {
	DeadLetters(ctx context.Context, limit int64) ([]queue.Task, error)
	Depth(ctx context.Context) (queue.Depth, error)
}

// list prints the dead-letter count, then one line per task from the head of the list.
func list(ctx context.Context, q deadLetterLister, n int64, w io.Writer) error {
	d, err := q.Depth(ctx)
	if err != nil {
		return err
	}
	tasks, err := q.DeadLetters(ctx, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d dead-lettered task(s)\n", d.Dead)
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\tattempt=%d\t%s\n", t.ID, t.Service, t.Attempt, t.LastError)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: deadletters list [-n 20] | deadletters show -key <object key>")
	os.Exit(2)
}
