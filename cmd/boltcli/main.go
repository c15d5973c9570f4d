package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/neo4j-drivers/bolt-go/bolt"
	"github.com/neo4j-drivers/bolt-go/detect"
	"github.com/neo4j-drivers/bolt-go/explain"
	"github.com/neo4j-drivers/bolt-go/packstream"
	"github.com/neo4j-drivers/bolt-go/query"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("boltcli", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "boltcli — run a Cypher query over a Bolt connection\n\nUsage:\n  boltcli [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n  BOLT_PASSWORD    password, used when -password is not set\n")
	}

	addr := fs.String("addr", "localhost:7687", "server address")
	user := fs.String("user", "neo4j", "username")
	password := fs.String("password", "", "password (falls back to BOLT_PASSWORD)")
	db := fs.String("db", "", "target database (empty for server default)")
	cypher := fs.String("query", "UNWIND range(1, 3) AS n RETURN n", "Cypher query to run")
	doExplain := fs.Bool("explain", false, "run the query through EXPLAIN and print the plan instead of pulling records")
	doDetect := fs.Bool("detect", false, "enable the repeated-query burst detector and log alerts to stderr")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("boltcli %s\n", version)
		return
	}

	pass := *password
	if pass == "" {
		pass = os.Getenv("BOLT_PASSWORD")
	}

	if err := run(*addr, *user, pass, *db, *cypher, *doExplain, *doDetect); err != nil {
		log.Fatal(err)
	}
}

func run(addr, user, password, db, cypher string, doExplain, doDetect bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := bolt.Open(addr, user, password)
	if err != nil {
		return fmt.Errorf("boltcli: open: %w", err)
	}
	defer func() { _ = session.Close() }()

	// Closing the transport is the only cancellation primitive a
	// session exposes once a request is on the wire.
	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	if doDetect {
		det := detect.New(5, time.Second, 10*time.Second)
		session.Observer = func(queried string, _ map[string]bolt.Value, dur time.Duration) {
			r := det.Record(query.Normalize(queried), time.Now(), dur)
			if r.Alert != nil {
				log.Printf("[%s] N+1 detected: %q (%d times, %s total) in the last %s",
					session.TraceID, r.Alert.Query, r.Alert.Count, r.Alert.TotalDuration, time.Second)
			}
		}
	}

	if doExplain {
		client := explain.NewClient(session)
		result, err := client.Run(explain.Explain, cypher, nil, db)
		if err != nil {
			return fmt.Errorf("boltcli: explain: %w", err)
		}
		fmt.Println(result.Plan)
		return nil
	}

	result, err := session.Run(cypher, nil, db)
	if err != nil {
		return fmt.Errorf("boltcli: run: %w", err)
	}
	if _, err := session.Pull(result, -1); err != nil {
		return fmt.Errorf("boltcli: pull: %w", err)
	}
	if err := session.Sync(result); err != nil {
		return fmt.Errorf("boltcli: sync: %w", err)
	}

	for {
		rec, ok, err := session.Take(result)
		if err != nil {
			return fmt.Errorf("boltcli: take: %w", err)
		}
		if !ok {
			break
		}
		fmt.Println(renderRecord(rec))
	}
	return nil
}

func renderRecord(rec bolt.Record) string {
	parts := make([]string, len(rec))
	for i, v := range rec {
		parts[i] = renderValue(v)
	}
	return strings.Join(parts, ", ")
}

func renderValue(v bolt.Value) string {
	switch v.Kind {
	case packstream.KindNull:
		return "null"
	case packstream.KindInteger:
		return fmt.Sprintf("%d", v.Int)
	case packstream.KindString:
		return v.Str
	case packstream.KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case packstream.KindMap:
		parts := make([]string, 0, len(v.MapKeys))
		for _, k := range v.MapKeys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, renderValue(v.Map[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}
