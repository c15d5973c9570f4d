// Package explain runs EXPLAIN/PROFILE against a *bolt.Session and
// reads the resulting plan back out of the RUN response's SUCCESS
// metadata, which is where Bolt actually returns query plans — not as
// result rows.
package explain

import (
	"fmt"
	"time"

	"github.com/neo4j-drivers/bolt-go/bolt"
	"github.com/neo4j-drivers/bolt-go/packstream"
)

// Mode selects between EXPLAIN (plan only) and PROFILE (plan + actual
// execution statistics).
type Mode int

const (
	Explain Mode = iota
	Profile
)

func (m Mode) String() string {
	switch m {
	case Explain:
		return "EXPLAIN"
	case Profile:
		return "PROFILE"
	}
	return "EXPLAIN"
}

func (m Mode) prefix() string {
	switch m {
	case Explain:
		return "EXPLAIN "
	case Profile:
		return "PROFILE "
	}
	return "EXPLAIN "
}

// Result holds the output of an EXPLAIN/PROFILE query.
type Result struct {
	Plan     string
	Duration time.Duration
}

// Client wraps a *bolt.Session for running EXPLAIN/PROFILE queries.
type Client struct {
	session *bolt.Session
}

// NewClient creates a new Client from an existing, authenticated Session.
func NewClient(session *bolt.Session) *Client {
	return &Client{session: session}
}

// Run executes EXPLAIN or PROFILE for cypher against db (may be empty
// for the server's default database) with the given parameters, and
// returns the plan string Bolt reports in the RUN response's metadata.
func (c *Client) Run(mode Mode, cypher string, parameters map[string]bolt.Value, db string) (*Result, error) {
	start := time.Now()

	result, err := c.session.Run(mode.prefix()+cypher, parameters, db)
	if err != nil {
		return nil, fmt.Errorf("explain: run: %w", err)
	}

	plan := ""
	if run := result.Run(); run != nil {
		if _, err := c.session.Pull(result, -1); err != nil {
			return nil, fmt.Errorf("explain: pull: %w", err)
		}
		if err := c.session.Sync(result); err != nil {
			return nil, fmt.Errorf("explain: sync: %w", err)
		}
		if meta := run.Metadata(); meta != nil {
			if v, ok := meta["plan"]; ok {
				plan = renderPlan(v)
			} else if v, ok := meta["profile"]; ok {
				plan = renderPlan(v)
			}
		}
	}

	return &Result{
		Plan:     plan,
		Duration: time.Since(start),
	}, nil
}

// renderPlan flattens the plan metadata value (a nested map in the
// real protocol) into a readable string for CLI output.
func renderPlan(v bolt.Value) string {
	return fmt.Sprintf("%+v", formatValue(v))
}

func formatValue(v bolt.Value) any {
	switch v.Kind {
	case packstream.KindNull:
		return nil
	case packstream.KindInteger:
		return v.Int
	case packstream.KindString:
		return v.Str
	case packstream.KindList:
		items := make([]any, len(v.List))
		for i, item := range v.List {
			items[i] = formatValue(item)
		}
		return items
	case packstream.KindMap:
		out := make(map[string]any, len(v.Map))
		for k, val := range v.Map {
			out[k] = formatValue(val)
		}
		return out
	default:
		return nil
	}
}
