package fleetsync

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/keyfleet/ticket-key-service/interfaces"
	"github.com/keyfleet/ticket-key-service/metrics"
)

// defaultPushParallelism bounds concurrent instance connections per push.
const defaultPushParallelism = 16

// Result is the outcome of pushing one key to one instance.
type Result struct {
	Instance interfaces.InstanceInfo
	Err      error
}

// Report aggregates per-instance push results. Partial success is a normal
// outcome: some instances accept while others are unreachable or reject.
type Report struct {
	Results []Result
}

// Succeeded returns the instances that acknowledged the push.
func (r Report) Succeeded() []interfaces.InstanceInfo {
	var out []interfaces.InstanceInfo
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res.Instance)
		}
	}
	return out
}

// Failed returns the results that carry an error.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Pusher fans a single key out to a set of instances in parallel. The
// fan-out is non-transactional and each instance either ends up with the
// key or reports why not.
type Pusher struct {
	client      *Client
	log         *slog.Logger
	parallelism int
}

// NewPusher creates a pusher over the given client.
func NewPusher(client *Client, log *slog.Logger) *Pusher {
	return &Pusher{client: client, log: log, parallelism: defaultPushParallelism}
}

// Push inserts material under keyID on every instance and reports the
// per-instance outcomes. One instance failing never stops the others.
func (p *Pusher) Push(ctx context.Context, instances []interfaces.InstanceInfo, keyID interfaces.KeyID, material interfaces.KeyMaterial) Report {
	results := make([]Result, len(instances))

	g := &errgroup.Group{}
	g.SetLimit(p.parallelism)
	for i, instance := range instances {
		g.Go(func() error {
			err := p.client.Insert(ctx, instance, keyID, material)
			results[i] = Result{Instance: instance, Err: err}
			if err != nil {
				metrics.FleetPush.WithLabelValues("error").Inc()
				p.log.Warn("key push failed",
					slog.String("instance", instance.Name),
					slog.String("key_id", keyID.String()),
					slog.String("err", err.Error()))
			} else {
				metrics.FleetPush.WithLabelValues("ok").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	return Report{Results: results}
}

// CompletionSet tracks which instances have already acknowledged a push so
// a retry driver never re-sends to them. Inserts are not idempotent, so
// "at most once per instance" is the correctness condition here, not an
// optimization. Safe for concurrent use.
type CompletionSet struct {
	mu   sync.Mutex
	done map[string]struct{}
}

// NewCompletionSet creates an empty completion set.
func NewCompletionSet() *CompletionSet {
	return &CompletionSet{done: make(map[string]struct{})}
}

// Record marks an instance as having acknowledged the push.
func (s *CompletionSet) Record(instance interfaces.InstanceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[instance.Name] = struct{}{}
}

// Done reports whether the instance has already acknowledged.
func (s *CompletionSet) Done(instance interfaces.InstanceInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[instance.Name]
	return ok
}

// Remaining filters out instances that have already acknowledged.
func (s *CompletionSet) Remaining(instances []interfaces.InstanceInfo) []interfaces.InstanceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []interfaces.InstanceInfo
	for _, instance := range instances {
		if _, ok := s.done[instance.Name]; !ok {
			out = append(out, instance)
		}
	}
	return out
}

// PushWithRetries drives Push through a completion set: each attempt only
// targets instances that have not yet acknowledged, and successes are
// recorded before the next attempt. The returned report covers the final
// state of every instance across all attempts.
func (p *Pusher) PushWithRetries(ctx context.Context, instances []interfaces.InstanceInfo, keyID interfaces.KeyID, material interfaces.KeyMaterial, attempts int, done *CompletionSet) Report {
	if done == nil {
		done = NewCompletionSet()
	}
	if attempts < 1 {
		attempts = 1
	}

	final := make(map[string]Result, len(instances))
	for attempt := 0; attempt < attempts; attempt++ {
		remaining := done.Remaining(instances)
		if len(remaining) == 0 {
			break
		}
		report := p.Push(ctx, remaining, keyID, material)
		for _, res := range report.Results {
			final[res.Instance.Name] = res
			if res.Err == nil {
				done.Record(res.Instance)
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	out := Report{Results: make([]Result, 0, len(instances))}
	for _, instance := range instances {
		if res, ok := final[instance.Name]; ok {
			out.Results = append(out.Results, res)
		} else {
			// Acknowledged before this call; nothing was sent.
			out.Results = append(out.Results, Result{Instance: instance})
		}
	}
	return out
}
