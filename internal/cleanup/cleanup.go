// Package cleanup plans and executes retention over the lineage store's job
// records: duplicate jobs produced by re-registrations are grouped, the
// newest runs kept, and the remainder deleted.
package cleanup

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lineforge/lineforge/pkg/core"
)

// Strategy selects how jobs are considered duplicates of each other.
type Strategy string

const (
	// StrategyDataset groups jobs writing the same output dataset.
	StrategyDataset Strategy = "dataset"
	// StrategyNode groups jobs whose normalized names match, stripping
	// version and run-hash suffixes.
	StrategyNode Strategy = "node"
)

// ParseStrategy validates a strategy name from user input.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(s)) {
	case StrategyDataset:
		return StrategyDataset, nil
	case StrategyNode:
		return StrategyNode, nil
	default:
		return "", fmt.Errorf("unknown cleanup strategy %q (expected dataset or node)", s)
	}
}

// Group is a set of jobs considered duplicates of one another.
type Group struct {
	// Key identifies the group: a dataset key or a normalized job name.
	Key string
	// Jobs is ordered newest first.
	Jobs []core.Job
}

var (
	versionSuffix = regexp.MustCompile(`_v\d+$`)
	numericSuffix = regexp.MustCompile(`_?\d{6,}$`)
	runSuffix     = regexp.MustCompile(`_jr_[0-9a-f]+$`)
)

// NormalizeJobName strips the generated suffixes that multiply job records:
// "_v<n>" version tags, long numeric timestamps, and "_jr_<hash>" run tags.
// Stripping repeats until the name is stable, since suffixes stack.
func NormalizeJobName(name string) string {
	for {
		next := runSuffix.ReplaceAllString(name, "")
		next = versionSuffix.ReplaceAllString(next, "")
		next = numericSuffix.ReplaceAllString(next, "")
		if next == name || next == "" {
			return name
		}
		name = next
	}
}

// groupKeys returns every group key a job belongs to under the strategy.
// Dataset grouping uses output datasets; a job with no outputs falls back
// to its inputs, and finally to its own name so it is never invisible.
func groupKeys(job core.Job, strategy Strategy) []string {
	if strategy == StrategyNode {
		return []string{job.Namespace + "::" + NormalizeJobName(job.Name)}
	}

	refs := job.Outputs
	if len(refs) == 0 {
		refs = job.Inputs
	}
	if len(refs) == 0 {
		return []string{"job::" + job.Key()}
	}
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		keys = append(keys, ref.Key())
	}
	return keys
}

// GroupJobs partitions jobs into duplicate groups under the strategy.
// Jobs that land in more than one group are ambiguous: deleting them from
// one group could orphan another, so they are returned separately and never
// planned for deletion.
func GroupJobs(jobs []core.Job, strategy Strategy) (groups []Group, ambiguous []core.Job) {
	byKey := make(map[string][]core.Job)
	keyCount := make(map[string]int)
	for _, job := range jobs {
		keys := groupKeys(job, strategy)
		keyCount[job.Key()] = len(keys)
		for _, key := range keys {
			byKey[key] = append(byKey[key], job)
		}
	}

	ambiguousSet := make(map[string]struct{})
	for _, job := range jobs {
		if keyCount[job.Key()] > 1 {
			ambiguousSet[job.Key()] = struct{}{}
			ambiguous = append(ambiguous, job)
		}
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		members := byKey[key]
		kept := members[:0]
		for _, job := range members {
			if _, skip := ambiguousSet[job.Key()]; !skip {
				kept = append(kept, job)
			}
		}
		if len(kept) == 0 {
			continue
		}
		sortNewestFirst(kept)
		groups = append(groups, Group{Key: key, Jobs: kept})
	}
	sort.Slice(ambiguous, func(i, j int) bool { return ambiguous[i].Key() < ambiguous[j].Key() })
	return groups, ambiguous
}

// sortNewestFirst orders jobs by their rank time descending. Equal times
// break the tie on run id, greatest first, so ordering is total and two
// plans over the same records always agree.
func sortNewestFirst(jobs []core.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		ti, tj := jobs[i].RankTime(), jobs[j].RankTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return jobs[i].RunID > jobs[j].RunID
	})
}

// Plan is the outcome of a retention pass: which jobs survive and which
// are scheduled for deletion. Execution consumes Delete in order.
type Plan struct {
	Strategy  Strategy
	Keep      int
	Groups    []Group
	Kept      []core.Job
	Delete    []core.Job
	Ambiguous []core.Job
}

// BuildPlan groups jobs and keeps the newest keep members of each group.
// keep values below 1 are clamped to 1: a plan never deletes every record
// of a job.
func BuildPlan(jobs []core.Job, strategy Strategy, keep int) *Plan {
	if keep < 1 {
		keep = 1
	}
	groups, ambiguous := GroupJobs(jobs, strategy)

	plan := &Plan{Strategy: strategy, Keep: keep, Groups: groups, Ambiguous: ambiguous}
	for _, g := range groups {
		for i, job := range g.Jobs {
			if i < keep {
				plan.Kept = append(plan.Kept, job)
			} else {
				plan.Delete = append(plan.Delete, job)
			}
		}
	}
	return plan
}

// RunDeletion is one run record scheduled for removal.
type RunDeletion struct {
	Namespace string
	Job       string
	Run       core.JobRun
}

// RunPrunePlan is the outcome of a run-history retention pass across jobs.
type RunPrunePlan struct {
	Keep      int
	TotalRuns int
	KeptRuns  int
	Delete    []RunDeletion
}

// pruneRuns splits a job's run records into the keep newest and the rest.
// Records order newest-first by creation time, run id breaking exact ties.
func pruneRuns(runs []core.JobRun, keep int) (kept, drop []core.JobRun) {
	sorted := make([]core.JobRun, len(runs))
	copy(sorted, runs)
	sort.Slice(sorted, func(i, j int) bool {
		ti, tj := sorted[i].RankTime(), sorted[j].RankTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) <= keep {
		return sorted, nil
	}
	return sorted[:keep], sorted[keep:]
}

// Stats describes the duplicate landscape without planning any deletion.
type Stats struct {
	TotalJobs       int
	Groups          int
	DuplicateGroups int
	Duplicates      int
	Ambiguous       int
	// TopGroups lists the largest duplicate groups, biggest first.
	TopGroups []Group
}

// BuildStats summarizes duplication under the strategy. TopGroups is capped
// at the limit; 0 means all duplicate groups.
func BuildStats(jobs []core.Job, strategy Strategy, limit int) *Stats {
	groups, ambiguous := GroupJobs(jobs, strategy)

	st := &Stats{TotalJobs: len(jobs), Groups: len(groups), Ambiguous: len(ambiguous)}
	var dups []Group
	for _, g := range groups {
		if len(g.Jobs) > 1 {
			st.DuplicateGroups++
			st.Duplicates += len(g.Jobs) - 1
			dups = append(dups, g)
		}
	}
	sort.SliceStable(dups, func(i, j int) bool { return len(dups[i].Jobs) > len(dups[j].Jobs) })
	if limit > 0 && len(dups) > limit {
		dups = dups[:limit]
	}
	st.TopGroups = dups
	return st
}
