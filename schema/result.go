package schema

import (
	"fmt"
	"strings"
)

// ResultKind classifies the outcome of one dispatched operation.
type ResultKind int

// The four result kinds. Declaration order is the wire order from the
// original suite, not the aggregation precedence.
const (
	Fail ResultKind = iota
	XFail
	Pass
	UPass
)

var resultKindNames = map[ResultKind]string{
	Fail:  "FAIL",
	XFail: "XFAIL",
	Pass:  "PASS",
	UPass: "UPASS",
}

func (k ResultKind) String() string {
	if name, ok := resultKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ResultKind(%d)", int(k))
}

// Acceptable reports whether the kind counts as a successful run for the
// process exit code: PASS and XFAIL do, FAIL and UPASS do not.
func (k ResultKind) Acceptable() bool {
	return k == Pass || k == XFail
}

// aggregationOrder is the precedence used to fold a bucket set into one
// aggregate kind, highest first. A single FAIL dominates everything; an
// unexpected pass outranks expected failures so it cannot be silently
// missed.
var aggregationOrder = []ResultKind{Fail, UPass, XFail, Pass}

// Result is the atomic classification of one dispatched operation.
type Result struct {
	Kind ResultKind `json:"kind"`
	Text string     `json:"text"`
}

func (r Result) String() string {
	return r.Kind.String()
}

// ResultList is a multiset of Results partitioned into per-kind buckets.
// Its aggregate kind is a pure function of bucket membership, independent
// of insertion order, and merge is commutative and associative, so lists
// can be accumulated safely across parallel workers.
type ResultList struct {
	buckets map[ResultKind][]Result
}

// NewResultList returns an empty list.
func NewResultList() *ResultList {
	return &ResultList{buckets: map[ResultKind][]Result{}}
}

// Add appends r to the bucket for its kind.
func (l *ResultList) Add(r Result) {
	l.buckets[r.Kind] = append(l.buckets[r.Kind], r)
}

// Merge returns a new list whose buckets are the per-kind concatenation of
// both operands. Neither operand is modified.
func (l *ResultList) Merge(other *ResultList) *ResultList {
	merged := NewResultList()
	for _, kind := range aggregationOrder {
		merged.buckets[kind] = append(append([]Result{}, l.buckets[kind]...), other.buckets[kind]...)
	}
	return merged
}

// Kind returns the aggregate kind under the FAIL > UPASS > XFAIL > PASS
// precedence. The empty list aggregates to PASS.
func (l *ResultList) Kind() ResultKind {
	for _, kind := range aggregationOrder {
		if len(l.buckets[kind]) > 0 {
			return kind
		}
	}
	return Pass
}

// Fails returns the FAIL bucket.
func (l *ResultList) Fails() []Result { return l.buckets[Fail] }

// XFails returns the XFAIL bucket.
func (l *ResultList) XFails() []Result { return l.buckets[XFail] }

// Passes returns the PASS bucket.
func (l *ResultList) Passes() []Result { return l.buckets[Pass] }

// UPasses returns the UPASS bucket.
func (l *ResultList) UPasses() []Result { return l.buckets[UPass] }

// All returns every result across all buckets.
func (l *ResultList) All() []Result {
	var all []Result
	for _, kind := range aggregationOrder {
		all = append(all, l.buckets[kind]...)
	}
	return all
}

// Len returns the total number of results.
func (l *ResultList) Len() int {
	n := 0
	for _, bucket := range l.buckets {
		n += len(bucket)
	}
	return n
}

const summaryRule = "========================================"

// Summary renders the run report: itemized XFAIL, UPASS and FAIL entries in
// that order, per-kind counts, a grand total, the repository count and the
// final aggregate kind.
func (l *ResultList) Summary(repoCount int) string {
	var b strings.Builder

	writeSection := func(title string, results []Result) {
		if len(results) == 0 {
			return
		}
		b.WriteString(summaryRule + "\n")
		b.WriteString(title + "\n")
		for _, r := range results {
			b.WriteString("  " + r.Text + "\n")
		}
	}
	writeSection("XFailures:", l.XFails())
	writeSection("UPasses:", l.UPasses())
	writeSection("Failures:", l.Fails())

	b.WriteString(summaryRule + "\n")
	b.WriteString("Action Summary:\n")
	fmt.Fprintf(&b, "     Passed: %d\n", len(l.Passes()))
	fmt.Fprintf(&b, "     Failed: %d\n", len(l.Fails()))
	fmt.Fprintf(&b, "    XFailed: %d\n", len(l.XFails()))
	fmt.Fprintf(&b, "    UPassed: %d\n", len(l.UPasses()))
	fmt.Fprintf(&b, "      Total: %d\n", l.Len())
	b.WriteString(summaryRule + "\n")
	b.WriteString("Repository Summary:\n")
	fmt.Fprintf(&b, "      Total: %d\n", repoCount)
	b.WriteString(summaryRule + "\n")
	b.WriteString("Result: " + l.Kind().String() + "\n")
	b.WriteString(summaryRule)
	return b.String()
}
