//go:build ruleguard

// Package gorules holds the ruleguard rules golangci-lint runs through
// the gocritic ruleguard checker (see .golangci.yaml).
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the manual Add/Done pattern. Every component in this
// repo starts its goroutines with wg.Go (Go 1.25+), which cannot leave an
// Add without a matching Done.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done (Go 1.25+)").
		Suggest("$wg.Go(func() { $body })")

	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func() with defer $wg.Done() (Go 1.25+)")

	m.Match(`go func() { $*_; $wg.Done() }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }); a non-deferred Done is skipped on panic")

	m.Match(`$wg.Add($n)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") && m["n"].Const && m["n"].Value.Int() > 1).
		Report("prefer one $wg.Go() per goroutine over Add($n)")
}
