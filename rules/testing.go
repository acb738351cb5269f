//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// BenchmarkLoop flags pre-Go-1.24 benchmark iteration. b.Loop() keeps
// setup out of the measured region and defeats dead-code elimination of
// the body.
func BenchmarkLoop(m dsl.Matcher) {
	m.Match(`for $i := 0; $i < $b.N; $i++ { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }; declare $i separately if the body needs it (Go 1.24+)")

	m.Match(`for $i := range $b.N { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }; declare $i separately if the body needs it (Go 1.24+)")

	m.Match(`for range $b.N { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... } (Go 1.24+)").
		Suggest("for $b.Loop() { $body }")
}

// TestingContext flags context.Background()/TODO() in test files where
// t.Context() would cancel with the test. Lifecycle tests that drive
// shutdown through other channels can suppress the report inline.
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx = context.Background()`,
		`$ctx := context.TODO()`,
		`$ctx = context.TODO()`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, prefer t.Context(); it is cancelled when the test completes (Go 1.24+)")
}
