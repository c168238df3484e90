package main

import (
	"fmt"
	"strings"

	"github.com/peterbourgon/flame"
)

// workload is an instrumented sample program: a recursive tree walk that
// renders a small report, with enough nesting to make a readable flamegraph.
func workload(depth int) string {
	defer flame.Enter().Exit()

	var sb strings.Builder
	for i := 0; i < 3; i++ {
		n := walk(depth)
		render(&sb, i, n, fib(depth+8))
	}
	return sb.String()
}

func walk(depth int) int {
	defer flame.Enter().Exit()

	if depth <= 0 {
		return leaf()
	}
	return 1 + walk(depth-1) + walk(depth-1)
}

func leaf() int {
	defer flame.Enter().Exit()

	return 1
}

func fib(n int) int {
	defer flame.Enter().Exit()

	a, b := 0, 1
	for i := 0; i < n; i++ {
		a, b = b, a+b
	}
	return a
}

func render(sb *strings.Builder, round, nodes, fib int) {
	defer flame.Enter().Exit()

	fmt.Fprintf(sb, "round %d: nodes=%d fib=%d\n", round, nodes, fib)
}
