// planpush uploads a compiled engine plan to blob storage (gs://bucket/key
// or a local store path) so other hosts can fetch it by reference with
// trtinfer or engineinfo. Pushing a reference that already holds a plan is
// a no-op.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"k8s.io/examples/AI/trtengine/pkg/blobs"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	plan := ""
	to := ""

	flag.StringVar(&plan, "plan", plan, "local path of the compiled engine plan")
	flag.StringVar(&to, "to", to, "destination reference, gs://bucket/key or a local path")
	klog.InitFlags(nil)
	flag.Parse()

	if plan == "" {
		return fmt.Errorf("must specify --plan")
	}
	if to == "" {
		return fmt.Errorf("must specify --to")
	}
	if _, err := os.Stat(plan); err != nil {
		return fmt.Errorf("engine plan %q: %w", plan, err)
	}

	return blobs.Push(ctx, plan, to)
}
