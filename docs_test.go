package bond_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/xraph/bond"
	remotememory "github.com/xraph/bond/remote/memory"
	"github.com/xraph/bond/source"
	"github.com/xraph/bond/store/memory"
)

func quickStartEngine(energy float64) (*bond.Engine, *remotememory.Client) {
	rc := remotememory.New()
	src := source.Func(func(_ context.Context, _ source.Context) (*bond.Reading, error) {
		at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
		return bond.NewReading(bond.UnknownDevice(), at, []byte(`{}`), bond.MustCanonicalize(energy), at), nil
	})

	eng := bond.New(
		bond.WithStore(memory.New()),
		bond.WithRemote(rc),
		bond.WithItems(bond.Item{
			Name:     "rooftop",
			Kind:     bond.Production,
			Category: bond.Hourly,
			Origin:   "building-1",
			Source:   src,
		}),
	)
	return eng, rc
}

// TestDocumentationExamples verifies the package documentation example runs.
func TestDocumentationExamples(t *testing.T) {
	eng, rc := quickStartEngine(875.409090909)

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer eng.Stop() //nolint:errcheck // test cleanup

	report := eng.RunCycle(ctx, bond.Hourly)
	if report.Reconciled != 1 || report.Abandoned != 0 {
		t.Fatalf("reconciled=%d abandoned=%d", report.Reconciled, report.Abandoned)
	}

	lr, err := eng.Verify(ctx, bond.Production)
	if err != nil {
		t.Fatal(err)
	}
	if lr.Records != 1 || lr.Total != 87540 {
		t.Errorf("ledger report = %+v", lr)
	}
	if n := len(rc.Mints()); n != 1 {
		t.Errorf("mints = %d, want 1", n)
	}
}

func ExampleEngine_RunCycle() {
	eng, _ := quickStartEngine(12.0)

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		fmt.Println(err)
		return
	}
	defer eng.Stop() //nolint:errcheck // example cleanup

	report := eng.RunCycle(ctx)
	lr, _ := eng.Verify(ctx, bond.Production)
	fmt.Println(report.Reconciled, lr.Records, lr.Total)
	// Output: 1 1 12.00
}
