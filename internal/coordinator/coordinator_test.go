package coordinator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lyzr/flowr/common/logger"
	"github.com/lyzr/flowr/common/value"
	"github.com/lyzr/flowr/internal/executor"
	"github.com/lyzr/flowr/internal/manifest"
)

func twoFunctionManifest() *manifest.Manifest {
	outSub := ""
	return &manifest.Manifest{
		Functions: []manifest.RuntimeFunctionWire{
			{
				FunctionID:             0,
				FlowID:                 0,
				ImplementationLocation: "lib://const",
				OutputConnections: []manifest.OutputConnectionWire{
					{
						Source:     &manifest.SourceWire{Output: &outSub},
						FunctionID: 1,
						IONumber:   0,
						FlowID:     0,
					},
				},
			},
			{
				FunctionID:             1,
				FlowID:                 0,
				ImplementationLocation: "lib://sink",
				Inputs:                 []manifest.InputWire{{}},
			},
		},
	}
}

type constImpl struct{ out float64 }

func (c constImpl) Run(ctx context.Context, inputs []value.Value) (*value.Value, bool, error) {
	v := value.Of(c.out)
	return &v, false, nil
}

type sinkImpl struct{ received *[]value.Value }

func (s sinkImpl) Run(ctx context.Context, inputs []value.Value) (*value.Value, bool, error) {
	*s.received = append(*s.received, inputs...)
	return nil, false, nil
}

func TestCoordinatorRunDrivesSimplePipelineToCompletion(t *testing.T) {
	m := twoFunctionManifest()
	data, err := manifest.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var received []value.Value
	resolver := func(loc string) (executor.Implementation, error) {
		switch loc {
		case "lib://const":
			return constImpl{out: 7}, nil
		case "lib://sink":
			return sinkImpl{received: &received}, nil
		default:
			return nil, fmt.Errorf("unexpected lookup %q", loc)
		}
	}

	loader := func(ctx context.Context, url string) ([]byte, string, error) {
		return data, "", nil
	}

	c := New(loader, resolver, logger.New("error", "text"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome, err := c.Run(ctx, Submission{ManifestURL: "test://manifest", MaxParallelJobs: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.JobCount != 2 {
		t.Fatalf("expected 2 jobs dispatched, got %d", outcome.JobCount)
	}
	if len(received) != 1 || received[0].Raw() != float64(7) {
		t.Fatalf("expected sink to receive 7, got %v", received)
	}
}
