package coordinator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowr/common/logger"
	"github.com/lyzr/flowr/common/metrics"
	"github.com/lyzr/flowr/common/value"
	"github.com/lyzr/flowr/internal/executor"
	"github.com/lyzr/flowr/internal/manifest"
	"github.com/lyzr/flowr/internal/runstate"
)

type memTraceStore struct {
	blobs map[string][]byte
}

func (s *memTraceStore) Put(_ context.Context, data []byte, _ string) (string, error) {
	id := fmt.Sprintf("blob-%d", len(s.blobs))
	s.blobs[id] = data
	return id, nil
}

func (s *memTraceStore) Get(_ context.Context, id string) ([]byte, error) {
	return s.blobs[id], nil
}

func TestCoordinatorWithTraceRecordsEveryCompletedJob(t *testing.T) {
	m := twoFunctionManifest()
	data, err := manifest.Marshal(m)
	require.NoError(t, err)

	resolver := func(loc string) (executor.Implementation, error) {
		switch loc {
		case "lib://const":
			return constImpl{out: 9}, nil
		case "lib://sink":
			return sinkImpl{received: &[]value.Value{}}, nil
		default:
			return nil, fmt.Errorf("unexpected lookup %q", loc)
		}
	}
	loader := func(ctx context.Context, url string) ([]byte, string, error) { return data, "", nil }

	trace := &memTraceStore{blobs: map[string][]byte{}}
	c := New(loader, resolver, logger.New("error", "text")).WithTrace(trace)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.Run(ctx, Submission{ManifestURL: "test://manifest", MaxParallelJobs: 2})
	require.NoError(t, err)
	require.NotEmpty(t, trace.blobs, "each completed job should have traced its inputs and result")
}

func TestCoordinatorWithMetricsHookFiresPerJob(t *testing.T) {
	m := twoFunctionManifest()
	data, err := manifest.Marshal(m)
	require.NoError(t, err)

	resolver := func(loc string) (executor.Implementation, error) {
		switch loc {
		case "lib://const":
			return constImpl{out: 3}, nil
		case "lib://sink":
			return sinkImpl{received: &[]value.Value{}}, nil
		default:
			return nil, fmt.Errorf("unexpected lookup %q", loc)
		}
	}
	loader := func(ctx context.Context, url string) ([]byte, string, error) { return data, "", nil }

	var hookCalls int
	c := New(loader, resolver, logger.New("error", "text")).
		WithMetricsHook(func(job *runstate.Job, m *metrics.RuntimeMetrics) { hookCalls++ })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome, err := c.Run(ctx, Submission{ManifestURL: "test://manifest", MaxParallelJobs: 2})
	require.NoError(t, err)
	require.EqualValues(t, hookCalls, outcome.JobCount, "metrics hook should fire once per dispatched job")
}
