package bus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/partbus/internal/core/backpressure"
)

func TestConsumerGroup_RegisterAfterFinalize_Fails(t *testing.T) {
	g := newConsumerGroup("g", 2)
	_, err := g.registerConsumer()
	require.NoError(t, err)
	require.NoError(t, g.finalize())

	_, err = g.registerConsumer()
	require.ErrorIs(t, err, errAlreadyFinalized)
}

func TestConsumerGroup_FinalizeTwice_Fails(t *testing.T) {
	g := newConsumerGroup("g", 1)
	_, err := g.registerConsumer()
	require.NoError(t, err)
	require.NoError(t, g.finalize())
	require.ErrorIs(t, g.finalize(), errAlreadyFinalized)
}

func TestConsumerGroup_FinalizeWithNoConsumers_Fails(t *testing.T) {
	g := newConsumerGroup("g", 1)
	require.ErrorIs(t, g.finalize(), errNoConsumers)
}

func TestConsumerGroup_DeliverBeforeFinalize_Panics(t *testing.T) {
	g := newConsumerGroup("g", 1)
	_, err := g.registerConsumer()
	require.NoError(t, err)

	require.Panics(t, func() {
		g.deliver(NewEvent("t", nil), 0, backpressure.DefaultConfig())
	})
}

// TestConsumerGroup_PartitionAssignment_RoundRobin covers p mod k directly
// through each consumer's assigned queue count rather than through Publish.
func TestConsumerGroup_PartitionAssignment_RoundRobin(t *testing.T) {
	g := newConsumerGroup("g", 5)
	for i := 0; i < 2; i++ {
		_, err := g.registerConsumer()
		require.NoError(t, err)
	}
	require.NoError(t, g.finalize())

	// partitions 0,2,4 -> consumer 0; partitions 1,3 -> consumer 1.
	require.Len(t, g.consumers[0].queues, 3)
	require.Len(t, g.consumers[1].queues, 2)
}
