package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkMap(t *testing.T) {
	m := NewLinkMap()
	l := &Link{}
	require.NoError(t, m.InsertLink("b", l))
	require.NoError(t, m.InsertLink("a", &Link{}))

	err := m.InsertLink("b", &Link{})
	assert.True(t, IsConfiguration(err))
	assert.ErrorIs(t, err, ErrDuplicatePort)

	assert.Equal(t, []string{"a", "b"}, m.Names())
	assert.Same(t, l, m.RemoveLink("b"))
	assert.Nil(t, m.RemoveLink("b"))
	assert.Equal(t, 1, m.Len())

	var empty *LinkMap
	assert.Nil(t, empty.GetLink("x"))
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.IsSelfPort("x"))
}

func TestLink_PollingReceivesInOrder(t *testing.T) {
	h := newHarness(t)
	h.add("a", "b")
	require.NoError(t, h.sim.Connect("a", "out", "b", "in", 2000))
	var out, in *Link
	h.on("a", func(p *probe) (err error) {
		out, err = p.ConfigureLinkIn("out", "1ns", NewEventHandler(func(Event) {}))
		return err
	})
	h.on("b", func(p *probe) (err error) {
		in, err = p.ConfigureLink("in", nil, nil)
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	require.NoError(t, out.Send(3, "late"))
	require.NoError(t, out.Send(1, "early"))
	require.NoError(t, out.SendIn(1, h.sim.TimeLord().Micro(), "much later"))
	require.NoError(t, h.sim.Run())

	assert.Equal(t, SimTime(1_002_000), h.sim.CurrentSimCycle())
	assert.Equal(t, Event("early"), in.Recv())
	assert.Equal(t, Event("late"), in.Recv())
	assert.Equal(t, Event("much later"), in.Recv())
	assert.Nil(t, in.Recv())
	assert.Equal(t, SimTime(2000), in.Latency())
}

func TestLink_SendWithoutTimeBase(t *testing.T) {
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")
	var out *Link
	h.on("a", func(p *probe) (err error) {
		out, err = p.ConfigureLink("P", nil, nil)
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	require.Nil(t, out.DefaultTimeBase())
	assert.NoError(t, out.Send(0, "now"))
	err := out.Send(5, "later")
	assert.True(t, IsContract(err))
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestLink_Send_OverflowIsInvalidTime(t *testing.T) {
	// GIVEN a link with 2ns latency whose sender counts in seconds
	h := newHarness(t)
	h.add("a", "b")
	require.NoError(t, h.sim.Connect("a", "out", "b", "in", 2000))
	var out *Link
	h.on("a", func(p *probe) (err error) {
		out, err = p.ConfigureLinkIn("out", "1s", nil)
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	// WHEN the delay does not fit in simulated time
	errScaled := out.Send(20_000_000, "too late")
	errSum := out.SendIn(math.MaxUint64, h.sim.TimeLord().TimeConverterForFactor(1), "wraps")

	// THEN both sends are refused and nothing is queued
	for _, err := range []error{errScaled, errSum} {
		assert.True(t, IsContract(err), "%v", err)
		assert.ErrorIs(t, err, ErrInvalidTime)
	}
	assert.Equal(t, 0, h.sim.queue.Len())
}
