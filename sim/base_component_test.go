package sim

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLink_SharedParentPort_TransfersOwnership(t *testing.T) {
	// GIVEN a parent sharing an unconfigured port P with an anonymous child
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")

	var before, got *Link
	var child *probe
	h.on("a", func(p *probe) error {
		before = p.Info().LinkMap().GetLink("P")
		c, err := p.LoadAnonymousSubComponent(subType, "", 0, SharePorts, nil)
		child, _ = c.(*probe)
		return err
	})
	h.on("a:ANONYMOUS[0]", func(p *probe) error {
		var err error
		got, err = p.ConfigureLink("P", nil, NewEventHandler(func(Event) {}))
		return err
	})

	// WHEN the model is instantiated
	require.NoError(t, h.sim.Instantiate())

	// THEN the child holds the exact endpoint and the parent no longer does
	require.NotNil(t, before)
	assert.Same(t, before, got)
	assert.Nil(t, h.probe("a").Info().LinkMap().GetLink("P"))
	assert.Same(t, got, child.Info().LinkMap().GetLink("P"))
	assert.Equal(t, "a:ANONYMOUS[0]", got.Owner())
}

func TestConfigureLink_SharingDisabled_ReturnsNil(t *testing.T) {
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")

	var got *Link
	var called bool
	h.on("a", func(p *probe) error {
		_, err := p.LoadAnonymousSubComponent(subType, "", 0, ShareNone, nil)
		return err
	})
	h.on("a:ANONYMOUS[0]", func(p *probe) error {
		called = true
		var err error
		got, err = p.ConfigureLink("P", nil, nil)
		return err
	})

	require.NoError(t, h.sim.Instantiate())

	assert.True(t, called)
	assert.Nil(t, got)
	assert.NotNil(t, h.probe("a").Info().LinkMap().GetLink("P"), "parent keeps its port")
}

func TestConfigureLink_GrandparentPort_WalksUpWhileShared(t *testing.T) {
	// GIVEN a -> anon child (shares) -> anon grandchild (shares)
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")

	var got *Link
	h.on("a", func(p *probe) error {
		_, err := p.LoadAnonymousSubComponent(subType, "", 0, SharePorts, nil)
		return err
	})
	h.on("a:ANONYMOUS[0]", func(p *probe) error {
		assert.True(t, p.IsPortConnected("P"))
		_, err := p.LoadAnonymousSubComponent(subType, "", 0, SharePorts, nil)
		return err
	})
	h.on("a:ANONYMOUS[0]:ANONYMOUS[0]", func(p *probe) error {
		var err error
		got, err = p.ConfigureLink("P", nil, nil)
		return err
	})

	require.NoError(t, h.sim.Instantiate())

	require.NotNil(t, got)
	assert.True(t, got.IsPolling())
	assert.Equal(t, 0, h.probe("a").Info().LinkMap().Len())
}

func TestConfigureLink_ClaimedOnce_SecondChildGetsNil(t *testing.T) {
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")

	var first, second *Link
	h.on("a", func(p *probe) error {
		if _, err := p.LoadAnonymousSubComponent(subType, "", 0, SharePorts, nil); err != nil {
			return err
		}
		_, err := p.LoadAnonymousSubComponent(subType, "", 1, SharePorts, nil)
		return err
	})
	h.on("a:ANONYMOUS[0]", func(p *probe) (err error) {
		first, err = p.ConfigureLink("P", nil, nil)
		return err
	})
	h.on("a:ANONYMOUS[1]", func(p *probe) (err error) {
		second, err = p.ConfigureLink("P", nil, nil)
		return err
	})

	require.NoError(t, h.sim.Instantiate())
	assert.NotNil(t, first)
	assert.Nil(t, second)
}

func TestConfigureLink_Twice_IsConfigurationError(t *testing.T) {
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")
	h.connect("a", "R", "b", "S")

	var p1, r1 *Link
	var errTwice error
	h.on("a", func(p *probe) error {
		var err error
		if p1, err = p.ConfigureLink("P", nil, nil); err != nil {
			return err
		}
		if r1, err = p.ConfigureLink("R", nil, nil); err != nil {
			return err
		}
		_, errTwice = p.ConfigureLink("P", nil, nil)
		return nil
	})

	require.NoError(t, h.sim.Instantiate())

	// distinct names give independent endpoints
	require.NotNil(t, p1)
	require.NotNil(t, r1)
	assert.NotSame(t, p1, r1)
	// the same name twice is fatal
	require.Error(t, errTwice)
	assert.True(t, IsConfiguration(errTwice))
	assert.True(t, errors.Is(errTwice, ErrPortReconfigured))
}

func TestConfigureLink_Unconnected_ReturnsNilWithoutError(t *testing.T) {
	h := newHarness(t)
	h.add("a")
	h.on("a", func(p *probe) error {
		l, err := p.ConfigureLink("missing", nil, nil)
		assert.Nil(t, l)
		assert.False(t, p.IsPortConnected("missing"))
		return err
	})
	require.NoError(t, h.sim.Instantiate())
}

func TestConfigureLink_HandlerSelectsMode(t *testing.T) {
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")

	var push, pull *Link
	h.on("a", func(p *probe) (err error) {
		push, err = p.ConfigureLink("P", nil, NewEventHandler(func(Event) {}))
		return err
	})
	h.on("b", func(p *probe) (err error) {
		pull, err = p.ConfigureLink("Q", nil, nil)
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	assert.False(t, push.IsPolling())
	assert.True(t, pull.IsPolling())
	assert.True(t, push.IsConfigured())
}

func TestConfigureSelfLink(t *testing.T) {
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")

	var self *Link
	var dupErr error
	h.on("a", func(p *probe) error {
		_, dupErr = p.ConfigureSelfLink("P", nil, nil)
		var err error
		self, err = p.ConfigureSelfLink("loop", nil, nil)
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	// a collision with a linked port is fatal
	require.Error(t, dupErr)
	assert.True(t, IsConfiguration(dupErr))
	assert.True(t, errors.Is(dupErr, ErrDuplicatePort))

	// a fresh name yields a loopback endpoint
	require.NotNil(t, self)
	assert.True(t, self.IsSelfLink())
	assert.True(t, h.probe("a").Info().LinkMap().IsSelfPort("loop"))
	assert.False(t, h.probe("a").Info().LinkMap().IsSelfPort("P"))
}

func TestConfigureSelfLink_DeliversToItself(t *testing.T) {
	h := newHarness(t)
	h.add("a")
	var got []Event
	var self *Link
	h.on("a", func(p *probe) error {
		var err error
		self, err = p.ConfigureSelfLink("loop", h.sim.TimeLord().Nano(), NewEventHandler(func(ev Event) {
			got = append(got, ev)
		}))
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	require.NoError(t, self.Send(3, "x"))
	require.NoError(t, h.sim.Run())

	assert.Equal(t, []Event{"x"}, got)
	assert.Equal(t, SimTime(3000), h.sim.CurrentSimCycle())
}

func TestLoadNamedSubComponent_SingularSlot(t *testing.T) {
	t.Run("empty slot returns nil without warning", func(t *testing.T) {
		hook := test.NewGlobal()
		defer hook.Reset()
		h := newHarness(t)
		h.add("a")
		var c Component
		h.on("a", func(p *probe) (err error) {
			c, err = p.LoadNamedSubComponent("slot", ShareNone, nil)
			return err
		})
		require.NoError(t, h.sim.Instantiate())
		assert.Nil(t, c)
		for _, e := range hook.AllEntries() {
			assert.NotEqual(t, logrus.WarnLevel, e.Level, e.Message)
		}
	})

	t.Run("one declared sub-component is loaded", func(t *testing.T) {
		h := newHarness(t)
		h.add("a")
		h.declare("a", "slot", 0)
		var c Component
		h.on("a", func(p *probe) (err error) {
			c, err = p.LoadNamedSubComponent("slot", ShareNone, nil)
			return err
		})
		require.NoError(t, h.sim.Instantiate())
		require.NotNil(t, c)
		assert.Equal(t, "a:slot[0]", c.Base().Name())
		assert.False(t, c.Base().Info().IsAnonymous())
	})

	t.Run("two declared sub-components are fatal", func(t *testing.T) {
		h := newHarness(t)
		h.add("a")
		h.declare("a", "slot", 0)
		h.declare("a", "slot", 1)
		h.on("a", func(p *probe) error {
			_, err := p.LoadNamedSubComponent("slot", ShareNone, nil)
			return err
		})
		err := h.sim.Instantiate()
		require.Error(t, err)
		assert.True(t, IsConfiguration(err))
		assert.True(t, errors.Is(err, ErrSlotOverpopulated))
		assert.Contains(t, err.Error(), `"slot"`)
		assert.Contains(t, err.Error(), unitType)
	})
}

func TestLoadNamedSubComponent_UndocumentedSlot_Warns(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	h := newHarness(t)
	h.add("a")
	_, err := h.sim.DeclareSubComponent("a", "extra", 0, subType, nil)
	require.NoError(t, err)
	var c Component
	h.on("a", func(p *probe) (err error) {
		c, err = p.LoadNamedSubComponent("extra", ShareNone, nil)
		return err
	})

	require.NoError(t, h.sim.Instantiate())

	// loaded anyway
	assert.NotNil(t, c)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "extra", entry.Data["slot"])
	assert.Equal(t, unitType, entry.Data["type"])
}

func TestLoadNamedSubComponentAt_Twice_IsContractError(t *testing.T) {
	h := newHarness(t)
	h.add("a")
	h.declare("a", "slot", 0)
	var second error
	h.on("a", func(p *probe) error {
		if _, err := p.LoadNamedSubComponentAt("slot", 0, ShareNone, nil); err != nil {
			return err
		}
		_, second = p.LoadNamedSubComponentAt("slot", 0, ShareNone, nil)
		return nil
	})
	require.NoError(t, h.sim.Instantiate())
	assert.True(t, IsContract(second))
	assert.True(t, errors.Is(second, ErrAlreadyBuilt))
}

func TestLoadNamedSubComponentAt_ParamsAreDefaults(t *testing.T) {
	h := newHarness(t)
	h.add("a")
	_, err := h.sim.DeclareSubComponent("a", "slot", 0, subType, NewParams(map[string]string{"x": "configured"}))
	require.NoError(t, err)
	var c Component
	h.on("a", func(p *probe) (err error) {
		c, err = p.LoadNamedSubComponentAt("slot", 0, ShareNone,
			NewParams(map[string]string{"x": "default", "y": "default"}))
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	params := c.Base().Params()
	assert.Equal(t, "configured", params.String("x", ""))
	assert.Equal(t, "default", params.String("y", ""))
}

func TestLoadAnonymousSubComponent_UnknownType_RemovesNode(t *testing.T) {
	h := newHarness(t)
	h.add("a")
	var loadErr error
	h.on("a", func(p *probe) error {
		_, loadErr = p.LoadAnonymousSubComponent("t.nope", "", 0, ShareNone, nil)
		return nil
	})
	require.NoError(t, h.sim.Instantiate())

	require.Error(t, loadErr)
	assert.True(t, IsConfiguration(loadErr))
	assert.True(t, errors.Is(loadErr, ErrNotRegistered))
	assert.Empty(t, h.probe("a").Info().SubComponents())
}

func TestLoadAnonymousSubComponent_FailedClaimant_ReturnsPorts(t *testing.T) {
	// GIVEN a parent whose first anonymous child claims P and then fails
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")
	var before, returned, got *Link
	var nanoFactor uint64
	var firstErr error
	h.on("a", func(p *probe) error {
		tc, err := p.RegisterTimeBase("1ns", true)
		if err != nil {
			return err
		}
		nanoFactor = tc.Factor()
		before = p.Info().LinkMap().GetLink("P")
		_, firstErr = p.LoadAnonymousSubComponent(subType, "", 0, SharePorts, nil)
		returned = p.Info().LinkMap().GetLink("P")
		_, err = p.LoadAnonymousSubComponent(subType, "", 1, SharePorts, nil)
		return err
	})
	h.on("a:ANONYMOUS[0]", func(p *probe) error {
		if _, err := p.ConfigureLink("P", p.sim.TimeLord().Micro(), NewEventHandler(func(Event) {})); err != nil {
			return err
		}
		return errors.New("constructor failed")
	})
	h.on("a:ANONYMOUS[1]", func(p *probe) (err error) {
		got, err = p.ConfigureLink("P", nil, nil)
		return err
	})

	// WHEN the model is instantiated
	require.NoError(t, h.sim.Instantiate())

	// THEN the failed claim put P back on the parent untouched
	require.Error(t, firstErr)
	require.NotNil(t, before)
	assert.Same(t, before, returned)

	// AND the next claimant receives the same endpoint with the parent's time base
	assert.Same(t, before, got)
	assert.Equal(t, "a:ANONYMOUS[1]", got.Owner())
	assert.True(t, got.IsPolling())
	require.NotNil(t, got.DefaultTimeBase())
	assert.Equal(t, nanoFactor, got.DefaultTimeBase().Factor())
	assert.Nil(t, h.probe("a").Info().LinkMap().GetLink("P"))
}

func TestInheritedPort_DeclaredClaimant_ResetsTimeBase(t *testing.T) {
	// GIVEN a parent that set a 1ns default on its links before loading children
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")
	h.connect("a", "R", "b", "S")
	h.declare("a", "slot", 0)

	var declared, anonymous *Link
	h.on("a", func(p *probe) error {
		if _, err := p.RegisterTimeBase("1ns", true); err != nil {
			return err
		}
		if _, err := p.LoadNamedSubComponent("slot", SharePorts, nil); err != nil {
			return err
		}
		_, err := p.LoadAnonymousSubComponent(subType, "", 0, SharePorts, nil)
		return err
	})
	h.on("a:slot[0]", func(p *probe) (err error) {
		declared, err = p.ConfigureLink("P", nil, nil)
		return err
	})
	h.on("a:ANONYMOUS[0]", func(p *probe) (err error) {
		anonymous, err = p.ConfigureLink("R", nil, nil)
		return err
	})

	require.NoError(t, h.sim.Instantiate())

	// THEN the declared claimant starts unset and the anonymous one keeps 1ns
	assert.Nil(t, declared.DefaultTimeBase())
	assert.Same(t, h.sim.TimeLord().Nano(), anonymous.DefaultTimeBase())
}

func TestConfigureLink_TimeBasePrecedence(t *testing.T) {
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")
	h.connect("a", "R", "b", "S")

	var explicit, fallback *Link
	h.on("a", func(p *probe) error {
		p.SetDefaultTimeBase(h.sim.TimeLord().Nano())
		var err error
		if explicit, err = p.ConfigureLinkIn("P", "1us", nil); err != nil {
			return err
		}
		fallback, err = p.ConfigureLink("R", nil, nil)
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	assert.Same(t, h.sim.TimeLord().Micro(), explicit.DefaultTimeBase())
	assert.Same(t, h.sim.TimeLord().Nano(), fallback.DefaultTimeBase())
}

func TestRegisterTimeBase_PropagatesToAnonymousOnly(t *testing.T) {
	// GIVEN children that claimed parent ports before the parent chose a time base
	h := newHarness(t)
	h.add("a", "b")
	h.connect("a", "P", "b", "Q")
	h.connect("a", "R", "b", "S")
	h.declare("a", "slot", 0)

	h.on("a", func(p *probe) error {
		if _, err := p.LoadNamedSubComponent("slot", SharePorts, nil); err != nil {
			return err
		}
		if _, err := p.LoadAnonymousSubComponent(subType, "", 0, SharePorts, nil); err != nil {
			return err
		}
		// WHEN the parent propagates 1ns
		_, err := p.RegisterTimeBase("1ns", true)
		return err
	})
	h.on("a:slot[0]", func(p *probe) error {
		_, err := p.ConfigureLink("P", nil, nil)
		return err
	})
	h.on("a:ANONYMOUS[0]", func(p *probe) error {
		_, err := p.ConfigureLink("R", nil, nil)
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	// THEN the anonymous child's link picks it up and the declared child's does not
	declared := h.sim.InfoByName("a:slot[0]").LinkMap().GetLink("P")
	anonymous := h.sim.InfoByName("a:ANONYMOUS[0]").LinkMap().GetLink("R")
	assert.Same(t, h.sim.TimeLord().Nano(), anonymous.DefaultTimeBase())
	assert.Nil(t, declared.DefaultTimeBase())
	assert.Same(t, h.sim.TimeLord().Nano(), h.probe("a").DefaultTimeBase())
}

func TestSubComponentAs_WrongAPI(t *testing.T) {
	h := newHarness(t)
	h.add("a")
	var err error
	h.on("a", func(p *probe) error {
		_, err = SubComponentAs[Setupper](p, nil)
		assert.NoError(t, err, "probe implements Setupper")
		type widget interface{ Spin() }
		_, err = SubComponentAs[widget](p, nil)
		return nil
	})
	require.NoError(t, h.sim.Instantiate())
	assert.True(t, errors.Is(err, ErrWrongAPI))

	none, err := SubComponentAs[*probe](nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestTrueComponent_ResolvesTopLevel(t *testing.T) {
	h := newHarness(t)
	h.add("a")
	h.declare("a", "slot", 0)
	var sub Component
	h.on("a", func(p *probe) (err error) {
		sub, err = p.LoadNamedSubComponent("slot", ShareNone, nil)
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	assert.Same(t, h.probe("a"), sub.Base().TrueComponent())
	assert.Same(t, h.probe("a").BaseComponent, sub.Base().Parent())
	assert.Nil(t, h.probe("a").Parent())
}

func TestRNG_PerComponentStreams(t *testing.T) {
	h := newHarnessWith(t, SimulationConfig{Seed: 7})
	h.add("a", "b")
	require.NoError(t, h.sim.Instantiate())

	a, b := h.probe("a"), h.probe("b")
	assert.Same(t, a.RNG("x"), a.RNG("x"))
	assert.NotSame(t, a.RNG("x"), b.RNG("x"))
	assert.Same(t, h.sim.RNG().ForStream("a/x"), a.RNG("x"))
}

func TestLoadModule(t *testing.T) {
	h := newHarness(t)
	h.add("a")
	require.NoError(t, h.sim.Factory().LoadLibrary(Library{Name: "m", Register: func(r *Registrar) error {
		return r.Module(ElementDoc{Name: "echo"}, func(a ModuleArgs) (Module, error) {
			return a, nil
		})
	}}))
	var owned, free Module
	h.on("a", func(p *probe) (err error) {
		if owned, err = p.LoadModuleWithComponent("m.echo", nil); err != nil {
			return err
		}
		free, err = p.LoadModule("m.echo", nil)
		return err
	})
	require.NoError(t, h.sim.Instantiate())

	assert.Same(t, h.probe("a").BaseComponent, owned.(ModuleArgs).Owner)
	assert.Nil(t, free.(ModuleArgs).Owner)
}
