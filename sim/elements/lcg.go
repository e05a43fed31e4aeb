package elements

import (
	"fmt"

	"github.com/inference-sim/simcore/sim"
)

var lcgDoc = sim.ElementDoc{
	Name:        "lcg",
	Description: "64-bit linear congruential generator",
	Params: []sim.ParamDoc{
		{Name: "seed", Description: "initial state; drawn from the owner's random stream when unset"},
	},
}

// LCG is a module producing a reproducible token sequence.
type LCG struct {
	state uint64
}

func newLCG(args sim.ModuleArgs) (sim.Module, error) {
	seed, err := args.Params.Uint64("seed", 0)
	if err != nil {
		return nil, fmt.Errorf("lcg: %w", err)
	}
	if !args.Params.Contains("seed") && args.Owner != nil {
		seed = args.Owner.RNG("lcg").Uint64()
	}
	return &LCG{state: seed}, nil
}

// Next advances the generator.
func (g *LCG) Next() uint64 {
	g.state = g.state*6364136223846793005 + 1442695040888963407
	return g.state
}
