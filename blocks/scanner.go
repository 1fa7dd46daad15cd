package blocks

import (
	"github.com/mgomes/capdispatch/dispatch"
)

// ModuleScanner is the module the scanner methods require.
const ModuleScanner dispatch.ModuleID = "scanner"

const scannerOwner = "blocks.Scanner"

// Config configures the scanner methods.
type Config struct {
	// Radius bounds how far from its host the scanner reaches.
	Radius int64 `mapstructure:"radius" yaml:"radius"`
	// ScanCost is the fuel charged per scan call.
	ScanCost float64 `mapstructure:"scan_cost" yaml:"scan_cost"`
}

func DefaultConfig() Config {
	return Config{Radius: 8}
}

// ScannerMethods returns the scanner module's methods for hosts.
func ScannerMethods(cfg Config) []dispatch.MethodSpec {
	radius := cfg.Radius
	if radius < 0 {
		radius = 0
	}
	target := dispatch.ClassOf[dispatch.ModuleContainer]()
	requires := []dispatch.ContextInfo{dispatch.Need[*Location]()}

	return []dispatch.MethodSpec{
		{
			Owner:       scannerOwner,
			Name:        "scan",
			Doc:         "function():table -- Scan all blocks in the vicinity",
			Target:      target,
			Context:     requires,
			Modules:     []dispatch.ModuleID{ModuleScanner},
			WorldThread: true,
			Build: dispatch.Func(func(ctx *dispatch.UnbakedContext, _ []dispatch.Value) (dispatch.Result, error) {
				return dispatch.AwaitCost(ctx.CostHandler(), cfg.ScanCost, func() (dispatch.Result, error) {
					loc, err := bakeLocation(ctx)
					if err != nil {
						return dispatch.Result{}, err
					}
					return dispatch.Values(dispatch.NewArray(scanAround(loc, radius))), nil
				})
			}),
		},
		{
			Owner:   scannerOwner,
			Name:    "getBlockMeta",
			Doc:     "function(x:integer, y:integer, z:integer):table -- Get metadata about a nearby block",
			Target:  target,
			Context: requires,
			Modules: []dispatch.ModuleID{ModuleScanner},
			Build: dispatch.Func(func(ctx *dispatch.UnbakedContext, args []dispatch.Value) (dispatch.Result, error) {
				offset, err := offsetArgs(args, radius)
				if err != nil {
					return dispatch.Result{}, err
				}
				return dispatch.NextTick(func() (dispatch.Result, error) {
					loc, err := bakeLocation(ctx)
					if err != nil {
						return dispatch.Result{}, err
					}
					block := loc.World.At(loc.Pos.Add(offset))
					return dispatch.Values(blockMeta(offset, block)), nil
				}), nil
			}),
		},
	}
}

func offsetArgs(args []dispatch.Value, radius int64) (Pos, error) {
	var coords [3]int64
	for i := range coords {
		n, err := dispatch.IntArg(args, i)
		if err != nil {
			return Pos{}, err
		}
		coords[i] = n
	}
	for i, label := range []string{"X", "Y", "Z"} {
		if err := dispatch.AssertBetween(coords[i], -radius, radius, label+" coordinate out of bounds (%s)"); err != nil {
			return Pos{}, err
		}
	}
	return Pos{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

func bakeLocation(ctx *dispatch.UnbakedContext) (*Location, error) {
	baked, err := ctx.Bake()
	if err != nil {
		return nil, err
	}
	return dispatch.RequireContext[*Location](baked)
}

func scanAround(loc *Location, radius int64) []dispatch.Value {
	side := 2*radius + 1
	out := make([]dispatch.Value, 0, side*side*side)
	for x := -radius; x <= radius; x++ {
		for y := -radius; y <= radius; y++ {
			for z := -radius; z <= radius; z++ {
				offset := Pos{X: x, Y: y, Z: z}
				block := loc.World.At(loc.Pos.Add(offset))
				out = append(out, dispatch.NewHash(map[string]dispatch.Value{
					"x":    dispatch.NewInt(x),
					"y":    dispatch.NewInt(y),
					"z":    dispatch.NewInt(z),
					"name": dispatch.NewString(block.Name),
				}))
			}
		}
	}
	return out
}

func blockMeta(offset Pos, block Block) dispatch.Value {
	meta := map[string]dispatch.Value{
		"x":    dispatch.NewInt(offset.X),
		"y":    dispatch.NewInt(offset.Y),
		"z":    dispatch.NewInt(offset.Z),
		"name": dispatch.NewString(block.Name),
	}
	if len(block.State) > 0 {
		state := make(map[string]dispatch.Value, len(block.State))
		for k, v := range block.State {
			state[k] = dispatch.NewString(v)
		}
		meta["state"] = dispatch.NewHash(state)
	}
	return dispatch.NewHash(meta)
}
