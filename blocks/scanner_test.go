package blocks

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mgomes/capdispatch/dispatch"
	"github.com/mgomes/capdispatch/tick"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type computer string

func (c computer) ID() string             { return string(c) }
func (c computer) AttachmentName() string { return "top" }

type fixture struct {
	world    *World
	host     *Host
	loop     *tick.Loop
	registry *dispatch.Registry
}

func newFixture(t *testing.T, cfg Config, modules ...dispatch.ModuleID) *fixture {
	t.Helper()
	world := NewWorld("overworld")
	world.Set(Pos{X: 11, Y: 64, Z: -3}, Block{Name: "minecraft:stone"})
	world.Set(Pos{X: 10, Y: 65, Z: -3}, Block{Name: "minecraft:furnace", State: map[string]string{"facing": "north"}})

	loc := &Location{World: world, Pos: Pos{X: 10, Y: 64, Z: -3}}
	registry := dispatch.NewRegistry(dispatch.Config{Strict: true}, nil)
	require.NoError(t, registry.RegisterAll(ScannerMethods(cfg)...))

	loop := tick.New(tick.Config{Period: time.Millisecond}, nil)
	t.Cleanup(func() { _ = loop.Close() })
	return &fixture{
		world:    world,
		host:     NewHost("manipulator", loc, modules...),
		loop:     loop,
		registry: registry,
	}
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (f *fixture) wrap(t *testing.T, handler dispatch.CostHandler) *dispatch.Peripheral {
	t.Helper()
	p, err := f.registry.Wrap("manipulator", f.host.Context(handler), dispatch.SchedulingFactory(f.loop))
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func call(t *testing.T, p *dispatch.Peripheral, name string, args ...dispatch.Value) ([]dispatch.Value, error) {
	t.Helper()
	index, ok := p.Index(name)
	require.True(t, ok, "method %s not bound", name)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return p.Call(ctx, computer("0"), index, args)
}

func TestScannerAppliesOnlyWithModule(t *testing.T) {
	with := newFixture(t, DefaultConfig(), ModuleScanner)
	p := with.wrap(t, nil)
	assert.Equal(t, []string{"getBlockMeta", "scan"}, p.MethodNames())

	bare := newFixture(t, DefaultConfig())
	none, err := bare.registry.Wrap("manipulator", bare.host.Context(nil), nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	noLocation := NewHost("floating", nil, ModuleScanner)
	none, err = with.registry.Wrap("manipulator", noLocation.Context(nil), nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	stripped := with.host.WithoutModules(ModuleScanner)
	assert.Empty(t, stripped.Modules())
	assert.True(t, with.host.HasModule(ModuleScanner))
	none, err = with.registry.Wrap("manipulator", stripped.Context(nil), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGetBlockMeta(t *testing.T) {
	f := newFixture(t, DefaultConfig(), ModuleScanner)
	f.run(t)
	p := f.wrap(t, nil)

	values, err := call(t, p, "getBlockMeta", dispatch.NewInt(1), dispatch.NewInt(0), dispatch.NewInt(0))
	require.NoError(t, err)
	require.Len(t, values, 1)
	want := map[string]any{"x": int64(1), "y": int64(0), "z": int64(0), "name": "minecraft:stone"}
	if diff := cmp.Diff(want, values[0].Interface()); diff != "" {
		t.Fatalf("unexpected meta (-want +got):\n%s", diff)
	}

	values, err = call(t, p, "getBlockMeta", dispatch.NewInt(0), dispatch.NewFloat(1), dispatch.NewInt(0))
	require.NoError(t, err)
	want = map[string]any{
		"x": int64(0), "y": int64(1), "z": int64(0),
		"name":  "minecraft:furnace",
		"state": map[string]any{"facing": "north"},
	}
	if diff := cmp.Diff(want, values[0].Interface()); diff != "" {
		t.Fatalf("unexpected meta (-want +got):\n%s", diff)
	}
}

func TestGetBlockMetaOutOfBoundsSchedulesNothing(t *testing.T) {
	f := newFixture(t, Config{Radius: 2}, ModuleScanner)
	p := f.wrap(t, nil)

	_, err := call(t, p, "getBlockMeta", dispatch.NewInt(0), dispatch.NewInt(-3), dispatch.NewInt(0))
	require.ErrorIs(t, err, dispatch.ErrBadArgument)
	assert.EqualError(t, err, "Y coordinate out of bounds (between -2 and 2)")

	_, err = call(t, p, "getBlockMeta", dispatch.NewInt(0))
	assert.EqualError(t, err, "bad argument #2 (expected number, got no value)")

	assert.Zero(t, f.loop.Pending())
	assert.Zero(t, f.loop.Now())
}

func TestScan(t *testing.T) {
	f := newFixture(t, Config{Radius: 1}, ModuleScanner)
	f.run(t)
	p := f.wrap(t, nil)

	values, err := call(t, p, "scan")
	require.NoError(t, err)
	blocks := values[0].Array()
	require.Len(t, blocks, 27)

	first := blocks[0].Hash()
	assert.Equal(t, int64(-1), first["x"].Int())
	assert.Equal(t, int64(-1), first["y"].Int())
	assert.Equal(t, int64(-1), first["z"].Int())

	found := map[string]bool{}
	for _, b := range blocks {
		h := b.Hash()
		found[h["name"].String()] = true
		if h["name"].String() == "minecraft:stone" {
			assert.Equal(t, int64(1), h["x"].Int())
			assert.Equal(t, int64(0), h["y"].Int())
		}
	}
	assert.True(t, found["minecraft:stone"])
	assert.True(t, found["minecraft:furnace"])
	assert.True(t, found[Air])
}

func TestScanChargesFuel(t *testing.T) {
	f := newFixture(t, Config{Radius: 1, ScanCost: 30}, ModuleScanner)
	tank := dispatch.NewFuelTank(dispatch.CostConfig{Initial: 40, Regen: 10, Limit: 40})
	f.loop.OnTick(func(uint64) { tank.Regen() })
	f.run(t)
	p := f.wrap(t, tank)

	_, err := call(t, p, "scan")
	require.NoError(t, err)
	_, err = call(t, p, "scan")
	require.NoError(t, err, "second scan waits for regeneration")
	assert.GreaterOrEqual(t, f.loop.Now(), uint64(3))
}

func TestUnloadedWorldFailsCall(t *testing.T) {
	f := newFixture(t, DefaultConfig(), ModuleScanner)
	f.run(t)
	p := f.wrap(t, nil)
	f.world.Unload()

	_, err := call(t, p, "getBlockMeta", dispatch.NewInt(0), dispatch.NewInt(0), dispatch.NewInt(0))
	require.ErrorIs(t, err, ErrWorldUnloaded)
}
