package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/mgomes/capdispatch/blocks"
	"github.com/mgomes/capdispatch/dispatch"
	"github.com/mgomes/capdispatch/internal/config"
	"github.com/mgomes/capdispatch/tick"
)

// computer is the access handle the CLI calls devices with.
type computer struct {
	id   string
	side string
}

func newComputer() computer {
	return computer{id: uuid.NewString(), side: "top"}
}

func (c computer) ID() string             { return c.id }
func (c computer) AttachmentName() string { return c.side }

// session is a running demo world: one manipulator with a scanner module
// standing in a small patch of blocks, driven by a tick loop.
type session struct {
	registry *dispatch.Registry
	loop     *tick.Loop
	tank     *dispatch.FuelTank
	world    *blocks.World
	host     *blocks.Host
	device   *dispatch.Peripheral
	computer computer

	cancel context.CancelFunc
	done   chan struct{}
}

func newRegistry(cfg *config.Config, logger *log.Logger) (*dispatch.Registry, error) {
	registry := dispatch.NewRegistry(cfg.Config, logger)
	if err := registry.RegisterAll(blocks.ScannerMethods(cfg.Scanner)...); err != nil {
		return nil, err
	}
	return registry, nil
}

func newSession(cfg *config.Config, logger *log.Logger) (*session, error) {
	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	world := demoWorld()
	host := blocks.NewHost("manipulator", &blocks.Location{World: world, Pos: blocks.Pos{Y: 64}}, blocks.ModuleScanner).
		WithoutModules(cfg.Blacklist.ModuleIDs()...)
	loop := tick.New(cfg.Tick, logger.WithPrefix("tick"))
	tank := dispatch.NewFuelTank(cfg.Costs)
	loop.OnTick(func(uint64) { tank.Regen() })

	device, err := registry.Wrap("manipulator", host.Context(tank), dispatch.SchedulingFactory(loop))
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.New("no methods are available on the manipulator")
	}

	s := &session{
		registry: registry,
		loop:     loop,
		tank:     tank,
		world:    world,
		host:     host,
		device:   device,
		computer: newComputer(),
	}
	device.Attach(s.computer)
	return s, nil
}

func demoWorld() *blocks.World {
	world := blocks.NewWorld("overworld")
	for x := int64(-2); x <= 2; x++ {
		for z := int64(-2); z <= 2; z++ {
			world.Set(blocks.Pos{X: x, Y: 63, Z: z}, blocks.Block{Name: "minecraft:dirt"})
		}
	}
	world.Set(blocks.Pos{X: 1, Y: 64}, blocks.Block{Name: "minecraft:stone"})
	world.Set(blocks.Pos{Y: 65}, blocks.Block{Name: "minecraft:furnace", State: map[string]string{"facing": "north", "lit": "false"}})
	return world
}

// start runs the tick loop until close.
func (s *session) start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = s.loop.Run(ctx)
	}()
}

func (s *session) close() {
	s.device.Detach(s.computer)
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	_ = s.loop.Close()
}

func (s *session) call(ctx context.Context, name string, args []dispatch.Value) ([]dispatch.Value, error) {
	index, ok := s.device.Index(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dispatch.ErrUnknownMethod, name)
	}
	return s.device.Call(ctx, s.computer, index, args)
}

// callWithTimeout calls name, giving up after timeout or when ctx ends.
func (s *session) callWithTimeout(ctx context.Context, name string, args []dispatch.Value, timeout time.Duration) ([]dispatch.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.call(ctx, name, args)
}

// parseArg reads a command line token as a script value.
func parseArg(raw string) dispatch.Value {
	switch raw {
	case "nil":
		return dispatch.NewNil()
	case "true":
		return dispatch.NewBool(true)
	case "false":
		return dispatch.NewBool(false)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return dispatch.NewInt(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return dispatch.NewFloat(f)
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		return dispatch.NewString(unquoted)
	}
	return dispatch.NewString(raw)
}

func parseArgs(raw []string) []dispatch.Value {
	out := make([]dispatch.Value, len(raw))
	for i, r := range raw {
		out[i] = parseArg(r)
	}
	return out
}

// parseCall splits "getBlockMeta(1, 0, 0)" or "getBlockMeta 1 0 0" into a
// method name and arguments.
func parseCall(line string) (string, []dispatch.Value, error) {
	replacer := strings.NewReplacer("(", " ", ")", " ", ",", " ")
	fields := strings.Fields(replacer.Replace(line))
	if len(fields) == 0 {
		return "", nil, errors.New("empty call")
	}
	return fields[0], parseArgs(fields[1:]), nil
}

func formatValues(values []dispatch.Value) string {
	if len(values) == 0 {
		return "(no values)"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
