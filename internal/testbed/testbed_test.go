package testbed_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/testbed/internal/backend"
	"github.com/san-kum/testbed/internal/events"
	"github.com/san-kum/testbed/internal/snapshot"
	"github.com/san-kum/testbed/internal/testbed"
	"github.com/san-kum/testbed/internal/world"
)

func pile(n int) func(tb *testbed.Testbed) {
	return func(tb *testbed.Testbed) {
		w := tb.NewWorld()
		ground := w.InsertBody(world.NewStaticBody(mgl64.Vec2{0, 0}))
		w.MustInsertCollider(world.NewCuboidCollider(20, 0.5), ground)
		for i := 0; i < n; i++ {
			id := w.InsertBody(world.NewDynamicBody(mgl64.Vec2{float64(i) * 1.2, 1.5 + float64(i)*0.3}))
			w.MustInsertCollider(world.NewBallCollider(0.5), id)
		}
		tb.SetWorld(w)
	}
}

var testScenarios = []testbed.Scenario{
	{Name: "Balls", Build: pile(5)},
	{Name: "Single ball", Build: pile(1)},
	{Name: "(Stress test) pile", Build: pile(40)},
}

func newTestbed(mutate ...func(*testbed.Options)) *testbed.Testbed {
	opts := testbed.DefaultOptions()
	opts.Scenarios = testScenarios
	for _, m := range mutate {
		m(&opts)
	}
	tb, err := testbed.New(opts)
	Expect(err).NotTo(HaveOccurred())
	return tb
}

func tick(tb *testbed.Testbed, n int) {
	GinkgoHelper()
	for i := 0; i < n; i++ {
		Expect(tb.Tick(context.Background())).To(Succeed())
	}
}

var equateEmpty = cmpopts.EquateEmpty()

// corruptSnapshot holds five parts that are valid blob framing but do not
// decode.
func corruptSnapshot(step uint64) *snapshot.Snapshot {
	var blob []byte
	for range snapshot.Parts() {
		blob = binary.AppendUvarint(blob, 1)
		blob = append(blob, 0xc1)
	}
	s, err := snapshot.Unmarshal(step, blob)
	Expect(err).NotTo(HaveOccurred())
	return s
}

type recordingObserver struct {
	changes []testbed.Flag
	resets  int
}

func (o *recordingObserver) FlagChanged(f testbed.Flag, on bool) { o.changes = append(o.changes, f) }
func (o *recordingObserver) WorldReset(w *world.World)           { o.resets++ }

var _ = Describe("RunController", func() {
	It("toggles between running and stopped", func() {
		c := testbed.NewRunController(false)
		Expect(c.Mode()).To(Equal(testbed.Running))
		c.Toggle()
		Expect(c.Mode()).To(Equal(testbed.Stopped))
		c.Toggle()
		Expect(c.Mode()).To(Equal(testbed.Running))
	})

	It("starts stopped when paused", func() {
		Expect(testbed.NewRunController(true).Mode()).To(Equal(testbed.Stopped))
	})

	It("ignores commands after quit", func() {
		c := testbed.NewRunController(false)
		c.Quit()
		c.Toggle()
		c.Step()
		Expect(c.Mode()).To(Equal(testbed.Quit))
		Expect(c.CanStep()).To(BeFalse())
	})
})

var _ = Describe("Testbed", func() {
	var tb *testbed.Testbed

	BeforeEach(func() {
		tb = newTestbed()
	})

	Describe("construction", func() {
		It("rejects an empty scenario list", func() {
			_, err := testbed.New(testbed.DefaultOptions())
			Expect(err).To(MatchError(testbed.ErrNoScenarios))
		})

		It("fails at startup on a bad pool size", func() {
			opts := testbed.DefaultOptions()
			opts.Scenarios = testScenarios
			opts.Parallel = true
			opts.Workers = -2
			_, err := testbed.New(opts)
			Expect(errors.Is(err, testbed.ErrPoolSize)).To(BeTrue())
		})

		It("selects the initial example by name", func() {
			tb = newTestbed(func(o *testbed.Options) { o.Example = "StressTestPile" })
			i, name := tb.Example()
			Expect(i).To(Equal(2))
			Expect(name).To(Equal("(Stress test) pile"))
		})

		It("falls back to the first example on an unknown name", func() {
			tb = newTestbed(func(o *testbed.Options) { o.Example = "ragdoll" })
			i, _ := tb.Example()
			Expect(i).To(BeZero())
		})
	})

	Describe("run modes", func() {
		It("runs every sub-step of a frame while running", func() {
			tb.SetStepsPerFrame(3)
			tick(tb, 2)
			Expect(tb.Step()).To(Equal(uint64(6)))
		})

		It("never steps while stopped", func() {
			tb.ToggleRun()
			before := tb.World().Clone()
			tick(tb, 5)
			Expect(tb.Step()).To(BeZero())
			Expect(cmp.Diff(before, tb.World(), equateEmpty)).To(BeEmpty())
		})

		It("performs exactly one tick per single step request", func() {
			tb.SetStepsPerFrame(4)
			tb.ToggleRun()
			tb.StepOnce()
			tick(tb, 1)
			Expect(tb.Step()).To(Equal(uint64(1)))
			Expect(tb.Mode()).To(Equal(testbed.Stopped))

			tick(tb, 3)
			Expect(tb.Step()).To(Equal(uint64(1)))
		})

		It("reports quit at the next tick boundary without stepping", func() {
			tb.Quit()
			Expect(tb.Tick(context.Background())).To(MatchError(testbed.ErrQuit))
			Expect(tb.Step()).To(BeZero())
		})
	})

	Describe("counters", func() {
		It("records step time, total and tick count", func() {
			now := time.Unix(0, 0)
			tb = newTestbed(func(o *testbed.Options) {
				o.Clock = func() time.Time {
					now = now.Add(time.Millisecond)
					return now
				}
			})
			tick(tb, 3)
			c := tb.Counters()
			Expect(c.StepTime).To(Equal(time.Millisecond))
			Expect(c.Total).To(Equal(3 * time.Millisecond))
			Expect(c.Ticks).To(Equal(3))
			Expect(c.Mean()).To(Equal(time.Millisecond))
		})
	})

	Describe("flag reconciliation", func() {
		It("disables and re-enables sleeping on flag edges", func() {
			tick(tb, 1)
			flags := tb.Flags()
			flags.Sleep = false
			tb.SetFlags(flags)
			tick(tb, 1)
			for _, b := range tb.World().Bodies.Items {
				Expect(b.Activation.Threshold).To(Equal(world.NeverSleep))
				Expect(b.Activation.Sleeping).To(BeFalse())
			}

			flags.Sleep = true
			tb.SetFlags(flags)
			tick(tb, 1)
			for _, b := range tb.World().Bodies.Items {
				Expect(b.Activation.Threshold).To(Equal(world.DefaultSleepThreshold))
			}
		})

		It("applies an edge exactly once", func() {
			flags := tb.Flags()
			flags.Sleep = false
			tb.SetFlags(flags)
			tick(tb, 1)

			w := tb.World()
			id := w.DynamicBodies()[0]
			w.Bodies.Items[id].Activation.Threshold = 0.5
			tick(tb, 3)
			Expect(w.Bodies.Items[id].Activation.Threshold).To(Equal(0.5))
		})

		It("lets a resting body fall asleep and wakes it on the off-edge", func() {
			tb = newTestbed(func(o *testbed.Options) { o.Example = "Single ball" })
			tick(tb, 400)
			id := tb.World().DynamicBodies()[0]
			Expect(tb.World().Bodies.Items[id].Activation.Sleeping).To(BeTrue())

			tb.ToggleFlag(testbed.FlagSleep)
			tick(tb, 1)
			Expect(tb.World().Bodies.Items[id].Activation.Sleeping).To(BeFalse())

			tick(tb, 300)
			Expect(tb.World().Bodies.Items[id].Activation.Sleeping).To(BeFalse())
		})

		It("runs enable then disable once each for edges on consecutive ticks", func() {
			var out bytes.Buffer
			logger := log.NewWithOptions(&out, log.Options{Level: log.DebugLevel, Formatter: log.LogfmtFormatter})
			tb = newTestbed(func(o *testbed.Options) {
				o.Logger = logger
				o.Flags.Sleep = false
			})
			tick(tb, 1)
			w := tb.World()
			id := w.DynamicBodies()[0]
			Expect(w.Bodies.Items[id].Activation.Threshold).To(Equal(world.NeverSleep))

			tb.ToggleFlag(testbed.FlagSleep)
			tick(tb, 1)
			Expect(w.Bodies.Items[id].Activation.Threshold).To(Equal(world.DefaultSleepThreshold))

			tb.ToggleFlag(testbed.FlagSleep)
			tick(tb, 1)
			Expect(w.Bodies.Items[id].Activation.Threshold).To(Equal(world.NeverSleep))

			w.Bodies.Items[id].Activation.Threshold = 0.5
			tick(tb, 5)
			Expect(w.Bodies.Items[id].Activation.Threshold).To(Equal(0.5))

			logged := out.String()
			Expect(strings.Count(logged, "flag=sleep on=true")).To(Equal(1))
			Expect(strings.Count(logged, "flag=sleep on=false")).To(Equal(1))
			Expect(strings.Index(logged, "flag=sleep on=true")).To(BeNumerically("<", strings.Index(logged, "flag=sleep on=false")))
		})

		for _, name := range []string{"box2d", "chipmunk"} {
			It("keeps bodies awake on "+name+" after the off-edge", func() {
				tb = newTestbed(func(o *testbed.Options) {
					o.Example = "Single ball"
					o.Backend = name
				})
				tick(tb, 600)
				id := tb.World().DynamicBodies()[0]
				Expect(tb.World().Bodies.Items[id].Activation.Sleeping).To(BeTrue())

				tb.ToggleFlag(testbed.FlagSleep)
				tick(tb, 3)
				b := tb.World().Bodies.Items[id]
				Expect(b.Activation.Threshold).To(Equal(world.NeverSleep))
				Expect(b.Activation.Sleeping).To(BeFalse())

				tick(tb, 300)
				Expect(tb.World().Bodies.Items[id].Activation.Sleeping).To(BeFalse())
			})
		}

		It("maps sub-stepping onto the integration parameters", func() {
			tb.ToggleFlag(testbed.FlagSubStepping)
			tick(tb, 1)
			Expect(tb.World().Params.ReturnAfterCCDSubstep).To(BeTrue())

			tb.ToggleFlag(testbed.FlagSubStepping)
			tick(tb, 1)
			Expect(tb.World().Params.ReturnAfterCCDSubstep).To(BeFalse())
		})

		It("reports overlay edges to the observer", func() {
			obs := &recordingObserver{}
			tb = newTestbed(func(o *testbed.Options) { o.Observer = obs })
			tick(tb, 1)
			Expect(obs.resets).To(Equal(1))
			Expect(obs.changes).To(BeEmpty())

			tb.ToggleFlag(testbed.FlagContactPoints)
			tb.ToggleFlag(testbed.FlagProfile)
			tick(tb, 2)
			Expect(obs.changes).To(Equal([]testbed.Flag{testbed.FlagContactPoints, testbed.FlagProfile}))
		})
	})

	Describe("callbacks and events", func() {
		It("runs callbacks in registration order with the tick's events", func() {
			tb = newTestbed(func(o *testbed.Options) { o.Example = "Single ball" })
			var order []string
			started := 0
			tb.AddCallback(testbed.CallbackFunc(func(w *world.World, ev events.View, t float64) {
				order = append(order, "first")
				for e := range ev.Contacts {
					if e.Kind == events.ContactStarted {
						started++
					}
				}
			}))
			tb.AddCallback(testbed.CallbackFunc(func(w *world.World, ev events.View, t float64) {
				order = append(order, "second")
			}))

			tick(tb, 90)
			Expect(order[:4]).To(Equal([]string{"first", "second", "first", "second"}))
			Expect(started).To(Equal(1))
		})

		It("drops callbacks when the scenario reloads", func() {
			calls := 0
			tb.AddCallback(testbed.CallbackFunc(func(*world.World, events.View, float64) { calls++ }))
			tick(tb, 2)
			tb.Restart()
			tick(tb, 2)
			Expect(calls).To(Equal(2))
		})
	})

	Describe("snapshots", func() {
		It("restores the exact captured state and step", func() {
			tick(tb, 20)
			tb.RequestSnapshot()
			tick(tb, 1)
			Expect(tb.Snapshot()).NotTo(BeNil())
			Expect(tb.Snapshot().Step()).To(Equal(uint64(20)))

			s, err := tb.Snapshot().Restore()
			Expect(err).NotTo(HaveOccurred())
			captured := s.World(tb.World().Gravity, tb.World().Params)

			tick(tb, 30)
			tb.ToggleRun()
			tb.RequestRestore()
			tick(tb, 1)
			Expect(tb.Step()).To(Equal(uint64(20)))
			Expect(cmp.Diff(captured, tb.World(), equateEmpty)).To(BeEmpty())
		})

		It("replays the same trajectory after a restore", func() {
			tick(tb, 10)
			_, err := tb.CaptureNow()
			Expect(err).NotTo(HaveOccurred())
			tick(tb, 25)
			first := tb.World().Clone()

			Expect(tb.RestoreNow()).To(Succeed())
			tick(tb, 25)
			Expect(tb.Step()).To(Equal(uint64(35)))
			Expect(cmp.Diff(first, tb.World(), equateEmpty)).To(BeEmpty())
		})

		It("treats a restore without a snapshot as a no-op", func() {
			tick(tb, 3)
			tb.RequestRestore()
			Expect(tb.Tick(context.Background())).To(Succeed())
			Expect(tb.Step()).To(Equal(uint64(4)))
		})

		It("keeps the live state when a snapshot fails to decode", func() {
			tick(tb, 5)
			before := tb.World().Clone()

			err := tb.Restore(corruptSnapshot(1))
			var re *snapshot.RestoreError
			Expect(errors.As(err, &re)).To(BeTrue())
			Expect(tb.Step()).To(Equal(uint64(5)))
			Expect(cmp.Diff(before, tb.World(), equateEmpty)).To(BeEmpty())
		})

		It("keeps the previous snapshot when a later restore fails", func() {
			tick(tb, 5)
			good, err := tb.CaptureNow()
			Expect(err).NotTo(HaveOccurred())
			Expect(tb.Restore(corruptSnapshot(9))).NotTo(Succeed())
			Expect(tb.Snapshot()).To(BeIdenticalTo(good))
		})
	})

	Describe("backends", func() {
		It("reloads the scenario with the selected backend on the next tick", func() {
			tick(tb, 10)
			tb.SetBackend(1)
			tick(tb, 1)
			i, name := tb.Backend()
			Expect(i).To(Equal(1))
			Expect(name).To(Equal("box2d"))
			Expect(tb.Step()).To(Equal(uint64(1)))
		})

		It("clamps an out of range selection to the canonical engine", func() {
			tb.SetBackend(42)
			tick(tb, 1)
			_, name := tb.Backend()
			Expect(name).To(Equal(backend.Canonical))
		})

		It("reproduces the canonical trajectory after switching away and back", func() {
			reference := newTestbed()
			tick(reference, 40)

			tick(tb, 7)
			tb.SetBackend(2)
			tick(tb, 7)
			tb.SetBackend(0)
			tick(tb, 40)

			Expect(tb.Step()).To(Equal(uint64(40)))
			Expect(cmp.Diff(reference.World(), tb.World(), equateEmpty)).To(BeEmpty())
		})

		It("fails the tick when an alternate backend no longer matches the world", func() {
			tb = newTestbed(func(o *testbed.Options) { o.Backend = "box2d" })
			tb.AddCallback(testbed.CallbackFunc(func(w *world.World, _ events.View, _ float64) {
				if ids := w.DynamicBodies(); len(ids) > 0 {
					Expect(w.RemoveBody(ids[0])).To(Succeed())
				}
			}))

			tick(tb, 1)
			err := tb.Tick(context.Background())
			Expect(errors.Is(err, testbed.ErrDesync)).To(BeTrue())
			var te *testbed.TickError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Backend).To(Equal("box2d"))
			Expect(te.Step).To(Equal(uint64(2)))
		})

		It("rebuilds the backend after deleting bodies", func() {
			tb = newTestbed(func(o *testbed.Options) { o.Backend = "chipmunk" })
			tick(tb, 3)
			n, err := tb.DeleteBodies()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(tb.World().DynamicBodies()).To(HaveLen(4))
			tick(tb, 3)
		})
	})

	It("produces the same world with and without the worker pool", func() {
		stress := func(o *testbed.Options) { o.Example = "StressTestPile" }
		seq := newTestbed(stress)
		par := newTestbed(stress, func(o *testbed.Options) {
			o.Parallel = true
			o.Workers = 4
		})
		tick(seq, 60)
		tick(par, 60)
		Expect(cmp.Diff(seq.World(), par.World(), equateEmpty)).To(BeEmpty())
	})
})
