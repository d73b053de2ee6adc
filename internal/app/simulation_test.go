package app_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/gravsim/internal/app"
	"github.com/san-kum/gravsim/internal/geom"
	"github.com/san-kum/gravsim/internal/gravity"
)

var _ = Describe("Simulation", func() {
	var sim *app.Simulation

	BeforeEach(func() {
		sim = app.New()
	})

	It("starts with an empty ten second snapshot", func() {
		s := sim.Snapshot()
		Expect(s.StepS).To(Equal(10.0))
		Expect(s.TimeS).To(BeZero())
		Expect(s.Entities).To(BeEmpty())
		Expect(s.Entities).NotTo(BeNil())
	})

	Describe("Setup", func() {
		It("replaces the snapshot and returns it", func() {
			in := gravity.State{
				StepS:    1.0,
				TimeS:    5.0,
				Entities: []gravity.Entity{{MassKg: 3, PositionM: geom.Vec2{X: 1, Y: 2}}},
			}

			out := sim.Setup(in)

			Expect(out).To(Equal(in))
			Expect(sim.Snapshot()).To(Equal(in))
		})

		It("does not alias the caller's entities", func() {
			in := gravity.State{StepS: 1, Entities: []gravity.Entity{{MassKg: 1}}}
			sim.Setup(in)

			in.Entities[0].MassKg = 99

			Expect(sim.Snapshot().Entities[0].MassKg).To(Equal(1.0))
		})

		It("accepts invalid input unchanged", func() {
			in := gravity.State{StepS: -1, Entities: []gravity.Entity{{MassKg: -5}, {MassKg: 0}}}
			Expect(sim.Setup(in)).To(Equal(in))
		})
	})

	Describe("Step", func() {
		It("advances the clock by step_s and installs the result", func() {
			sim.Setup(gravity.State{
				StepS:    10,
				Entities: []gravity.Entity{{MassKg: 1}},
			})

			out := sim.Step()

			Expect(out.TimeS).To(Equal(10.0))
			Expect(out.Entities[0].PositionM).To(Equal(geom.Vec2{}))
			Expect(out.Entities[0].VelocityMs).To(Equal(geom.Vec2{}))
			Expect(sim.Snapshot()).To(Equal(out))
		})

		It("matches the pure stepper", func() {
			in := gravity.State{
				StepS: 1,
				Entities: []gravity.Entity{
					{MassKg: 5.972e24},
					{MassKg: 100, PositionM: geom.Vec2{X: 1e7}},
				},
			}
			sim.Setup(in)

			Expect(sim.Step()).To(Equal(gravity.Step(in)))
		})

		It("serializes concurrent steps", func() {
			sim.Setup(gravity.State{
				StepS: 0.5,
				Entities: []gravity.Entity{
					{MassKg: 1e12},
					{MassKg: 1, PositionM: geom.Vec2{X: 100}},
				},
			})

			const workers = 50
			var wg sync.WaitGroup
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					sim.Step()
				}()
			}
			wg.Wait()

			expected := 0.0
			for i := 0; i < workers; i++ {
				expected += 0.5
			}
			Expect(sim.Snapshot().TimeS).To(Equal(expected))
		})
	})

	Describe("listeners", func() {
		It("receives every installed snapshot in order", func() {
			var seen []float64
			sim.AddListener(func(s gravity.State) { seen = append(seen, s.TimeS) })

			sim.Setup(gravity.State{StepS: 2})
			sim.Step()
			sim.Step()

			Expect(seen).To(Equal([]float64{0, 2, 4}))
		})
	})

	Describe("WithSnapshot", func() {
		It("hands over the current snapshot as a copy", func() {
			sim.Setup(gravity.State{StepS: 1, Entities: []gravity.Entity{{MassKg: 2}}})

			var got gravity.State
			sim.WithSnapshot(func(s gravity.State) {
				got = s
				s.Entities[0].MassKg = 99
			})

			Expect(got.StepS).To(Equal(1.0))
			Expect(sim.Snapshot().Entities[0].MassKg).To(Equal(2.0))
		})

		It("holds off steps until it returns", func() {
			release := make(chan struct{})
			stepped := make(chan float64, 1)
			inside := make(chan struct{})

			go sim.WithSnapshot(func(gravity.State) {
				close(inside)
				<-release
			})
			<-inside

			go func() { stepped <- sim.Step().TimeS }()
			Consistently(stepped, "100ms").ShouldNot(Receive())

			close(release)
			Eventually(stepped).Should(Receive(Equal(10.0)))
		})
	})
})
