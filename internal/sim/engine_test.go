package sim_test

import (
	"bytes"
	"log"
	"runtime"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/sim"
)

var _ = Describe("Engine", func() {
	var e *sim.Engine

	BeforeEach(func() {
		e = newEngine()
	})

	Describe("New", func() {
		It("rejects an invalid config", func() {
			cfg := sim.DefaultConfig()
			cfg.MinDt = 0
			_, err := sim.New(cfg)
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		})

		It("rejects an unknown kernel name", func() {
			cfg := sim.DefaultConfig()
			cfg.Kernel = "leapfrog"
			_, err := sim.New(cfg)
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		})

		It("steps a ballistic kernel picked by name", func() {
			cfg := sim.DefaultConfig()
			cfg.Kernel = "rk4"
			b, err := sim.New(cfg)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(b.Shutdown)

			b.CreateRigidBody(1, dynamo.Dynamic, dynamo.V(0, 10))
			stepAndWait(b, 60)
			p, ok := b.GetPosition(1)
			Expect(ok).To(BeTrue())
			Expect(p.Y()).To(BeNumerically("~", 10-0.5*9.81, 1e-6))
		})

		It("starts running with an empty frame 0 snapshot", func() {
			Expect(e.IsRunning()).To(BeTrue())
			s := e.ReadState()
			Expect(s.Frame).To(BeZero())
			Expect(s.Len()).To(BeZero())
		})
	})

	Describe("ordering", func() {
		It("applies a producer's commands in issue order before the step", func() {
			e.CreateRigidBody(1, dynamo.Dynamic, dynamo.V(0, 0))
			e.SetGravity(dynamo.V(0, 0))
			e.SetPosition(1, dynamo.V(3, 4))
			e.SetVelocity(1, dynamo.V(1, 0))
			e.SetVelocity(1, dynamo.V(0, 2))
			stepAndWait(e, 1)

			v, ok := e.GetVelocity(1)
			Expect(ok).To(BeTrue())
			Expect(v.X()).To(BeNumerically("~", 0, 1e-9))
			Expect(v.Y()).To(BeNumerically("~", 2, 1e-9))

			p, ok := e.GetPosition(1)
			Expect(ok).To(BeTrue())
			Expect(p.X()).To(BeNumerically("~", 3, 1e-9))
			Expect(p.Y()).To(BeNumerically(">", 4))
		})
	})

	Describe("publishing", func() {
		It("never shows a reader a half-written frame", func() {
			const n = 8
			e.SetGravity(dynamo.V(0, 0))
			for id := dynamo.BodyID(1); id <= n; id++ {
				e.CreateRigidBody(id, dynamo.Dynamic, dynamo.V(0, float64(id)))
				e.SetVelocity(id, dynamo.V(1, 0))
			}

			stop := make(chan struct{})
			var wg sync.WaitGroup
			var bad sync.Map
			for r := 0; r < 4; r++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					var last uint64
					for {
						select {
						case <-stop:
							return
						default:
						}
						s := e.ReadState()
						if s.Frame < last {
							bad.Store("frame regressed", true)
						}
						last = s.Frame
						if s.Len() == 0 {
							continue
						}
						x := s.Positions[1].X()
						for _, id := range s.IDs() {
							if s.Positions[id].X() != x {
								bad.Store("bodies from different frames", true)
							}
						}
					}
				}()
			}

			stepAndWait(e, 120)
			close(stop)
			wg.Wait()

			bad.Range(func(k, _ any) bool {
				Fail(k.(string))
				return true
			})
		})

		It("advances the frame by exactly one per step", func() {
			var (
				mu     sync.Mutex
				frames []uint64
			)
			e = newEngine(sim.WithObserver(sim.ObserverFunc(func(s *dynamo.Snapshot) {
				mu.Lock()
				frames = append(frames, s.Frame)
				mu.Unlock()
			})))

			stepAndWait(e, 30)
			Expect(e.PublishedFrame()).To(BeEquivalentTo(30))

			mu.Lock()
			defer mu.Unlock()
			Expect(frames).To(HaveLen(30))
			for i, f := range frames {
				Expect(f).To(BeEquivalentTo(i + 1))
			}
		})

		It("hands out snapshots the caller owns", func() {
			e.CreateRigidBody(1, dynamo.Static, dynamo.V(1, 1))
			stepAndWait(e, 1)

			s := e.ReadState()
			s.Positions[1] = dynamo.V(100, 100)
			delete(s.Velocities, 1)

			p, _ := e.GetPosition(1)
			Expect(p).To(Equal(dynamo.V(1, 1)))
			_, ok := e.GetVelocity(1)
			Expect(ok).To(BeTrue())
		})
	})

	Describe("id lifecycle", func() {
		It("reports a body only while it exists", func() {
			e.CreateRigidBody(7, dynamo.Dynamic, dynamo.V(0, 0))
			stepAndWait(e, 1)
			_, ok := e.GetPosition(7)
			Expect(ok).To(BeTrue())

			e.RemoveRigidBody(7)
			stepAndWait(e, 1)
			_, ok = e.GetPosition(7)
			Expect(ok).To(BeFalse())
			_, ok = e.GetRotation(7)
			Expect(ok).To(BeFalse())
		})

		It("shrugs off commands for ids it never saw", func() {
			e.CreateRigidBody(1, dynamo.Static, dynamo.V(0, 0))
			e.ApplyForce(42, dynamo.V(1, 0))
			e.ApplyImpulse(42, dynamo.V(1, 0))
			e.SetVelocity(42, dynamo.V(1, 0))
			e.SetPosition(42, dynamo.V(1, 0))
			e.RemoveRigidBody(42)
			parent := dynamo.BodyID(42)
			e.CreateCollider(1, &parent, dynamo.Ball{Radius: 1})
			stepAndWait(e, 1)

			s := e.ReadState()
			Expect(s.IDs()).To(Equal([]dynamo.BodyID{1}))
			Expect(e.IsRunning()).To(BeTrue())
			Expect(e.Stats().Ignored).To(BeEquivalentTo(6))
		})
	})

	Describe("scenarios", func() {
		It("lets a body fall under gravity", func() {
			e.CreateRigidBody(1, dynamo.Dynamic, dynamo.V(0, 10))
			e.SetGravity(dynamo.V(0, -9.81))
			stepAndWait(e, 60)

			p, ok := e.GetPosition(1)
			Expect(ok).To(BeTrue())
			Expect(p.Y()).To(BeNumerically("<", 10.0))
		})

		It("treats independent ids from different producers alike", func() {
			var wg sync.WaitGroup
			for _, id := range []dynamo.BodyID{1, 2} {
				wg.Add(1)
				go func(id dynamo.BodyID) {
					defer GinkgoRecover()
					defer wg.Done()
					e.CreateRigidBody(id, dynamo.Dynamic, dynamo.V(0, 5))
					e.SetVelocity(id, dynamo.V(1, 0))
				}(id)
			}
			wg.Wait()
			stepAndWait(e, 1)

			p1, ok1 := e.GetPosition(1)
			p2, ok2 := e.GetPosition(2)
			Expect(ok1).To(BeTrue())
			Expect(ok2).To(BeTrue())
			Expect(p1).To(Equal(p2))
		})

		It("ignores a force sent right after a removal", func() {
			e.CreateRigidBody(1, dynamo.Dynamic, dynamo.V(0, 0))
			stepAndWait(e, 1)

			e.RemoveRigidBody(1)
			e.ApplyForce(1, dynamo.V(1, 0))
			stepAndWait(e, 1)

			_, ok := e.GetPosition(1)
			Expect(ok).To(BeFalse())
			Expect(e.IsRunning()).To(BeTrue())
		})

		It("rests a ball on world geometry", func() {
			e.CreateCollider(1, nil, dynamo.Cuboid{HalfExtents: dynamo.V(10, 0.5)})
			e.CreateRigidBody(1, dynamo.Dynamic, dynamo.V(0, 3))
			parent := dynamo.BodyID(1)
			e.CreateCollider(2, &parent, dynamo.Ball{Radius: 0.5})
			stepAndWait(e, 240)

			p, ok := e.GetPosition(1)
			Expect(ok).To(BeTrue())
			Expect(p.Y()).To(BeNumerically(">", 0.8))
			Expect(p.Y()).To(BeNumerically("<", 1.2))
		})
	})

	Describe("Shutdown", func() {
		It("stops the worker and is safe to repeat", func() {
			done := make(chan struct{})
			go func() {
				defer close(done)
				e.Shutdown()
				e.Shutdown()
			}()
			Eventually(done).WithTimeout(2 * time.Second).Should(BeClosed())
			Expect(e.IsRunning()).To(BeFalse())
			Expect(e.Done()).To(BeClosed())
			Expect(e.Close()).To(Succeed())
		})

		It("publishes nothing afterwards", func() {
			e.CreateRigidBody(1, dynamo.Dynamic, dynamo.V(0, 0))
			stepAndWait(e, 3)
			e.Shutdown()

			frame := e.PublishedFrame()
			for i := 0; i < 10; i++ {
				e.Step(dt)
				e.CreateRigidBody(dynamo.BodyID(100+i), dynamo.Dynamic, dynamo.V(0, 0))
			}
			Consistently(e.PublishedFrame).WithTimeout(50 * time.Millisecond).Should(Equal(frame))
			Expect(e.Stats().Dropped).To(BeEquivalentTo(20))
		})

		It("finishes everything queued before the call", func() {
			e.CreateRigidBody(1, dynamo.Static, dynamo.V(0, 0))
			for i := 0; i < 50; i++ {
				e.Step(dt)
			}
			e.Shutdown()
			Expect(e.PublishedFrame()).To(BeEquivalentTo(50))
		})

		It("stops the worker of an engine dropped without Shutdown", func() {
			d, err := sim.New(sim.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			done := d.Done()
			d.CreateRigidBody(1, dynamo.Dynamic, dynamo.V(0, 10))
			d.Step(dt)
			d = nil

			Eventually(func() bool {
				runtime.GC()
				select {
				case <-done:
					return true
				default:
					return false
				}
			}).WithTimeout(5 * time.Second).WithPolling(10 * time.Millisecond).Should(BeTrue())
		})
	})

	Describe("limits and logging", func() {
		It("drops sends past MaxPending but still shuts down", func() {
			cfg := sim.DefaultConfig()
			cfg.MaxPending = 1
			cfg.RecvTimeout = time.Hour
			var buf bytes.Buffer
			l, err := sim.New(cfg, sim.WithLogger(log.New(&buf, "", 0)))
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 10000; i++ {
				l.Step(dt)
			}
			l.Shutdown()

			st := l.Stats()
			Expect(st.Steps + st.Dropped).To(BeEquivalentTo(10000))
			Expect(buf.String()).To(ContainSubstring("worker stopped"))
		})
	})
})
