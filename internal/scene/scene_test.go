package scene_test

import (
	"io"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/cosim/internal/capture"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/emitter"
	"github.com/san-kum/cosim/internal/physics"
	"github.com/san-kum/cosim/internal/scene"
	"github.com/san-kum/cosim/internal/snapshot"
)

type Vec3 = dynamo.Vec3

var unitBox = dynamo.Bounds{Lower: Vec3{0, 0, 0}, Upper: Vec3{1, 1, 1}}

func newScene(dt float64, substeps int, domains map[dynamo.DomainKind]physics.Options) *scene.Scene {
	engine, err := dynamo.NewEngine(dynamo.EngineOptions{Backend: "serial", LogOut: io.Discard})
	Expect(err).NotTo(HaveOccurred())
	cfg := dynamo.DefaultSimulationConfig()
	cfg.Dt, cfg.Substeps = dt, substeps
	return scene.New(engine, scene.Options{Name: "test", Sim: cfg, Domains: domains})
}

// pbdLiquid is a coarse version of the box of liquid dropped in a unit box.
func pbdLiquid() *scene.Scene {
	s := newScene(3e-5, 1, map[dynamo.DomainKind]physics.Options{
		dynamo.KindPBD: {Bounds: unitBox, ParticleSize: 0.05},
	})
	mat := dynamo.NewMaterial(dynamo.KindPBD, dynamo.ModelLiquid)
	mat.Rho, mat.DensityRelaxation, mat.ViscosityRelaxation = 1, 1, 0
	_, err := s.AddEntity(mat, dynamo.BoxFromCorners(Vec3{0.2, 0.1, 0.1}, Vec3{0.4, 0.3, 0.5}), dynamo.DefaultSurface())
	Expect(err).NotTo(HaveOccurred())
	return s
}

// sphSplash drops a block of SPH liquid and a rigid ball into a unit box.
func sphSplash() *scene.Scene {
	s := newScene(1e-3, 2, map[dynamo.DomainKind]physics.Options{
		dynamo.KindSPH: {Bounds: unitBox, ParticleSize: 0.05},
	})
	liquid := dynamo.NewMaterial(dynamo.KindSPH, dynamo.ModelLiquid)
	_, err := s.AddEntity(liquid, dynamo.BoxFromCorners(Vec3{0.3, 0.3, 0.05}, Vec3{0.7, 0.7, 0.3}), dynamo.DefaultSurface())
	Expect(err).NotTo(HaveOccurred())
	_, err = s.AddEntity(dynamo.RigidMaterial(), dynamo.Morph{Shape: dynamo.Sphere{Radius: 0.08}, Pos: Vec3{0.5, 0.5, 0.6}}, dynamo.DefaultSurface())
	Expect(err).NotTo(HaveOccurred())
	return s
}

func centroidZ(f *snapshot.Frame, k dynamo.DomainKind) float64 {
	d, ok := f.Domain(k)
	Expect(ok).To(BeTrue())
	z := 0.0
	for _, p := range d.Positions {
		z += p[2]
	}
	return z / float64(len(d.Positions))
}

func expectInside(f *snapshot.Frame, b dynamo.Bounds) {
	for _, d := range f.Domains {
		for _, p := range d.Positions {
			for a := 0; a < 3; a++ {
				Expect(p[a]).To(BeNumerically(">=", b.Lower[a]), "step %d %v", f.Step, p)
				Expect(p[a]).To(BeNumerically("<=", b.Upper[a]), "step %d %v", f.Step, p)
			}
		}
	}
}

var _ = Describe("Scene", func() {
	Describe("lifecycle", func() {
		It("refuses to step before Build", func() {
			s := pbdLiquid()
			Expect(s.State()).To(Equal(scene.Defining))
			Expect(s.Step()).To(MatchError(dynamo.ErrNotBuilt))
		})

		It("publishes frame 0 at Build and one frame per step", func() {
			s := pbdLiquid()
			Expect(s.Build()).To(Succeed())
			Expect(s.State()).To(Equal(scene.Built))

			f, ok := s.Publisher().Latest()
			Expect(ok).To(BeTrue())
			Expect(f.Step).To(BeZero())
			Expect(f.ParticleCount()).To(Equal(4 * 4 * 8))

			for i := 0; i < 3; i++ {
				Expect(s.Step()).To(Succeed())
			}
			Expect(s.State()).To(Equal(scene.Stepping))
			Expect(s.StepIndex()).To(Equal(uint64(3)))
			Expect(s.Publisher().Generation()).To(Equal(uint64(4)))
			f, _ = s.Publisher().Latest()
			Expect(f.Step).To(Equal(uint64(3)))
			Expect(f.Time).To(BeNumerically("~", 9e-5, 1e-15))
		})

		It("rejects definitions after Build", func() {
			s := pbdLiquid()
			Expect(s.Build()).To(Succeed())
			_, err := s.AddEntity(dynamo.RigidMaterial(), dynamo.Morph{Shape: dynamo.Sphere{Radius: 0.1}}, dynamo.DefaultSurface())
			Expect(err).To(MatchError(dynamo.ErrAlreadyBuilt))
			_, err = s.AddEmitter(dynamo.NewMaterial(dynamo.KindPBD, dynamo.ModelLiquid), 10, dynamo.DefaultSurface())
			Expect(err).To(MatchError(dynamo.ErrAlreadyBuilt))
			_, err = s.AddCamera(capture.NewCamera([2]int{64, 48}, Vec3{2, 0, 1}, Vec3{}, 40))
			Expect(err).To(MatchError(dynamo.ErrAlreadyBuilt))
			Expect(s.Build()).To(MatchError(dynamo.ErrAlreadyBuilt))
		})

		DescribeTable("reports configuration errors at Build",
			func(mutate func() *scene.Scene) {
				s := mutate()
				Expect(s.Build()).To(MatchError(dynamo.ErrConfiguration))
				Expect(s.State()).To(Equal(scene.Defining))
				_, ok := s.Publisher().Latest()
				Expect(ok).To(BeFalse())
			},
			Entry("non-positive dt", func() *scene.Scene {
				s := newScene(0, 1, nil)
				_, err := s.AddEntity(dynamo.RigidMaterial(), dynamo.Morph{Shape: dynamo.Sphere{Radius: 0.1}}, dynamo.DefaultSurface())
				Expect(err).NotTo(HaveOccurred())
				return s
			}),
			Entry("zero substeps", func() *scene.Scene {
				return newScene(1e-3, 0, nil)
			}),
			Entry("particle domain without bounds", func() *scene.Scene {
				s := newScene(1e-3, 1, nil)
				_, err := s.AddEntity(dynamo.NewMaterial(dynamo.KindSPH, dynamo.ModelLiquid), dynamo.BoxFromCorners(Vec3{}, Vec3{0.1, 0.1, 0.1}), dynamo.DefaultSurface())
				Expect(err).NotTo(HaveOccurred())
				return s
			}),
			Entry("inverted bounds", func() *scene.Scene {
				return newScene(1e-3, 1, map[dynamo.DomainKind]physics.Options{
					dynamo.KindMPM: {Bounds: dynamo.Bounds{Lower: Vec3{1, 0, 0}, Upper: Vec3{0, 1, 1}}},
				})
			}),
			Entry("inverted rigid bounds", func() *scene.Scene {
				s := newScene(1e-3, 1, map[dynamo.DomainKind]physics.Options{
					dynamo.KindRigid: {Bounds: dynamo.Bounds{Lower: Vec3{1, 0, 0}, Upper: Vec3{0, 1, 1}}},
				})
				_, err := s.AddEntity(dynamo.RigidMaterial(), dynamo.Morph{Shape: dynamo.Sphere{Radius: 0.1}, Pos: Vec3{0.5, 0.5, 0.5}}, dynamo.DefaultSurface())
				Expect(err).NotTo(HaveOccurred())
				return s
			}),
			Entry("entity outside its domain", func() *scene.Scene {
				s := newScene(1e-3, 1, map[dynamo.DomainKind]physics.Options{
					dynamo.KindPBD: {Bounds: unitBox, ParticleSize: 0.05},
				})
				_, err := s.AddEntity(dynamo.NewMaterial(dynamo.KindPBD, dynamo.ModelLiquid), dynamo.BoxFromCorners(Vec3{0.8, 0.8, 0.8}, Vec3{1.4, 1.2, 1.2}), dynamo.DefaultSurface())
				Expect(err).NotTo(HaveOccurred())
				return s
			}),
			Entry("unsupported model", func() *scene.Scene {
				s := newScene(1e-3, 1, map[dynamo.DomainKind]physics.Options{
					dynamo.KindSPH: {Bounds: unitBox},
				})
				_, err := s.AddEntity(dynamo.NewMaterial(dynamo.KindSPH, dynamo.ModelCloth), dynamo.BoxFromCorners(Vec3{}, Vec3{0.1, 0.1, 0.1}), dynamo.DefaultSurface())
				Expect(err).NotTo(HaveOccurred())
				return s
			}),
			Entry("free plane", func() *scene.Scene {
				s := newScene(1e-3, 1, nil)
				_, err := s.AddEntity(dynamo.RigidMaterial(), dynamo.Morph{Shape: dynamo.Plane{}}, dynamo.DefaultSurface())
				Expect(err).NotTo(HaveOccurred())
				return s
			}),
			Entry("degenerate camera", func() *scene.Scene {
				s := newScene(1e-3, 1, nil)
				_, err := s.AddCamera(capture.NewCamera([2]int{64, 48}, Vec3{0, 0, 1}, Vec3{0, 0, 1}, 40))
				Expect(err).NotTo(HaveOccurred())
				return s
			}),
		)

		It("numbers cameras in published frames", func() {
			s := pbdLiquid()
			i, err := s.AddCamera(capture.NewCamera([2]int{640, 480}, Vec3{3.5, 1, 2.5}, Vec3{0, 0, 0.5}, 40))
			Expect(err).NotTo(HaveOccurred())
			Expect(i).To(Equal(0))
			Expect(s.Build()).To(Succeed())
			f, _ := s.Publisher().Latest()
			Expect(f.Cameras).To(HaveLen(1))
			Expect(f.Cameras[0].Res).To(Equal([2]int{640, 480}))
		})
	})

	Describe("stop", func() {
		It("closes the publisher and keeps the last frame", func() {
			s := pbdLiquid()
			Expect(s.Build()).To(Succeed())
			Expect(s.Step()).To(Succeed())
			s.Stop()
			s.Stop()
			Expect(s.State()).To(Equal(scene.Stopped))
			Expect(s.Step()).To(MatchError(dynamo.ErrStopped))
			Expect(s.Publisher().Closed()).To(BeTrue())
			f, ok := s.Publisher().Latest()
			Expect(ok).To(BeTrue())
			Expect(f.Step).To(Equal(uint64(1)))
		})

		It("leaves a scene stopped before Build without frames", func() {
			s := pbdLiquid()
			s.Stop()
			Expect(s.State()).To(Equal(scene.Stopped))
			Expect(s.Build()).To(MatchError(dynamo.ErrStopped))
			_, ok := s.Publisher().Latest()
			Expect(ok).To(BeFalse())
		})

		It("interrupts a stepping loop from another goroutine", func() {
			s := sphSplash()
			Expect(s.Build()).To(Succeed())

			var wg sync.WaitGroup
			var last error
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				for {
					if last = s.Step(); last != nil {
						return
					}
				}
			}()
			Eventually(s.StepIndex).Should(BeNumerically(">=", 2))
			s.Stop()
			wg.Wait()

			Expect(last).To(MatchError(dynamo.ErrStopped))
			Expect(s.State()).To(Equal(scene.Stopped))
			f, _ := s.Publisher().Latest()
			Expect(f.Step).To(BeNumerically("<=", s.StepIndex()))
			Expect(s.Publisher().Generation()).To(Equal(f.Generation))
		})
	})

	Describe("stepping", func() {
		It("is reproducible for a fixed seed", func() {
			run := func() *snapshot.Frame {
				s := sphSplash()
				Expect(s.Build()).To(Succeed())
				for i := 0; i < 25; i++ {
					Expect(s.Step()).To(Succeed())
				}
				f, _ := s.Publisher().Latest()
				return f
			}
			a, b := run(), run()
			Expect(a.Domains).To(Equal(b.Domains))
			Expect(a.Bodies).To(Equal(b.Bodies))
			Expect(a.Counters).To(Equal(b.Counters))
		})

		It("settles the pbd liquid block downward inside its bounds", func() {
			s := pbdLiquid()
			Expect(s.Build()).To(Succeed())
			f0, _ := s.Publisher().Latest()
			z0 := centroidZ(f0, dynamo.KindPBD)

			zs := []float64{z0}
			for i := 1; i <= 1000; i++ {
				Expect(s.Step()).To(Succeed())
				if i%250 == 0 {
					f, _ := s.Publisher().Latest()
					expectInside(f, unitBox)
					zs = append(zs, centroidZ(f, dynamo.KindPBD))
				}
			}
			for i := 1; i < len(zs); i++ {
				Expect(zs[i]).To(BeNumerically("<", zs[i-1]))
				Expect(zs[i]).To(BeNumerically(">=", 0))
			}
			// 0.03s of free fall
			Expect(z0 - zs[len(zs)-1]).To(BeNumerically("~", 0.5*9.81*0.03*0.03, 2e-3))
		})

		It("keeps a splashing liquid inside its bounds", func() {
			s := sphSplash()
			Expect(s.Build()).To(Succeed())
			for i := 0; i < 300; i++ {
				Expect(s.Step()).To(Succeed())
				f, _ := s.Publisher().Latest()
				expectInside(f, unitBox)
			}
			f, _ := s.Publisher().Latest()
			Expect(f.Bodies).To(HaveLen(1))
			Expect(f.Counters.Contacts).To(BeNumerically(">", 0))
		})

		It("couples emitted particles in the step that injects them", func() {
			s := newScene(1e-3, 1, map[dynamo.DomainKind]physics.Options{
				dynamo.KindSPH: {Bounds: unitBox},
			})
			_, err := s.AddEntity(dynamo.RigidMaterial(), dynamo.Morph{Shape: dynamo.Box{Size: Vec3{0.2, 0.2, 0.2}}, Pos: Vec3{0.5, 0.5, 0.5}, Fixed: true}, dynamo.DefaultSurface())
			Expect(err).NotTo(HaveOccurred())
			em, err := s.AddEmitter(dynamo.NewMaterial(dynamo.KindSPH, dynamo.ModelLiquid), 100, dynamo.Surface{Color: dynamo.Color{0, 0, 1, 1}, VisMode: dynamo.VisParticle})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Build()).To(Succeed())

			Expect(em.Emit(Vec3{0.5, 0.5, 0.55}, Vec3{0, 0, -1}, 20, emitter.Square, 0.06)).To(Succeed())
			Expect(s.Step()).To(Succeed())

			f, _ := s.Publisher().Latest()
			d, ok := f.Domain(dynamo.KindSPH)
			Expect(ok).To(BeTrue())
			Expect(d.Positions).To(HaveLen(9))
			Expect(f.Counters.Contacts).To(BeNumerically(">=", 9))
			for i, v := range d.Velocities {
				Expect(v[2]).To(BeNumerically(">", -20), "particle %d was not pushed back", i)
				Expect(d.Owners[i]).To(Equal(em.ID()))
			}
			Expect(f.SurfaceOf(em.ID()).Color).To(Equal(dynamo.Color{0, 0, 1, 1}))
		})

		It("counts refused emissions once the cap is reached", func() {
			s := newScene(1e-3, 1, map[dynamo.DomainKind]physics.Options{
				dynamo.KindPBD: {Bounds: unitBox},
			})
			em, err := s.AddEmitter(dynamo.NewMaterial(dynamo.KindPBD, dynamo.ModelLiquid), 9, dynamo.DefaultSurface())
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Build()).To(Succeed())
			for i := 0; i < 3; i++ {
				Expect(em.Emit(Vec3{0.5, 0.5, 0.8}, Vec3{0, 0, -1}, 20, emitter.Square, 0.06)).To(Succeed())
				Expect(s.Step()).To(Succeed())
			}
			Expect(em.Emitted()).To(Equal(9))
			Expect(s.Counters().EmissionRefused).To(BeNumerically(">", 0))
		})
	})
})
