package strategy_test

import (
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/balancer-core/internal/backend"
	"github.com/angeloszaimis/balancer-core/internal/strategy"
)

var _ = Describe("Leastconn", func() {
	var (
		strat   *strategy.LeastConnStrategy
		servers []backend.ServerID
	)

	counts := func() map[backend.ServerID]int {
		out := make(map[backend.ServerID]int)
		for _, l := range strat.Snapshot() {
			out[l.ID] = l.Connections
		}
		return out
	}

	BeforeEach(func() {
		servers = []backend.ServerID{"A", "B", "C"}

		var err error
		strat, err = strategy.NewLeastConnStrategy(servers)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("SelectNext", func() {
		It("should start every server at zero and pick the first", func() {
			Expect(counts()).To(Equal(map[backend.ServerID]int{"A": 0, "B": 0, "C": 0}))
			Expect(strat.SelectNext()).To(Equal(backend.ServerID("A")))
		})

		It("should select server with fewest connections", func() {
			Expect(strat.NotifyStart("A")).To(Succeed())
			Expect(strat.NotifyStart("B")).To(Succeed())
			Expect(strat.NotifyStart("A")).To(Succeed())

			Expect(counts()).To(Equal(map[backend.ServerID]int{"A": 2, "B": 1, "C": 0}))
			Expect(strat.SelectNext()).To(Equal(backend.ServerID("C")))

			Expect(strat.NotifyFinish("A")).To(Succeed())
			Expect(strat.NotifyFinish("A")).To(Succeed())

			Expect(counts()).To(Equal(map[backend.ServerID]int{"A": 0, "B": 1, "C": 0}))
			Expect(strat.SelectNext()).To(Equal(backend.ServerID("A")))
		})

		It("should break ties by pool order", func() {
			Expect(strat.NotifyStart("A")).To(Succeed())
			Expect(strat.SelectNext()).To(Equal(backend.ServerID("B")))

			Expect(strat.NotifyStart("B")).To(Succeed())
			Expect(strat.SelectNext()).To(Equal(backend.ServerID("C")))

			Expect(strat.NotifyStart("C")).To(Succeed())
			Expect(strat.SelectNext()).To(Equal(backend.ServerID("A")))
		})

		It("should not change counts", func() {
			for i := 0; i < 10; i++ {
				strat.SelectNext()
			}
			Expect(counts()).To(Equal(map[backend.ServerID]int{"A": 0, "B": 0, "C": 0}))
		})

		It("should always return a server holding the minimum count", func() {
			r := rand.New(rand.NewPCG(1, 2))

			for i := 0; i < 500; i++ {
				id := servers[r.IntN(len(servers))]
				if r.IntN(3) == 0 {
					Expect(strat.NotifyFinish(id)).To(Succeed())
				} else {
					Expect(strat.NotifyStart(id)).To(Succeed())
				}

				loads := strat.Snapshot()
				lowest := loads[0].Connections
				for _, l := range loads {
					lowest = min(lowest, l.Connections)
				}

				selected, err := strat.Connections(strat.SelectNext())
				Expect(err).NotTo(HaveOccurred())
				Expect(selected).To(Equal(lowest))
			}
		})
	})

	Describe("NotifyFinish", func() {
		It("should floor counts at zero", func() {
			Expect(strat.NotifyFinish("B")).To(Succeed())
			Expect(strat.NotifyFinish("B")).To(Succeed())

			n, err := strat.Connections("B")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))

			Expect(strat.NotifyStart("B")).To(Succeed())
			n, _ = strat.Connections("B")
			Expect(n).To(Equal(1))
		})
	})

	Describe("Unknown servers", func() {
		BeforeEach(func() {
			Expect(strat.NotifyStart("A")).To(Succeed())
		})

		It("should reject NotifyStart without touching counts", func() {
			err := strat.NotifyStart("ghost")
			Expect(err).To(MatchError(strategy.ErrUnknownServer))

			var unknown *strategy.UnknownServerError
			Expect(err).To(BeAssignableToTypeOf(unknown))
			Expect(counts()).To(Equal(map[backend.ServerID]int{"A": 1, "B": 0, "C": 0}))
		})

		It("should reject NotifyFinish without touching counts", func() {
			Expect(strat.NotifyFinish("ghost")).To(MatchError(strategy.ErrUnknownServer))
			Expect(counts()).To(Equal(map[backend.ServerID]int{"A": 1, "B": 0, "C": 0}))
			Expect(counts()).NotTo(HaveKey(backend.ServerID("ghost")))
		})

		It("should reject Connections lookups", func() {
			_, err := strat.Connections("ghost")
			Expect(err).To(MatchError(strategy.ErrUnknownServer))
		})
	})

	Describe("Construction", func() {
		It("should fail with a configuration error for an empty pool", func() {
			s, err := strategy.NewLeastConnStrategy([]backend.ServerID{})
			Expect(err).To(MatchError(strategy.ErrConfiguration))
			Expect(s).To(BeNil())
		})
	})

	Describe("Concurrent accounting", func() {
		It("should return every count to zero after paired start and finish", func() {
			const (
				workers  = 32
				requests = 200
			)

			var (
				wg       sync.WaitGroup
				done     = make(chan struct{})
				negative atomic.Bool
			)

			go func() {
				for {
					select {
					case <-done:
						return
					default:
					}
					for _, l := range strat.Snapshot() {
						if l.Connections < 0 {
							negative.Store(true)
						}
					}
					runtime.Gosched()
				}
			}()

			wg.Add(workers)
			for w := 0; w < workers; w++ {
				go func(seed uint64) {
					defer GinkgoRecover()
					defer wg.Done()

					r := rand.New(rand.NewPCG(seed, seed+1))
					for i := 0; i < requests; i++ {
						var id backend.ServerID
						if r.IntN(2) == 0 {
							id = strat.SelectNext()
						} else {
							id = servers[r.IntN(len(servers))]
						}

						Expect(strat.NotifyStart(id)).To(Succeed())
						runtime.Gosched()
						Expect(strat.NotifyFinish(id)).To(Succeed())
					}
				}(uint64(w))
			}

			wg.Wait()
			close(done)

			Expect(negative.Load()).To(BeFalse())
			Expect(counts()).To(Equal(map[backend.ServerID]int{"A": 0, "B": 0, "C": 0}))
		})

		It("should not lose increments under contention", func() {
			const workers = 16

			var wg sync.WaitGroup
			wg.Add(workers)
			for w := 0; w < workers; w++ {
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					for i := 0; i < 100; i++ {
						Expect(strat.NotifyStart("B")).To(Succeed())
					}
				}()
			}
			wg.Wait()

			n, err := strat.Connections("B")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(workers * 100))
			Expect(strat.SelectNext()).To(Equal(backend.ServerID("A")))
		})
	})

	It("should report its name", func() {
		Expect(strat.Name()).To(Equal("least-conn"))
	})
})
