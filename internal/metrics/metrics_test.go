package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/balancer-core/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("RecordSelection", func() {
		It("should track selections per server", func() {
			m.RecordSelection("server1")
			m.RecordSelection("server1")
			m.RecordSelection("server2")

			snap := m.Snapshot("round-robin")
			Expect(snap.TotalSelections).To(Equal(int64(3)))
			Expect(snap.Servers["server1"].Selections).To(Equal(int64(2)))
			Expect(snap.Servers["server2"].Selections).To(Equal(int64(1)))
		})
	})

	Describe("RecordStart and RecordFinish", func() {
		It("should track in-flight requests", func() {
			m.RecordStart("server1")
			m.RecordStart("server1")
			m.RecordFinish("server1")

			Expect(m.InFlight("server1")).To(Equal(int64(1)))

			snap := m.Snapshot("least-conn")
			Expect(snap.InFlight).To(Equal(int64(1)))
			Expect(snap.Servers["server1"]).To(Equal(metrics.ServerMetrics{
				Started:  2,
				Finished: 1,
				InFlight: 1,
			}))
		})

		It("should never report negative in-flight counts", func() {
			m.RecordFinish("server1")
			m.RecordFinish("server1")

			Expect(m.InFlight("server1")).To(Equal(int64(0)))
			Expect(m.Snapshot("least-conn").Servers["server1"].Finished).To(Equal(int64(2)))
		})
	})

	Describe("RecordRejection", func() {
		It("should count rejected accounting calls without per-server entries", func() {
			for i := 0; i < 100; i++ {
				m.RecordRejection()
			}

			snap := m.Snapshot("least-conn")
			Expect(snap.UnknownServers).To(Equal(int64(100)))
			Expect(snap.Servers).To(BeEmpty())
			Expect(snap.TotalSelections).To(BeZero())
		})
	})

	Describe("Snapshot", func() {
		It("should return a snapshot with algorithm", func() {
			Expect(m.Snapshot("least-conn").Algorithm).To(Equal("least-conn"))
		})

		It("should include uptime", func() {
			time.Sleep(5 * time.Millisecond)
			Expect(m.Snapshot("round-robin").Uptime).To(BeNumerically(">", 0))
		})

		It("should handle empty metrics", func() {
			snap := m.Snapshot("round-robin")
			Expect(snap.TotalSelections).To(BeZero())
			Expect(snap.Servers).To(BeEmpty())
		})

		It("should return independent snapshots", func() {
			m.RecordSelection("server1")
			snap1 := m.Snapshot("round-robin")
			m.RecordSelection("server1")
			snap2 := m.Snapshot("round-robin")

			Expect(snap1.TotalSelections).To(Equal(int64(1)))
			Expect(snap2.TotalSelections).To(Equal(int64(2)))
		})
	})
})
