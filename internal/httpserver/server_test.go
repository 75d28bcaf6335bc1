package httpserver_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/balancer-core/internal/httpserver"
)

var _ = Describe("HTTP Server", func() {
	var (
		log     *slog.Logger
		handler http.Handler
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "ok")
		})
	})

	DescribeTable("address validation",
		func(addr string, valid bool) {
			srv, err := httpserver.New(addr, handler, log)
			if valid {
				Expect(err).NotTo(HaveOccurred())
				Expect(srv).NotTo(BeNil())
				return
			}
			Expect(err).To(HaveOccurred())
			Expect(srv).To(BeNil())
		},
		Entry("host name", "localhost:9999", true),
		Entry("IP address", "127.0.0.1:9999", true),
		Entry("port only", ":9999", true),
		Entry("too many colons", "invalid:host:port", false),
		Entry("missing port", "localhost", false),
		Entry("empty port", "localhost:", false),
		Entry("bad host", "bad_host!:9999", false),
	)

	DescribeTable("ValidateAddress",
		func(value interface{}, valid bool) {
			err := httpserver.ValidateAddress(value)
			if valid {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			Expect(err).To(HaveOccurred())
		},
		Entry("host and port", "metrics.internal:9100", true),
		Entry("port only", ":9100", true),
		Entry("empty string", "", false),
		Entry("empty port", "127.0.0.1:", false),
		Entry("not a string", 9100, false),
	)

	Context("server lifecycle", func() {
		const addr = "127.0.0.1:19999"

		It("serves until the context is cancelled", func() {
			srv, err := httpserver.New(addr, handler, log)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- srv.Run(ctx)
			}()

			Eventually(func() (string, error) {
				res, err := http.Get("http://" + addr + "/")
				if err != nil {
					return "", err
				}
				defer res.Body.Close()
				body, err := io.ReadAll(res.Body)
				return string(body), err
			}, 2*time.Second, 20*time.Millisecond).Should(Equal("ok"))

			cancel()
			Eventually(done, 6*time.Second).Should(Receive(BeNil()))
		})

		It("shuts down cleanly before starting", func() {
			srv, err := httpserver.New(addr, handler, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv.Shutdown(context.Background())).To(Succeed())
			Expect(srv.Start()).To(Succeed())
		})
	})
})
