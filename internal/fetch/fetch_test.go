package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/a3tai/invoice-extractor/internal/fetch"
	"github.com/a3tai/invoice-extractor/internal/pdf"
	"github.com/a3tai/invoice-extractor/internal/testhelpers"
)

const listing = `<!doctype html>
<html><body>
  <a href="/files/march.pdf">March</a>
  <a href="files/april.PDF#page=2">April</a>
  <a href="https://cdn.example.com/may.pdf">May</a>
  <a href="/files/march.pdf">March again</a>
  <a href="/files/readme.txt">Readme</a>
  <a href="mailto:billing@example.com">Mail</a>
  <a href="#top">Top</a>
</body></html>`

var _ = Describe("Client", func() {
	var (
		server  *httptest.Server
		client  *fetch.Client
		ctx     context.Context
		invoice []byte
	)

	BeforeEach(func() {
		ctx = context.Background()
		invoice = testhelpers.BuildPDF(testhelpers.InvoicePages("1300-555")...)

		mux := http.NewServeMux()
		mux.HandleFunc("/files/march.pdf", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(invoice)
		})
		mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Disposition", `attachment; filename="B3 Invoice.pdf"`)
			_, _ = w.Write(invoice)
		})
		mux.HandleFunc("/invoices/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(listing))
		})
		mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/invoices/", http.StatusFound)
		})
		mux.HandleFunc("/big.pdf", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("%PDF-1.4\n" + strings.Repeat("x", 4096)))
		})
		mux.HandleFunc("/slow.pdf", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write(invoice)
		})
		server = httptest.NewServer(mux)

		client = fetch.NewClient(fetch.WithMaxSize(1024 * 1024))
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Fetch", func() {
		It("downloads a PDF named after the URL path", func() {
			d, err := client.Fetch(ctx, server.URL+"/files/march.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Name).To(Equal("march.pdf"))
			Expect(d.ContentType).To(Equal("application/pdf"))
			Expect(d.Data).To(Equal(invoice))
			Expect(d.IsPDF()).To(BeTrue())
		})

		It("prefers the Content-Disposition filename", func() {
			d, err := client.Fetch(ctx, server.URL+"/download")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Name).To(Equal("B3 Invoice.pdf"))
			Expect(d.IsPDF()).To(BeTrue())
		})

		It("rejects HTML pages", func() {
			_, err := client.Fetch(ctx, server.URL+"/invoices/")
			Expect(err).To(MatchError(pdf.ErrNotPDF))
		})

		It("reports HTTP errors", func() {
			_, err := client.Fetch(ctx, server.URL+"/missing.pdf")
			Expect(err).To(MatchError(fetch.ErrStatus))
			Expect(err.Error()).To(ContainSubstring("404"))
		})

		It("enforces the size limit", func() {
			small := fetch.NewClient(fetch.WithMaxSize(1024))
			_, err := small.Fetch(ctx, server.URL+"/big.pdf")
			Expect(err).To(MatchError(pdf.ErrTooLarge))
		})

		It("times out slow servers", func() {
			impatient := fetch.NewClient(fetch.WithTimeout(20 * time.Millisecond))
			_, err := impatient.Fetch(ctx, server.URL+"/slow.pdf")
			Expect(err).To(HaveOccurred())
		})

		It("honours context cancellation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := client.Fetch(cctx, server.URL+"/files/march.pdf")
			Expect(err).To(MatchError(context.Canceled))
		})

		DescribeTable("rejects invalid URLs",
			func(raw string) {
				_, err := client.Fetch(ctx, raw)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid URL"))
			},
			Entry("ftp scheme", "ftp://example.com/a.pdf"),
			Entry("no scheme", "example.com/a.pdf"),
			Entry("no host", "http:///a.pdf"),
		)
	})

	Describe("Discover", func() {
		It("returns absolute PDF links in page order without duplicates", func() {
			links, err := client.Discover(ctx, server.URL+"/invoices/")
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(Equal([]string{
				server.URL + "/files/march.pdf",
				server.URL + "/invoices/files/april.PDF",
				"https://cdn.example.com/may.pdf",
			}))
		})

		It("resolves links against the final URL after redirects", func() {
			links, err := client.Discover(ctx, server.URL+"/moved")
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(ContainElement(server.URL + "/invoices/files/april.PDF"))
		})
	})

	Describe("Links", func() {
		It("honours the base element", func() {
			d := &fetch.Download{
				URL:  "https://portal.example.com/a/b.html",
				Data: []byte(`<html><head><base href="https://files.example.com/docs/"></head><body><a href="x.pdf">x</a></body></html>`),
			}
			links, err := fetch.Links(d)
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(ConsistOf("https://files.example.com/docs/x.pdf"))
		})

		It("returns nothing for pages without PDF links", func() {
			d := &fetch.Download{URL: "https://portal.example.com/", Data: []byte(`<p>nothing</p>`)}
			links, err := fetch.Links(d)
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(BeEmpty())
		})
	})
})
