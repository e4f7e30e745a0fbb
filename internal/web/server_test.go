package web_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/a3tai/invoice-extractor/internal/config"
	"github.com/a3tai/invoice-extractor/internal/export"
	"github.com/a3tai/invoice-extractor/internal/service"
	"github.com/a3tai/invoice-extractor/internal/testhelpers"
	"github.com/a3tai/invoice-extractor/internal/web"
)

const maxFileSize = 64 * 1024

type upload struct {
	name string
	data []byte
}

func multipartRequest(path string, fields map[string]string, files ...upload) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(f.data)
		Expect(err).NotTo(HaveOccurred())
	}
	for k, v := range fields {
		Expect(mw.WriteField(k, v)).To(Succeed())
	}
	Expect(mw.Close()).To(Succeed())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.InvoiceDirectory = GinkgoT().TempDir()
	cfg.MaxFileSize = maxFileSize
	return cfg
}

var _ = Describe("Server", func() {
	var (
		router  http.Handler
		invoice []byte
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)

		cfg := newConfig()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc, err := service.NewService(cfg, logger)
		Expect(err).NotTo(HaveOccurred())

		server, err := web.NewServer(cfg, svc, logger)
		Expect(err).NotTo(HaveOccurred())
		router = server.Handler()

		invoice = testhelpers.BuildPDF(testhelpers.InvoicePages("1300-8812")...)
	})

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	Describe("GET /", func() {
		It("renders the upload form", func() {
			resp := serve(httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`name="files"`))
			Expect(resp.Body.String()).To(ContainSubstring("Commercial_Value"))
		})
	})

	Describe("GET /health", func() {
		It("reports the service as up", func() {
			resp := serve(httptest.NewRequest(http.MethodGet, "/health", nil))

			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(MatchJSON(`{"status":"UP","ocr":"none"}`))
		})
	})

	Describe("POST /extract", func() {
		It("returns the spreadsheet with one row per parsed file", func() {
			resp := serve(multipartRequest("/extract", nil,
				upload{"first.pdf", invoice},
				upload{"broken.pdf", []byte("not a pdf")},
				upload{"second.pdf", invoice},
			))

			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Header().Get("Content-Type")).To(Equal(export.FormatXLSX.ContentType()))
			Expect(resp.Header().Get("Content-Disposition")).To(ContainSubstring(export.DefaultFilename))
			Expect(resp.Header().Get("X-Extracted-Rows")).To(Equal("2"))
			Expect(resp.Header().Values("X-Extract-Warning")).To(HaveLen(1))
			Expect(resp.Header().Get("X-Extract-Warning")).To(HavePrefix("Nothing%20extracted%20from%20broken.pdf"))

			f, err := excelize.OpenReader(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()
			rows, err := f.GetRows(export.SheetName)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[1][1]).To(Equal("first.pdf"))
			Expect(rows[2][1]).To(Equal("second.pdf"))
		})

		It("returns CSV when asked", func() {
			resp := serve(multipartRequest("/extract", map[string]string{"format": "csv"}, upload{"inv.pdf", invoice}))

			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Header().Get("Content-Disposition")).To(ContainSubstring("Invoice_Summary.csv"))

			records, err := csv.NewReader(resp.Body).ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[1][2]).To(Equal("1300-8812"))
		})

		It("rejects an unknown format", func() {
			resp := serve(multipartRequest("/extract", map[string]string{"format": "ods"}, upload{"inv.pdf", invoice}))
			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects files over the size limit before extracting", func() {
			big := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), maxFileSize)...)
			resp := serve(multipartRequest("/extract", nil, upload{"inv.pdf", invoice}, upload{"huge.pdf", big}))

			Expect(resp.Code).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(resp.Body.String()).To(ContainSubstring("huge.pdf is larger than"))
		})

		It("rejects a request body over the total upload limit before reading it all", func() {
			body := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 3<<20)...)
			resp := serve(multipartRequest("/extract", nil, upload{"scan.pdf", body}))

			Expect(resp.Code).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(resp.Body.String()).To(ContainSubstring("in total"))
		})

		It("rejects too many files in one upload", func() {
			files := make([]upload, 21)
			for i := range files {
				files[i] = upload{"inv" + strconv.Itoa(i) + ".pdf", invoice}
			}
			resp := serve(multipartRequest("/extract", nil, files...))

			Expect(resp.Code).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(resp.Body.String()).To(ContainSubstring("at most 20 files"))
		})

		It("rejects files that are not PDFs", func() {
			resp := serve(multipartRequest("/extract", nil, upload{"notes.txt", []byte("hello")}))
			Expect(resp.Code).To(Equal(http.StatusUnsupportedMediaType))
		})

		It("rejects a request without files", func() {
			resp := serve(multipartRequest("/extract", map[string]string{"format": "xlsx"}))
			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})

		It("reports zero rows as unprocessable", func() {
			resp := serve(multipartRequest("/extract", nil,
				upload{"blank.pdf", testhelpers.BuildPDF([]string{})},
				upload{"junk.pdf", []byte("%PDF-1.4 junk")},
			))

			Expect(resp.Code).To(Equal(http.StatusUnprocessableEntity))

			var body struct {
				Error    string `json:"error"`
				Warnings []struct {
					File string `json:"file"`
					Text string `json:"text"`
				} `json:"warnings"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Error).To(Equal("No data extracted from any file."))
			Expect(body.Warnings).To(HaveLen(2))
			Expect(body.Warnings[0].Text).To(HavePrefix("Nothing extracted from blank.pdf"))
		})
	})

	Describe("POST /api/extract", func() {
		It("returns the records as JSON", func() {
			resp := serve(multipartRequest("/api/extract", nil, upload{"inv.pdf", invoice}))

			Expect(resp.Code).To(Equal(http.StatusOK))

			var body struct {
				Rows     int                      `json:"rows"`
				Records  []map[string]interface{} `json:"records"`
				Warnings []interface{}            `json:"warnings"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Rows).To(Equal(1))
			Expect(body.Warnings).To(BeEmpty())
			Expect(body.Records).To(HaveLen(1))
			Expect(body.Records[0]).To(HaveKeyWithValue("filename", "inv.pdf"))
		})
	})
})

var _ = Describe("Run", func() {
	It("serves until the context is canceled", func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		port := listener.Addr().(*net.TCPAddr).Port
		Expect(listener.Close()).To(Succeed())

		cfg := newConfig()
		cfg.Mode = "server"
		cfg.Host = "127.0.0.1"
		cfg.Port = port

		svc, err := service.NewService(cfg, nil)
		Expect(err).NotTo(HaveOccurred())
		server, err := web.NewServer(cfg, svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- server.Run(ctx) }()

		url := "http://127.0.0.1:" + strconv.Itoa(port) + "/health"
		Eventually(func() int {
			resp, err := http.Get(url)
			if err != nil {
				return 0
			}
			resp.Body.Close()
			return resp.StatusCode
		}, 2*time.Second, 20*time.Millisecond).Should(Equal(http.StatusOK))

		cancel()
		Eventually(done, 6*time.Second).Should(Receive(BeNil()))
	})
})
