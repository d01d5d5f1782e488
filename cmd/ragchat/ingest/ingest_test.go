package ingestcmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/api"
	ingestcmder "github.com/papercomputeco/ragchat/cmd/ragchat/ingest"
	"github.com/papercomputeco/ragchat/pkg/llm"
)

var _ = Describe("Ingest command", func() {
	var (
		server   *httptest.Server
		uploaded []string
		deleted  []string
	)

	BeforeEach(func() {
		GinkgoT().Setenv("NO_COLOR", "1")
		uploaded = nil
		deleted = nil

		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/files", func(w http.ResponseWriter, r *http.Request) {
			_, fh, err := r.FormFile("file")
			Expect(err).NotTo(HaveOccurred())
			if strings.HasSuffix(fh.Filename, ".docx") {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(llm.ErrorResponse{Error: "unsupported file format"})
				return
			}
			uploaded = append(uploaded, fh.Filename)
			_ = json.NewEncoder(w).Encode(api.UploadResponse{
				Message:     "File uploaded successfully",
				FileName:    fh.Filename,
				DocumentIDs: []string{"a-0", "a-1"},
			})
		})
		mux.HandleFunc("GET /v1/files", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"files": []string{"notes.md"}})
		})
		mux.HandleFunc("DELETE /v1/files/{name}", func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("name") != "notes.md" {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(llm.ErrorResponse{Error: "File not found"})
				return
			}
			deleted = append(deleted, r.PathValue("name"))
			_ = json.NewEncoder(w).Encode(api.DeleteResponse{Message: "File deleted successfully", FileName: "notes.md"})
		})
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)
	})

	execute := func(args ...string) (string, error) {
		cmd := ingestcmder.NewIngestCmd()
		cmd.PersistentFlags().String("config-dir", GinkgoT().TempDir(), "")
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(append(args, "--api-target", server.URL))
		err := cmd.Execute()
		return out.String(), err
	}

	writeFile := func(name string) string {
		path := filepath.Join(GinkgoT().TempDir(), name)
		Expect(os.WriteFile(path, []byte("some text"), 0o600)).To(Succeed())
		return path
	}

	It("uploads every file argument", func() {
		out, err := execute(writeFile("notes.md"), writeFile("faq.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(uploaded).To(Equal([]string{"notes.md", "faq.txt"}))
		Expect(out).To(ContainSubstring("2 chunks indexed"))
	})

	It("continues past failed files and reports them", func() {
		_, err := execute(writeFile("report.docx"), writeFile("notes.md"))
		Expect(err).To(MatchError("1 of 2 files failed to ingest"))
		Expect(uploaded).To(Equal([]string{"notes.md"}))
	})

	It("requires a file unless listing or deleting", func() {
		_, err := execute()
		Expect(err).To(MatchError(ContainSubstring("at least one file is required")))
	})

	It("lists uploaded documents", func() {
		out, err := execute("--list")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("notes.md"))
	})

	It("deletes a document", func() {
		_, err := execute("--delete", "notes.md")
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(Equal([]string{"notes.md"}))

		_, err = execute("--delete", "missing.md")
		Expect(err).To(MatchError(ContainSubstring("document missing.md not found")))
	})
})
