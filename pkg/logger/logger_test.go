package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/logger"
)

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("creates a default text logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("hello", "key", "value")

			output := buf.String()
			Expect(output).To(ContainSubstring("hello"))
			Expect(output).To(ContainSubstring("key"))
			Expect(output).To(ContainSubstring("value"))
		})

		It("respects debug level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
			l.Debug("debug msg")

			Expect(buf.String()).To(ContainSubstring("debug msg"))
		})

		It("filters debug when not enabled", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(false))
			l.Debug("hidden")

			Expect(buf.String()).To(BeEmpty())
		})

		It("creates a JSON logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Info("structured", "count", 42)

			var parsed map[string]any
			err := json.Unmarshal(buf.Bytes(), &parsed)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed["msg"]).To(Equal("structured"))
			Expect(parsed["count"]).To(BeNumerically("==", 42))
		})

		It("creates a pretty logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
			l.Info("pretty output")

			Expect(buf.String()).To(ContainSubstring("pretty output"))
		})

		It("supports multiple writers", func() {
			var buf1, buf2 bytes.Buffer
			l := logger.New(logger.WithWriters(&buf1, &buf2))
			l.Info("multi")

			Expect(buf1.String()).To(ContainSubstring("multi"))
			Expect(buf2.String()).To(ContainSubstring("multi"))
		})

		It("returns *slog.Logger", func() {
			l := logger.New()
			// Verify it's a real *slog.Logger by calling Handler()
			Expect(l.Handler()).NotTo(BeNil())
		})
	})

	Describe("Nop", func() {
		It("does not panic on any method", func() {
			l := logger.Nop()
			Expect(func() {
				l.Debug("msg")
				l.Info("msg")
				l.Warn("msg")
				l.Error("msg")
				l.With("key", "value").Info("msg")
				l.WithGroup("group").Info("msg")
			}).NotTo(Panic())
		})

		It("returns *slog.Logger", func() {
			l := logger.Nop()
			Expect(l.Handler()).NotTo(BeNil())
		})

		It("discards all output", func() {
			l := logger.Nop()
			// Nop handler should report Enabled=false for all levels
			Expect(l.Handler().Enabled(context.Background(), slog.LevelInfo)).To(BeFalse())
		})
	})

	Describe("Multi", func() {
		It("dispatches to all loggers", func() {
			var buf1, buf2 bytes.Buffer
			l1 := logger.New(logger.WithWriter(&buf1))
			l2 := logger.New(logger.WithWriter(&buf2))
			multi := logger.Multi(l1, l2)

			multi.Info("broadcast", "key", "val")

			Expect(buf1.String()).To(ContainSubstring("broadcast"))
			Expect(buf2.String()).To(ContainSubstring("broadcast"))
		})

		It("supports With on multi logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			multi := logger.Multi(l)

			child := multi.With("component", "test")
			child.Info("hello")

			lines := strings.TrimSpace(buf.String())
			var parsed map[string]any
			err := json.Unmarshal([]byte(lines), &parsed)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed["component"]).To(Equal("test"))
		})

		It("supports WithGroup on multi logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			multi := logger.Multi(l)

			child := multi.WithGroup("request")
			child.Info("processed", "method", "GET")

			lines := strings.TrimSpace(buf.String())
			var parsed map[string]any
			err := json.Unmarshal([]byte(lines), &parsed)
			Expect(err).NotTo(HaveOccurred())

			group, ok := parsed["request"].(map[string]any)
			Expect(ok).To(BeTrue(), "expected 'request' group in JSON output")
			Expect(group["method"]).To(Equal("GET"))
		})

		It("returns *slog.Logger", func() {
			multi := logger.Multi(logger.Nop())
			Expect(multi.Handler()).NotTo(BeNil())
		})
	})

	Describe("With", func() {
		It("binds fields to child logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			child := l.With("service", "api")
			child.Info("started")

			lines := strings.TrimSpace(buf.String())
			var parsed map[string]any
			err := json.Unmarshal([]byte(lines), &parsed)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed["service"]).To(Equal("api"))
			Expect(parsed["msg"]).To(Equal("started"))
		})
	})

	Describe("WithGroup", func() {
		It("nests keys under group", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			child := l.WithGroup("request")
			child.Info("processed", "method", "GET")

			lines := strings.TrimSpace(buf.String())
			var parsed map[string]any
			err := json.Unmarshal([]byte(lines), &parsed)
			Expect(err).NotTo(HaveOccurred())

			// slog groups nest attributes under the group name
			group, ok := parsed["request"].(map[string]any)
			Expect(ok).To(BeTrue(), "expected 'request' group in JSON output")
			Expect(group["method"]).To(Equal("GET"))
		})
	})
})

type failingHandler struct{ err error }

func (f failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (f failingHandler) Handle(context.Context, slog.Record) error { return f.err }
func (f failingHandler) WithAttrs([]slog.Attr) slog.Handler        { return f }
func (f failingHandler) WithGroup(string) slog.Handler             { return f }

var _ = Describe("Multi handler errors", func() {
	It("still writes to the other loggers and joins the errors", func() {
		var buf bytes.Buffer
		diskFull := errors.New("disk full")
		multi := logger.Multi(slog.New(failingHandler{err: diskFull}), logger.New(logger.WithWriter(&buf)))

		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "kept", 0)
		err := multi.Handler().Handle(context.Background(), rec)

		Expect(err).To(MatchError(diskFull))
		Expect(buf.String()).To(ContainSubstring("kept"))
	})
})

var _ = Describe("Redaction", func() {
	var (
		buf bytes.Buffer
		l   *slog.Logger
	)

	parse := func() map[string]any {
		var parsed map[string]any
		Expect(json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed)).To(Succeed())
		return parsed
	}

	BeforeEach(func() {
		buf.Reset()
		l = logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithRedact("session"))
	})

	It("masks default and configured keys", func() {
		l.Info("connecting", "dsn", "host=db password=hunter2", "Token", "abc", "session", "s1", "provider", "postgres")

		parsed := parse()
		Expect(parsed["dsn"]).To(Equal("[redacted]"))
		Expect(parsed["Token"]).To(Equal("[redacted]"))
		Expect(parsed["session"]).To(Equal("[redacted]"))
		Expect(parsed["provider"]).To(Equal("postgres"))
	})

	It("masks URL passwords", func() {
		l.Info("using vector store", "target", "postgres://rag:hunter2@db:5432/ragchat", "plain", "http://localhost:6333")

		parsed := parse()
		Expect(parsed["target"]).To(Equal("postgres://rag:xxxxx@db:5432/ragchat"))
		Expect(parsed["plain"]).To(Equal("http://localhost:6333"))
	})

	It("masks attributes bound with With and inside groups", func() {
		l.With("password", "hunter2").Info("bound", slog.Group("redis", "password", "hunter2", "addr", "localhost:6379"))

		parsed := parse()
		Expect(parsed["password"]).To(Equal("[redacted]"))
		group, ok := parsed["redis"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(group["password"]).To(Equal("[redacted]"))
		Expect(group["addr"]).To(Equal("localhost:6379"))
		Expect(buf.String()).NotTo(ContainSubstring("hunter2"))
	})

	It("masks secrets in pretty output", func() {
		pretty := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
		pretty.Info("connecting", "api_key", "sk-123")

		Expect(buf.String()).To(ContainSubstring("connecting"))
		Expect(buf.String()).NotTo(ContainSubstring("sk-123"))
	})
})

var _ = Describe("NewRotatingFile", func() {
	It("creates the parent directory and writes through", func() {
		dir, err := os.MkdirTemp("", "logger-test-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "logs", "ragchat.log")
		w, err := logger.NewRotatingFile(path)
		Expect(err).NotTo(HaveOccurred())

		l := logger.New(logger.WithWriter(w), logger.WithJSON(true))
		l.Info("to file")
		Expect(w.Close()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("to file"))
	})
})
