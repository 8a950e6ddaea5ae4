package logger_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/relloyd/cdcpipe/logger"
)

var _ = Describe("Logger", func() {
	log := logger.NewLogger("test-service", "debug", true)

	decode := func(b *bytes.Buffer) map[string]interface{} {
		var actual map[string]interface{}
		Expect(json.Unmarshal(b.Bytes(), &actual)).To(Succeed())
		return actual
	}

	It("Should have `test-service` as service name", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)
		log.Info("Testing")
		Expect(decode(logOutput)["service"]).To(Equal("test-service"))
	})

	It("Should have warning as log level", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)
		log.Warn("Testing")
		Expect(decode(logOutput)["level"]).To(Equal("warning"))
	})

	It("Should add a stack trace to errors when stack dumps are enabled", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)
		log.Error("Testing")
		actual := decode(logOutput)
		Expect(actual["level"]).To(Equal("error"))
		Expect(actual["stackTrace"]).ToNot(BeNil())
	})

	It("Should tag table loggers with the table and mode", func() {
		logOutput := bytes.NewBufferString("")
		log.SetOutput(logOutput)
		logger.ForTable(log, "demo.rac.t1", "merge").Info("Testing")
		actual := decode(logOutput)
		Expect(actual["table"]).To(Equal("demo.rac.t1"))
		Expect(actual["mode"]).To(Equal("merge"))
		Expect(actual["service"]).To(Equal("test-service"))
		Expect(actual["msg"]).To(Equal("Testing"))
	})
})
