package builtin_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/resource"
	"github.com/scusemua/notebook-runtime/worker/builtin"
)

func newInterpreter(className string, props interpreter.Properties) interpreter.Interpreter {
	intp, err := builtin.NewFactoryRegistry().New(className, props)
	Expect(err).ToNot(HaveOccurred())
	Expect(intp.Open(context.Background())).To(Succeed())
	DeferCleanup(intp.Close)
	return intp
}

func interpret(intp interpreter.Interpreter, st string, ictx *interpreter.Context) *interpreter.Result {
	result, err := intp.Interpret(context.Background(), st, ictx)
	Expect(err).ToNot(HaveOccurred())
	return result
}

var _ = Describe("Registry", func() {
	It("should hold every built-in interpreter", func() {
		Expect(builtin.NewFactoryRegistry().ClassNames()).To(ConsistOf(
			builtin.SQLClassName, builtin.EchoClassName, builtin.AngularClassName,
			builtin.ResourceClassName, builtin.SleepClassName,
		))
	})
})

var _ = Describe("EchoInterpreter", func() {
	It("should echo the paragraph with its prefix", func() {
		intp := newInterpreter(builtin.EchoClassName, interpreter.Properties{"echo.prefix": "> "})

		result := interpret(intp, "hello", interpreter.NewContext("note1", "p1", "echo", nil))
		Expect(result.Code).To(Equal(interpreter.CodeSuccess))
		Expect(result.Messages).To(ConsistOf(interpreter.Message{Type: interpreter.TypeText, Data: "> hello"}))
	})

	It("should substitute forms with their values or defaults", func() {
		intp := newInterpreter(builtin.EchoClassName, nil)

		ictx := interpreter.NewContext("note1", "p1", "echo", nil)
		ictx.Gui.Params["name"] = "world"
		result := interpret(intp, "hello ${name=you}, ${greeting=bye}", ictx)
		Expect(result.Messages[0].Data).To(Equal("hello world, bye"))
		Expect(ictx.Gui.Forms).To(HaveKey("name"))
		Expect(ictx.Gui.Forms).To(HaveKey("greeting"))
		Expect(intp.FormType()).To(Equal(interpreter.FormTypeSimple))
	})

	It("should produce html when asked to", func() {
		intp := newInterpreter(builtin.EchoClassName, nil)

		ictx := interpreter.NewContext("note1", "p1", "echo", nil)
		ictx.LocalProperties["html"] = ""
		result := interpret(intp, "<b>bold</b>", ictx)
		Expect(result.Messages[0].Type).To(Equal(interpreter.TypeHtml))
	})
})

var _ = Describe("SleepInterpreter", func() {
	It("should sleep for the given duration", func() {
		intp := newInterpreter(builtin.SleepClassName, nil)

		result := interpret(intp, "10", interpreter.NewContext("note1", "p1", "sleep", nil))
		Expect(result.Code).To(Equal(interpreter.CodeSuccess))
		Expect(result.Messages[0].Data).To(Equal("slept 10 ms\n"))
	})

	It("should reject malformed durations", func() {
		intp := newInterpreter(builtin.SleepClassName, nil)

		result := interpret(intp, "soon", interpreter.NewContext("note1", "p1", "sleep", nil))
		Expect(result.Code).To(Equal(interpreter.CodeError))
	})

	It("should report progress and stop when cancelled", func() {
		intp := newInterpreter(builtin.SleepClassName, interpreter.Properties{"sleep.concurrency": "4"})
		Expect(intp.(interpreter.ConcurrencyLimiter).MaxConcurrency()).To(Equal(4))

		ictx := interpreter.NewContext("note1", "p1", "sleep", nil)
		done := make(chan *interpreter.Result, 1)
		go func() {
			defer GinkgoRecover()
			done <- interpret(intp, "10000", ictx)
		}()

		Eventually(func() int { return intp.Progress(ictx) }).Should(BeNumerically(">", 0))
		Expect(intp.Cancel(ictx)).To(Succeed())

		var result *interpreter.Result
		Eventually(done).Should(Receive(&result))
		Expect(result.Code).To(Equal(interpreter.CodeAbort))
		Expect(intp.Progress(ictx)).To(Equal(0))
	})
})

var _ = Describe("AngularInterpreter", func() {
	var (
		intp     interpreter.Interpreter
		registry *angular.Registry
		ictx     *interpreter.Context
	)

	BeforeEach(func() {
		intp = newInterpreter(builtin.AngularClassName, nil)
		registry = angular.NewRegistry("angular-shared_process", 10)
		ictx = interpreter.NewContext("note1", "p1", "angular", nil)
		ictx.AngularObjectRegistry = registry
	})

	It("should bind and read objects", func() {
		result := interpret(intp, "bind count 1\nbindGlobal theme \"dark\"\n# comment\nget count\nget theme", ictx)
		Expect(result.Code).To(Equal(interpreter.CodeSuccess), result.String())
		Expect(result.Messages[0].Data).To(Equal("count = 1\ntheme = \"dark\"\n"))

		Expect(registry.Get("count", "note1", "")).ToNot(BeNil())
		Expect(registry.Get("theme", "", "").IsGlobal()).To(BeTrue())
	})

	It("should list and unbind objects", func() {
		interpret(intp, "bind a {\"x\":1}\nbindGlobal b plain text", ictx)

		result := interpret(intp, "list", ictx)
		Expect(result.Messages[0].Data).To(ContainSubstring("a\tnote\t{\"x\":1}\n"))
		Expect(result.Messages[0].Data).To(ContainSubstring("b\tglobal\t\"plain text\"\n"))

		interpret(intp, "unbind a\nunbindGlobal b", ictx)
		Expect(registry.Len()).To(Equal(0))
	})

	It("should report missing objects and unknown commands", func() {
		Expect(interpret(intp, "get missing", ictx).Code).To(Equal(interpreter.CodeError))
		Expect(interpret(intp, "frobnicate x", ictx).Code).To(Equal(interpreter.CodeError))
		Expect(interpret(intp, "bind", ictx).Code).To(Equal(interpreter.CodeError))
	})

	It("should fail without a registry", func() {
		Expect(interpret(intp, "list", interpreter.NewContext("note1", "p1", "angular", nil)).Code).To(Equal(interpreter.CodeError))
	})
})

var _ = Describe("ResourceInterpreter", func() {
	var (
		intp interpreter.Interpreter
		pool *resource.LocalPool
		ictx *interpreter.Context
	)

	BeforeEach(func() {
		intp = newInterpreter(builtin.ResourceClassName, nil)
		pool = resource.NewLocalPool("resource-shared_process")
		ictx = interpreter.NewContext("note1", "p1", "resource", nil)
		ictx.ResourcePool = pool
	})

	It("should put and get resources", func() {
		result := interpret(intp, "put table {\"a\":1,\"b\":2}\nget table", ictx)
		Expect(result.Code).To(Equal(interpreter.CodeSuccess), result.String())
		Expect(result.Messages[0].Data).To(Equal("table = {\"a\":1,\"b\":2}\n"))

		res, ok := pool.GetLocal("note1", "", "table")
		Expect(ok).To(BeTrue())
		Expect(res.Id().ResourcePoolId).To(Equal("resource-shared_process"))
	})

	It("should invoke methods on resources", func() {
		interpret(intp, "put table {\"a\":1,\"b\":2}", ictx)

		result := interpret(intp, "invoke table length\ninvoke table keys\ninvoke table lookup b", ictx)
		Expect(result.Code).To(Equal(interpreter.CodeSuccess), result.String())
		Expect(result.Messages[0].Data).To(Equal("2\n[\"a\",\"b\"]\n2\n"))

		Expect(interpret(intp, "invoke table explode", ictx).Code).To(Equal(interpreter.CodeError))
	})

	It("should store the result of an invocation next to the resource", func() {
		interpret(intp, "put table {\"a\":1,\"b\":2}", ictx)

		result := interpret(intp, "store table names keys", ictx)
		Expect(result.Code).To(Equal(interpreter.CodeSuccess), result.String())

		res, ok := pool.GetLocal("note1", "", "names")
		Expect(ok).To(BeTrue())
		value, _ := res.Value()
		Expect(value).To(Equal([]string{"a", "b"}))
	})

	It("should list and remove resources", func() {
		interpret(intp, "put a 1\nput b 2", ictx)
		Expect(interpret(intp, "list", ictx).Messages[0].Data).To(ContainSubstring("resource-shared_process/"))

		Expect(interpret(intp, "remove a", ictx).Code).To(Equal(interpreter.CodeSuccess))
		Expect(interpret(intp, "remove a", ictx).Code).To(Equal(interpreter.CodeError))
		Expect(pool.GetAllLocal()).To(HaveLen(1))
	})
})
