package daemon_test

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/resource"
	"github.com/scusemua/notebook-runtime/common/scheduler"
	"github.com/scusemua/notebook-runtime/worker/builtin"
	"github.com/scusemua/notebook-runtime/worker/daemon"
)

const (
	groupId   = "builtin-shared_process"
	sessionId = "shared_session"
)

func newDaemon(mode configuration.ExecutionMode) *daemon.Daemon {
	opts := &configuration.CommonOptions{ExecutionMode: mode.String()}
	Expect(opts.Validate()).To(Succeed())

	d := daemon.NewDaemon(groupId, opts, builtin.NewFactoryRegistry(), nil, nil)
	DeferCleanup(d.Destroy)
	return d
}

func createInterpreter(d *daemon.Daemon, className string, props map[string]string) {
	_, err := d.CreateInterpreter(context.Background(), &proto.CreateInterpreterRequest{
		GroupId:    groupId,
		SessionId:  sessionId,
		ClassName:  className,
		Properties: props,
		UserName:   "alice",
	})
	Expect(err).ToNot(HaveOccurred())
}

func wireContext(paragraphId string) *proto.RemoteInterpreterContext {
	return interpreter.NewContext("note1", paragraphId, "builtin", interpreter.NewAuthenticationInfo("alice")).ToWire()
}

func interpretAsync(d *daemon.Daemon, ctx context.Context, className string, paragraphId string, st string) <-chan *proto.RemoteInterpreterResult {
	done := make(chan *proto.RemoteInterpreterResult, 1)
	go func() {
		defer GinkgoRecover()

		result, err := d.Interpret(ctx, &proto.InterpretRequest{
			SessionId: sessionId,
			ClassName: className,
			St:        st,
			Context:   wireContext(paragraphId),
		})
		if err != nil {
			close(done)
			return
		}
		done <- result
	}()
	return done
}

func interpret(d *daemon.Daemon, className string, paragraphId string, st string) *proto.RemoteInterpreterResult {
	result, err := d.Interpret(context.Background(), &proto.InterpretRequest{
		SessionId: sessionId,
		ClassName: className,
		St:        st,
		Context:   wireContext(paragraphId),
	})
	Expect(err).ToNot(HaveOccurred())
	return result
}

func jobStatus(d *daemon.Daemon, jobId string) func() string {
	return func() string {
		reply, err := d.GetStatus(context.Background(), &proto.StatusRequest{SessionId: sessionId, JobId: jobId})
		Expect(err).ToNot(HaveOccurred())
		return reply.Status
	}
}

var _ = Describe("Daemon", func() {
	Context("interpreters", func() {
		It("should create interpreters once per session and class", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)

			createInterpreter(d, builtin.EchoClassName, map[string]string{"echo.prefix": "1:"})
			createInterpreter(d, builtin.EchoClassName, map[string]string{"echo.prefix": "2:"})

			result := interpret(d, builtin.EchoClassName, "p1", "hi")
			Expect(result.Code).To(Equal(string(interpreter.CodeSuccess)))
			Expect(result.Msg).To(HaveLen(1))
			Expect(result.Msg[0].Data).To(Equal("1:hi"))
			Expect(d.Sessions()).To(ConsistOf(sessionId))
		})

		It("should report unknown classes, sessions and interpreters", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)

			_, err := d.CreateInterpreter(context.Background(), &proto.CreateInterpreterRequest{
				GroupId: groupId, SessionId: sessionId, ClassName: "builtin.missing",
			})
			Expect(status.Code(err)).To(Equal(codes.NotFound))

			_, err = d.Open(context.Background(), &proto.InterpreterRequest{SessionId: "other", ClassName: builtin.EchoClassName})
			Expect(status.Code(err)).To(Equal(codes.NotFound))

			createInterpreter(d, builtin.EchoClassName, nil)
			_, err = d.GetFormType(context.Background(), &proto.InterpreterRequest{SessionId: sessionId, ClassName: builtin.SleepClassName})
			Expect(status.Code(err)).To(Equal(codes.NotFound))
		})

		It("should reject interpreters of another group", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)

			_, err := d.CreateInterpreter(context.Background(), &proto.CreateInterpreterRequest{
				GroupId: "python-shared_process", SessionId: sessionId, ClassName: builtin.EchoClassName,
			})
			Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
		})

		It("should open interpreters and report their form type", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)
			createInterpreter(d, builtin.EchoClassName, nil)

			req := &proto.InterpreterRequest{SessionId: sessionId, ClassName: builtin.EchoClassName}
			_, err := d.Open(context.Background(), req)
			Expect(err).ToNot(HaveOccurred())
			_, err = d.Open(context.Background(), req)
			Expect(err).ToNot(HaveOccurred())

			reply, err := d.GetFormType(context.Background(), req)
			Expect(err).ToNot(HaveOccurred())
			Expect(reply.FormType).To(Equal(string(interpreter.FormTypeSimple)))
		})

		It("should return the forms created by the paragraph", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)
			createInterpreter(d, builtin.EchoClassName, nil)

			result := interpret(d, builtin.EchoClassName, "p1", "hello ${name=world}")
			Expect(result.Msg[0].Data).To(Equal("hello world"))

			gui, err := interpreter.GUIFromJson(result.Gui)
			Expect(err).ToNot(HaveOccurred())
			Expect(gui.Forms).To(HaveKey("name"))
		})

		It("should complete keywords", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)
			createInterpreter(d, builtin.SQLClassName, map[string]string{"default.url": ":memory:"})

			reply, err := d.Completion(context.Background(), &proto.CompletionRequest{
				SessionId: sessionId,
				ClassName: builtin.SQLClassName,
				Buf:       "sel",
				Cursor:    3,
				Context:   wireContext("p1"),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(reply.Candidates).To(ContainElement(HaveField("Value", "select")))
		})

		It("should forget the jobs of closed interpreters and open them again on demand", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)
			createInterpreter(d, builtin.EchoClassName, map[string]string{"echo.prefix": "1:"})
			interpret(d, builtin.EchoClassName, "p1", "hi")
			Expect(jobStatus(d, "p1")()).To(Equal(scheduler.StatusFinished.String()))

			req := &proto.InterpreterRequest{SessionId: sessionId, ClassName: builtin.EchoClassName}
			_, err := d.Close(context.Background(), req)
			Expect(err).ToNot(HaveOccurred())
			_, err = d.Close(context.Background(), req)
			Expect(err).ToNot(HaveOccurred())

			Expect(jobStatus(d, "p1")()).To(Equal(scheduler.StatusUnknown.String()))
			Expect(d.Sessions()).To(ConsistOf(sessionId))

			_, err = d.Open(context.Background(), req)
			Expect(err).ToNot(HaveOccurred())

			result := interpret(d, builtin.EchoClassName, "p2", "again")
			Expect(result.Code).To(Equal(string(interpreter.CodeSuccess)))
			Expect(result.Msg[0].Data).To(Equal("1:again"))

			_, err = d.Close(context.Background(), &proto.InterpreterRequest{SessionId: "other", ClassName: builtin.EchoClassName})
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Context("jobs", func() {
		It("should report progress and abort cancelled paragraphs", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)
			createInterpreter(d, builtin.SleepClassName, nil)

			done := interpretAsync(d, context.Background(), builtin.SleepClassName, "p1", "10000")
			Eventually(jobStatus(d, "p1")).Should(Equal(scheduler.StatusRunning.String()))

			Eventually(func() int32 {
				reply, err := d.GetProgress(context.Background(), &proto.ContextRequest{
					SessionId: sessionId, ClassName: builtin.SleepClassName, Context: wireContext("p1"),
				})
				Expect(err).ToNot(HaveOccurred())
				return reply.Progress
			}).Should(BeNumerically(">", 0))

			_, err := d.Cancel(context.Background(), &proto.ContextRequest{
				SessionId: sessionId, ClassName: builtin.SleepClassName, Context: wireContext("p1"),
			})
			Expect(err).ToNot(HaveOccurred())

			var result *proto.RemoteInterpreterResult
			Eventually(done).Should(Receive(&result))
			Expect(result.Code).To(Equal(string(interpreter.CodeAbort)))
			Expect(jobStatus(d, "p1")()).To(Equal(scheduler.StatusAbort.String()))
		})

		It("should run the paragraphs of an interpreter one at a time in paragraph mode", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)
			createInterpreter(d, builtin.SleepClassName, map[string]string{"sleep.concurrency": "4"})

			first := interpretAsync(d, context.Background(), builtin.SleepClassName, "p1", "300")
			Eventually(jobStatus(d, "p1")).Should(Equal(scheduler.StatusRunning.String()))
			second := interpretAsync(d, context.Background(), builtin.SleepClassName, "p2", "10")
			Eventually(jobStatus(d, "p2")).Should(Equal(scheduler.StatusReady.String()))

			Eventually(first).Should(Receive(HaveField("Code", string(interpreter.CodeSuccess))))
			Eventually(second).Should(Receive(HaveField("Code", string(interpreter.CodeSuccess))))
		})

		It("should run paragraphs concurrently in note mode", func() {
			d := newDaemon(configuration.ExecutionModeNote)
			createInterpreter(d, builtin.SleepClassName, map[string]string{"sleep.concurrency": "4"})

			first := interpretAsync(d, context.Background(), builtin.SleepClassName, "p1", "500")
			second := interpretAsync(d, context.Background(), builtin.SleepClassName, "p2", "500")

			Eventually(jobStatus(d, "p1")).Should(Equal(scheduler.StatusRunning.String()))
			Eventually(jobStatus(d, "p2")).Should(Equal(scheduler.StatusRunning.String()))

			Eventually(first).Should(Receive())
			Eventually(second).Should(Receive())
		})

		It("should abort the job when the caller goes away", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)
			createInterpreter(d, builtin.SleepClassName, nil)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			_, err := d.Interpret(ctx, &proto.InterpretRequest{
				SessionId: sessionId, ClassName: builtin.SleepClassName, St: "10000", Context: wireContext("p1"),
			})
			Expect(status.Code(err)).To(Equal(codes.DeadlineExceeded))
			Eventually(jobStatus(d, "p1")).Should(Equal(scheduler.StatusAbort.String()))
		})

		It("should report unknown jobs", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)

			Expect(jobStatus(d, "missing")()).To(Equal(scheduler.StatusUnknown.String()))
		})
	})

	Context("angular objects", func() {
		It("should apply the changes sent by the server", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)

			object, err := angular.Data{Name: "count", Object: float64(1), NoteId: "note1"}.ToJson()
			Expect(err).ToNot(HaveOccurred())
			_, err = d.AngularObjectAdd(context.Background(), &proto.AngularObjectRequest{GroupId: groupId, Object: object})
			Expect(err).ToNot(HaveOccurred())
			Expect(d.AngularRegistry().Get("count", "note1", "").Get()).To(Equal(float64(1)))

			object, _ = angular.Data{Name: "count", Object: float64(2), NoteId: "note1"}.ToJson()
			_, err = d.AngularObjectUpdate(context.Background(), &proto.AngularObjectRequest{GroupId: groupId, Object: object})
			Expect(err).ToNot(HaveOccurred())
			Expect(d.AngularRegistry().Get("count", "note1", "").Get()).To(Equal(float64(2)))

			object, _ = angular.Data{Name: "late", Object: "x"}.ToJson()
			_, err = d.AngularObjectUpdate(context.Background(), &proto.AngularObjectRequest{GroupId: groupId, Object: object})
			Expect(err).ToNot(HaveOccurred())
			Expect(d.AngularRegistry().Get("late", "", "")).ToNot(BeNil())

			_, err = d.AngularObjectRemove(context.Background(), &proto.AngularObjectRemoveRequest{GroupId: groupId, Name: "count", NoteId: "note1"})
			Expect(err).ToNot(HaveOccurred())
			Expect(d.AngularRegistry().Get("count", "note1", "")).To(BeNil())

			_, err = d.AngularObjectAdd(context.Background(), &proto.AngularObjectRequest{GroupId: groupId, Object: "{"})
			Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
		})

		It("should replace the registry with the one pushed by the server", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)
			d.AngularRegistry().Add("stale", 1, "note1", "", angular.LocalOrigin)

			source := angular.NewRegistry(groupId, 0)
			source.Add("theme", "dark", "", "", angular.LocalOrigin)
			source.Add("count", float64(3), "note1", "", angular.LocalOrigin)
			snapshot, err := source.SnapshotJson()
			Expect(err).ToNot(HaveOccurred())

			_, err = d.AngularRegistryPush(context.Background(), &proto.AngularRegistryPushRequest{GroupId: groupId, Registry: snapshot})
			Expect(err).ToNot(HaveOccurred())

			Expect(d.AngularRegistry().Len()).To(Equal(2))
			Expect(d.AngularRegistry().Get("stale", "note1", "")).To(BeNil())
			Expect(d.AngularRegistry().Get("theme", "", "").Get()).To(Equal("dark"))
		})

		It("should give paragraphs access to the registry of the group", func() {
			d := newDaemon(configuration.ExecutionModeParagraph)
			createInterpreter(d, builtin.AngularClassName, nil)

			result := interpret(d, builtin.AngularClassName, "p1", "bind count 1")
			Expect(result.Code).To(Equal(string(interpreter.CodeSuccess)))
			Expect(d.AngularRegistry().Get("count", "note1", "")).ToNot(BeNil())
		})
	})

	Context("resources", func() {
		var d *daemon.Daemon

		resourceId := func(name string) string {
			return resource.NewId(groupId, "note1", "", name).ToJson()
		}

		invocation := func(name string, method resource.Method, returnName string) string {
			return resource.Invocation{
				ResourceId:         resource.NewId(groupId, "note1", "", name),
				Method:             method,
				ReturnResourceName: returnName,
			}.ToJson()
		}

		BeforeEach(func() {
			d = newDaemon(configuration.ExecutionModeParagraph)
			createInterpreter(d, builtin.ResourceClassName, nil)

			result := interpret(d, builtin.ResourceClassName, "p1", "put table {\"a\":1,\"b\":2}")
			Expect(result.Code).To(Equal(string(interpreter.CodeSuccess)))
		})

		It("should list its resources without their values", func() {
			reply, err := d.ResourcePoolGetAll(context.Background(), &proto.ResourcePoolRequest{GroupId: "other"})
			Expect(err).ToNot(HaveOccurred())
			Expect(reply.Resources).To(HaveLen(1))

			r, err := resource.FromJson([]byte(reply.Resources[0]), nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Id()).To(Equal(resource.NewId(groupId, "note1", "", "table")))
			Expect(r.IsSerializable()).To(BeTrue())
			_, hasValue := r.Value()
			Expect(hasValue).To(BeFalse())
		})

		It("should serve the values of its resources", func() {
			reply, err := d.ResourceGet(context.Background(), &proto.ResourceRequest{GroupId: "other", ResourceId: resourceId("table")})
			Expect(err).ToNot(HaveOccurred())
			Expect(reply.Found).To(BeTrue())
			Expect(reply.Value).To(MatchJSON(`{"a":1,"b":2}`))

			reply, err = d.ResourceGet(context.Background(), &proto.ResourceRequest{GroupId: "other", ResourceId: resourceId("missing")})
			Expect(err).ToNot(HaveOccurred())
			Expect(reply.Found).To(BeFalse())
		})

		It("should invoke methods on its resources", func() {
			reply, err := d.ResourceInvokeMethod(context.Background(), &proto.InvokeMethodRequest{
				GroupId: "other", Invocation: invocation("table", resource.MethodLength, ""),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(reply.Value).To(MatchJSON("2"))
			Expect(reply.Resource).To(BeEmpty())
		})

		It("should store the results of invocations that name a return resource", func() {
			reply, err := d.ResourceInvokeMethod(context.Background(), &proto.InvokeMethodRequest{
				GroupId: "other", Invocation: invocation("table", resource.MethodKeys, "names"),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(reply.Value).To(BeEmpty())

			var stored map[string]interface{}
			Expect(json.Unmarshal(reply.Resource, &stored)).To(Succeed())
			Expect(stored).ToNot(HaveKey("value"))

			r, ok := d.ResourcePool().GetLocal("note1", "", "names")
			Expect(ok).To(BeTrue())
			value, _ := r.Value()
			Expect(value).To(Equal([]string{"a", "b"}))
		})

		It("should reject unknown resources and methods", func() {
			_, err := d.ResourceInvokeMethod(context.Background(), &proto.InvokeMethodRequest{
				GroupId: "other", Invocation: invocation("missing", resource.MethodLength, ""),
			})
			Expect(status.Code(err)).To(Equal(codes.NotFound))

			_, err = d.ResourceInvokeMethod(context.Background(), &proto.InvokeMethodRequest{
				GroupId: "other", Invocation: invocation("table", "explode", ""),
			})
			Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
		})
	})

	It("should notify the process when the server asks it to shut down", func() {
		d := newDaemon(configuration.ExecutionModeParagraph)

		reasons := make(chan string, 1)
		d.OnShutdown(func(reason string) {
			reasons <- reason
		})

		_, err := d.Shutdown(context.Background(), &proto.ShutdownRequest{Reason: "restart"})
		Expect(err).ToNot(HaveOccurred())
		Eventually(reasons).Should(Receive(Equal("restart")))
	})
})
