package interpreter

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"

	"github.com/scusemua/notebook-runtime/common/angular"
	"github.com/scusemua/notebook-runtime/common/interpreter"
	"github.com/scusemua/notebook-runtime/common/proto"
	"github.com/scusemua/notebook-runtime/common/proto/mock_proto"
	"github.com/scusemua/notebook-runtime/common/scheduler"
)

func newTestGroup(setting *Setting, factory ProcessFactory, schedulers *scheduler.Factory) *ManagedGroup {
	groupId := setting.GroupId("alice", "note1")
	return NewManagedGroup(groupId, setting, angular.NewRegistry(groupId, 100), schedulers, factory, &GroupOptions{
		ExecutionMode:        "paragraph",
		SchedulerConcurrency: 4,
		ProcessStopTimeout:   time.Second,
	})
}

func sqlResult() *proto.RemoteInterpreterResult {
	return &proto.RemoteInterpreterResult{
		Code: "SUCCESS",
		Msg:  []*proto.RemoteInterpreterResultMessage{{Type: "TABLE", Data: "1\n1\n"}},
	}
}

var _ = Describe("RemoteInterpreter", func() {
	var (
		ctrl       *gomock.Controller
		client     *mock_proto.MockInterpreterServiceClient
		schedulers *scheduler.Factory
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		client = mock_proto.NewMockInterpreterServiceClient(ctrl)
		schedulers = scheduler.NewFactory(10)
	})

	AfterEach(func() {
		schedulers.Destroy()
	})

	// expectOpen expects the creation of every interpreter of the jdbc setting and the opening of one.
	expectOpen := func(formType string) {
		client.EXPECT().AngularRegistryPush(gomock.Any(), gomock.Any()).Return(proto.VOID, nil).Times(1)
		client.EXPECT().CreateInterpreter(gomock.Any(), gomock.Any()).Return(proto.VOID, nil).Times(2)
		client.EXPECT().Open(gomock.Any(), gomock.Any()).Return(proto.VOID, nil).Times(1)
		client.EXPECT().GetFormType(gomock.Any(), gomock.Any()).Return(&proto.FormTypeReply{FormType: formType}, nil).Times(1)
	}

	It("should create the process of a group once for concurrent callers", func() {
		factory := newFakeProcessFactory(client, nil)
		group := newTestGroup(jdbcSetting(), factory.New, schedulers)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				p, err := group.GetOrCreateProcess(context.Background(), "alice", nil)
				Expect(err).ToNot(HaveOccurred())
				Expect(p.IsRunning()).To(BeTrue())
			}()
		}
		wg.Wait()

		Expect(factory.created.Load()).To(Equal(int32(1)))
		Expect(factory.Get(group.Id()).starts.Load()).To(Equal(int32(1)))
	})

	It("should return the start failure again without restarting the process", func() {
		factory := newFakeProcessFactory(client, errors.New("worker binary not found"))
		group := newTestGroup(jdbcSetting(), factory.New, schedulers)

		_, err := group.GetOrCreateProcess(context.Background(), "alice", nil)
		Expect(err).To(MatchError("worker binary not found"))

		_, err = group.GetOrCreateProcess(context.Background(), "alice", nil)
		Expect(err).To(MatchError("worker binary not found"))

		Expect(factory.Get(group.Id()).starts.Load()).To(Equal(int32(1)))
	})

	It("should return an ERROR result without any RPC if the process is not running", func() {
		factory := newFakeProcessFactory(client, errors.New("exited before registering"))
		group := newTestGroup(jdbcSetting(), factory.New, schedulers)

		session, err := group.GetOrCreateSession("alice", "note1")
		Expect(err).ToNot(HaveOccurred())
		intp, ok := session.Get("sql")
		Expect(ok).To(BeTrue())

		ictx := interpreter.NewContext("note1", "p1", "jdbc.sql", nil)
		result, err := intp.Interpret(context.Background(), "select 1", ictx)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Code).To(Equal(interpreter.CodeError))
		Expect(result.Messages).To(HaveLen(1))
		Expect(result.Messages[0].Data).To(HavePrefix("Interpreter process is not running\n"))
		Expect(result.Messages[0].Data).To(ContainSubstring("exited before registering"))
	})

	It("should open the interpreter lazily and return the remote result", func() {
		factory := newFakeProcessFactory(client, nil)
		group := newTestGroup(jdbcSetting(), factory.New, schedulers)

		expectOpen("SIMPLE")
		client.EXPECT().Interpret(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in *proto.InterpretRequest, _ ...grpc.CallOption) (*proto.RemoteInterpreterResult, error) {
				Expect(in.St).To(Equal("select 1"))
				Expect(in.ClassName).To(Equal("builtin.sql"))
				Expect(in.SessionId).To(Equal(SharedSession))
				Expect(in.Context.ParagraphId).To(Equal("p1"))

				reply := sqlResult()
				reply.Config = `{"fontSize":12}`
				return reply, nil
			}).Times(1)

		session, err := group.GetOrCreateSession("alice", "note1")
		Expect(err).ToNot(HaveOccurred())
		intp, _ := session.Get("")

		ictx := interpreter.NewContext("note1", "p1", "jdbc.sql", nil)
		result, err := intp.Interpret(context.Background(), "select 1", ictx)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Code).To(Equal(interpreter.CodeSuccess))
		Expect(result.Messages).To(Equal([]interpreter.Message{{Type: interpreter.TypeTable, Data: "1\n1\n"}}))
		Expect(ictx.Config).To(HaveKeyWithValue("fontSize", BeNumerically("==", 12)))

		Expect(intp.IsOpened()).To(BeTrue())
		Expect(intp.FormType()).To(Equal(interpreter.FormTypeSimple))
	})

	It("should open NeedsOpen dependencies before the interpreter itself", func() {
		setting := jdbcSetting()
		setting.Interpreters[0].Dependencies = []Dependency{{ClassName: "builtin.echo", Kind: NeedsOpen}}
		Expect(setting.Validate()).To(Succeed())

		factory := newFakeProcessFactory(client, nil)
		group := newTestGroup(setting, factory.New, schedulers)

		var (
			mu     sync.Mutex
			events []string
		)
		record := func(event string) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
		}

		client.EXPECT().AngularRegistryPush(gomock.Any(), gomock.Any()).Return(proto.VOID, nil).Times(1)
		client.EXPECT().CreateInterpreter(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in *proto.CreateInterpreterRequest, _ ...grpc.CallOption) (*proto.Void, error) {
				record("create " + in.ClassName)
				return proto.VOID, nil
			}).Times(2)
		client.EXPECT().Open(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in *proto.InterpreterRequest, _ ...grpc.CallOption) (*proto.Void, error) {
				record("open " + in.ClassName)
				return proto.VOID, nil
			}).Times(2)
		client.EXPECT().GetFormType(gomock.Any(), gomock.Any()).Return(&proto.FormTypeReply{FormType: "NATIVE"}, nil).Times(2)

		session, err := group.GetOrCreateSession("alice", "note1")
		Expect(err).ToNot(HaveOccurred())
		sql, _ := session.Get("sql")
		echo, _ := session.Get("echo")

		Expect(sql.Open(context.Background())).To(Succeed())
		Expect(echo.IsOpened()).To(BeTrue())
		Expect(events).To(Equal([]string{"create builtin.sql", "create builtin.echo", "open builtin.echo", "open builtin.sql"}))
	})

	It("should push the registry once and forward each later change", func() {
		factory := newFakeProcessFactory(client, nil)
		group := newTestGroup(jdbcSetting(), factory.New, schedulers)
		group.AngularRegistry().Add("count", 0, "note1", "", angular.LocalOrigin)

		client.EXPECT().AngularRegistryPush(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, in *proto.AngularRegistryPushRequest, _ ...grpc.CallOption) (*proto.Void, error) {
				Expect(in.GroupId).To(Equal(group.Id()))
				Expect(in.Registry).To(ContainSubstring(`"count"`))
				return proto.VOID, nil
			}).Times(1)
		client.EXPECT().CreateInterpreter(gomock.Any(), gomock.Any()).Return(proto.VOID, nil).Times(2)
		client.EXPECT().Open(gomock.Any(), gomock.Any()).Return(proto.VOID, nil).Times(2)
		client.EXPECT().GetFormType(gomock.Any(), gomock.Any()).Return(&proto.FormTypeReply{FormType: "SIMPLE"}, nil).Times(2)
		client.EXPECT().AngularObjectUpdate(gomock.Any(), gomock.Any()).Return(proto.VOID, nil).Times(3)

		p, err := group.GetOrCreateProcess(context.Background(), "alice", nil)
		Expect(err).ToNot(HaveOccurred())
		group.onProcessAttached(p, "worker-token")

		session, err := group.GetOrCreateSession("alice", "note1")
		Expect(err).ToNot(HaveOccurred())
		for _, intp := range session.Interpreters() {
			Expect(intp.Open(context.Background())).To(Succeed())
		}
		Expect(group.IsRegistryPushed()).To(BeTrue())

		for i := 1; i <= 3; i++ {
			_, ok := group.AngularRegistry().Update("count", i, "note1", "", angular.LocalOrigin)
			Expect(ok).To(BeTrue())
		}

		// Changes that come from the worker are not sent back to it.
		_, ok := group.AngularRegistry().Update("count", 4, "note1", "", "worker-token")
		Expect(ok).To(BeTrue())
	})

	It("should run submitted paragraphs through the remote scheduler", func() {
		factory := newFakeProcessFactory(client, nil)
		group := newTestGroup(jdbcSetting(), factory.New, schedulers)

		expectOpen("SIMPLE")
		client.EXPECT().Interpret(gomock.Any(), gomock.Any()).Return(sqlResult(), nil).Times(1)
		client.EXPECT().GetStatus(gomock.Any(), gomock.Any()).Return(&proto.StatusReply{Status: "RUNNING"}, nil).AnyTimes()
		client.EXPECT().GetProgress(gomock.Any(), gomock.Any()).Return(&proto.ProgressReply{Progress: 50}, nil).AnyTimes()

		session, err := group.GetOrCreateSession("alice", "note1")
		Expect(err).ToNot(HaveOccurred())
		intp, _ := session.Get("sql")

		job, err := intp.Submit("select 1", interpreter.NewContext("note1", "p1", "jdbc.sql", nil))
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(job.Wait(ctx)).To(Succeed())

		Expect(job.Status()).To(Equal(scheduler.StatusFinished))
		Expect(job.Result().Messages).To(HaveLen(1))
		Expect(job.Result().Messages[0].Type).To(Equal(interpreter.TypeTable))

		_, ok := schedulers.Get("RemoteInterpreter-" + group.Id() + "-" + SharedSession)
		Expect(ok).To(BeTrue())
	})

	It("should give each note its own scheduler in note mode", func() {
		setting := jdbcSetting()
		setting.ExecutionMode = "note"
		group := newTestGroup(setting, newFakeProcessFactory(client, nil).New, schedulers)

		session, err := group.GetOrCreateSession("alice", "note1")
		Expect(err).ToNot(HaveOccurred())
		intp, _ := session.Get("sql")

		first := intp.Scheduler("note1")
		second := intp.Scheduler("note2")
		Expect(first.Name()).To(Equal("RemoteInterpreter-" + group.Id() + "-" + SharedSession + "-note1"))
		Expect(second.Name()).ToNot(Equal(first.Name()))
		Expect(first.(*scheduler.RemoteScheduler).MaxInFlight()).To(Equal(4))

		session.close(false)
		Expect(schedulers.Names()).To(BeEmpty())
	})

	It("should not call the process when cancelling or polling an interpreter that is not open", func() {
		factory := newFakeProcessFactory(client, nil)
		group := newTestGroup(jdbcSetting(), factory.New, schedulers)

		session, err := group.GetOrCreateSession("alice", "note1")
		Expect(err).ToNot(HaveOccurred())
		intp, _ := session.Get("sql")

		ictx := interpreter.NewContext("note1", "p1", "jdbc.sql", nil)
		Expect(intp.Cancel(ictx)).To(Succeed())
		Expect(intp.Progress(ictx)).To(Equal(0))
		Expect(intp.Close()).To(Succeed())
	})

	It("should bound the time spent polling the progress of a paragraph", func() {
		factory := newFakeProcessFactory(client, nil)
		group := newTestGroup(jdbcSetting(), factory.New, schedulers)

		expectOpen("SIMPLE")
		client.EXPECT().GetProgress(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, _ *proto.ContextRequest, _ ...grpc.CallOption) (*proto.ProgressReply, error) {
				deadline, ok := ctx.Deadline()
				Expect(ok).To(BeTrue())
				Expect(time.Until(deadline)).To(BeNumerically("<=", progressTimeout))
				return nil, context.DeadlineExceeded
			}).Times(1)

		session, err := group.GetOrCreateSession("alice", "note1")
		Expect(err).ToNot(HaveOccurred())
		intp, _ := session.Get("sql")
		Expect(intp.Open(context.Background())).To(Succeed())

		Expect(intp.Progress(interpreter.NewContext("note1", "p1", "jdbc.sql", nil))).To(Equal(0))
	})

	It("should close the opened interpreters and shut the process down when the group closes", func() {
		factory := newFakeProcessFactory(client, nil)
		group := newTestGroup(jdbcSetting(), factory.New, schedulers)

		expectOpen("SIMPLE")
		client.EXPECT().Close(gomock.Any(), gomock.Any()).Return(proto.VOID, nil).Times(1)

		session, err := group.GetOrCreateSession("alice", "note1")
		Expect(err).ToNot(HaveOccurred())
		intp, _ := session.Get("sql")
		Expect(intp.Open(context.Background())).To(Succeed())

		Expect(group.Close()).To(Succeed())
		Expect(factory.Get(group.Id()).shutdowns.Load()).To(Equal(int32(1)))

		_, err = group.GetOrCreateSession("alice", "note1")
		Expect(err).To(HaveOccurred())
	})
})
