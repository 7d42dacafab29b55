package interpreter

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-runtime/common/configuration"
)

var _ = Describe("Setting", func() {
	Context("group and session ids", func() {
		DescribeTable("should derive ids from the isolation option",
			func(option Option, expectedGroup string, expectedSession string) {
				setting := jdbcSetting()
				setting.Option = option
				Expect(setting.Validate()).To(Succeed())

				Expect(setting.GroupId("alice", "note1")).To(Equal(expectedGroup))
				Expect(setting.SessionId("alice", "note1")).To(Equal(expectedSession))
				Expect(SettingNameOfGroup(expectedGroup)).To(Equal("jdbc"))
			},
			Entry("shared", Option{}, "jdbc-shared_process", "shared_session"),
			Entry("scoped per note", Option{PerNote: Scoped}, "jdbc-shared_process", "note1"),
			Entry("scoped per user", Option{PerUser: Scoped}, "jdbc-shared_process", "alice"),
			Entry("scoped per user and note", Option{PerUser: Scoped, PerNote: Scoped}, "jdbc-shared_process", "alice:note1"),
			Entry("isolated per note", Option{PerNote: Isolated}, "jdbc-note1", "shared_session"),
			Entry("isolated per user", Option{PerUser: Isolated}, "jdbc-alice", "shared_session"),
			Entry("isolated per user, scoped per note", Option{PerUser: Isolated, PerNote: Scoped}, "jdbc-alice", "note1"),
			Entry("isolated per user and note", Option{PerUser: Isolated, PerNote: Isolated}, "jdbc-alice:note1", "shared_session"),
		)
	})

	Context("validation", func() {
		It("should reject names that cannot be part of a group id", func() {
			setting := jdbcSetting()
			setting.Name = "my-jdbc"
			Expect(setting.Validate()).To(MatchError(ErrInvalidSetting))
		})

		It("should require a command for exec launchers", func() {
			setting := jdbcSetting()
			setting.Launcher = LauncherConfig{}
			Expect(setting.Validate()).To(MatchError(ErrInvalidSetting))

			setting.Launcher = LauncherConfig{Argv: []string{"worker", "--event-addr", "{event_addr}"}}
			Expect(setting.Validate()).To(Succeed())
			Expect(setting.Launcher.Kind).To(Equal("exec"))
		})

		It("should reject unknown isolation modes and execution modes", func() {
			setting := jdbcSetting()
			setting.Option.PerNote = "private"
			Expect(setting.Validate()).To(MatchError(ErrUnknownIsolation))

			setting = jdbcSetting()
			setting.ExecutionMode = "cell"
			Expect(setting.Validate()).ToNot(Succeed())
		})

		It("should reject dependencies on unknown interpreters", func() {
			setting := jdbcSetting()
			setting.Interpreters[0].Dependencies = []Dependency{{ClassName: "builtin.missing", Kind: NeedsOpen}}
			Expect(setting.Validate()).To(MatchError(ErrInvalidSetting))
		})

		It("should reject cycles of NeedsOpen dependencies", func() {
			setting := jdbcSetting()
			setting.Interpreters[0].Dependencies = []Dependency{{ClassName: "builtin.echo", Kind: NeedsOpen}}
			setting.Interpreters[1].Dependencies = []Dependency{{ClassName: "builtin.sql", Kind: NeedsOpen}}
			Expect(setting.Validate()).To(MatchError(ErrDependencyCycle))
		})

		It("should accept mutual NeedsCreation dependencies", func() {
			setting := jdbcSetting()
			setting.Interpreters[0].Dependencies = []Dependency{{ClassName: "builtin.echo", Kind: NeedsOpen}}
			setting.Interpreters[1].Dependencies = []Dependency{{ClassName: "builtin.sql", Kind: NeedsCreation}}
			Expect(setting.Validate()).To(Succeed())
		})
	})

	It("should make every sibling a NeedsCreation dependency by default", func() {
		setting := jdbcSetting()
		Expect(setting.DependenciesOf("builtin.sql")).To(Equal([]Dependency{{ClassName: "builtin.echo", Kind: NeedsCreation}}))
		Expect(setting.DependenciesOf("builtin.echo")).To(Equal([]Dependency{{ClassName: "builtin.sql", Kind: NeedsCreation}}))
	})

	It("should find interpreters by name, class name, or default", func() {
		setting := jdbcSetting()

		info, ok := setting.FindInterpreter("")
		Expect(ok).To(BeTrue())
		Expect(info.ClassName).To(Equal("builtin.sql"))

		info, ok = setting.FindInterpreter("echo")
		Expect(ok).To(BeTrue())
		Expect(info.ClassName).To(Equal("builtin.echo"))

		_, ok = setting.FindInterpreter("builtin.echo")
		Expect(ok).To(BeTrue())

		_, ok = setting.FindInterpreter("python")
		Expect(ok).To(BeFalse())
	})

	It("should fall back to the given execution mode", func() {
		setting := jdbcSetting()
		Expect(setting.GetExecutionMode(configuration.ExecutionModeNote)).To(Equal(configuration.ExecutionModeNote))

		setting.ExecutionMode = "paragraph"
		Expect(setting.GetExecutionMode(configuration.ExecutionModeNote)).To(Equal(configuration.ExecutionModeParagraph))
	})
})
