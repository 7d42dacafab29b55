package configuration_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-runtime/common/configuration"
	"github.com/scusemua/notebook-runtime/common/types"
)

var _ = Describe("Common Options", func() {
	It("Will apply defaults to unset numeric parameters", func() {
		opts := &configuration.CommonOptions{}
		Expect(opts.Validate()).To(Succeed())

		Expect(opts.MaxConnections).To(Equal(configuration.DefaultMaxConnections))
		Expect(opts.SchedulerConcurrency).To(Equal(configuration.DefaultSchedulerConcurrency))
		Expect(opts.JobHistorySize).To(Equal(configuration.DefaultJobHistorySize))
		Expect(opts.GetExecutionMode()).To(Equal(configuration.ExecutionModeParagraph))
	})

	It("Will treat the execution mode as a closed enumeration", func() {
		mode, err := configuration.ParseExecutionMode("NOTE")
		Expect(err).To(BeNil())
		Expect(mode).To(Equal(configuration.ExecutionModeNote))

		_, err = configuration.ParseExecutionMode("cell")
		Expect(err).ToNot(BeNil())
		Expect(errors.Is(err, types.ErrInvalidExecutionMode)).To(BeTrue())

		opts := &configuration.CommonOptions{ExecutionMode: "cell"}
		Expect(opts.Validate()).ToNot(Succeed())
	})

	It("Will pretty-print itself as JSON", func() {
		opts := &configuration.CommonOptions{MaxConnections: 3}
		Expect(opts.PrettyString(2)).To(ContainSubstring("\"max-connections\": 3"))
		Expect(opts.Clone()).To(Equal(opts))
	})
})
