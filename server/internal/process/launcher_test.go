package process_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-runtime/server/internal/process"
)

var _ = Describe("ExecLauncher", func() {
	It("should substitute the placeholders in the command and the environment", func() {
		launcher := process.NewExecLauncher(
			[]string{"sh", "-c", `[ "$GROUP" = "echo-shared_process" ] && [ "$1" = "127.0.0.1:9800" ]`, "sh", "{event_addr}"},
			map[string]string{"GROUP": "{group_id}"},
			"")

		handle, err := launcher.Launch(context.Background(), "echo-shared_process", "127.0.0.1:9800")
		Expect(err).ToNot(HaveOccurred())
		Expect(handle.Pid()).To(BeNumerically(">", 0))

		Eventually(handle.Exited(), 5*time.Second).Should(BeClosed())
		Expect(handle.ExitError()).ToNot(HaveOccurred())
	})

	It("should report the exit error of the process", func() {
		launcher := process.NewExecLauncher([]string{"sh", "-c", "exit 3"}, nil, "")

		handle, err := launcher.Launch(context.Background(), "echo-shared_process", "")
		Expect(err).ToNot(HaveOccurred())

		Eventually(handle.Exited(), 5*time.Second).Should(BeClosed())
		Expect(handle.ExitError()).To(HaveOccurred())
	})

	It("should fail to launch an empty or missing command", func() {
		_, err := process.NewExecLauncher(nil, nil, "").Launch(context.Background(), "g", "")
		Expect(err).To(MatchError(process.ErrEmptyCommand))

		_, err = process.NewExecLauncher([]string{"/nonexistent/worker"}, nil, "").Launch(context.Background(), "g", "")
		Expect(err).To(HaveOccurred())
	})

	It("should not launch anything for attached processes", func() {
		handle, err := process.AttachedLauncher{}.Launch(context.Background(), "g", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(handle).To(BeNil())
	})
})
