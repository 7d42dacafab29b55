package interpreter

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func writeSettings(path string, settings ...*Setting) {
	data, err := json.Marshal(settingsFile{Settings: settings})
	Expect(err).ToNot(HaveOccurred())
	Expect(os.WriteFile(path, data, 0644)).To(Succeed())
}

var _ = Describe("SettingsStore", func() {
	var (
		dir  string
		path string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "settings-store-")
		Expect(err).ToNot(HaveOccurred())
		path = filepath.Join(dir, "interpreter-settings.json")
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("should load and list the settings of the file", func() {
		echo := &Setting{
			Name:         "echo",
			Interpreters: []InterpreterInfo{{Name: "echo", ClassName: "builtin.echo"}},
			Launcher:     LauncherConfig{Kind: "attached"},
		}
		writeSettings(path, jdbcSetting(), echo)

		store := NewSettingsStore(path)
		Expect(store.Load()).To(Succeed())

		names := make([]string, 0)
		for _, setting := range store.List() {
			names = append(names, setting.Name)
		}
		Expect(names).To(Equal([]string{"echo", "jdbc"}))

		setting, err := store.Get("jdbc")
		Expect(err).ToNot(HaveOccurred())
		Expect(setting.Interpreters).To(HaveLen(2))

		_, err = store.Get("python")
		Expect(err).To(MatchError(ErrSettingNotFound))
	})

	It("should reject a file with an invalid setting", func() {
		invalid := jdbcSetting()
		invalid.Launcher = LauncherConfig{}
		writeSettings(path, invalid)

		store := NewSettingsStore(path)
		Expect(store.Load()).To(MatchError(ErrInvalidSetting))
	})

	It("should reload the settings when the file changes", func() {
		writeSettings(path, jdbcSetting())

		store := NewSettingsStore(path)
		Expect(store.Load()).To(Succeed())

		var (
			mu      sync.Mutex
			changed []string
		)
		store.OnChange(func(old *Setting, _ *Setting) {
			mu.Lock()
			defer mu.Unlock()
			changed = append(changed, old.Name)
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		Expect(store.Watch(ctx)).To(Succeed())

		updated := jdbcSetting()
		updated.Properties["default.url"] = "file:other.db"
		writeSettings(path, updated)

		Eventually(func() string {
			setting, err := store.Get("jdbc")
			if err != nil {
				return ""
			}
			return setting.Properties["default.url"]
		}).Should(Equal("file:other.db"))

		Eventually(func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string{}, changed...)
		}).Should(ContainElement("jdbc"))
	})

	It("should keep the previous settings if the file becomes invalid", func() {
		writeSettings(path, jdbcSetting())

		store := NewSettingsStore(path)
		Expect(store.Load()).To(Succeed())

		Expect(os.WriteFile(path, []byte("{not json"), 0644)).To(Succeed())
		Expect(store.Load()).ToNot(Succeed())

		_, err := store.Get("jdbc")
		Expect(err).ToNot(HaveOccurred())
	})
})
