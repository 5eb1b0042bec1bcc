package factory

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

var _ = Describe("module name", func() {
	f := newTestFamily()
	DescribeTable("",
		func(name string, module string) {
			Expect(f.ModuleName(name)).To(Equal(module))
		},
		Entry("suffixed", "DazzlePlugin", "Dazzle"),
		Entry("namespaced", "test.LoadablePlugin", "Loadable"),
		Entry("lowercased", "dazzle", "dazzle"),
		Entry("not suffixed", "BlackSheep", "BlackSheep"),
		Entry("lowercased suffix is kept", "dazzleplugin", "dazzleplugin"),
	)
})

var _ = Describe("candidate paths", func() {
	f := NewFamily(pluginType(), "db.Driver")

	It("most qualified first", func() {
		Expect(f.CandidatePaths("Socket", "drivers")).To(Equal([]string{
			"drivers/socket_driver",
			"drivers/socket_Driver",
			"drivers/Socket_Driver",
			"drivers/socketdriver",
			"drivers/socketDriver",
			"drivers/SocketDriver",
			"drivers/socket",
			"drivers/Socket",
		}))
	})

	It("deduplicated", func() {
		Expect(f.CandidatePaths("socket", "")).To(Equal([]string{
			"socket_driver",
			"socket_Driver",
			"socketdriver",
			"socketDriver",
			"socket",
		}))
	})

	It("dir trailing slash", func() {
		Expect(f.CandidatePaths("socket", "drivers//")[0]).To(Equal("drivers/socket_driver"))
	})
})

var _ = Describe("load", func() {
	var (
		f      *Family
		loader *recordingLoader
	)
	BeforeEach(func() {
		loader = newRecordingLoader()
		f = newTestFamily(WithLoader(loader), WithSearchDirs("plugins", " contrib "))
	})

	It("loads and resolves derivative", func() {
		var loadable *Derivative
		loader.results["plugins/loadable_plugin"] = func() error {
			loadable = f.Register("test.LoadablePlugin", newTestPlugin)
			return nil
		}
		plugin, err := f.Create("loadable")
		expectValue(plugin, err, testInitValue)
		Expect(loader.paths).To(Equal([]string{"plugins/loadable_plugin"}))

		d, err := f.Resolve("test.LoadablePlugin")
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(BeIdenticalTo(loadable))
		Expect(loader.paths).To(HaveLen(1))
		Expect(f.Stats()).To(Equal(LoadStats{Attempts: 1, Loaded: 1}))
	})

	It("namespaced name is loaded by module name", func() {
		loader.results["plugins/loadable_plugin"] = func() error {
			f.Register("test.LoadablePlugin", newTestPlugin)
			return nil
		}
		_, err := f.Resolve("test.LoadablePlugin")
		Expect(err).NotTo(HaveOccurred())
	})

	It("not found lists every tried path in order", func() {
		_, err := f.Create("DazzlePlugin")
		Expect(err).To(HaveOccurred())
		notFound, ok := err.(*NotFoundError)
		Expect(ok).To(BeTrue(), "%T", err)
		expected := []string{
			"plugins/dazzle_plugin",
			"plugins/dazzle_Plugin",
			"plugins/Dazzle_Plugin",
			"plugins/dazzleplugin",
			"plugins/dazzlePlugin",
			"plugins/DazzlePlugin",
			"plugins/dazzle",
			"plugins/Dazzle",
			"contrib/dazzle_plugin",
			"contrib/dazzle_Plugin",
			"contrib/Dazzle_Plugin",
			"contrib/dazzleplugin",
			"contrib/dazzlePlugin",
			"contrib/DazzlePlugin",
			"contrib/dazzle",
			"contrib/Dazzle",
		}
		Expect(notFound.Tried).To(Equal(expected))
		Expect(loader.paths).To(Equal(expected))
		Expect(notFound.ModuleName).To(Equal("Dazzle"))
		Expect(err.Error()).To(HavePrefix("couldn't find a Plugin named 'Dazzle': tried [\"plugins/dazzle_plugin\""))
		Expect(IsNotFound(err)).To(BeFalse())
		Expect(f.Stats()).To(Equal(LoadStats{Attempts: 16, NotFound: 16}))
	})

	It("no search dirs", func() {
		f.SetSearchDirs()
		_, err := f.Create("dazzle")
		Expect(err).To(BeAssignableToTypeOf(&NotFoundError{}))
		Expect(loader.paths).To(Equal([]string{
			"dazzle_plugin",
			"dazzle_Plugin",
			"dazzleplugin",
			"dazzlePlugin",
			"dazzle",
		}))
	})

	It("default loader finds nothing", func() {
		f.SetLoader(nil)
		_, err := f.Create("dazzle")
		Expect(err).To(BeAssignableToTypeOf(&NotFoundError{}))
	})

	It("registration mismatch", func() {
		loader.results["plugins/missing_plugin"] = func() error { return nil }
		_, err := f.Create("MissingPlugin")
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeAssignableToTypeOf(&RegistrationMismatchError{}))
		Expect(err.Error()).To(Equal("load of 'plugins/missing_plugin' succeeded, but didn't register a Plugin named 'missingplugin'"))
		Expect(loader.paths).To(Equal([]string{"plugins/missing_plugin"}))
	})

	It("first fatal error wins", func() {
		firstErr := errors.New("syntax error in plugins/dazzle_Plugin")
		loader.results["plugins/dazzle_Plugin"] = func() error { return firstErr }
		loader.results["plugins/dazzle"] = func() error { return errors.New("second error") }
		_, err := f.Create("DazzlePlugin")
		Expect(err).To(HaveOccurred())
		loadErr, ok := err.(*LoadError)
		Expect(ok).To(BeTrue(), "%T", err)
		Expect(loadErr.Path).To(Equal("plugins/dazzle_Plugin"))
		Expect(err.Error()).To(Equal(firstErr.Error()))
		Expect(errors.Cause(err)).To(BeIdenticalTo(firstErr))
		Expect(errors.Is(err, firstErr)).To(BeTrue())
		Expect(loader.paths).To(HaveLen(16))
		Expect(f.Stats()).To(Equal(LoadStats{Attempts: 16, NotFound: 14, Failed: 2}))
	})

	It("later candidate success wins over fatal error", func() {
		loader.results["plugins/dazzle_plugin"] = func() error { return errors.New("broken") }
		loader.results["plugins/dazzleplugin"] = func() error {
			f.Register("DazzlePlugin", newTestPlugin)
			return nil
		}
		plugin, err := f.Create("DazzlePlugin")
		expectValue(plugin, err, testInitValue)
		Expect(loader.paths).To(HaveLen(4))
	})

	It("loader panic is load error", func() {
		loader.results["plugins/dazzle_plugin"] = func() error { panic("unexpected") }
		_, err := f.Create("dazzle")
		Expect(err).To(BeAssignableToTypeOf(&LoadError{}))
		Expect(err).To(MatchError("panic while loading 'plugins/dazzle_plugin': unexpected"))
	})

	It("load returns loaded path", func() {
		loader.results["contrib/Dazzle"] = func() error { return nil }
		path, err := f.Load("DazzlePlugin")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("contrib/Dazzle"))
	})
})
