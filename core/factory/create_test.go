package factory

import (
	stderrors "errors"
	"fmt"
	"path/filepath"

	"github.com/facebookgo/stack"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/yandex/pluginfactory/core/config"
	"github.com/yandex/pluginfactory/lib/errutil"
	"github.com/yandex/pluginfactory/lib/testutil"
)

var _ = Describe("constructor expectations", func() {
	DescribeTable("register panics",
		func(newImpl interface{}, opts ...DerivativeOption) {
			f := newTestFamily()
			expectExpectationFail(func() { f.Register("InvalidPlugin", newImpl, opts...) })
		},
		Entry("not func", 42),
		Entry("no results", func() {}),
		Entry("too many results", func() (Plugin, error, error) { panic("") }),
		Entry("not plugin result", func() int { panic("") }),
		Entry("second result is not error", func() (Plugin, int) { panic("") }),
		Entry("default config without config",
			newTestPlugin, WithDefaultConfig(newTestDefaultConf)),
		Entry("default config of other type",
			newTestPluginConf, WithDefaultConfig(newTestDefaultPtrConf)),
		Entry("default config accepts args",
			newTestPluginPtrConf, WithDefaultConfig(func(int) *testConfig { panic("") })),
	)

	It("default config for abstract panics", func() {
		f := newTestFamily()
		expectExpectationFail(func() { f.Register("AbstractPlugin", nil, WithDefaultConfig(newTestDefaultConf)) })
	})
})

var _ = Describe("create", func() {
	var f *Family
	BeforeEach(func() { f = newTestFamily() })

	DescribeTable("no args",
		func(newImpl interface{}, value string, opts ...DerivativeOption) {
			f.Register("TestPlugin", newImpl, opts...)
			plugin, err := f.Create("test")
			expectValue(plugin, err, value)
		},
		Entry("no config", newTestPlugin, testInitValue),
		Entry("nil error", newTestPluginErr, testInitValue),
		Entry("zero config", newTestPluginConf, ""),
		Entry("zero ptr config", newTestPluginPtrConf, ""),
		Entry("default config", newTestPluginConf, testDefaultValue, WithDefaultConfig(newTestDefaultConf)),
		Entry("default ptr config", newTestPluginPtrConf, testDefaultValue, WithDefaultConfig(newTestDefaultPtrConf)),
		Entry("nil default ptr config", newTestPluginPtrConf, "", WithDefaultConfig(func() *testConfig { return nil })),
		Entry("preset", newTestPluginConf, testFilledValue, WithDefaultConfig(newTestDefaultConf), WithPreset(fillTestConf)),
		Entry("variadic", newTestPluginVariadic, ""),
	)

	DescribeTable("args",
		func(newImpl interface{}, value string, args ...interface{}) {
			f.Register("TestPlugin", newImpl)
			plugin, err := f.Create("TestPlugin", args...)
			expectValue(plugin, err, value)
		},
		Entry("string", newTestPluginValue, "arg", "arg"),
		Entry("config passed", newTestPluginConf, "passed", testConfig{"passed"}),
		Entry("convertible", newTestPluginValue, "named", namedString("named")),
		Entry("variadic", newTestPluginVariadic, "abc", "a", "b", "c"),
	)

	DescribeTable("invalid args",
		func(newImpl interface{}, args ...interface{}) {
			f.Register("TestPlugin", newImpl)
			_, err := f.Create("TestPlugin", args...)
			Expect(err).To(BeAssignableToTypeOf(&ConstructionError{}))
		},
		Entry("too many", newTestPlugin, "extra"),
		Entry("too few", newTestPluginValue),
		Entry("wrong type", newTestPluginValue, 42),
		Entry("wrong variadic type", newTestPluginVariadic, "a", 1),
	)

	It("nil args", func() {
		f.Register("NilPlugin", func(c *testConfig) Plugin { return &testPlugin{fmt.Sprint(c == nil)} })
		plugin, err := f.Create("NilPlugin", nil)
		expectValue(plugin, err, "true")

		f.Register("ValuePlugin", newTestPluginValue)
		_, err = f.Create("ValuePlugin", nil)
		Expect(err).To(BeAssignableToTypeOf(&ConstructionError{}))
		Expect(err.Error()).To(ContainSubstring("nil can't be passed as string"))
	})

	It("by derivative and impl type", func() {
		d := f.Register("SubPlugin", newSubPlugin)
		plugin, err := f.Create(d)
		expectValue(plugin, err, testInitValue)
		plugin, err = f.Create(d.ImplType())
		expectValue(plugin, err, testInitValue)
		Expect(plugin).To(BeAssignableToTypeOf(&subPlugin{}))
	})

	It("base", func() {
		f = newTestFamily(WithBaseConstructor(newTestPluginConf, WithDefaultConfig(newTestDefaultConf)))
		for _, id := range []string{"", "Plugin"} {
			plugin, err := f.Create(id)
			expectValue(plugin, err, testDefaultValue)
		}
		child := f.Register("ChildPlugin", nil, WithPreset(fillTestConf))
		plugin, err := f.Create(child)
		expectValue(plugin, err, testFilledValue)
	})

	It("abstract", func() {
		_, err := f.Create("")
		Expect(err).To(BeAssignableToTypeOf(&ConstructionError{}))
		Expect(errors.Is(err, ErrAbstract)).To(BeTrue())
		Expect(err.Error()).To(Equal("When creating '': derivative has no constructor"))

		f.Register("db.AbstractPlugin", nil)
		_, err = f.Create("abstract")
		Expect(errors.Cause(err)).To(Equal(ErrAbstract))
	})
})

var _ = Describe("construction error", func() {
	var f *Family
	BeforeEach(func() { f = newTestFamily() })

	expectStackOutsidePackage := func(s stack.Stack) {
		ExpectWithOffset(1, s).NotTo(BeEmpty())
		inPackage := errutil.InDir(packageDir)
		for _, frame := range s {
			ExpectWithOffset(1, inPackage(frame)).To(BeFalse(), frame.String())
		}
	}

	It("keeps original error and its stack", func() {
		f.Register("FailingPlugin", newTestPluginFailing)
		_, err := f.Create("failing")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(Equal("When creating 'failing': constructor failed"))
		constructionErr, ok := err.(*ConstructionError)
		Expect(ok).To(BeTrue(), "%T", err)
		Expect(constructionErr.Identifier).To(Equal("failing"))
		Expect(constructionErr.Err.Error()).To(Equal("constructor failed"))
		Expect(errors.Cause(err)).To(BeIdenticalTo(constructionErr.Err))

		s := constructionErr.Stack()
		expectStackOutsidePackage(s)
		Expect(s[0].Name).To(Equal("newTestPluginFailing"))
		Expect(fmt.Sprintf("%+v", err)).To(HavePrefix("When creating 'failing': constructor failed\n"))
		Expect(fmt.Sprintf("%+v", err)).To(ContainSubstring("newTestPluginFailing"))
	})

	It("stackless error gets caller stack", func() {
		originErr := stderrors.New("plain error")
		f.Register("PlainPlugin", func() (Plugin, error) { return nil, originErr })
		_, err := f.Create("PlainPlugin")
		Expect(stderrors.Is(err, originErr)).To(BeTrue())
		s := err.(*ConstructionError).Stack()
		expectStackOutsidePackage(s)
		Expect(filepath.Base(s[0].File)).To(Equal("create_test.go"))
	})

	It("constructor panic", func() {
		f.Register("PanicPlugin", func() Plugin {
			var conf *testConfig
			return &testPlugin{conf.Value}
		})
		var err error
		Expect(func() { _, err = f.Create("panic") }).NotTo(Panic())
		Expect(err).To(BeAssignableToTypeOf(&ConstructionError{}))
		Expect(err.Error()).To(HavePrefix("When creating 'panic': runtime error: invalid memory address"))
		s := err.(*ConstructionError).Stack()
		expectStackOutsidePackage(s)
		Expect(filepath.Base(s[0].File)).To(Equal("create_test.go"))
	})

	It("panic with value", func() {
		f.Register("PanicPlugin", func() Plugin { panic("boom") })
		_, err := f.Create("PanicPlugin")
		Expect(err).To(MatchError("When creating 'PanicPlugin': boom"))
	})

	It("config fill error", func() {
		f.Register("ConfPlugin", newTestPluginConf, WithPreset(func(interface{}) error {
			return errors.New("preset failed")
		}))
		_, err := f.Create("conf")
		Expect(err).To(MatchError("When creating 'conf': preset failed"))
	})

	It("identifier of derivative", func() {
		d := f.Register("FailingPlugin", newTestPluginFailing)
		_, err := f.Create(d)
		Expect(err).To(MatchError("When creating 'FailingPlugin': constructor failed"))
	})
})

var _ = Describe("new", func() {
	var f *Family
	BeforeEach(func() { f = newTestFamily() })

	It("fills config", func() {
		f.Register("ConfPlugin", newTestPluginPtrConf, WithDefaultConfig(newTestDefaultPtrConf))
		plugin, err := f.New("conf")
		expectValue(plugin, err, testDefaultValue)
		plugin, err = f.New("conf", fillTestConf)
		expectValue(plugin, err, testFilledValue)
	})

	It("fills config from yaml", func() {
		f.Register("ConfPlugin", newTestPluginConf, WithDefaultConfig(newTestDefaultConf))
		data := testutil.ParseYAML("value: yaml")
		plugin, err := f.New("conf", func(conf interface{}) error {
			return config.Decode(data, conf)
		})
		expectValue(plugin, err, "yaml")
	})

	It("presets go before fill", func() {
		f.Register("ConfPlugin", newTestPluginConf, WithPreset(func(conf interface{}) error {
			conf.(*testConfig).Value = "preset"
			return nil
		}))
		plugin, err := f.New("conf")
		expectValue(plugin, err, "preset")
		plugin, err = f.New("conf", fillTestConf)
		expectValue(plugin, err, testFilledValue)
	})

	It("no config constructor gets empty fill", func() {
		f.Register("TestPlugin", newTestPlugin)
		plugin, err := f.New("test", func(conf interface{}) error {
			Expect(conf).To(Equal(&struct{}{}))
			return nil
		})
		expectValue(plugin, err, testInitValue)
		_, err = f.New("test", fillTestConf)
		Expect(err).To(HaveOccurred())
	})

	It("constructor with args can't be created from config", func() {
		f.Register("ValuePlugin", newTestPluginValue)
		_, err := f.New("value")
		Expect(err).To(BeAssignableToTypeOf(&ConstructionError{}))
		Expect(err.Error()).To(ContainSubstring("can't be created from config"))
	})

	It("only one fill", func() {
		f.Register("ConfPlugin", newTestPluginConf)
		expectExpectationFail(func() { _, _ = f.New("conf", fillTestConf, fillTestConf) })
	})

	It("new config", func() {
		f.Register("ConfPlugin", newTestPluginConf, WithDefaultConfig(newTestDefaultConf))
		conf, err := f.NewConfig("conf", fillTestConf)
		Expect(err).NotTo(HaveOccurred())
		Expect(conf).To(Equal(testConfig{testFilledValue}))

		f.Register("TestPlugin", newTestPlugin)
		conf, err = f.NewConfig("test")
		Expect(err).NotTo(HaveOccurred())
		Expect(conf).To(BeNil())

		_, err = f.NewConfig("")
		Expect(errors.Is(err, ErrAbstract)).To(BeTrue())
	})
})

type namedString string
