package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/experimental/logging"

	"github.com/wasm-interop/arith/internal/version"
	"github.com/wasm-interop/arith/interop"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut io.Writer, stdErr logging.Writer, exit func(code int)) {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "add":
		doAdd(flag.Args()[1:], stdOut, stdErr, exit)
	case "answer":
		doAnswer(flag.Args()[1:], stdOut, stdErr, exit)
	case "exports":
		doExports(flag.Args()[1:], stdOut, stdErr, exit)
	case "compile":
		doCompile(flag.Args()[1:], stdErr, exit)
	case "runtimes":
		for _, name := range interop.Runtimes() {
			fmt.Fprintln(stdOut, name)
		}
		exit(0)
	case "version":
		fmt.Fprintln(stdOut, version.GetArithVersion())
		exit(0)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

// moduleFlags are the options shared by commands that call a module.
type moduleFlags struct {
	help     *bool
	module   *string
	runtime  *string
	cacheDir *string
	trace    *bool
	verbose  *bool
}

func newModuleFlags(flags *flag.FlagSet) *moduleFlags {
	return &moduleFlags{
		help: flags.Bool("h", false, "print usage"),
		module: flags.String("module", "", "path to a wasm file exporting add and isAnswerFortyTwo. "+
			"A .js path is resolved to the wasm-bindgen binary <name>_bg.wasm. Defaults to a built-in module."),
		runtime:  flags.String("runtime", "wazero", "runtime to execute the module. See the runtimes command."),
		cacheDir: cacheDirFlag(flags),
		trace:    flags.Bool("trace", false, "log each call to the module to stderr"),
		verbose:  flags.Bool("v", false, "log module loading to stderr"),
	}
}

// loadModule loads the module selected by f, exiting on failure. The caller closes the returned loader.
func loadModule(ctx context.Context, f *moduleFlags, stdErr logging.Writer, exit func(code int)) (*interop.Loader, *interop.Module) {
	config := interop.NewLoaderConfig().
		WithRuntime(*f.runtime).
		WithCompilationCache(*f.cacheDir)
	if *f.trace {
		config = config.WithTrace(stdErr)
	}
	if *f.verbose {
		config = config.WithLogWriter(stdErr)
	}

	loader := interop.NewLoader(config)
	mod, err := loader.LoadModule(ctx, *f.module)
	if err != nil {
		_ = loader.Close(ctx)
		fmt.Fprintf(stdErr, "error loading module: %v\n", err)
		exit(1)
	}
	return loader, mod
}

func doAdd(args []string, stdOut io.Writer, stdErr logging.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("add", flag.ExitOnError)
	flags.SetOutput(stdErr)
	mf := newModuleFlags(flags)
	_ = flags.Parse(args)

	if *mf.help {
		printCallUsage(stdErr, flags, "add <options> [--] <a> <b>")
		exit(0)
	}

	if flags.NArg() != 2 {
		fmt.Fprintln(stdErr, "expected two integers to add")
		printCallUsage(stdErr, flags, "add <options> [--] <a> <b>")
		exit(1)
	}
	a := parseInt32(flags.Arg(0), stdErr, exit)
	b := parseInt32(flags.Arg(1), stdErr, exit)

	ctx := context.Background()
	loader, mod := loadModule(ctx, mf, stdErr, exit)
	defer loader.Close(ctx)

	sum, err := mod.Add(ctx, a, b)
	if err != nil {
		fmt.Fprintf(stdErr, "error calling add: %v\n", err)
		exit(1)
	}
	fmt.Fprintln(stdOut, sum)
	exit(0)
}

func doAnswer(args []string, stdOut io.Writer, stdErr logging.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("answer", flag.ExitOnError)
	flags.SetOutput(stdErr)
	mf := newModuleFlags(flags)
	_ = flags.Parse(args)

	if *mf.help {
		printCallUsage(stdErr, flags, "answer <options> [--] <x>")
		exit(0)
	}

	if flags.NArg() != 1 {
		fmt.Fprintln(stdErr, "expected one integer")
		printCallUsage(stdErr, flags, "answer <options> [--] <x>")
		exit(1)
	}
	x := parseInt32(flags.Arg(0), stdErr, exit)

	ctx := context.Background()
	loader, mod := loadModule(ctx, mf, stdErr, exit)
	defer loader.Close(ctx)

	ok, err := mod.IsAnswerFortyTwo(ctx, x)
	if err != nil {
		fmt.Fprintf(stdErr, "error calling isAnswerFortyTwo: %v\n", err)
		exit(1)
	}
	fmt.Fprintln(stdOut, ok)
	exit(0)
}

func doExports(args []string, stdOut io.Writer, stdErr logging.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("exports", flag.ExitOnError)
	flags.SetOutput(stdErr)
	mf := newModuleFlags(flags)
	_ = flags.Parse(args)

	if *mf.help {
		printCallUsage(stdErr, flags, "exports <options>")
		exit(0)
	}

	// Loading validates each export and its signature.
	ctx := context.Background()
	loader, mod := loadModule(ctx, mf, stdErr, exit)
	defer loader.Close(ctx)

	fmt.Fprintf(stdOut, "%s (%s)\n", mod.Name(), mod.Source())
	for _, def := range interop.Exports() {
		fmt.Fprintf(stdOut, "  %s\n", def)
	}
	exit(0)
}

func doCompile(args []string, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("compile", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	cacheDir := cacheDirFlag(flags)

	_ = flags.Parse(args)

	if help {
		printCompileUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to wasm file")
		printCompileUsage(stdErr, flags)
		exit(1)
	}
	wasmPath := interop.ResolveWasmPath(flags.Arg(0))

	wasm, err := os.ReadFile(wasmPath)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading wasm binary: %v\n", err)
		exit(1)
	}

	c := wazero.NewRuntimeConfig()
	if cache := maybeUseCacheDir(cacheDir, stdErr, exit); cache != nil {
		c = c.WithCompilationCache(cache)
	}

	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, c)
	defer rt.Close(ctx)

	if _, err = rt.CompileModule(ctx, wasm); err != nil {
		fmt.Fprintf(stdErr, "error compiling wasm binary: %v\n", err)
		exit(1)
	} else {
		exit(0)
	}
}

func parseInt32(arg string, stdErr io.Writer, exit func(code int)) int32 {
	v, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		fmt.Fprintf(stdErr, "invalid arg %v: %v\n", arg, err)
		exit(1)
	}
	return int32(v)
}

func cacheDirFlag(flags *flag.FlagSet) *string {
	return flags.String("cachedir", "", "Writeable directory for native code compiled from wasm. "+
		"Contents are re-used for the same version of wazero.")
}

func maybeUseCacheDir(cacheDir *string, stdErr io.Writer, exit func(code int)) (cache wazero.CompilationCache) {
	if dir := *cacheDir; dir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(dir)
		if err != nil {
			fmt.Fprintf(stdErr, "invalid cachedir: %v\n", err)
			exit(1)
		} else {
			return
		}
	}
	return
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "arith CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  arith <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  add\t\tCalls add(a, b) in a WebAssembly module")
	fmt.Fprintln(stdErr, "  answer\tCalls isAnswerFortyTwo(x) in a WebAssembly module")
	fmt.Fprintln(stdErr, "  exports\tValidates and lists the exports of a WebAssembly module")
	fmt.Fprintln(stdErr, "  compile\tPre-compiles a WebAssembly binary")
	fmt.Fprintln(stdErr, "  runtimes\tLists the available runtimes")
	fmt.Fprintln(stdErr, "  version\tDisplays the version of arith CLI")
}

func printCallUsage(stdErr io.Writer, flags *flag.FlagSet, usage string) {
	fmt.Fprintln(stdErr, "arith CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  arith "+usage)
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

func printCompileUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "arith CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  arith compile <options> <path to wasm file>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
