// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// A tool to list and download the sources and patches of RPM spec files

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/nphilipp/rpmspectool/internal/directory"
	"github.com/nphilipp/rpmspectool/internal/exe"
	"github.com/nphilipp/rpmspectool/internal/logger"
	"github.com/nphilipp/rpmspectool/internal/network"
	"github.com/nphilipp/rpmspectool/internal/rpm"
	"github.com/nphilipp/rpmspectool/internal/rpmspec"
	"github.com/sirupsen/logrus"

	"gopkg.in/alecthomas/kingpin.v2"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitEvalError = 2
)

const tmpDirPrefix = exe.ToolName + "_"

// termination carries the exit code kingpin asks for after printing help or usage.
type termination struct {
	exitCode int
}

// specCommandFlags are shared by the commands that evaluate a spec file.
type specCommandFlags struct {
	verbose     bool
	definitions []string
	selection   selection
	specFile    string
}

type getFlags struct {
	directory string
	sourceDir bool
	insecure  bool
	force     bool
	dryRun    bool
	jobs      int
}

// cli holds the parsed command line and where its output goes.
type cli struct {
	progName string
	stdout   io.Writer
	stderr   io.Writer

	app      *kingpin.Application
	logFlags *logger.LogFlags

	debug           bool
	rpmProgram      string
	rpmBuildProgram string

	listCmd    *kingpin.CmdClause
	getCmd     *kingpin.CmdClause
	versionCmd *kingpin.CmdClause

	list specCommandFlags
	get  specCommandFlags
	getFlags
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	exitCode := newCLI(os.Args[0], os.Stdout, os.Stderr).run(ctx, os.Args[1:])
	stop()
	os.Exit(exitCode)
}

func newCLI(progName string, stdout, stderr io.Writer) (c *cli) {
	c = &cli{
		progName: progName,
		stdout:   stdout,
		stderr:   stderr,
		app:      kingpin.New(exe.ToolName, "Utility for RPM spec files"),
	}

	app := c.app
	app.Version(exe.ToolkitVersion)
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	app.Terminate(func(exitCode int) {
		panic(termination{exitCode: exitCode})
	})

	app.Flag("debug", "Log debug messages and keep the temporary directory.").Short('D').BoolVar(&c.debug)
	app.Flag("rpm", "The rpm executable to query macros with.").Default("rpm").Envar("RPMSPECTOOL_RPM").StringVar(&c.rpmProgram)
	app.Flag("rpmbuild", "The rpmbuild executable to evaluate spec files with.").Default("rpmbuild").Envar("RPMSPECTOOL_RPMBUILD").StringVar(&c.rpmBuildProgram)
	c.logFlags = exe.SetupLogFlags(app)

	c.getCmd = app.Command("get", "Download files")
	setupSpecCommandFlags(c.getCmd, &c.get)
	c.getCmd.Flag("directory", "Download into this directory (default: the current directory).").Short('C').StringVar(&c.getFlags.directory)
	c.getCmd.Flag("sourcedir", "Download into the source directory of the spec file.").Short('R').BoolVar(&c.getFlags.sourceDir)
	c.getCmd.Flag("insecure", "Don't verify TLS certificates.").BoolVar(&c.getFlags.insecure)
	c.getCmd.Flag("force", "Overwrite existing files.").Short('f').BoolVar(&c.getFlags.force)
	c.getCmd.Flag("dry-run", "Only show what would be downloaded.").Short('n').BoolVar(&c.getFlags.dryRun)
	c.getCmd.Flag("dryrun", "Alias of --dry-run.").Hidden().BoolVar(&c.getFlags.dryRun)
	c.getCmd.Flag("jobs", "Number of files to download at once.").Short('j').Default("1").IntVar(&c.getFlags.jobs)

	c.listCmd = app.Command("list", "List files")
	setupSpecCommandFlags(c.listCmd, &c.list)

	c.versionCmd = app.Command("version", "Show rpmspectool version")

	return
}

func setupSpecCommandFlags(cmd *kingpin.CmdClause, flags *specCommandFlags) {
	cmd.Flag("verbose", "Show the rpm error output if evaluating the spec file fails.").Short('v').BoolVar(&flags.verbose)
	cmd.Flag("define", "Define a macro, as 'name value'. May be repeated.").Short('d').StringsVar(&flags.definitions)
	cmd.Flag("sources", "Select all sources.").Short('S').BoolVar(&flags.selection.allSources)
	cmd.Flag("source", "Select sources by index, e.g. '0,2-4'. May be repeated.").Short('s').SetValue(&flags.selection.sources)
	cmd.Flag("patches", "Select all patches.").Short('P').BoolVar(&flags.selection.allPatches)
	cmd.Flag("patch", "Select patches by index, e.g. '0,2-4'. May be repeated.").Short('p').SetValue(&flags.selection.patches)
	cmd.Arg("specfile", "The RPM spec file to read, '-' after '--' for standard input.").Required().StringVar(&flags.specFile)
}

// run executes the command line and returns the process exit code.
func (c *cli) run(ctx context.Context, args []string) (exitCode int) {
	command, terminated, err := c.parse(args)
	if terminated != nil {
		return terminated.exitCode
	}
	if err != nil {
		c.app.Errorf("%s, try --help", err)
		return exitFailure
	}

	logger.InitBestEffort(c.logFlags)
	if c.debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.Log.Debugf("Running (%s) with (%v)", command, args)

	switch command {
	case c.versionCmd.FullCommand():
		fmt.Fprintf(c.stdout, "%s %s\n", c.progName, exe.ToolkitVersion)
		return exitOK
	case c.listCmd.FullCommand():
		return c.runSpecCommand(ctx, &c.list, c.printList)
	case c.getCmd.FullCommand():
		if c.getFlags.directory != "" && c.getFlags.sourceDir {
			c.app.Errorf("--directory and --sourcedir are mutually exclusive")
			return exitFailure
		}
		return c.runSpecCommand(ctx, &c.get, c.download)
	}

	c.app.Errorf("unknown command (%s)", command)
	return exitFailure
}

// parse parses args, returning the termination kingpin requested instead of exiting the
// process when it printed help, usage or the version.
func (c *cli) parse(args []string) (command string, terminated *termination, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, ok := r.(termination)
			if !ok {
				panic(r)
			}
			terminated = &t
		}
	}()

	command, err = c.app.Parse(args)
	return
}

// runSpecCommand evaluates the spec file in a fresh temporary directory and hands the
// selected entries to action.
func (c *cli) runSpecCommand(ctx context.Context, flags *specCommandFlags, action func(context.Context, *rpmspec.SourcePatchMap) error) (exitCode int) {
	err := flags.selection.validate()
	if err != nil {
		c.app.Errorf("%s", err)
		return exitFailure
	}

	tmpDir, err := directory.CreateTempDir(tmpDirPrefix)
	if err != nil {
		logger.Log.Error(err)
		return exitFailure
	}
	if c.debug {
		logger.Log.Debugf("Keeping temporary directory (%s)", tmpDir)
	} else {
		defer directory.RemoveBestEffort(tmpDir)
	}

	toolchain := &rpm.Toolchain{
		RpmProgram:      c.rpmProgram,
		RpmBuildProgram: c.rpmBuildProgram,
	}
	handler := rpmspec.NewHandler(toolchain, tmpDir)

	result, err := handler.EvalSpecFilePath(ctx, flags.specFile, flags.definitions)
	if err != nil {
		var evalErr *rpm.EvalError
		if errors.As(err, &evalErr) {
			c.reportEvalError(evalErr, flags.verbose)
			return exitEvalError
		}
		logger.Log.Error(err)
		return exitFailure
	}

	err = action(ctx, flags.selection.apply(result))
	if err != nil {
		logger.Log.Error(err)
		return exitFailure
	}
	return exitOK
}

func (c *cli) reportEvalError(evalErr *rpm.EvalError, verbose bool) {
	if c.debug {
		fmt.Fprintf(c.stderr, "Error parsing intermediate spec file '%s'.\n", evalErr.SpecPath)
	} else {
		fmt.Fprintln(c.stderr, "Error parsing intermediate spec file.")
	}

	if verbose {
		fmt.Fprintf(c.stderr, "RPM error:\n%s\n", evalErr.Stderr)
	}
}

func (c *cli) printList(_ context.Context, selected *rpmspec.SourcePatchMap) (err error) {
	sourcePrefix := color.New(color.FgGreen)
	patchPrefix := color.New(color.FgYellow)
	if c.stdout != os.Stdout {
		sourcePrefix.DisableColor()
		patchPrefix.DisableColor()
	}

	for _, index := range selected.SourceIndexes() {
		_, err = fmt.Fprintf(c.stdout, "%s: %s\n", sourcePrefix.Sprintf("Source%d", index), selected.Sources[index])
		if err != nil {
			return
		}
	}
	for _, index := range selected.PatchIndexes() {
		_, err = fmt.Fprintf(c.stdout, "%s: %s\n", patchPrefix.Sprintf("Patch%d", index), selected.Patches[index])
		if err != nil {
			return
		}
	}
	return
}

func (c *cli) download(ctx context.Context, selected *rpmspec.SourcePatchMap) (err error) {
	destDir := c.getFlags.directory
	if c.getFlags.sourceDir {
		if selected.SrcDir == "" {
			return fmt.Errorf("the spec file did not report a source directory")
		}
		destDir = selected.SrcDir
	}

	if destDir != "" && !c.getFlags.dryRun {
		err = directory.EnsureDirExists(destDir)
		if err != nil {
			return fmt.Errorf("failed to create download directory (%s):\n%w", destDir, err)
		}
	}

	opts := network.Options{
		Directory: destDir,
		DryRun:    c.getFlags.dryRun,
		Insecure:  c.getFlags.insecure,
		Force:     c.getFlags.force,
		UserAgent: exe.UserAgent(),
		Output:    c.stdout,
	}

	return downloadAll(ctx, downloadURLs(selected), opts, c.getFlags.jobs)
}
