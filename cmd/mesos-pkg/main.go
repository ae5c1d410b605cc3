package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/vigiglobe/mesos-deb-packaging/internal/config"
	"github.com/vigiglobe/mesos-deb-packaging/internal/logging"
	"github.com/vigiglobe/mesos-deb-packaging/internal/orchestrator"
	"github.com/vigiglobe/mesos-deb-packaging/internal/planner"
	"github.com/vigiglobe/mesos-deb-packaging/internal/platform"
	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "mesos-pkg",
		Usage: "Build Mesos from source and package it for this host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "build profile",
				Value:   config.DefaultPath,
				Aliases: []string{"c"},
				Sources: cli.EnvVars("MESOS_PKG_CONFIG"),
			},
			&cli.BoolFlag{Name: "verbose", Usage: "stream tool output and debug logs", Aliases: []string{"v"}},
			&cli.BoolFlag{Name: "quiet", Usage: "only log warnings and errors", Aliases: []string{"q"}},
			&cli.BoolFlag{Name: "dry-run", Usage: "print commands instead of running them", Aliases: []string{"n"}},
		},
		Commands: []*cli.Command{
			{
				Name:      "build",
				Aliases:   []string{"b"},
				Usage:     "Check out, build and package",
				ArgsUsage: "<name>",
				Flags: append(planFlags(),
					&cli.StringFlag{Name: "patch", Usage: "patch file applied with -p1 before building"},
					&cli.StringFlag{Name: "cxx", Usage: "C++ compiler"},
					&cli.StringFlag{Name: "cc", Usage: "C compiler"},
					&cli.BoolFlag{Name: "use-sudo", Usage: "run the packaging tool with sudo"},
					&cli.StringFlag{Name: "iteration", Usage: "package iteration"},
					&cli.StringFlag{Name: "work-dir", Usage: "directory holding the checkout and staging trees", Value: "."},
					&cli.StringFlag{Name: "src-dir", Usage: "checkout directory (default <work-dir>/<name>-repo)"},
					&cli.StringFlag{Name: "out-dir", Usage: "output directory (default <work-dir>/pkg)"},
					&cli.IntFlag{Name: "jobs", Usage: "parallel make jobs (default twice the CPU count)", Aliases: []string{"j"}},
				),
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					ctx, profile, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					o := orchestrator.New(afero.NewOsFs(), utils.NewExecRunner())
					res, err := o.Build(ctx, buildOptions(cmd, profile))
					if err != nil {
						return err
					}
					fmt.Println(res.Package)
					return nil
				},
			},
			{
				Name:      "plan",
				Aliases:   []string{"p"},
				Usage:     "Print the build plan without building",
				ArgsUsage: "<name>",
				Flags:     planFlags(),
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					ctx, profile, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					o := orchestrator.New(afero.NewOsFs(), utils.NewExecRunner())
					plan, err := o.Plan(ctx, buildOptions(cmd, profile))
					if err != nil {
						return err
					}
					enc := yaml.NewEncoder(os.Stdout)
					defer enc.Close()
					return enc.Encode(plan)
				},
			},
			{
				Name:  "probe",
				Usage: "Print the normalized platform of this host",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					ctx, _, err := setup(ctx, cmd)
					if err != nil {
						return err
					}
					p, err := platform.NewProbe(utils.NewExecRunner()).Detect(ctx)
					if err != nil {
						return err
					}
					fmt.Println(p.ID())
					return nil
				},
			},
			{
				Name:  "init",
				Usage: "Write a default build profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "overwrite an existing profile", Aliases: []string{"f"}},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					p, err := config.Init(afero.NewOsFs(), cmd.String("config"), cmd.Bool("force"))
					if err != nil {
						return err
					}
					fmt.Println("📝 Wrote", p.Path())
					return nil
				},
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mesos-pkg:", err)
		os.Exit(utils.ExitStatus(err))
	}
}

// planFlags are shared by build and plan.
func planFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "repo", Usage: "repository locator, url[?ref=<rev>]", Aliases: []string{"r"}},
		&cli.StringFlag{Name: "ref", Usage: "revision to check out, overrides the locator"},
		&cli.StringFlag{Name: "version", Usage: "version to package (default from configure.ac)"},
		&cli.StringFlag{
			Name:  "start-with",
			Usage: "[system|runit]",
			Validator: func(s string) error {
				switch s {
				case planner.StartWithSystem, planner.StartWithRunit:
					return nil
				default:
					return fmt.Errorf("invalid start-with: %s", s)
				}
			},
		},
		&cli.StringFlag{Name: "platform", Usage: "pin family/version instead of probing the host"},
	}
}

// setup loads the profile and puts the logger and execution options on ctx.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, *config.Profile, error) {
	opts := utils.ExecOptions{
		Verbose: cmd.Bool("verbose"),
		Quiet:   cmd.Bool("quiet"),
		DryRun:  cmd.Bool("dry-run"),
		UseSudo: cmd.Bool("use-sudo"),
	}
	ctx = utils.WithExecOptions(ctx, opts)
	ctx = logging.With(ctx, logging.New(os.Stderr, opts.Verbose, opts.Quiet))

	profile, err := config.LoadOrDefault(afero.NewOsFs(), cmd.String("config"))
	if err != nil {
		return ctx, nil, err
	}
	return ctx, profile, nil
}

func buildOptions(cmd *cli.Command, p *config.Profile) orchestrator.Options {
	return orchestrator.Options{
		Name:           utils.WithDefault(cmd.StringArg("name"), p.Name),
		Locator:        flagOr(cmd, "repo", p.Repository),
		Ref:            cmd.String("ref"),
		Version:        cmd.String("version"),
		StartWith:      flagOr(cmd, "start-with", p.StartWith),
		Patch:          cmd.String("patch"),
		CC:             flagOr(cmd, "cc", p.CC),
		CXX:            flagOr(cmd, "cxx", p.CXX),
		Platform:       flagOr(cmd, "platform", p.Platform),
		Iteration:      flagOr(cmd, "iteration", p.Iteration),
		WorkDir:        cmd.String("work-dir"),
		SourceDir:      flagOr(cmd, "src-dir", p.SourceDir),
		OutDir:         flagOr(cmd, "out-dir", p.OutDir),
		ConfigureFlags: p.ConfigureFlags,
		Jobs:           int(cmd.Int("jobs")),
		Metadata:       p.Metadata,
		Rules:          p.Rules,
	}
}

// flagOr prefers an explicitly set flag over the profile value.
func flagOr(cmd *cli.Command, name, def string) string {
	if cmd.IsSet(name) {
		return cmd.String(name)
	}
	return def
}
