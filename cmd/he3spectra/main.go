// Command he3spectra runs the (anti)helium spectra analysis chain on
// skimmed track tables: histogram production, raw-yield extraction,
// corrections, systematics and reporting.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	he3spectra "github.com/decibelcooper/he3spectra"
	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/tasks"
	"github.com/decibelcooper/he3spectra/internal/xlog"
)

var (
	flagConfig   string
	flagLogLevel string
	flagProfile  string
	flagSpecies  string
	flagPtBins   he3spectra.BinEdges

	cfg     *config.Config
	species nuclei.Species
	prof    interface{ Stop() }
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "he3spectra",
		Short:         "(anti)helium spectra analysis chain",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := xlog.Init(flagLogLevel); err != nil {
				return err
			}
			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			species, err = nuclei.ParseSpecies(flagSpecies)
			if err != nil {
				return err
			}
			if len(flagPtBins.Edges) > 0 {
				cfg.Common.PtBins = flagPtBins.Edges
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			switch flagProfile {
			case "cpu":
				prof = profile.Start(profile.CPUProfile, profile.ProfilePath("."))
			case "mem":
				prof = profile.Start(profile.MemProfile, profile.ProfilePath("."))
			case "":
			default:
				return fmt.Errorf("unknown profile mode %q", flagProfile)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if prof != nil {
				prof.Stop()
			}
			xlog.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "analysis configuration file (TOML)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "write a cpu or mem profile")
	root.PersistentFlags().StringVar(&flagSpecies, "species", "he3", "nucleus under study (he3, he4)")
	root.PersistentFlags().Var(&flagPtBins, "pt-bins", "override the analysis pT bin edges")

	root.AddCommand(
		dataCmd(),
		mcCmd(),
		signalCmd(),
		secondariesCmd(),
		systematicsCmd(),
		triggerEffCmd(),
		checkpointCmd(),
		reportCmd(),
		chainCmd(),
		dumpConfigCmd(),
	)
	return root
}

// orDefault substitutes the config-derived path when the flag is unset.
func orDefault(flag string, def func() string) string {
	if flag != "" {
		return flag
	}
	return def()
}

func runTask(task string, fn func() error) error {
	return tasks.RunWithMetadata(cfg.MetadataPath(), task, flagConfig, fn)
}

func dataCmd() *cobra.Command {
	var input, output string
	var trials, skim bool
	cmd := &cobra.Command{
		Use:   "data",
		Short: "fill the data histograms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask("data", func() error {
				return tasks.AnalyseData(cfg,
					orDefault(input, cfg.DataTrackTable),
					orDefault(output, func() string { return cfg.DataHists(species) }),
					tasks.DataOptions{Species: species, Trials: trials, Skim: skim})
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "track table (default from config)")
	cmd.Flags().StringVar(&output, "output", "", "histogram archive (default from config)")
	cmd.Flags().BoolVar(&trials, "trials", true, "fill the cut-variation trials")
	cmd.Flags().BoolVar(&skim, "skim", false, "write the loose preselection back out")
	return cmd
}

func mcCmd() *cobra.Command {
	var input, histOutput, curveOutput string
	var trials bool
	cmd := &cobra.Command{
		Use:   "mc",
		Short: "fill the MC histograms and efficiency curves",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask("mc", func() error {
				return tasks.AnalyseMC(cfg,
					orDefault(input, cfg.MCTrackTable),
					orDefault(histOutput, func() string { return cfg.MCHists(species) }),
					orDefault(curveOutput, func() string { return cfg.MCCurves(species) }),
					tasks.MCOptions{Species: species, Trials: trials})
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "MC track table (default from config)")
	cmd.Flags().StringVar(&histOutput, "hist-output", "", "histogram archive (default from config)")
	cmd.Flags().StringVar(&curveOutput, "curve-output", "", "curve set (default from config)")
	cmd.Flags().BoolVar(&trials, "trials", true, "fill the cut-variation trials")
	return cmd
}

func signalCmd() *cobra.Command {
	var input, output, plots string
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "extract the raw yields",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask("signal", func() error {
				return tasks.ExtractSignal(cfg,
					orDefault(input, func() string { return cfg.DataHists(species) }),
					orDefault(output, cfg.SignalOutput),
					tasks.SignalOptions{Species: species, PlotDir: plots})
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "data histogram archive (default from config)")
	cmd.Flags().StringVar(&output, "output", "", "raw-yield curve set (default from config)")
	cmd.Flags().StringVar(&plots, "plots", "", "directory for fit snapshot images")
	return cmd
}

func secondariesCmd() *cobra.Command {
	var dataHists, mcHists, output string
	cmd := &cobra.Command{
		Use:   "secondaries",
		Short: "fit the primary fraction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask("secondaries", func() error {
				return tasks.ComputeSecondaries(cfg,
					orDefault(dataHists, func() string { return cfg.DataHists(species) }),
					orDefault(mcHists, func() string { return cfg.MCHists(species) }),
					orDefault(output, cfg.SecondariesOutput),
					tasks.SecondariesOptions{Species: species})
			})
		},
	}
	cmd.Flags().StringVar(&dataHists, "data-hists", "", "data histogram archive (default from config)")
	cmd.Flags().StringVar(&mcHists, "mc-hists", "", "MC histogram archive (default from config)")
	cmd.Flags().StringVar(&output, "output", "", "primary-fraction curve set (default from config)")
	return cmd
}

func systematicsCmd() *cobra.Command {
	var signal, mcCurves, events, secondaries, output string
	cmd := &cobra.Command{
		Use:   "systematics",
		Short: "build the corrected spectra with uncertainties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask("systematics", func() error {
				return tasks.ComputeSystematics(cfg,
					orDefault(signal, cfg.SignalOutput),
					orDefault(mcCurves, func() string { return cfg.MCCurves(species) }),
					orDefault(events, cfg.EventCounts),
					orDefault(output, cfg.SystematicsOutput),
					tasks.SystematicsOptions{Species: species, SecondariesPath: secondaries})
			})
		},
	}
	cmd.Flags().StringVar(&signal, "signal", "", "raw-yield curve set (default from config)")
	cmd.Flags().StringVar(&mcCurves, "mc-curves", "", "MC curve set (default from config)")
	cmd.Flags().StringVar(&events, "events", "", "event-counter table (default from config)")
	cmd.Flags().StringVar(&secondaries, "secondaries", "", "primary-fraction curve set to apply")
	cmd.Flags().StringVar(&output, "output", "", "systematics curve set (default from config)")
	return cmd
}

func triggerEffCmd() *cobra.Command {
	var sampled, skimmed, sampledEvents, skimmedEvents, output string
	cmd := &cobra.Command{
		Use:   "trigger-eff",
		Short: "measure the software-trigger efficiency",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sampled == "" || skimmed == "" {
				return fmt.Errorf("trigger-eff: --sampled and --skimmed are required")
			}
			if sampledEvents == "" || skimmedEvents == "" {
				return fmt.Errorf("trigger-eff: --sampled-events and --skimmed-events are required")
			}
			return runTask("trigger-eff", func() error {
				return tasks.TriggerEfficiency(cfg, sampled, skimmed,
					orDefault(output, cfg.TriggerEffOutput),
					tasks.TriggerOptions{
						Species:       species,
						SampledEvents: sampledEvents,
						SkimmedEvents: skimmedEvents,
					})
			})
		},
	}
	cmd.Flags().StringVar(&sampled, "sampled", "", "sampled-data track table")
	cmd.Flags().StringVar(&skimmed, "skimmed", "", "triggered-data track table")
	cmd.Flags().StringVar(&sampledEvents, "sampled-events", "", "event-counter record of the sampled table")
	cmd.Flags().StringVar(&skimmedEvents, "skimmed-events", "", "event-counter record of the triggered table")
	cmd.Flags().StringVar(&output, "output", "", "trigger-efficiency curve set (default from config)")
	return cmd
}

func checkpointCmd() *cobra.Command {
	var outRoot string
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "export the pass results under canonical names",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask("checkpoint", func() error {
				dir, err := tasks.Checkpoint(cfg,
					cfg.SignalOutput(), cfg.MCHists(species), cfg.MCCurves(species),
					cfg.SystematicsOutput(),
					orDefault(outRoot, cfg.StageDir),
					tasks.CheckpointOptions{Species: species})
				if err != nil {
					return err
				}
				fmt.Println(dir)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outRoot, "out-root", "", "directory receiving the checkpoint (default from config)")
	return cmd
}

func reportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "render the HTML summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask("report", func() error {
				return tasks.BuildReport(cfg,
					orDefault(out, cfg.ReportDir),
					tasks.ReportOptions{Species: species})
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "report directory (default from config)")
	return cmd
}

func chainCmd() *cobra.Command {
	var skim bool
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "run the full analysis chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask("chain", func() error {
				steps := []struct {
					name string
					fn   func() error
				}{
					{"data", func() error {
						return tasks.AnalyseData(cfg, cfg.DataTrackTable(), cfg.DataHists(species),
							tasks.DataOptions{Species: species, Trials: cfg.Selections.Trials, Skim: skim})
					}},
					{"mc", func() error {
						return tasks.AnalyseMC(cfg, cfg.MCTrackTable(), cfg.MCHists(species), cfg.MCCurves(species),
							tasks.MCOptions{Species: species, Trials: cfg.Selections.Trials})
					}},
					{"signal", func() error {
						return tasks.ExtractSignal(cfg, cfg.DataHists(species), cfg.SignalOutput(),
							tasks.SignalOptions{Species: species, PlotDir: cfg.ReportDir()})
					}},
					{"secondaries", func() error {
						return tasks.ComputeSecondaries(cfg, cfg.DataHists(species), cfg.MCHists(species),
							cfg.SecondariesOutput(), tasks.SecondariesOptions{Species: species})
					}},
					{"systematics", func() error {
						return tasks.ComputeSystematics(cfg, cfg.SignalOutput(), cfg.MCCurves(species),
							cfg.EventCounts(), cfg.SystematicsOutput(),
							tasks.SystematicsOptions{Species: species, SecondariesPath: cfg.SecondariesOutput()})
					}},
					{"checkpoint", func() error {
						_, err := tasks.Checkpoint(cfg, cfg.SignalOutput(), cfg.MCHists(species),
							cfg.MCCurves(species), cfg.SystematicsOutput(), cfg.StageDir(),
							tasks.CheckpointOptions{Species: species})
						return err
					}},
					{"report", func() error {
						return tasks.BuildReport(cfg, cfg.ReportDir(), tasks.ReportOptions{Species: species})
					}},
				}
				for _, step := range steps {
					xlog.L.Infow("chain step", "step", step.name)
					if err := step.fn(); err != nil {
						return fmt.Errorf("chain: %s: %w", step.name, err)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skim, "skim", false, "write the loose preselection during the data step")
	return cmd
}

func dumpConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-config",
		Short: "print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
			return nil
		},
	}
}
