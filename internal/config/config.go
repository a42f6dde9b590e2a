// Package config loads the analysis configuration from a TOML file and
// applies defaults for everything the file leaves out.
package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/decibelcooper/he3spectra/internal/nuclei"
)

// Common names the production, the binning and the fit-range constants
// shared by all stages.
type Common struct {
	Period       string    `mapstructure:"period"`
	RecoPass     string    `mapstructure:"reco_pass"`
	MCProduction string    `mapstructure:"mc_production"`
	Variant      string    `mapstructure:"variant"`
	BaseInputDir string    `mapstructure:"base_input_dir"`
	BaseOutDir   string    `mapstructure:"base_output_dir"`
	PtBins       []float64 `mapstructure:"pt_bins"`
	CentPtLimits []float64 `mapstructure:"cent_pt_limits"`
	TPCMaxPt     float64   `mapstructure:"tpc_max_pt"`
	TOFMinPt     float64   `mapstructure:"tof_min_pt"`
	PtRange      []float64 `mapstructure:"pt_range"`
	TPCModels    []string  `mapstructure:"tpc_function_names"`
}

// Cuts is the trial grid of the cut-variation systematics.
type Cuts struct {
	NSigmaDCAz []float64 `mapstructure:"nsigma_dca_z"`
	TPCnCls    []int     `mapstructure:"tpc_n_cls"`
	ITScls     []int     `mapstructure:"its_cls"`
	NSigmaTPC  []float64 `mapstructure:"nsigma_tpc"`
}

// Selections carries the tunable cut values that are not part of the grid.
type Selections struct {
	NSigmaTOFHe3 float64 `mapstructure:"he3_nsigma_tof"`
	NSigmaTOFHe4 float64 `mapstructure:"he4_nsigma_tof"`
	Trials       bool    `mapstructure:"trials"`
}

// Norm holds the event-normalization constants.
type Norm struct {
	EffTVX       float64 `mapstructure:"eff_tvx"`
	VertexingEff float64 `mapstructure:"vertexing_eff"`
}

// Report configures the HTML summary.
type Report struct {
	FitAlpha float64 `mapstructure:"fit_alpha"`
}

type Config struct {
	Common     Common     `mapstructure:"common"`
	Cuts       Cuts       `mapstructure:"cuts"`
	Selections Selections `mapstructure:"selections"`
	Norm       Norm       `mapstructure:"norm"`
	Report     Report     `mapstructure:"report"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("common.period", "LHC22")
	v.SetDefault("common.reco_pass", "apass4")
	v.SetDefault("common.mc_production", "LHC23j6b")
	v.SetDefault("common.variant", "")
	v.SetDefault("common.base_input_dir", "$NUCLEI_INPUT")
	v.SetDefault("common.base_output_dir", "$NUCLEI_OUTPUT")
	v.SetDefault("common.pt_bins", []float64{1.5, 1.75, 2.0, 2.25, 2.5, 2.75, 3.0, 3.25, 3.5, 3.75, 4.0, 4.5, 5.0})
	v.SetDefault("common.cent_pt_limits", []float64{7.0})
	v.SetDefault("common.tpc_max_pt", 7.0)
	v.SetDefault("common.tof_min_pt", 1.0)
	v.SetDefault("common.pt_range", []float64{1.4, 7.0})
	v.SetDefault("common.tpc_function_names", []string{"GausGaus", "ExpGaus", "ExpTailGaus", "LognormalLognormal"})

	v.SetDefault("cuts.nsigma_dca_z", []float64{6, 7, 8})
	v.SetDefault("cuts.tpc_n_cls", []int{110, 120, 130})
	v.SetDefault("cuts.its_cls", []int{5, 6, 7})
	v.SetDefault("cuts.nsigma_tpc", []float64{3, 4, 5})

	v.SetDefault("selections.he3_nsigma_tof", 3.5)
	v.SetDefault("selections.he4_nsigma_tof", 3.0)
	v.SetDefault("selections.trials", true)

	v.SetDefault("norm.eff_tvx", 0.756)
	v.SetDefault("norm.vertexing_eff", 0.921)

	v.SetDefault("report.fit_alpha", 0.05)
}

// Load reads the TOML file at path; an empty path yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: reading %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Common.PtBins) < 2 {
		return errors.New("config: common.pt_bins must contain at least 2 edges")
	}
	for i := 1; i < len(c.Common.PtBins); i++ {
		if c.Common.PtBins[i] <= c.Common.PtBins[i-1] {
			return errors.New("config: common.pt_bins must be strictly increasing")
		}
	}
	if len(c.Common.PtRange) != 2 {
		return errors.New("config: common.pt_range must have 2 values")
	}
	if len(c.Common.CentPtLimits) == 0 {
		return errors.New("config: common.cent_pt_limits must not be empty")
	}
	if len(c.Common.TPCModels) < 3 {
		return errors.New("config: common.tpc_function_names must have at least 3 entries")
	}
	if c.Norm.EffTVX <= 0 || c.Norm.EffTVX > 1 {
		return errors.Newf("config: norm.eff_tvx out of range: %v", c.Norm.EffTVX)
	}
	if c.Report.FitAlpha < 0 || c.Report.FitAlpha > 1 {
		return errors.Newf("config: report.fit_alpha out of range: %v", c.Report.FitAlpha)
	}
	return nil
}

// NPtBins is the number of analysis pT bins.
func (c *Config) NPtBins() int { return len(c.Common.PtBins) - 1 }

// CutGrid converts the cuts section into the trial grid.
func (c *Config) CutGrid() nuclei.CutGrid {
	return nuclei.CutGrid{
		NSigmaDCAz: c.Cuts.NSigmaDCAz,
		TPCnCls:    c.Cuts.TPCnCls,
		ITScls:     c.Cuts.ITScls,
		NSigmaTPC:  c.Cuts.NSigmaTPC,
	}
}

// NSigmaTOF returns the TPC n-sigma cut applied before the TOF histograms.
func (c *Config) NSigmaTOF(s nuclei.Species) float64 {
	if s == nuclei.He4 {
		return c.Selections.NSigmaTOFHe4
	}
	return c.Selections.NSigmaTOFHe3
}

func (c *Config) inputDir() string  { return os.ExpandEnv(c.Common.BaseInputDir) }
func (c *Config) outputDir() string { return os.ExpandEnv(c.Common.BaseOutDir) }

// DataTrackTable is the path of the merged data track table.
func (c *Config) DataTrackTable() string {
	return filepath.Join(c.inputDir(), "data", c.Common.Period, c.Common.RecoPass, "tracks.csv.gz")
}

// MCTrackTable is the path of the merged MC track table.
func (c *Config) MCTrackTable() string {
	return filepath.Join(c.inputDir(), "MC", c.Common.MCProduction, "tracks.csv.gz")
}

// EventCounts is the path of the per-run event-counter table used for
// normalization.
func (c *Config) EventCounts() string {
	return filepath.Join(c.inputDir(), "data", c.Common.Period, c.Common.RecoPass, "events.json")
}

// StageDir is the per-pass output directory.
func (c *Config) StageDir() string {
	return filepath.Join(c.outputDir(), c.Common.Period, c.Common.RecoPass)
}

func (c *Config) stageFile(stem, ext string) string {
	return filepath.Join(c.StageDir(), stem+c.Common.Variant+ext)
}

func (c *Config) DataHists(s nuclei.Species) string {
	if s == nuclei.He4 {
		return c.stageFile("data-histos-he4", ".yoda")
	}
	return c.stageFile("data-histos", ".yoda")
}

func (c *Config) MCHists(s nuclei.Species) string {
	if s == nuclei.He4 {
		return c.stageFile("mc-histos-he4", ".yoda")
	}
	return c.stageFile("mc-histos", ".yoda")
}

// MCCurves is the efficiency and resolution curve set of the MC stage.
func (c *Config) MCCurves(s nuclei.Species) string {
	if s == nuclei.He4 {
		return c.stageFile("mc-curves-he4", ".json")
	}
	return c.stageFile("mc-curves", ".json")
}

func (c *Config) SkimmedTable() string { return filepath.Join(c.StageDir(), "skimmed.csv.gz") }

func (c *Config) SignalOutput() string      { return c.stageFile("signal", ".json") }
func (c *Config) SecondariesOutput() string { return c.stageFile("secondaries", ".json") }
func (c *Config) SystematicsOutput() string { return c.stageFile("systematics", ".json") }
func (c *Config) SpectraOutput() string     { return c.stageFile("spectra", ".json") }
func (c *Config) TriggerEffOutput() string  { return c.stageFile("trigger-eff", ".json") }
func (c *Config) ReportDir() string         { return filepath.Join(c.StageDir(), "report") }
func (c *Config) MetadataPath() string      { return filepath.Join(c.StageDir(), "run-metadata.json") }
