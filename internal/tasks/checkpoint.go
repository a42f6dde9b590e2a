package tasks

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/fitmod"
	"github.com/decibelcooper/he3spectra/internal/histio"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/spectra"
	"github.com/decibelcooper/he3spectra/internal/xlog"
)

// CheckpointOptions selects the inputs of the checkpoint stage.
type CheckpointOptions struct {
	Species nuclei.Species
	// Date overrides the DDMMYY stamp of the output directory.
	Date time.Time
}

// Checkpoint collects the antimatter results of a finished pass under
// canonical names in a dated directory, the exchange format shared with
// the downstream interpretation studies.
func Checkpoint(cfg *config.Config, signalPath, mcHistsPath, mcCurvesPath, systPath, outRoot string, opt CheckpointOptions) (string, error) {
	sig, err := spectra.LoadSet(signalPath)
	if err != nil {
		return "", err
	}
	mcCurves, err := spectra.LoadSet(mcCurvesPath)
	if err != nil {
		return "", err
	}
	mcArch, err := histio.ReadFile(mcHistsPath)
	if err != nil {
		return "", err
	}
	syst, err := spectra.LoadSet(systPath)
	if err != nil {
		return "", err
	}

	if _, err := fitmod.ResolveModelMatrix(cfg.Common.TPCModels, fitmod.SupportedTPCModels); err != nil {
		return "", err
	}
	defModel := fitmod.DefaultTPCModel(cfg.Common.TPCModels)

	stamp := opt.Date
	if stamp.IsZero() {
		stamp = time.Now()
	}
	dir := filepath.Join(outRoot, "checkpoint-"+stamp.Format("020106"))

	out := spectra.NewSet()
	renames := []struct{ from, to string }{
		{"pubStat", "published_stat"},
		{"pubSyst", "published_syst"},
		{"fStatTPCA", "tpc_spectrum_stat"},
		{"fSystTPCA", "tpc_spectrum_syst"},
		{"fStatTOFA", "tof_spectrum_stat"},
		{"fSystTOFA", "tof_spectrum_syst"},
	}
	for _, r := range renames {
		b, err := syst.MustGet(r.from)
		if err != nil {
			return "", err
		}
		out.Add(b.Clone(r.to))
	}
	for _, r := range []struct{ from, to string }{
		{"effTPCA", "tpc_efficiency"},
		{"effTOFA", "tof_efficiency"},
	} {
		b, err := mcCurves.MustGet(r.from)
		if err != nil {
			return "", err
		}
		out.Add(b.Clone(r.to))
	}
	for _, r := range []struct{ from, to string }{
		{"nuclei/genA", "MC/generated"},
		{"nuclei/TPCA", "MC/tpc_reconstructed"},
		{"nuclei/TOFA", "MC/tof_reconstructed"},
	} {
		h, err := mcArch.MustGet(r.from)
		if err != nil {
			return "", err
		}
		out.Add(binnedFromH1D(r.to, h, cfg.Common.PtBins))
	}
	for _, r := range []struct{ from, to string }{
		{fmt.Sprintf("nuclei/hTPConlyA0_%s", defModel), "Data/tpc_rawcounts"},
		{"nuclei/hRawCountsA0", "Data/tof_rawcounts"},
	} {
		b, err := sig.MustGet(r.from)
		if err != nil {
			return "", err
		}
		out.Add(b.Clone(r.to))
	}

	path := filepath.Join(dir, "spectra.json")
	if err := out.SaveFile(path); err != nil {
		return "", err
	}
	xlog.L.Infow("checkpoint written",
		"species", opt.Species.String(),
		"path", path,
	)
	return dir, nil
}
