// Package pipeline runs the three preparation stages in sequence over
// filesystem artifacts: clean, reformat, fold split. Stages share no
// state beyond the files they read and write.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/strokeml/strokeprep/internal/clean"
	"github.com/strokeml/strokeprep/internal/config"
	"github.com/strokeml/strokeprep/internal/reformat"
	"github.com/strokeml/strokeprep/internal/split"
	"github.com/strokeml/strokeprep/internal/table"
)

type Pipeline struct {
	cfg      *config.Config
	log      *zap.Logger
	manifest *Manifest
}

func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		log:      log,
		manifest: NewManifest(cfg.ManifestPath),
	}
}

// RunClean executes the cleaner stage: raw extract in, clean table and
// issue table out.
func (p *Pipeline) RunClean() error {
	raw, err := table.ReadCSV(p.cfg.RawPath)
	if err != nil {
		return err
	}

	cleanTbl, issueTbl, err := clean.NewCleaner(p.log).Run(raw)
	if err != nil {
		return err
	}

	if err := p.writeArtifact("clean", p.cfg.CleanPath, cleanTbl); err != nil {
		return err
	}
	return p.writeArtifact("clean", p.cfg.IssuePath, issueTbl)
}

// RunReformat executes the reformatter stage: clean table in, cohort
// table out, site-code mapping persisted on first run.
func (p *Pipeline) RunReformat() error {
	cleanTbl, err := table.ReadCSV(p.cfg.CleanPath)
	if err != nil {
		return err
	}

	store := reformat.NewFileSiteCodeStore(p.cfg.SiteCodePath)
	reformatter := reformat.NewReformatter(p.log, store, reformat.Options{
		YearCutoff:      p.cfg.YearCutoff,
		MinAdmissions:   p.cfg.MinAdmissions,
		MinThrombolysis: p.cfg.MinThrombolysis,
		ShuffleSeed:     p.cfg.ShuffleSeed,
	})
	cohort, err := reformatter.Run(cleanTbl)
	if err != nil {
		return err
	}

	return p.writeArtifact("reformat", p.cfg.CohortPath, cohort)
}

// RunSplit executes the fold splitter: cohort table in, k train/test
// pairs out.
func (p *Pipeline) RunSplit() error {
	cohort, err := table.ReadCSV(p.cfg.CohortPath)
	if err != nil {
		return err
	}

	folds, err := split.NewSplitter(p.log, p.cfg.Folds, p.cfg.ShuffleSeed).Split(cohort)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(p.cfg.FoldDir, 0o755); err != nil {
		return fmt.Errorf("failed to create fold directory %s: %w", p.cfg.FoldDir, err)
	}
	if err := split.WriteFolds(folds, p.cfg.FoldDir); err != nil {
		return err
	}
	for i, fold := range folds {
		train := filepath.Join(p.cfg.FoldDir, fmt.Sprintf("train_%d.csv", i))
		test := filepath.Join(p.cfg.FoldDir, fmt.Sprintf("test_%d.csv", i))
		if err := p.manifest.Record("split", train, fold.Train.Len()); err != nil {
			return err
		}
		if err := p.manifest.Record("split", test, fold.Test.Len()); err != nil {
			return err
		}
	}
	return nil
}

// RunAll executes clean, reformat and split back to back; the first
// structural failure aborts the run.
func (p *Pipeline) RunAll() error {
	if err := p.RunClean(); err != nil {
		return err
	}
	if err := p.RunReformat(); err != nil {
		return err
	}
	return p.RunSplit()
}

func (p *Pipeline) writeArtifact(stage, path string, tbl *table.Table) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := tbl.WriteCSV(path); err != nil {
		return err
	}
	p.log.Info("wrote artifact",
		zap.String("stage", stage),
		zap.String("path", path),
		zap.Int("rows", tbl.Len()))
	return p.manifest.Record(stage, path, tbl.Len())
}
