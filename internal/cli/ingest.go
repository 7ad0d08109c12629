package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/mgrunwald/docdex/internal/ingest"
	"github.com/mgrunwald/docdex/internal/metrics"
	"github.com/mgrunwald/docdex/internal/models"
)

var (
	ingestScope    string
	ingestForce    bool
	ingestManifest string
	ingestPlain    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Upload PDF files into the indexing backend",
	Long: `Upload one or more PDF files into the indexing backend.

Files already indexed under the same scope are skipped unless --force
is given. Files are processed one at a time; a failing file is marked
and the rest of the batch continues.

A batch can also be described in a YAML manifest:

  scope: acme
  force: false
  files:
    - manuals/setup.pdf
    - manuals/safety.pdf

Examples:
  docdex ingest manual.pdf --scope acme
  docdex ingest *.pdf --scope acme --force
  docdex ingest --manifest batch.yaml`,
	Args: cobra.ArbitraryArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestScope, "scope", "s", "", "scope the documents belong to")
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-upload files even when already indexed")
	ingestCmd.Flags().StringVarP(&ingestManifest, "manifest", "m", "", "YAML batch manifest")
	ingestCmd.Flags().BoolVar(&ingestPlain, "plain", false, "line-based progress output instead of the interactive view")
}

// batchManifest mirrors the YAML batch file format. File paths are
// resolved relative to the manifest's directory.
type batchManifest struct {
	Scope string   `yaml:"scope"`
	Force bool     `yaml:"force"`
	Files []string `yaml:"files"`
}

func loadManifest(path string) (*batchManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m batchManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	base := filepath.Dir(path)
	for i, f := range m.Files {
		if !filepath.IsAbs(f) {
			m.Files[i] = filepath.Join(base, f)
		}
	}
	return &m, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	paths := args
	if ingestManifest != "" {
		manifest, err := loadManifest(ingestManifest)
		if err != nil {
			return err
		}
		paths = append(paths, manifest.Files...)
		if ingestScope == "" {
			ingestScope = manifest.Scope
		}
		if manifest.Force {
			ingestForce = true
		}
	}

	if len(paths) == 0 {
		return fmt.Errorf("no files given: pass file arguments or --manifest")
	}
	if ingestScope == "" {
		return fmt.Errorf("--scope is required")
	}

	// Reject missing files before anything is uploaded.
	files := make([]ingest.BatchFile, 0, len(paths))
	names := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		name := filepath.Base(path)
		if _, dup := seen[name]; dup {
			fmt.Printf("Warning: %s listed twice, ignoring the second entry\n", name)
			continue
		}
		seen[name] = struct{}{}
		files = append(files, ingest.FileFromPath(path))
		names = append(names, name)
	}

	ctx := context.Background()

	// Pre-flight: fail fast when the backend is down instead of timing
	// out on the first upload.
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := backend.Health(hctx); err != nil {
		return fmt.Errorf("backend unreachable at %s: %w", cfg.BackendURL, err)
	}

	scope, err := resolveScope(ctx, ingestScope)
	if err != nil {
		return err
	}
	scopeID, err := models.RecordIDString(scope.ID)
	if err != nil {
		return fmt.Errorf("scope record id: %w", err)
	}

	collector := metrics.NewCollector()
	orch := ingest.NewOrchestrator(backend, dbClient, ingest.Options{
		PollInterval:    cfg.PollInterval,
		PollMaxAttempts: cfg.PollMaxAttempts,
		RetainWindow:    cfg.RetainWindow,
		Metrics:         collector,
		Refresh: func(ctx context.Context) {
			docs, err := dbClient.ListDocuments(ctx, scopeID)
			if err != nil {
				slog.Warn("catalog refresh failed", "scope", scope.Name, "error", err)
				return
			}
			slog.Info("catalog refreshed", "scope", scope.Name, "documents", len(docs))
		},
	})

	session := ingest.NewSession(names, cfg.StallThreshold)
	go orch.RunBatch(ctx, session, files, scopeID, scope.Name, ingestForce)

	interactive := !ingestPlain && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		detached, err := runBatchUI(session)
		if err != nil {
			return err
		}
		if detached {
			fmt.Printf("Detached from progress view; the batch continues (log: %s).\n", cfg.LogFile)
			waitForBatch(session, nil)
		}
	} else {
		waitForBatch(session, os.Stdout)
	}

	return printBatchResult(session, collector)
}

// resolveScope finds the scope by name, creating it on first use.
func resolveScope(ctx context.Context, name string) (*models.Scope, error) {
	scope, err := dbClient.GetScopeByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up scope %q: %w", name, err)
	}
	if scope != nil {
		return scope, nil
	}

	scope, err = dbClient.CreateScope(ctx, models.ScopeInput{Name: name, Kind: "brand"})
	if err != nil {
		return nil, fmt.Errorf("create scope %q: %w", name, err)
	}
	fmt.Printf("Created scope: %s\n", name)
	return scope, nil
}

// waitForBatch blocks until the batch finishes. With a non-nil writer it
// prints one line per observed task transition.
func waitForBatch(session *ingest.BatchSession, w io.Writer) {
	last := make(map[string]string)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if w != nil {
			for _, task := range session.Tasks() {
				line := fmt.Sprintf("[%-10s] %s %3d%%  %s", task.Status, task.FileName, task.Progress, task.Message)
				if last[task.FileName] != line {
					last[task.FileName] = line
					fmt.Fprintln(w, line)
				}
			}
		}
		if session.Finished() {
			return
		}
		<-ticker.C
	}
}

// printBatchResult prints the closing summary and returns an error when
// any file failed, so the process exit code reflects the batch outcome.
func printBatchResult(session *ingest.BatchSession, collector *metrics.Collector) error {
	done, failed := session.Counts()
	fmt.Printf("\nBatch %s finished: %d done, %d failed\n", session.ID, done, failed)

	snap := collector.Snapshot()
	logOpTiming(session.ID, "duplicate_check", snap.DuplicateCheck)
	logOpTiming(session.ID, "upload", snap.Upload)
	logOpTiming(session.ID, "poll", snap.Poll)
	logOpTiming(session.ID, "register", snap.Register)

	if verbose {
		printOpTiming("duplicate check", snap.DuplicateCheck)
		printOpTiming("upload", snap.Upload)
		printOpTiming("poll", snap.Poll)
		printOpTiming("register", snap.Register)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, done+failed)
	}
	return nil
}

func printOpTiming(name string, op *metrics.OperationSnapshot) {
	if op == nil {
		return
	}
	fmt.Printf("  %-16s %3d calls, avg %.0fms, max %dms\n", name, op.Count, op.AvgTimeMs, op.MaxTimeMs)
}

func logOpTiming(batchID, op string, snap *metrics.OperationSnapshot) {
	if snap == nil {
		return
	}
	slog.Info("batch timing",
		"batch_id", batchID, "op", op,
		"count", snap.Count, "avg_ms", snap.AvgTimeMs, "max_ms", snap.MaxTimeMs)
}
