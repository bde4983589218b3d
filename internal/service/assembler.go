package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/panodent/pano-gateway/internal/domain"
	"github.com/panodent/pano-gateway/internal/logger"
	"github.com/panodent/pano-gateway/internal/runpod"
	"github.com/panodent/pano-gateway/internal/storage"
)

// Assembler normalizes a completed job's raw remote payload into the
// Result shape, materializing visualization payloads into the temporary
// storage namespace.
type Assembler struct {
	store  storage.ObjectStorage
	keys   storage.Keys
	fetch  *resty.Client
	logger *logger.Logger
}

// NewAssembler creates a new result assembler.
// Parameters:
//   - store: artifact store gateway.
//   - keys: namespace key builder.
//   - log: logger instance.
// Returns:
//   - *Assembler: initialized assembler.
func NewAssembler(store storage.ObjectStorage, keys storage.Keys, log *logger.Logger) *Assembler {
	fetch := resty.New()
	fetch.SetTimeout(60 * time.Second)
	return &Assembler{
		store:  store,
		keys:   keys,
		fetch:  fetch,
		logger: log,
	}
}

// Assemble converts the raw remote output into a Result.
//
// Findings failing validation are dropped and counted, never aborting
// assembly. Visualization uploads run concurrently; a failed upload is
// non-fatal and only flags PartialArtifactFailure, so structured findings
// are never withheld because an image could not be stored.
func (a *Assembler) Assemble(ctx context.Context, jobID string, input domain.JobInput, out *runpod.Output) *domain.Result {
	result := &domain.Result{
		Findings: []domain.Finding{},
	}

	var raw []runpod.FindingPayload
	if out != nil {
		raw = out.Findings
	}

	for _, fp := range raw {
		f := domain.Finding{
			ToothPosition:   fp.FDI,
			FindingType:     domain.FindingType(fp.Finding),
			ConfidenceScore: fp.Score,
		}
		if err := f.Validate(); err != nil {
			result.DroppedFindings++
			logger.CtxWarn(ctx, "Dropping invalid finding for job %s: %v", jobID, err)
			continue
		}
		result.Findings = append(result.Findings, f)
	}
	result.NumFindings = len(result.Findings)

	// CSV is rendered from the validated findings so it always agrees
	// with the structured list, even when the remote's own csv_data
	// included rows that failed validation here.
	result.CSVText = domain.RenderFindingsCSV(imageStem(input), result.Findings)

	if input.DebugRequested && out != nil {
		a.materializeArtifacts(ctx, jobID, out, result)
	}

	return result
}

// imageStem returns the file name column value: the input image name
// without its extension.
func imageStem(input domain.JobInput) string {
	name := input.ImageName
	if name == "" {
		name = path.Base(input.ImageLocator)
		if idx := strings.IndexAny(name, "?#"); idx != -1 {
			name = name[:idx]
		}
	}
	return strings.TrimSuffix(name, path.Ext(name))
}

// materializeArtifacts uploads every visualization payload into the
// temporary namespace under a deterministic key and records its locator.
// Uploads for different artifact names are independent and run
// concurrently; all complete (or are recorded as failed) before return.
func (a *Assembler) materializeArtifacts(ctx context.Context, jobID string, out *runpod.Output, result *domain.Result) {
	type artifactSource struct {
		name   string
		url    string // externally stored locator, fetched then re-uploaded
		inline string // base64 payload
	}

	var sources []artifactSource
	for name, u := range out.DebugImageURLs {
		sources = append(sources, artifactSource{name: sanitizeArtifactName(name), url: u})
	}
	for name, data := range out.DebugImages {
		sources = append(sources, artifactSource{name: sanitizeArtifactName(name), inline: data})
	}
	if len(sources) == 0 {
		return
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		locators  = make(map[string]string, len(sources))
		anyFailed bool
	)

	for _, src := range sources {
		wg.Add(1)
		go func(src artifactSource) {
			defer wg.Done()

			locator, err := a.materializeOne(ctx, jobID, src.name, src.url, src.inline)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				anyFailed = true
				logger.CtxWarn(ctx, "Artifact upload failed for job %s: %v",
					jobID, &domain.ArtifactUploadError{Artifact: src.name, Err: err})
				return
			}
			locators[src.name] = locator
		}(src)
	}
	wg.Wait()

	if len(locators) > 0 {
		result.VisualizationArtifacts = locators
	}
	result.PartialArtifactFailure = anyFailed
}

// materializeOne resolves one payload to bytes and uploads it.
func (a *Assembler) materializeOne(ctx context.Context, jobID, name, srcURL, inline string) (string, error) {
	var data []byte
	switch {
	case inline != "":
		decoded, err := base64.StdEncoding.DecodeString(inline)
		if err != nil {
			return "", fmt.Errorf("failed to decode inline payload: %w", err)
		}
		data = decoded
	case srcURL != "":
		resp, err := a.fetch.R().SetContext(ctx).Get(srcURL)
		if err != nil {
			return "", fmt.Errorf("failed to fetch artifact payload: %w", err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("artifact payload fetch returned %d", resp.StatusCode())
		}
		data = resp.Body()
	default:
		return "", fmt.Errorf("artifact has neither locator nor inline payload")
	}

	key := a.keys.Temp(jobID, name)
	contentType := http.DetectContentType(data)
	if err := a.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}
	return a.store.GetURL(key), nil
}

// sanitizeArtifactName keeps artifact names single-segment so they cannot
// escape the job's key prefix.
func sanitizeArtifactName(name string) string {
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "artifact"
	}
	return name
}
