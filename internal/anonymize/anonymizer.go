package anonymize

import (
	"context"
	"sync"

	"gantry/internal/imaging"
)

// Slice is a de-identified slice derived from an imaging.Slice. The source
// slice is never mutated, preserving provenance for audit.
type Slice struct {
	Source        string
	Rows          int
	Cols          int
	BitsPerSample int
	Data          []int
	Metadata      map[string]string
	// RedactedRegions records the pixel areas blanked during redaction.
	RedactedRegions []Region
}

// Apply transforms one slice under the policy and redactor. It is a pure
// function of its inputs, safe for concurrent use across slices.
func Apply(src imaging.Slice, policy Policy, redactor Redactor) (Slice, error) {
	metadata := make(map[string]string, len(src.Metadata))
	for keyword, value := range src.Metadata {
		switch policy.ActionFor(keyword) {
		case ActionRemove:
			continue
		case ActionReplace:
			metadata[keyword] = policy.RedactionToken
		default:
			metadata[keyword] = value
		}
	}

	if err := VerifyRedaction(metadata, policy); err != nil {
		return Slice{}, err
	}

	data, regions := redactor.Redact(src.Rows, src.Cols, src.Data)
	return Slice{
		Source:          src.File,
		Rows:            src.Rows,
		Cols:            src.Cols,
		BitsPerSample:   src.BitsPerSample,
		Data:            data,
		Metadata:        metadata,
		RedactedRegions: regions,
	}, nil
}

// ApplyAll anonymizes independent slices in parallel, bounded by the worker
// count, preserving input order. The first error cancels remaining work and
// no partial result is returned.
func ApplyAll(ctx context.Context, slices []imaging.Slice, policy Policy, redactor Redactor, workers int) ([]Slice, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(slices) {
		workers = len(slices)
	}

	out := make([]Slice, len(slices))
	jobs := make(chan int)
	errOnce := sync.Once{}
	var firstErr error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result, err := Apply(slices[idx], policy, redactor)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
				out[idx] = result
			}
		}()
	}

send:
	for idx := range slices {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
