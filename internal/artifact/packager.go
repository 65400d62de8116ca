package artifact

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"time"

	"gantry/internal/anonymize"
	"gantry/internal/imaging"
	"gantry/internal/selection"
	"gantry/internal/services"
)

// Provenance carries the processing context recorded in the manifest.
type Provenance struct {
	ItemID     string
	RunID      string
	Selection  selection.Result
	Skipped    []imaging.SkippedFile
	Parameters map[string]string
	CreatedAt  time.Time
}

// Image is one encoded slice ready for upload.
type Image struct {
	Name string
	Data []byte
}

// Bundle is the packaged triage artifact: encoded images plus the manifest.
// The pipeline owns a bundle until it is handed to the host store.
type Bundle struct {
	Images   []Image
	Manifest Manifest
}

// Package renders anonymized slices to 16-bit grayscale PNG and assembles the
// manifest. Image order and manifest record order mirror the selection order
// of the input. Encoding is deterministic for identical pixel input.
func Package(slices []anonymize.Slice, prov Provenance) (*Bundle, error) {
	if len(slices) == 0 {
		return nil, services.Wrap(services.ErrInput, "artifact", "package", "no slices to package", nil)
	}

	bundle := &Bundle{
		Manifest: Manifest{
			ItemID:      prov.ItemID,
			RunID:       prov.RunID,
			GeneratedAt: prov.CreatedAt.UTC(),
			Selection:   prov.Selection,
			Skipped:     prov.Skipped,
			Parameters:  prov.Parameters,
		},
	}

	for i, slice := range slices {
		name := fmt.Sprintf("slice_%03d.png", i)
		encoded, err := encodePNG(slice)
		if err != nil {
			return nil, services.Wrap(services.ErrInput, "artifact", "encode",
				fmt.Sprintf("slice %d (%s)", i, slice.Source), err)
		}
		bundle.Images = append(bundle.Images, Image{Name: name, Data: encoded})
		bundle.Manifest.Records = append(bundle.Manifest.Records, Record{
			Image:           name,
			SourceFile:      slice.Source,
			Index:           i,
			Metadata:        slice.Metadata,
			RedactedRegions: slice.RedactedRegions,
		})
	}
	return bundle, nil
}

// encodePNG maps the slice's sample range onto 16-bit grayscale, preserving
// relative intensity without window/level assumptions.
func encodePNG(slice anonymize.Slice) ([]byte, error) {
	if slice.Rows <= 0 || slice.Cols <= 0 || len(slice.Data) != slice.Rows*slice.Cols {
		return nil, fmt.Errorf("invalid pixel grid %dx%d with %d samples", slice.Rows, slice.Cols, len(slice.Data))
	}

	lo, hi := slice.Data[0], slice.Data[0]
	for _, v := range slice.Data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo

	img := image.NewGray16(image.Rect(0, 0, slice.Cols, slice.Rows))
	for y := 0; y < slice.Rows; y++ {
		for x := 0; x < slice.Cols; x++ {
			v := slice.Data[y*slice.Cols+x]
			var scaled uint16
			if span > 0 {
				scaled = uint16((int64(v-lo) * 65535) / int64(span))
			}
			offset := img.PixOffset(x, y)
			img.Pix[offset] = byte(scaled >> 8)
			img.Pix[offset+1] = byte(scaled)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
