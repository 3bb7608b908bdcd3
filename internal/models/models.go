// Package models defines the HTTP request/response payloads: exported
// structs with json tags plus explicit Validate methods, so binding and
// bounds-checking stay separate steps in the handlers.
package models

import (
	"fmt"

	"github.com/c0lormem/apltestgen/pkg/colorspace"
	"github.com/c0lormem/apltestgen/pkg/export"
	"github.com/c0lormem/apltestgen/pkg/pattern"
)

const (
	maxDimension = 8192
	minPeakNits  = 200
	maxPeakNits  = 10000
)

// GenerateRequest is the payload for a single /generate call.
type GenerateRequest struct {
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	APLPercent      int            `json:"apl_percent"`
	Shape           pattern.Shape  `json:"shape"`
	ColorSpace      colorspace.Tag `json:"color_space"`
	HdrMode         export.HdrMode `json:"hdr_mode"`
	HdrPeakNits     int            `json:"hdr_peak_nits"`
	ExportFormat    export.Format  `json:"export_format"`
	OutputDirectory string         `json:"output_directory"`
}

// Validate enforces width/height in (0,8192], apl_percent in [1,100], and
// hdr_peak_nits in [200,10000].
func (r GenerateRequest) Validate() error {
	if r.Width <= 0 || r.Width > maxDimension {
		return fmt.Errorf("models: width must be in (0,%d], got %d", maxDimension, r.Width)
	}
	if r.Height <= 0 || r.Height > maxDimension {
		return fmt.Errorf("models: height must be in (0,%d], got %d", maxDimension, r.Height)
	}
	if r.APLPercent < 1 || r.APLPercent > 100 {
		return fmt.Errorf("models: apl_percent must be in [1,100], got %d", r.APLPercent)
	}
	if r.HdrPeakNits < minPeakNits || r.HdrPeakNits > maxPeakNits {
		return fmt.Errorf("models: hdr_peak_nits must be in [%d,%d], got %d", minPeakNits, maxPeakNits, r.HdrPeakNits)
	}
	return nil
}

// WithDefaults fills zero-valued optional fields: rectangle shape, Rec.709,
// no HDR, 1000 nits peak, PNG output.
func (r GenerateRequest) WithDefaults() GenerateRequest {
	if r.Shape == "" {
		r.Shape = pattern.Rectangle
	}
	if r.ColorSpace == "" {
		r.ColorSpace = colorspace.Rec709
	}
	if r.HdrMode == "" {
		r.HdrMode = export.HdrNone
	}
	if r.HdrPeakNits == 0 {
		r.HdrPeakNits = 1000
	}
	if r.ExportFormat == "" {
		r.ExportFormat = export.FormatPNG
	}
	return r
}

// ToExportRequest adapts a validated GenerateRequest into the pkg/export
// dispatch shape.
func (r GenerateRequest) ToExportRequest() export.Request {
	return export.Request{
		OutputDirectory: r.OutputDirectory,
		Width:           r.Width,
		Height:          r.Height,
		APLPercent:      r.APLPercent,
		Shape:           r.Shape,
		ColorSpace:      r.ColorSpace,
		Format:          r.ExportFormat,
		HdrMode:         r.HdrMode,
		HdrPeakNits:     r.HdrPeakNits,
	}
}

// PreviewRequest is the payload for the quick /preview endpoint.
type PreviewRequest struct {
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	APLPercent int           `json:"apl_percent"`
	Shape      pattern.Shape `json:"shape"`
}

// Validate applies the preview-specific bounds; previews are capped at 400px.
func (r PreviewRequest) Validate() error {
	const maxPreviewDimension = 400
	if r.Width <= 0 || r.Width > maxPreviewDimension {
		return fmt.Errorf("models: preview width must be in (0,%d], got %d", maxPreviewDimension, r.Width)
	}
	if r.Height <= 0 || r.Height > maxPreviewDimension {
		return fmt.Errorf("models: preview height must be in (0,%d], got %d", maxPreviewDimension, r.Height)
	}
	if r.APLPercent < 1 || r.APLPercent > 100 {
		return fmt.Errorf("models: apl_percent must be in [1,100], got %d", r.APLPercent)
	}
	return nil
}

// GenerateResponse reports where a generated file landed.
type GenerateResponse struct {
	OutputPath string `json:"output_path"`
	FileSize   int64  `json:"file_size"`
}

// BatchRequest describes an APL sweep: a start/end/step range instead of a
// single value.
type BatchRequest struct {
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	APLRangeStart   int            `json:"apl_range_start"`
	APLRangeEnd     int            `json:"apl_range_end"`
	APLStep         int            `json:"apl_step"`
	Shape           pattern.Shape  `json:"shape"`
	ColorSpace      colorspace.Tag `json:"color_space"`
	HdrMode         export.HdrMode `json:"hdr_mode"`
	HdrPeakNits     int            `json:"hdr_peak_nits"`
	ExportFormat    export.Format  `json:"export_format"`
	OutputDirectory string         `json:"output_directory"`
}

// Validate applies the generate width/height bounds, the [1,100] bounds on
// both ends of the APL range plus the sweep ordering constraint
// (start <= end), and apl_step in [1,99]. hdr_peak_nits is not checked.
func (r BatchRequest) Validate() error {
	if r.Width <= 0 || r.Width > maxDimension {
		return fmt.Errorf("models: width must be in (0,%d], got %d", maxDimension, r.Width)
	}
	if r.Height <= 0 || r.Height > maxDimension {
		return fmt.Errorf("models: height must be in (0,%d], got %d", maxDimension, r.Height)
	}
	if r.APLRangeStart < 1 || r.APLRangeStart > 100 {
		return fmt.Errorf("models: apl_range_start must be in [1,100], got %d", r.APLRangeStart)
	}
	if r.APLRangeEnd < 1 || r.APLRangeEnd > 100 {
		return fmt.Errorf("models: apl_range_end must be in [1,100], got %d", r.APLRangeEnd)
	}
	if r.APLRangeStart > r.APLRangeEnd {
		return fmt.Errorf("models: apl_range_start (%d) must be <= apl_range_end (%d)", r.APLRangeStart, r.APLRangeEnd)
	}
	if r.APLStep < 1 || r.APLStep > 99 {
		return fmt.Errorf("models: apl_step must be in [1,99], got %d", r.APLStep)
	}
	return nil
}

// WithDefaults mirrors GenerateRequest.WithDefaults for the sweep request.
func (r BatchRequest) WithDefaults() BatchRequest {
	if r.Shape == "" {
		r.Shape = pattern.Rectangle
	}
	if r.ColorSpace == "" {
		r.ColorSpace = colorspace.Rec709
	}
	if r.HdrMode == "" {
		r.HdrMode = export.HdrNone
	}
	if r.HdrPeakNits == 0 {
		r.HdrPeakNits = 1000
	}
	if r.ExportFormat == "" {
		r.ExportFormat = export.FormatPNG
	}
	if r.APLStep == 0 {
		r.APLStep = 1
	}
	return r
}

// APLValues expands the start/end/step triple into the ordered APL set,
// inclusive of the end value when the step lands on it.
func (r BatchRequest) APLValues() []int {
	var values []int
	for apl := r.APLRangeStart; apl <= r.APLRangeEnd; apl += r.APLStep {
		values = append(values, apl)
	}
	return values
}

// BatchResponse carries the ID of a newly created batch job.
type BatchResponse struct {
	BatchID string `json:"batch_id"`
}

// BatchJobStatus is the lifecycle state of a batch job. A job transitions
// from running to exactly one of completed, failed, or cancelled.
type BatchJobStatus string

const (
	StatusRunning   BatchJobStatus = "running"
	StatusCompleted BatchJobStatus = "completed"
	StatusFailed    BatchJobStatus = "failed"
	StatusCancelled BatchJobStatus = "cancelled"
)

// BatchStatus is a point-in-time snapshot of one batch job's progress.
type BatchStatus struct {
	BatchID    string         `json:"batch_id"`
	Status     BatchJobStatus `json:"status"`
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Failed     int            `json:"failed"`
	CurrentAPL *int           `json:"current_apl,omitempty"`
}
