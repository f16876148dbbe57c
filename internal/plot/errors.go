package plot

import "codeberg.org/mutker/thermals/internal/errors"

const (
	ErrInvalidSurface = errors.ErrorCode("plot_invalid_surface")
	ErrInvalidSpan    = errors.ErrInvalidSpan
	ErrNoData         = errors.ErrorCode("plot_no_data")
	ErrRenderFailed   = errors.ErrorCode("plot_render_failed")
)
